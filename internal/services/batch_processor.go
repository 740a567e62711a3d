package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nsrs_binding/internal/models"
	"github.com/nsrs_binding/internal/repositories"
	"github.com/nsrs_binding/pkg/utils"
)

// ErrTaskInterrupted 表示任务执行因停止请求而提前结束，剩余行保持 Pending
var ErrTaskInterrupted = errors.New("任务已被中断")

// batchChunkSize 是批量任务按创建顺序切块处理的块大小
const batchChunkSize = 100

// rowProcessor 是批量任务行处理的统一缝隙，绑定与解绑各有一个实现
type rowProcessor interface {
	// check 对单行执行前置检查，返回的错误文本直接写入明细 ErrorMsg
	check(ctx context.Context, detail *models.BindingDetail) error
	// commit 对整块通过检查的行执行一次批量落库
	commit(ctx context.Context, details []models.BindingDetail) error
	// failureTag 是批量落库失败时写入明细 ErrorMsg 的前缀
	failureTag() string
}

// bindRowProcessor 处理绑定类任务的行
type bindRowProcessor struct {
	bindingSvc     BindingService
	operatorUserID int64
}

func (p *bindRowProcessor) check(ctx context.Context, detail *models.BindingDetail) error {
	return p.bindingSvc.CheckBindable(ctx, detail.Number, detail.Imsi, detail.Iccid)
}

func (p *bindRowProcessor) commit(ctx context.Context, details []models.BindingDetail) error {
	items := make([]models.BatchBindItem, 0, len(details))
	for _, d := range details {
		items = append(items, models.BatchBindItem{Number: d.Number, Imsi: d.Imsi, Iccid: d.Iccid})
	}
	_, err := p.bindingSvc.BatchBind(ctx, items, p.operatorUserID)
	return err
}

func (p *bindRowProcessor) failureTag() string {
	return models.ErrMsgBatchBindingException
}

// unbindRowProcessor 处理解绑类任务的行
type unbindRowProcessor struct {
	bindingSvc     BindingService
	operatorUserID int64
}

func (p *unbindRowProcessor) check(ctx context.Context, detail *models.BindingDetail) error {
	return p.bindingSvc.CheckUnbindable(ctx, detail.Number, detail.Imsi, detail.Iccid)
}

func (p *unbindRowProcessor) commit(ctx context.Context, details []models.BindingDetail) error {
	items := make([]models.BatchUnbindItem, 0, len(details))
	for _, d := range details {
		items = append(items, models.BatchUnbindItem{Number: d.Number, Imsi: d.Imsi, Iccid: d.Iccid})
	}
	_, err := p.bindingSvc.BatchUnbind(ctx, items, p.operatorUserID)
	return err
}

func (p *unbindRowProcessor) failureTag() string {
	return models.ErrMsgBatchUnbindingException
}

// batchProcessor 驱动一个任务的全部 Pending 明细按块执行
type batchProcessor struct {
	taskRepo   repositories.BindingTaskRepository
	detailRepo repositories.BindingDetailRepository
	execMgr    TaskExecutionManager
}

// newBatchProcessor 创建批量任务处理器
func newBatchProcessor(taskRepo repositories.BindingTaskRepository, detailRepo repositories.BindingDetailRepository, execMgr TaskExecutionManager) *batchProcessor {
	return &batchProcessor{
		taskRepo:   taskRepo,
		detailRepo: detailRepo,
		execMgr:    execMgr,
	}
}

// run 按创建顺序分块处理任务的 Pending 明细
// 块内逐行前置检查，通过的行先置为暂定 Success，再整块调用一次批量落库；
// 落库失败时把暂定 Success 回退为 Failed 并打上落库异常前缀。
// 每块处理完后持久化明细状态并刷新任务计数。
// 停止请求在块边界与行边界生效，未处理的行保持 Pending。
func (p *batchProcessor) run(ctx context.Context, task *models.BindingTask, proc rowProcessor) error {
	details, err := p.detailRepo.ListPendingByTaskID(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("加载任务 %d 的待处理明细失败: %w", task.ID, err)
	}
	if len(details) == 0 {
		return nil
	}

	// 重试时已有 Success/Failed 明细，计数从现状起算而不是从零
	successCount, err := p.detailRepo.CountByStatus(ctx, task.ID, models.DetailStatusSuccess)
	if err != nil {
		return fmt.Errorf("统计任务 %d 成功明细失败: %w", task.ID, err)
	}
	failCount, err := p.detailRepo.CountByStatus(ctx, task.ID, models.DetailStatusFailed)
	if err != nil {
		return fmt.Errorf("统计任务 %d 失败明细失败: %w", task.ID, err)
	}

	processed := 0
	for _, chunk := range utils.Chunk(details, batchChunkSize) {
		if p.execMgr.IsInterrupted(task.ID) {
			log.Printf("任务 %d：在块边界收到停止请求，已处理 %d/%d 行", task.ID, processed, len(details))
			return ErrTaskInterrupted
		}

		tentative := make([]int, 0, len(chunk))
		now := time.Now()
		for i := range chunk {
			if p.execMgr.IsInterrupted(task.ID) {
				// 本块尚未持久化任何状态，整块保持 Pending
				log.Printf("任务 %d：在行边界收到停止请求，已处理 %d/%d 行", task.ID, processed, len(details))
				return ErrTaskInterrupted
			}
			processTime := now
			chunk[i].ProcessTime = &processTime
			if checkErr := proc.check(ctx, &chunk[i]); checkErr != nil {
				chunk[i].Status = models.DetailStatusFailed
				chunk[i].ErrorMsg = checkErr.Error()
				continue
			}
			chunk[i].Status = models.DetailStatusSuccess
			chunk[i].ErrorMsg = ""
			tentative = append(tentative, i)
		}

		if len(tentative) > 0 {
			passed := make([]models.BindingDetail, 0, len(tentative))
			for _, i := range tentative {
				passed = append(passed, chunk[i])
			}
			if commitErr := proc.commit(ctx, passed); commitErr != nil {
				// 批量落库整体失败，暂定成功的行全部回退
				log.Printf("任务 %d：批量落库失败，回退本块 %d 行: %v", task.ID, len(tentative), commitErr)
				for _, i := range tentative {
					chunk[i].Status = models.DetailStatusFailed
					chunk[i].ErrorMsg = proc.failureTag() + ": " + commitErr.Error()
				}
			}
		}

		for i := range chunk {
			if chunk[i].Status == models.DetailStatusSuccess {
				successCount++
			} else {
				failCount++
			}
		}

		if err := p.detailRepo.BatchUpdateStatus(ctx, chunk); err != nil {
			return fmt.Errorf("持久化任务 %d 明细状态失败: %w", task.ID, err)
		}
		if err := p.taskRepo.UpdateCounts(ctx, task.ID, int(successCount), int(failCount)); err != nil {
			return fmt.Errorf("更新任务 %d 计数失败: %w", task.ID, err)
		}
		processed += len(chunk)
	}
	return nil
}
