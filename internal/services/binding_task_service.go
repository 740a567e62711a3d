package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nsrs_binding/internal/models"
	"github.com/nsrs_binding/internal/repositories"
	"github.com/nsrs_binding/pkg/importer"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound       = errors.New("任务不存在")
	ErrInvalidTaskStatus  = errors.New("任务状态不允许该操作")
	ErrNoValidRows        = errors.New("文件中没有有效数据行")
	ErrTaskAlreadyRunning = errors.New("任务已在运行中")
	ErrTaskNotRunning     = errors.New("任务已不在运行中")
)

// BindingTaskService 定义了批量绑定任务编排的接口
// 任务状态机: Pending -> Processing -> Completed/Failed，Failed 仅可经 Retry 回到 Pending
type BindingTaskService interface {
	// Submit 导入文件并创建 Pending 任务及其全部明细
	Submit(ctx context.Context, filePath, taskName string, taskType models.BindingTaskType, operatorUserID int64) (*models.BindingTask, error)
	// Start 启动 Pending 任务，执行在独立 goroutine 中进行
	Start(ctx context.Context, taskID int64) error
	// Stop 请求停止 Processing 任务，未处理的明细保持 Pending
	Stop(ctx context.Context, taskID int64) error
	// Cancel 取消 Pending 或 Processing 的任务，直接置为 Failed
	Cancel(ctx context.Context, taskID int64) error
	// Retry 重试 Failed 任务，仅失败明细回到 Pending，成功明细保持不动
	Retry(ctx context.Context, taskID int64) error
	GetTask(ctx context.Context, taskID int64) (*models.BindingTask, error)
	ListTasks(ctx context.Context, query repositories.BindingTaskQuery, page, pageSize int) ([]models.BindingTask, int64, error)
	ListDetails(ctx context.Context, taskID int64, page, pageSize int) ([]models.BindingDetail, int64, error)
	// Delete 删除任务及其明细，运行中的任务拒绝删除
	Delete(ctx context.Context, taskIDs []int64) error
	// RecoverStalled 把进程重启后滞留在 Processing 的任务置为 Failed，返回处理条数
	RecoverStalled(ctx context.Context) (int, error)
}

type bindingTaskService struct {
	taskRepo     repositories.BindingTaskRepository
	detailRepo   repositories.BindingDetailRepository
	sequenceRepo repositories.SequenceRepository
	bindingSvc   BindingService
	execMgr      TaskExecutionManager
	processor    *batchProcessor
}

// NewBindingTaskService 创建一个新的批量任务服务实例
func NewBindingTaskService(
	taskRepo repositories.BindingTaskRepository,
	detailRepo repositories.BindingDetailRepository,
	sequenceRepo repositories.SequenceRepository,
	bindingSvc BindingService,
	execMgr TaskExecutionManager,
) BindingTaskService {
	return &bindingTaskService{
		taskRepo:     taskRepo,
		detailRepo:   detailRepo,
		sequenceRepo: sequenceRepo,
		bindingSvc:   bindingSvc,
		execMgr:      execMgr,
		processor:    newBatchProcessor(taskRepo, detailRepo, execMgr),
	}
}

// Submit 导入文件并创建任务及其明细
func (s *bindingTaskService) Submit(ctx context.Context, filePath, taskName string, taskType models.BindingTaskType, operatorUserID int64) (*models.BindingTask, error) {
	if taskType != models.TaskTypeBind && taskType != models.TaskTypeUnbind {
		return nil, fmt.Errorf("无效的任务类型: %s", taskType)
	}

	it, err := importer.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("打开导入文件失败: %w", err)
	}
	defer it.Close()

	var rows []importer.Row
	for {
		row, ok, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("读取导入文件失败: %w", err)
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNoValidRows
	}

	task := &models.BindingTask{
		TaskName:       taskName,
		TaskType:       taskType,
		Status:         models.TaskStatusPending,
		FilePath:       filePath,
		TotalCount:     len(rows),
		OperatorUserID: operatorUserID,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("创建任务失败: %w", err)
	}

	ids, err := s.sequenceRepo.NextBatch(ctx, models.SeqBindingDetailID, len(rows))
	if err != nil {
		return nil, fmt.Errorf("分配明细ID失败: %w", err)
	}
	details := make([]models.BindingDetail, 0, len(rows))
	for i, row := range rows {
		details = append(details, models.BindingDetail{
			ID:     ids[i],
			TaskID: task.ID,
			Number: row.Number,
			Imsi:   row.Imsi,
			Iccid:  row.Iccid,
			Status: models.DetailStatusPending,
		})
	}
	if err := s.detailRepo.BatchCreate(ctx, details); err != nil {
		return nil, fmt.Errorf("创建任务明细失败: %w", err)
	}
	return task, nil
}

// Start 启动 Pending 任务
func (s *bindingTaskService) Start(ctx context.Context, taskID int64) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != models.TaskStatusPending {
		return fmt.Errorf("%w: 当前状态 %s，仅 Pending 任务可启动", ErrInvalidTaskStatus, task.Status)
	}
	if s.execMgr.IsRunning(taskID) {
		return ErrTaskAlreadyRunning
	}

	now := time.Now()
	if err := s.taskRepo.UpdateStatus(ctx, taskID, models.TaskStatusProcessing, &now, nil); err != nil {
		return fmt.Errorf("更新任务状态失败: %w", err)
	}
	task.Status = models.TaskStatusProcessing
	task.StartTime = &now

	s.execMgr.Register(taskID)
	go s.runTask(task)
	return nil
}

// runTask 在独立 goroutine 中驱动任务执行
// 任何失败（包括 panic）都把任务置为 Failed，已落库的明细保持不变
func (s *bindingTaskService) runTask(task *models.BindingTask) {
	ctx := context.Background()
	defer s.execMgr.Complete(task.ID)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("任务 %d：执行 panic: %v", task.ID, r)
			s.finishTask(ctx, task.ID, models.TaskStatusFailed)
		}
	}()

	var proc rowProcessor
	switch task.TaskType {
	case models.TaskTypeUnbind:
		proc = &unbindRowProcessor{bindingSvc: s.bindingSvc, operatorUserID: task.OperatorUserID}
	default:
		proc = &bindRowProcessor{bindingSvc: s.bindingSvc, operatorUserID: task.OperatorUserID}
	}

	err := s.processor.run(ctx, task, proc)
	switch {
	case errors.Is(err, ErrTaskInterrupted):
		// 状态已由 Stop/Cancel 置为 Failed，这里不再覆盖
		log.Printf("任务 %d：执行被中断", task.ID)
	case err != nil:
		log.Printf("任务 %d：执行失败: %v", task.ID, err)
		s.finishTask(ctx, task.ID, models.TaskStatusFailed)
	default:
		s.finishTask(ctx, task.ID, models.TaskStatusCompleted)
	}
}

// finishTask 写入任务的终态与结束时间
func (s *bindingTaskService) finishTask(ctx context.Context, taskID int64, status models.BindingTaskStatus) {
	now := time.Now()
	if err := s.taskRepo.UpdateStatus(ctx, taskID, status, nil, &now); err != nil {
		log.Printf("任务 %d：写入终态 %s 失败: %v", taskID, status, err)
	}
}

// Stop 请求停止 Processing 任务
func (s *bindingTaskService) Stop(ctx context.Context, taskID int64) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != models.TaskStatusProcessing {
		return fmt.Errorf("%w: 当前状态 %s，仅 Processing 任务可停止", ErrInvalidTaskStatus, task.Status)
	}
	if !s.execMgr.Stop(taskID) {
		return ErrTaskNotRunning
	}

	now := time.Now()
	if err := s.taskRepo.UpdateStatus(ctx, taskID, models.TaskStatusFailed, nil, &now); err != nil {
		return fmt.Errorf("更新任务状态失败: %w", err)
	}
	return nil
}

// Cancel 取消 Pending 或 Processing 的任务
// 运行中的任务同时下达中断请求，执行 goroutine 在最近的检查点退出
func (s *bindingTaskService) Cancel(ctx context.Context, taskID int64) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != models.TaskStatusPending && task.Status != models.TaskStatusProcessing {
		return fmt.Errorf("%w: 当前状态 %s，仅 Pending/Processing 任务可取消", ErrInvalidTaskStatus, task.Status)
	}

	s.execMgr.Stop(taskID)
	now := time.Now()
	if err := s.taskRepo.UpdateStatus(ctx, taskID, models.TaskStatusFailed, nil, &now); err != nil {
		return fmt.Errorf("更新任务状态失败: %w", err)
	}
	return nil
}

// Retry 重试 Failed 任务
// 仅把失败明细重置为 Pending，成功明细与其已生效的绑定保持不动
func (s *bindingTaskService) Retry(ctx context.Context, taskID int64) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != models.TaskStatusFailed {
		return fmt.Errorf("%w: 当前状态 %s，仅 Failed 任务可重试", ErrInvalidTaskStatus, task.Status)
	}
	if s.execMgr.IsRunning(taskID) {
		return ErrTaskAlreadyRunning
	}

	reset, err := s.detailRepo.ResetFailedToPending(ctx, taskID)
	if err != nil {
		return fmt.Errorf("重置失败明细失败: %w", err)
	}
	log.Printf("任务 %d：重试重置 %d 条失败明细", taskID, reset)

	if err := s.taskRepo.ResetForRetry(ctx, taskID); err != nil {
		return fmt.Errorf("重置任务状态失败: %w", err)
	}
	return s.Start(ctx, taskID)
}

// GetTask 查询单个任务
func (s *bindingTaskService) GetTask(ctx context.Context, taskID int64) (*models.BindingTask, error) {
	return s.getTask(ctx, taskID)
}

func (s *bindingTaskService) getTask(ctx context.Context, taskID int64) (*models.BindingTask, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("查询任务失败: %w", err)
	}
	return task, nil
}

// ListTasks 分页查询任务列表
func (s *bindingTaskService) ListTasks(ctx context.Context, query repositories.BindingTaskQuery, page, pageSize int) ([]models.BindingTask, int64, error) {
	return s.taskRepo.List(ctx, query, page, pageSize)
}

// ListDetails 分页查询任务明细
func (s *bindingTaskService) ListDetails(ctx context.Context, taskID int64, page, pageSize int) ([]models.BindingDetail, int64, error) {
	if _, err := s.getTask(ctx, taskID); err != nil {
		return nil, 0, err
	}
	return s.detailRepo.ListByTaskID(ctx, taskID, page, pageSize)
}

// Delete 删除任务及其明细，运行中的任务拒绝删除
func (s *bindingTaskService) Delete(ctx context.Context, taskIDs []int64) error {
	for _, taskID := range taskIDs {
		if s.execMgr.IsRunning(taskID) {
			return fmt.Errorf("%w: 任务 %d", repositories.ErrTaskRunning, taskID)
		}
	}
	return s.taskRepo.Delete(ctx, taskIDs)
}

// RecoverStalled 把进程重启后滞留在 Processing 的任务置为 Failed
// 在服务启动时调用一次，运行中的任务不受影响
func (s *bindingTaskService) RecoverStalled(ctx context.Context) (int, error) {
	tasks, err := s.taskRepo.ListByStatus(ctx, models.TaskStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("查询滞留任务失败: %w", err)
	}

	recovered := 0
	now := time.Now()
	for _, task := range tasks {
		if s.execMgr.IsRunning(task.ID) {
			continue
		}
		if err := s.taskRepo.UpdateStatus(ctx, task.ID, models.TaskStatusFailed, nil, &now); err != nil {
			log.Printf("恢复滞留任务 %d 失败: %v", task.ID, err)
			continue
		}
		recovered++
	}
	if recovered > 0 {
		log.Printf("启动恢复：%d 个滞留在 Processing 的任务已置为 Failed", recovered)
	}
	return recovered, nil
}
