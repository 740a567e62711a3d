package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nsrs_binding/internal/models"
)

// pollLimitedExecMgr 在固定次数的中断查询之后报告中断
// 用于确定性地复现停止请求落在块边界或行边界的场景
type pollLimitedExecMgr struct {
	TaskExecutionManager
	mu             sync.Mutex
	polls          int
	interruptAfter int
}

func (m *pollLimitedExecMgr) IsInterrupted(taskID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	return m.polls > m.interruptAfter
}

// seedTaskWithDetails 直接构造一个任务与若干 Pending 明细，并准备好对应的资源
func seedTaskWithDetails(t *testing.T, env *testEnv, count int) *models.BindingTask {
	t.Helper()
	ctx := context.Background()
	segID := env.seedSegment(t, "136000", "13600000000", "13600099999", int64(count))

	task := &models.BindingTask{
		TaskName:   "处理器测试",
		TaskType:   models.TaskTypeBind,
		Status:     models.TaskStatusProcessing,
		TotalCount: count,
	}
	if err := env.taskRepo.Create(ctx, task); err != nil {
		t.Fatalf("创建任务失败: %v", err)
	}

	ids, err := env.seqRepo.NextBatch(ctx, models.SeqBindingDetailID, count)
	if err != nil {
		t.Fatalf("分配明细ID失败: %v", err)
	}
	details := make([]models.BindingDetail, 0, count)
	for i := 0; i < count; i++ {
		number := fmt.Sprintf("13600%06d", i)
		imsi := fmt.Sprintf("460006%09d", i)
		env.seedBindableTriple(t, number, imsi, "", segID)
		details = append(details, models.BindingDetail{
			ID:     ids[i],
			TaskID: task.ID,
			Number: number,
			Imsi:   imsi,
			Status: models.DetailStatusPending,
		})
	}
	if err := env.detailRepo.BatchCreate(ctx, details); err != nil {
		t.Fatalf("创建明细失败: %v", err)
	}
	return task
}

func TestProcessorInterruptAtChunkBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := seedTaskWithDetails(t, env, 250)

	// 前两块（每块 1 次块边界查询 + 100 次行边界查询）放行，第三块的块边界查询触发中断
	stub := &pollLimitedExecMgr{interruptAfter: 2 * (batchChunkSize + 1)}
	processor := newBatchProcessor(env.taskRepo, env.detailRepo, stub)
	proc := &bindRowProcessor{bindingSvc: env.bindingSvc, operatorUserID: 1}

	err := processor.run(ctx, task, proc)
	if !errors.Is(err, ErrTaskInterrupted) {
		t.Fatalf("err = %v, 期望 ErrTaskInterrupted", err)
	}

	successCount, _ := env.detailRepo.CountByStatus(ctx, task.ID, models.DetailStatusSuccess)
	pendingCount, _ := env.detailRepo.CountByStatus(ctx, task.ID, models.DetailStatusPending)
	if successCount != 200 {
		t.Errorf("成功明细 = %d, 期望前两块共 200", successCount)
	}
	if pendingCount != 50 {
		t.Errorf("Pending 明细 = %d, 期望最后一块 50 行保持未处理", pendingCount)
	}

	after, _ := env.taskRepo.GetByID(ctx, task.ID)
	if after.SuccessCount != 200 || after.FailCount != 0 {
		t.Errorf("任务计数 success=%d fail=%d, 期望 200/0", after.SuccessCount, after.FailCount)
	}
}

func TestProcessorInterruptMidChunkLeavesChunkPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := seedTaskWithDetails(t, env, 50)

	// 中断落在第一块内部：本块尚未持久化，所有行保持 Pending
	stub := &pollLimitedExecMgr{interruptAfter: 10}
	processor := newBatchProcessor(env.taskRepo, env.detailRepo, stub)
	proc := &bindRowProcessor{bindingSvc: env.bindingSvc, operatorUserID: 1}

	err := processor.run(ctx, task, proc)
	if !errors.Is(err, ErrTaskInterrupted) {
		t.Fatalf("err = %v, 期望 ErrTaskInterrupted", err)
	}

	pendingCount, _ := env.detailRepo.CountByStatus(ctx, task.ID, models.DetailStatusPending)
	if pendingCount != 50 {
		t.Errorf("Pending 明细 = %d, 期望整块 50 行未持久化", pendingCount)
	}
}

func TestProcessorNoPendingRowsIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	task := &models.BindingTask{TaskName: "空任务", TaskType: models.TaskTypeBind, Status: models.TaskStatusProcessing}
	if err := env.taskRepo.Create(ctx, task); err != nil {
		t.Fatalf("创建任务失败: %v", err)
	}

	processor := newBatchProcessor(env.taskRepo, env.detailRepo, env.execMgr)
	proc := &bindRowProcessor{bindingSvc: env.bindingSvc, operatorUserID: 1}
	if err := processor.run(ctx, task, proc); err != nil {
		t.Errorf("无 Pending 明细应直接返回: %v", err)
	}
}

func TestProcessorRevertsTentativeSuccessOnCommitFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	segID := env.seedSegment(t, "136001", "13600100000", "13600109999", 2)

	// 同一块内两行使用同一号码：逐行预检都通过，批量落库命中唯一索引后整块回退
	env.seedBindableTriple(t, "13600100001", "460006100000001", "", segID)
	env.seedImsi(t, "460006100000002")

	task := &models.BindingTask{TaskName: "回退测试", TaskType: models.TaskTypeBind, Status: models.TaskStatusProcessing, TotalCount: 2}
	if err := env.taskRepo.Create(ctx, task); err != nil {
		t.Fatalf("创建任务失败: %v", err)
	}
	ids, err := env.seqRepo.NextBatch(ctx, models.SeqBindingDetailID, 2)
	if err != nil {
		t.Fatalf("分配明细ID失败: %v", err)
	}
	details := []models.BindingDetail{
		{ID: ids[0], TaskID: task.ID, Number: "13600100001", Imsi: "460006100000001", Status: models.DetailStatusPending},
		{ID: ids[1], TaskID: task.ID, Number: "13600100001", Imsi: "460006100000002", Status: models.DetailStatusPending},
	}
	if err := env.detailRepo.BatchCreate(ctx, details); err != nil {
		t.Fatalf("创建明细失败: %v", err)
	}

	processor := newBatchProcessor(env.taskRepo, env.detailRepo, env.execMgr)
	proc := &bindRowProcessor{bindingSvc: env.bindingSvc, operatorUserID: 1}
	if err := processor.run(ctx, task, proc); err != nil {
		t.Fatalf("processor.run 失败: %v", err)
	}

	rows, _, err := env.detailRepo.ListByTaskID(ctx, task.ID, 1, 10)
	if err != nil {
		t.Fatalf("查询明细失败: %v", err)
	}
	for _, d := range rows {
		if d.Status != models.DetailStatusFailed {
			t.Errorf("明细 %d 状态 = %s, 期望整块回退为 Failed", d.ID, d.Status)
		}
		if len(d.ErrorMsg) < len(models.ErrMsgBatchBindingException) || d.ErrorMsg[:len(models.ErrMsgBatchBindingException)] != models.ErrMsgBatchBindingException {
			t.Errorf("明细 %d ErrorMsg = %q, 期望以 %s 开头", d.ID, d.ErrorMsg, models.ErrMsgBatchBindingException)
		}
	}

	// 批量落库失败的块不应留下任何绑定
	if bound, _ := env.bindingSvc.IsNumberBound(ctx, "13600100001"); bound {
		t.Error("回退后号码不应处于绑定状态")
	}

	after, _ := env.taskRepo.GetByID(ctx, task.ID)
	if after.SuccessCount != 0 || after.FailCount != 2 {
		t.Errorf("任务计数 success=%d fail=%d, 期望 0/2", after.SuccessCount, after.FailCount)
	}
}
