package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/nsrs_binding/internal/models"
	"gorm.io/gorm"
)

// ErrRecordNotFound 表示记录未找到，重用 gorm 的错误
var ErrRecordNotFound = gorm.ErrRecordNotFound

// ErrTaskRunning 表示任务正在运行，不允许删除
var ErrTaskRunning = errors.New("任务正在处理中，无法删除")

// BindingTaskQuery 是任务列表查询的筛选条件
type BindingTaskQuery struct {
	TaskName string
	Status   models.BindingTaskStatus
	TaskType models.BindingTaskType
}

// BindingTaskRepository 定义了批量绑定任务仓库的接口
type BindingTaskRepository interface {
	Create(ctx context.Context, task *models.BindingTask) error
	GetByID(ctx context.Context, taskID int64) (*models.BindingTask, error)
	Update(ctx context.Context, task *models.BindingTask) error
	// UpdateStatus 更新任务状态及起止时间（nil 表示不修改该时间字段）
	UpdateStatus(ctx context.Context, taskID int64, status models.BindingTaskStatus, startTime, endTime *time.Time) error
	// UpdateCounts 持久化任务的累计成功/失败计数
	UpdateCounts(ctx context.Context, taskID int64, successCount, failCount int) error
	// ResetForRetry 将任务重置为待处理并清零计数
	ResetForRetry(ctx context.Context, taskID int64) error
	// List 分页查询任务列表，按创建时间倒序
	List(ctx context.Context, query BindingTaskQuery, page, limit int) ([]models.BindingTask, int64, error)
	// Delete 删除任务（调用方保证任务未在运行）
	Delete(ctx context.Context, taskIDs []int64) error
	// ListByStatus 查询处于指定状态的全部任务
	ListByStatus(ctx context.Context, status models.BindingTaskStatus) ([]models.BindingTask, error)
}

type gormBindingTaskRepository struct {
	db *gorm.DB
}

// NewGormBindingTaskRepository 创建一个新的 GORM 任务仓库实例
func NewGormBindingTaskRepository(db *gorm.DB) BindingTaskRepository {
	return &gormBindingTaskRepository{db: db}
}

// Create 在数据库中创建一个新的任务记录
func (r *gormBindingTaskRepository) Create(ctx context.Context, task *models.BindingTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetByID 按 ID 获取任务
func (r *gormBindingTaskRepository) GetByID(ctx context.Context, taskID int64) (*models.BindingTask, error) {
	var task models.BindingTask
	if err := r.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error; err != nil {
		return nil, err // 调用方应处理 gorm.ErrRecordNotFound
	}
	return &task, nil
}

// Update 保存整个任务记录
func (r *gormBindingTaskRepository) Update(ctx context.Context, task *models.BindingTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}

// UpdateStatus 更新任务状态及起止时间
func (r *gormBindingTaskRepository) UpdateStatus(ctx context.Context, taskID int64, status models.BindingTaskStatus, startTime, endTime *time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if startTime != nil {
		updates["start_time"] = startTime
	}
	if endTime != nil {
		updates["end_time"] = endTime
	}
	return r.db.WithContext(ctx).Model(&models.BindingTask{}).
		Where("id = ?", taskID).Updates(updates).Error
}

// UpdateCounts 持久化任务的累计成功/失败计数，用于长任务的进度可见性
func (r *gormBindingTaskRepository) UpdateCounts(ctx context.Context, taskID int64, successCount, failCount int) error {
	return r.db.WithContext(ctx).Model(&models.BindingTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"success_count": successCount,
			"fail_count":    failCount,
			"updated_at":    time.Now(),
		}).Error
}

// ResetForRetry 将任务重置为待处理并清零计数与起止时间
func (r *gormBindingTaskRepository) ResetForRetry(ctx context.Context, taskID int64) error {
	return r.db.WithContext(ctx).Model(&models.BindingTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":        models.TaskStatusPending,
			"success_count": 0,
			"fail_count":    0,
			"start_time":    nil,
			"end_time":      nil,
			"updated_at":    time.Now(),
		}).Error
}

// List 分页查询任务列表
func (r *gormBindingTaskRepository) List(ctx context.Context, query BindingTaskQuery, page, limit int) ([]models.BindingTask, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.BindingTask{})

	if query.TaskName != "" {
		db = db.Where("task_name LIKE ?", "%"+query.TaskName+"%")
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.TaskType != "" {
		db = db.Where("task_type = ?", query.TaskType)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var tasks []models.BindingTask
	err := db.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&tasks).Error
	return tasks, total, err
}

// Delete 删除任务及其全部明细（级联）
func (r *gormBindingTaskRepository) Delete(ctx context.Context, taskIDs []int64) error {
	if len(taskIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.BindingDetail{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", taskIDs).Delete(&models.BindingTask{}).Error
	})
}

// ListByStatus 查询处于指定状态的全部任务
func (r *gormBindingTaskRepository) ListByStatus(ctx context.Context, status models.BindingTaskStatus) ([]models.BindingTask, error) {
	var tasks []models.BindingTask
	err := r.db.WithContext(ctx).Where("status = ?", status).Find(&tasks).Error
	return tasks, err
}
