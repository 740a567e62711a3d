package repositories

import (
	"context"
	"time"

	"github.com/nsrs_binding/internal/models"
	"gorm.io/gorm"
)

// BindingDetailRepository 定义了任务明细仓库的接口
type BindingDetailRepository interface {
	// BatchCreate 批量创建明细记录，ID 已由调用方通过序列分配
	BatchCreate(ctx context.Context, details []models.BindingDetail) error
	// ListPendingByTaskID 按创建顺序查询任务的全部待处理明细
	ListPendingByTaskID(ctx context.Context, taskID int64) ([]models.BindingDetail, error)
	// ListByTaskID 分页查询任务的明细
	ListByTaskID(ctx context.Context, taskID int64, page, limit int) ([]models.BindingDetail, int64, error)
	// BatchUpdateStatus 一次写入持久化一批明细的新状态
	BatchUpdateStatus(ctx context.Context, details []models.BindingDetail) error
	// ResetFailedToPending 将任务中失败的明细重置为待处理，成功的不受影响
	ResetFailedToPending(ctx context.Context, taskID int64) (int64, error)
	// CountByStatus 统计任务中处于指定状态的明细数量
	CountByStatus(ctx context.Context, taskID int64, status models.BindingDetailStatus) (int64, error)
}

type gormBindingDetailRepository struct {
	db *gorm.DB
}

// NewGormBindingDetailRepository 创建一个新的 GORM 明细仓库实例
func NewGormBindingDetailRepository(db *gorm.DB) BindingDetailRepository {
	return &gormBindingDetailRepository{db: db}
}

// BatchCreate 批量创建明细记录
func (r *gormBindingDetailRepository) BatchCreate(ctx context.Context, details []models.BindingDetail) error {
	if len(details) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(details, 200).Error
}

// ListPendingByTaskID 按创建顺序（即导入顺序）查询待处理明细
func (r *gormBindingDetailRepository) ListPendingByTaskID(ctx context.Context, taskID int64) ([]models.BindingDetail, error) {
	var details []models.BindingDetail
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND status = ?", taskID, models.DetailStatusPending).
		Order("id ASC").
		Find(&details).Error
	return details, err
}

// ListByTaskID 分页查询任务明细
func (r *gormBindingDetailRepository) ListByTaskID(ctx context.Context, taskID int64, page, limit int) ([]models.BindingDetail, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.BindingDetail{}).Where("task_id = ?", taskID)

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

	var details []models.BindingDetail
	err := db.Order("id ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&details).Error
	return details, total, err
}

// BatchUpdateStatus 在一个事务中持久化一批明细的状态、错误信息与处理时间
func (r *gormBindingDetailRepository) BatchUpdateStatus(ctx context.Context, details []models.BindingDetail) error {
	if len(details) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range details {
			d := &details[i]
			err := tx.Model(&models.BindingDetail{}).
				Where("id = ?", d.ID).
				Updates(map[string]interface{}{
					"status":       d.Status,
					"error_msg":    d.ErrorMsg,
					"process_time": d.ProcessTime,
					"updated_at":   time.Now(),
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ResetFailedToPending 将失败明细重置为待处理，返回重置的行数
func (r *gormBindingDetailRepository) ResetFailedToPending(ctx context.Context, taskID int64) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.BindingDetail{}).
		Where("task_id = ? AND status = ?", taskID, models.DetailStatusFailed).
		Updates(map[string]interface{}{
			"status":       models.DetailStatusPending,
			"error_msg":    "",
			"process_time": nil,
			"updated_at":   time.Now(),
		})
	return result.RowsAffected, result.Error
}

// CountByStatus 统计任务中处于指定状态的明细数量
func (r *gormBindingDetailRepository) CountByStatus(ctx context.Context, taskID int64, status models.BindingDetailStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BindingDetail{}).
		Where("task_id = ? AND status = ?", taskID, status).
		Count(&count).Error
	return count, err
}
