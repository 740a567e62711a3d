package repositories

import (
	"context"
	"time"

	"github.com/nsrs_binding/internal/models"
	"gorm.io/gorm"
)

// NumberResourceRepository 定义了号码资源仓库的接口
// 状态更新按号码（业务键）而非内部 ID 进行，内部 ID 查询在分片间不安全
type NumberResourceRepository interface {
	Create(ctx context.Context, resource *models.NumberResource) error
	// GetByNumber 按号码查询资源，不存在时返回 ErrRecordNotFound
	GetByNumber(ctx context.Context, number string) (*models.NumberResource, error)
	// UpdateIccidByNumber 设置或清除号码资源上冗余的 ICCID 字段
	UpdateIccidByNumber(ctx context.Context, number string, iccid *string) error
	// UpdateStatusByNumber 按号码更新状态
	UpdateStatusByNumber(ctx context.Context, number string, status models.NumberStatus) error
	// BatchUpdateStatusByNumbers 按号码列表批量更新状态，每种资源一次分组调用
	BatchUpdateStatusByNumbers(ctx context.Context, numbers []string, status models.NumberStatus) error
	// CountBySegmentAndStatus 统计号段内各状态的资源数量，用于全量重算
	CountBySegmentAndStatus(ctx context.Context, segmentID int64) (map[models.NumberStatus]int64, error)
}

type gormNumberResourceRepository struct {
	db *gorm.DB
}

// NewGormNumberResourceRepository 创建一个新的 GORM 号码资源仓库实例
func NewGormNumberResourceRepository(db *gorm.DB) NumberResourceRepository {
	return &gormNumberResourceRepository{db: db}
}

// Create 创建号码资源记录
func (r *gormNumberResourceRepository) Create(ctx context.Context, resource *models.NumberResource) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

// GetByNumber 按号码查询资源
func (r *gormNumberResourceRepository) GetByNumber(ctx context.Context, number string) (*models.NumberResource, error) {
	var resource models.NumberResource
	if err := r.db.WithContext(ctx).Where("number = ?", number).First(&resource).Error; err != nil {
		return nil, err
	}
	return &resource, nil
}

// UpdateIccidByNumber 设置或清除号码资源上的 ICCID 字段
func (r *gormNumberResourceRepository) UpdateIccidByNumber(ctx context.Context, number string, iccid *string) error {
	return r.db.WithContext(ctx).Model(&models.NumberResource{}).
		Where("number = ?", number).
		Updates(map[string]interface{}{
			"iccid":      iccid,
			"updated_at": time.Now(),
		}).Error
}

// UpdateStatusByNumber 按号码更新状态
func (r *gormNumberResourceRepository) UpdateStatusByNumber(ctx context.Context, number string, status models.NumberStatus) error {
	return r.db.WithContext(ctx).Model(&models.NumberResource{}).
		Where("number = ?", number).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// BatchUpdateStatusByNumbers 按号码列表批量更新状态
func (r *gormNumberResourceRepository) BatchUpdateStatusByNumbers(ctx context.Context, numbers []string, status models.NumberStatus) error {
	if len(numbers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.NumberResource{}).
		Where("number IN ?", numbers).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// CountBySegmentAndStatus 统计号段内各状态的资源数量
func (r *gormNumberResourceRepository) CountBySegmentAndStatus(ctx context.Context, segmentID int64) (map[models.NumberStatus]int64, error) {
	type statusCount struct {
		Status models.NumberStatus
		Count  int64
	}
	var rows []statusCount
	err := r.db.WithContext(ctx).Model(&models.NumberResource{}).
		Select("status, COUNT(*) AS count").
		Where("segment_id = ?", segmentID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.NumberStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
