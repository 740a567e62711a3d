package repositories

import (
	"context"
	"time"

	"github.com/nsrs_binding/internal/models"
	"gorm.io/gorm"
)

// ImsiResourceRepository 定义了 IMSI 资源仓库的接口
type ImsiResourceRepository interface {
	Create(ctx context.Context, resource *models.ImsiResource) error
	// GetByImsi 按 IMSI 查询资源，不存在时返回 ErrRecordNotFound
	GetByImsi(ctx context.Context, imsi string) (*models.ImsiResource, error)
	// UpdateStatusByImsi 按 IMSI 更新资源状态
	UpdateStatusByImsi(ctx context.Context, imsi string, status models.ImsiStatus) error
	// BatchUpdateStatusByImsis 按 IMSI 列表批量更新资源状态
	BatchUpdateStatusByImsis(ctx context.Context, imsis []string, status models.ImsiStatus) error
}

type gormImsiResourceRepository struct {
	db *gorm.DB
}

// NewGormImsiResourceRepository 创建一个新的 GORM IMSI 资源仓库实例
func NewGormImsiResourceRepository(db *gorm.DB) ImsiResourceRepository {
	return &gormImsiResourceRepository{db: db}
}

// Create 创建 IMSI 资源记录
func (r *gormImsiResourceRepository) Create(ctx context.Context, resource *models.ImsiResource) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

// GetByImsi 按 IMSI 查询资源
func (r *gormImsiResourceRepository) GetByImsi(ctx context.Context, imsi string) (*models.ImsiResource, error) {
	var resource models.ImsiResource
	if err := r.db.WithContext(ctx).Where("imsi = ?", imsi).First(&resource).Error; err != nil {
		return nil, err
	}
	return &resource, nil
}

// UpdateStatusByImsi 按 IMSI 更新资源状态
func (r *gormImsiResourceRepository) UpdateStatusByImsi(ctx context.Context, imsi string, status models.ImsiStatus) error {
	return r.db.WithContext(ctx).Model(&models.ImsiResource{}).
		Where("imsi = ?", imsi).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// BatchUpdateStatusByImsis 按 IMSI 列表批量更新资源状态
func (r *gormImsiResourceRepository) BatchUpdateStatusByImsis(ctx context.Context, imsis []string, status models.ImsiStatus) error {
	if len(imsis) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.ImsiResource{}).
		Where("imsi IN ?", imsis).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}
