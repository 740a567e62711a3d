package repositories

import (
	"context"
	"time"

	"github.com/nsrs_binding/internal/models"
	"gorm.io/gorm"
)

// SimCardRepository 定义了 SIM 卡资源仓库的接口
type SimCardRepository interface {
	Create(ctx context.Context, card *models.SimCard) error
	// GetByIccid 按 ICCID 查询 SIM 卡，不存在时返回 ErrRecordNotFound
	GetByIccid(ctx context.Context, iccid string) (*models.SimCard, error)
	// UpdateStatusByIccid 按 ICCID 更新卡状态
	UpdateStatusByIccid(ctx context.Context, iccid string, status models.SimCardStatus) error
}

type gormSimCardRepository struct {
	db *gorm.DB
}

// NewGormSimCardRepository 创建一个新的 GORM SIM 卡仓库实例
func NewGormSimCardRepository(db *gorm.DB) SimCardRepository {
	return &gormSimCardRepository{db: db}
}

// Create 创建 SIM 卡记录
func (r *gormSimCardRepository) Create(ctx context.Context, card *models.SimCard) error {
	return r.db.WithContext(ctx).Create(card).Error
}

// GetByIccid 按 ICCID 查询 SIM 卡
func (r *gormSimCardRepository) GetByIccid(ctx context.Context, iccid string) (*models.SimCard, error) {
	var card models.SimCard
	if err := r.db.WithContext(ctx).Where("iccid = ?", iccid).First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// UpdateStatusByIccid 按 ICCID 更新卡状态
func (r *gormSimCardRepository) UpdateStatusByIccid(ctx context.Context, iccid string, status models.SimCardStatus) error {
	return r.db.WithContext(ctx).Model(&models.SimCard{}).
		Where("iccid = ?", iccid).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}
