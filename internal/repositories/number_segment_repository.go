package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/nsrs_binding/internal/models"
	"gorm.io/gorm"
)

// NumberSegmentRepository 定义了号段仓库的接口
type NumberSegmentRepository interface {
	Create(ctx context.Context, segment *models.NumberSegment) error
	// GetByID 按 ID 查询号段，不存在时返回 ErrRecordNotFound
	GetByID(ctx context.Context, segmentID int64) (*models.NumberSegment, error)
	// FindByNumber 查询包含指定号码的号段
	FindByNumber(ctx context.Context, number string) (*models.NumberSegment, error)
	// ApplyCounterDeltas 在单条 UPDATE 中应用计数器增减，列值下限为 0
	// deltas 的键为计数器列名（见 models.CounterColumn），值为有符号增量
	ApplyCounterDeltas(ctx context.Context, segmentID int64, deltas map[string]int64) error
	// ReplaceCounters 用全量重算结果覆盖号段的各状态计数器
	ReplaceCounters(ctx context.Context, segmentID int64, counters map[string]int64) error
	List(ctx context.Context, page, pageSize int) ([]models.NumberSegment, int64, error)
}

type gormNumberSegmentRepository struct {
	db *gorm.DB
}

// NewGormNumberSegmentRepository 创建一个新的 GORM 号段仓库实例
func NewGormNumberSegmentRepository(db *gorm.DB) NumberSegmentRepository {
	return &gormNumberSegmentRepository{db: db}
}

// Create 创建号段记录
func (r *gormNumberSegmentRepository) Create(ctx context.Context, segment *models.NumberSegment) error {
	return r.db.WithContext(ctx).Create(segment).Error
}

// GetByID 按 ID 查询号段
func (r *gormNumberSegmentRepository) GetByID(ctx context.Context, segmentID int64) (*models.NumberSegment, error) {
	var segment models.NumberSegment
	if err := r.db.WithContext(ctx).First(&segment, segmentID).Error; err != nil {
		return nil, err
	}
	return &segment, nil
}

// FindByNumber 查询包含指定号码的号段
func (r *gormNumberSegmentRepository) FindByNumber(ctx context.Context, number string) (*models.NumberSegment, error) {
	var segment models.NumberSegment
	err := r.db.WithContext(ctx).
		Where("start_number <= ? AND end_number >= ?", number, number).
		First(&segment).Error
	if err != nil {
		return nil, err
	}
	return &segment, nil
}

// ApplyCounterDeltas 在单条 UPDATE 中应用计数器增减
// 递减结果用 MAX(col - ?, 0) 钳制，避免并发转换把计数器推成负数
func (r *gormNumberSegmentRepository) ApplyCounterDeltas(ctx context.Context, segmentID int64, deltas map[string]int64) error {
	updates := make(map[string]interface{}, len(deltas)+1)
	for column, delta := range deltas {
		if delta == 0 {
			continue
		}
		if delta > 0 {
			updates[column] = gorm.Expr(fmt.Sprintf("%s + ?", column), delta)
		} else {
			updates[column] = gorm.Expr(fmt.Sprintf("MAX(%s - ?, 0)", column), -delta)
		}
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&models.NumberSegment{}).
		Where("id = ?", segmentID).
		Updates(updates).Error
}

// ReplaceCounters 用全量重算结果覆盖号段的各状态计数器
func (r *gormNumberSegmentRepository) ReplaceCounters(ctx context.Context, segmentID int64, counters map[string]int64) error {
	if len(counters) == 0 {
		return nil
	}
	updates := make(map[string]interface{}, len(counters)+1)
	for column, value := range counters {
		updates[column] = value
	}
	updates["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&models.NumberSegment{}).
		Where("id = ?", segmentID).
		Updates(updates).Error
}

// List 分页查询号段列表
func (r *gormNumberSegmentRepository) List(ctx context.Context, page, pageSize int) ([]models.NumberSegment, int64, error) {
	var segments []models.NumberSegment
	var total int64

	query := r.db.WithContext(ctx).Model(&models.NumberSegment{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("segment_code ASC").Offset(offset).Limit(pageSize).Find(&segments).Error
	if err != nil {
		return nil, 0, err
	}
	return segments, total, nil
}
