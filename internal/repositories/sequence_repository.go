package repositories

import (
	"context"

	"github.com/nsrs_binding/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository 定义了全局序列分配器的接口
// 分区表的主键由序列统一分配，保证跨分片全局唯一且单调递增
type SequenceRepository interface {
	// Next 获取指定序列的下一个值
	Next(ctx context.Context, name string) (int64, error)
	// NextBatch 一次性获取 count 个连续的序列值
	NextBatch(ctx context.Context, name string, count int) ([]int64, error)
}

type gormSequenceRepository struct {
	db *gorm.DB
}

// NewGormSequenceRepository 创建一个新的 GORM 序列仓库实例
func NewGormSequenceRepository(db *gorm.DB) SequenceRepository {
	return &gormSequenceRepository{db: db}
}

// Next 获取下一个序列值
func (r *gormSequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	values, err := r.NextBatch(ctx, name, 1)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// NextBatch 在一个事务中推进序列并返回分配到的区间
// 行锁保证并发调用拿到互不重叠的区间
func (r *gormSequenceRepository) NextBatch(ctx context.Context, name string, count int) ([]int64, error) {
	if count <= 0 {
		return nil, nil
	}

	var last int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq models.SequenceValue
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", name).First(&seq).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			seq = models.SequenceValue{Name: name, Value: 0}
			if err := tx.Create(&seq).Error; err != nil {
				return err
			}
		}

		seq.Value += int64(count)
		last = seq.Value
		return tx.Model(&models.SequenceValue{}).
			Where("name = ?", name).
			Update("value", seq.Value).Error
	})
	if err != nil {
		return nil, err
	}

	values := make([]int64, count)
	for i := 0; i < count; i++ {
		values[i] = last - int64(count) + int64(i) + 1
	}
	return values, nil
}
