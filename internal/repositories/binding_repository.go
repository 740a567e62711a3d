package repositories

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/nsrs_binding/internal/models"
	"github.com/nsrs_binding/pkg/sharding"
	"gorm.io/gorm"
)

// NumberKeyWidth 是号码键的固定宽度，前缀查询按此宽度构造范围
const NumberKeyWidth = 11

// BindingQuery 是绑定关系列表查询的筛选条件
type BindingQuery struct {
	Number        string // 完整号码精确查询，不足定宽按前缀范围查询
	Imsi          string
	Iccid         string
	BindingStatus models.BindingStatus
}

// BindingRepository 定义了号码IMSI绑定关系仓库的接口
type BindingRepository interface {
	Create(ctx context.Context, binding *models.NumberImsiBinding) error
	// GetActiveByNumber 查询号码当前处于 Bound 状态的绑定关系，不存在时返回 ErrRecordNotFound
	GetActiveByNumber(ctx context.Context, number string) (*models.NumberImsiBinding, error)
	// GetActiveByNumberAndImsi 按 (号码, IMSI) 查询 Bound 状态的绑定关系
	GetActiveByNumberAndImsi(ctx context.Context, number, imsi string) (*models.NumberImsiBinding, error)
	// ExistsActiveByNumber 判断号码是否存在 Bound 状态的绑定
	ExistsActiveByNumber(ctx context.Context, number string) (bool, error)
	// ExistsActiveByIccid 判断 ICCID 是否存在 Bound 状态的绑定
	ExistsActiveByIccid(ctx context.Context, iccid string) (bool, error)
	// BatchCreate 在一个事务中保存一批绑定关系，任一冲突整批回滚
	BatchCreate(ctx context.Context, bindings []*models.NumberImsiBinding) error
	// MarkUnbound 将绑定关系置为 Unbound 并记录解绑时间，按号码路由分表
	MarkUnbound(ctx context.Context, number, imsi string, operatorUserID int64, remark string) error
	// BatchMarkUnbound 在一个事务中按 (号码, IMSI) 批量解绑，任一未命中整批回滚
	BatchMarkUnbound(ctx context.Context, keys []models.BatchUnbindItem, operatorUserID int64) error
	// List 分页查询绑定关系，号码前缀条件改写为范围查询以命中分表路由
	List(ctx context.Context, query BindingQuery, page, limit int) ([]models.NumberImsiBinding, int64, error)
	// CountByStatus 按绑定状态统计数量
	CountByStatus(ctx context.Context) (map[models.BindingStatus]int64, error)
}

type gormBindingRepository struct {
	db *gorm.DB
}

// NewGormBindingRepository 创建一个新的 GORM 绑定关系仓库实例
func NewGormBindingRepository(db *gorm.DB) BindingRepository {
	return &gormBindingRepository{db: db}
}

// Create 保存绑定关系。活动绑定的唯一性由部分唯一索引兜底，
// 唯一约束冲突由调用方转换为业务冲突错误
func (r *gormBindingRepository) Create(ctx context.Context, binding *models.NumberImsiBinding) error {
	err := r.db.WithContext(ctx).Create(binding).Error
	if IsUniqueViolation(err) {
		if table, tErr := sharding.TableForNumber(binding.Number); tErr == nil {
			log.Printf("绑定关系唯一约束冲突，号码 %s 路由分表 %s", binding.Number, table)
		}
	}
	return err
}

// BatchCreate 在一个事务中保存一批绑定关系
func (r *gormBindingRepository) BatchCreate(ctx context.Context, bindings []*models.NumberImsiBinding) error {
	if len(bindings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, binding := range bindings {
			if err := tx.Create(binding).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// IsUniqueViolation 判断错误是否为唯一约束冲突
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// IsUniqueViolationOnIccid 判断唯一约束冲突是否由活动绑定的 ICCID 索引触发
// sqlite 的冲突信息携带索引列名（如 "UNIQUE constraint failed: number_imsi_bindings.iccid"），
// 号码索引的信息不含 iccid 字样
func IsUniqueViolationOnIccid(err error) bool {
	return IsUniqueViolation(err) && strings.Contains(strings.ToLower(err.Error()), "iccid")
}

// GetActiveByNumber 查询号码当前有效的绑定关系
func (r *gormBindingRepository) GetActiveByNumber(ctx context.Context, number string) (*models.NumberImsiBinding, error) {
	var binding models.NumberImsiBinding
	err := r.db.WithContext(ctx).
		Where("number = ? AND binding_status = ?", number, models.BindingStatusBound).
		First(&binding).Error
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

// GetActiveByNumberAndImsi 按 (号码, IMSI) 查询有效绑定关系
func (r *gormBindingRepository) GetActiveByNumberAndImsi(ctx context.Context, number, imsi string) (*models.NumberImsiBinding, error) {
	var binding models.NumberImsiBinding
	err := r.db.WithContext(ctx).
		Where("number = ? AND imsi = ? AND binding_status = ?", number, imsi, models.BindingStatusBound).
		First(&binding).Error
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

// ExistsActiveByNumber 判断号码是否已被绑定
func (r *gormBindingRepository) ExistsActiveByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.NumberImsiBinding{}).
		Where("number = ? AND binding_status = ?", number, models.BindingStatusBound).
		Count(&count).Error
	return count > 0, err
}

// ExistsActiveByIccid 判断 ICCID 是否已被绑定
func (r *gormBindingRepository) ExistsActiveByIccid(ctx context.Context, iccid string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.NumberImsiBinding{}).
		Where("iccid = ? AND binding_status = ?", iccid, models.BindingStatusBound).
		Count(&count).Error
	return count > 0, err
}

// MarkUnbound 将绑定关系置为 Unbound；条件带号码以命中分表路由
func (r *gormBindingRepository) MarkUnbound(ctx context.Context, number, imsi string, operatorUserID int64, remark string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.NumberImsiBinding{}).
		Where("number = ? AND imsi = ? AND binding_status = ?", number, imsi, models.BindingStatusBound).
		Updates(map[string]interface{}{
			"binding_status":   models.BindingStatusUnbound,
			"operator_user_id": operatorUserID,
			"remark":           remark,
			"unbind_time":      now,
			"updated_at":       now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// BatchMarkUnbound 在一个事务中批量解绑
func (r *gormBindingRepository) BatchMarkUnbound(ctx context.Context, keys []models.BatchUnbindItem, operatorUserID int64) error {
	if len(keys) == 0 {
		return nil
	}
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			result := tx.Model(&models.NumberImsiBinding{}).
				Where("number = ? AND imsi = ? AND binding_status = ?", key.Number, key.Imsi, models.BindingStatusBound).
				Updates(map[string]interface{}{
					"binding_status":   models.BindingStatusUnbound,
					"operator_user_id": operatorUserID,
					"unbind_time":      now,
					"updated_at":       now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrRecordNotFound
			}
		}
		return nil
	})
}

// List 分页查询绑定关系
// 号码条件不足定宽时改写为闭区间范围查询，使分区感知的存储能剪枝到所属分表
func (r *gormBindingRepository) List(ctx context.Context, query BindingQuery, page, limit int) ([]models.NumberImsiBinding, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.NumberImsiBinding{})

	if query.Number != "" {
		keyRange, err := sharding.Range(query.Number, NumberKeyWidth)
		if err != nil {
			return nil, 0, err
		}
		if keyRange.Exact {
			db = db.Where("number = ?", query.Number)
		} else {
			db = db.Where("number BETWEEN ? AND ?", keyRange.Start, keyRange.End)
		}
	}
	if query.Imsi != "" {
		db = db.Where("imsi = ?", query.Imsi)
	}
	if query.Iccid != "" {
		db = db.Where("iccid = ?", query.Iccid)
	}
	if query.BindingStatus != "" {
		db = db.Where("binding_status = ?", query.BindingStatus)
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

	var bindings []models.NumberImsiBinding
	err := db.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&bindings).Error
	return bindings, total, err
}

// CountByStatus 按绑定状态统计数量
func (r *gormBindingRepository) CountByStatus(ctx context.Context) (map[models.BindingStatus]int64, error) {
	type statusCount struct {
		BindingStatus models.BindingStatus
		Count         int64
	}
	var rows []statusCount
	err := r.db.WithContext(ctx).Model(&models.NumberImsiBinding{}).
		Select("binding_status, COUNT(*) AS count").
		Group("binding_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.BindingStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.BindingStatus] = row.Count
	}
	return counts, nil
}
