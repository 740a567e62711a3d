package models

import (
	"time"
)

// NumberSegment 代表一个连续的号段及其按状态的聚合统计
// 统计计数是最终一致的: 由状态同步器增量维护，可通过全量重算纠偏
type NumberSegment struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	SegmentCode  string    `json:"segmentCode" gorm:"column:segment_code;unique;not null;size:50"`
	StartNumber  string    `json:"startNumber" gorm:"column:start_number;not null;size:50"`
	EndNumber    string    `json:"endNumber" gorm:"column:end_number;not null;size:50"`
	TotalQty     int64     `json:"totalQty" gorm:"column:total_qty;not null;default:0"`
	IdleQty      int64     `json:"idleQty" gorm:"column:idle_qty;not null;default:0"`
	ReservedQty  int64     `json:"reservedQty" gorm:"column:reserved_qty;not null;default:0"`
	ActivatedQty int64     `json:"activatedQty" gorm:"column:activated_qty;not null;default:0"`
	FrozenQty    int64     `json:"frozenQty" gorm:"column:frozen_qty;not null;default:0"`
	BlockedQty   int64     `json:"blockedQty" gorm:"column:blocked_qty;not null;default:0"`
	CreatedAt    time.Time `json:"createdAt" gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName 指定 NumberSegment 模型对应的数据库表名
func (NumberSegment) TableName() string {
	return "number_segments"
}

// CounterColumn 返回指定状态对应的统计列名
// Assigned 与 InUse 状态不在号段统计中单独计数，返回空字符串
func CounterColumn(status NumberStatus) string {
	switch status {
	case NumberStatusIdle:
		return "idle_qty"
	case NumberStatusReserved:
		return "reserved_qty"
	case NumberStatusActivated:
		return "activated_qty"
	case NumberStatusFrozen:
		return "frozen_qty"
	case NumberStatusLocked:
		return "blocked_qty"
	default:
		return ""
	}
}
