package models

import (
	"time"
)

// NumberStatus 定义了号码资源的状态
type NumberStatus string

const (
	NumberStatusIdle      NumberStatus = "Idle"      // 空闲
	NumberStatusReserved  NumberStatus = "Reserved"  // 预留
	NumberStatusAssigned  NumberStatus = "Assigned"  // 已分配
	NumberStatusActivated NumberStatus = "Activated" // 已激活
	NumberStatusInUse     NumberStatus = "InUse"     // 已使用
	NumberStatusFrozen    NumberStatus = "Frozen"    // 已冻结
	NumberStatusLocked    NumberStatus = "Locked"    // 已锁定
)

// NumberResource 对应号码资源表，按号码前缀分区
type NumberResource struct {
	ID        int64        `json:"id" gorm:"primaryKey"` // 全局序列分配
	Number    string       `json:"number" gorm:"column:number;unique;not null;size:50"`
	Status    NumberStatus `json:"status" gorm:"column:status;type:varchar(20);not null;index"`
	Iccid     *string      `json:"iccid,omitempty" gorm:"column:iccid;size:50"` // 绑定后冗余存储的 ICCID
	SegmentID int64        `json:"segmentId" gorm:"column:segment_id;not null;index"`
	CreatedAt time.Time    `json:"createdAt" gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time    `json:"updatedAt" gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName 指定 NumberResource 模型对应的数据库表名
func (NumberResource) TableName() string {
	return "number_resources"
}
