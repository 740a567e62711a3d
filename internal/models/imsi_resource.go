package models

import (
	"time"
)

// ImsiStatus 定义了IMSI资源的状态
type ImsiStatus string

const (
	ImsiStatusIdle   ImsiStatus = "Idle"   // 空闲
	ImsiStatusBound  ImsiStatus = "Bound"  // 已绑定
	ImsiStatusLocked ImsiStatus = "Locked" // 已锁定
)

// ImsiResource 对应IMSI资源表
type ImsiResource struct {
	ID        int64      `json:"id" gorm:"primaryKey"` // 全局序列分配
	Imsi      string     `json:"imsi" gorm:"column:imsi;unique;not null;size:50"`
	Status    ImsiStatus `json:"status" gorm:"column:status;type:varchar(20);not null;index"`
	CreatedAt time.Time  `json:"createdAt" gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName 指定 ImsiResource 模型对应的数据库表名
func (ImsiResource) TableName() string {
	return "imsi_resources"
}
