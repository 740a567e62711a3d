package models

import (
	"time"
)

// SimCardStatus 定义了SIM卡的状态
type SimCardStatus string

const (
	SimCardStatusPublished   SimCardStatus = "Published"   // 已发布
	SimCardStatusAssigned    SimCardStatus = "Assigned"    // 已分配
	SimCardStatusActivated   SimCardStatus = "Activated"   // 已激活
	SimCardStatusDeactivated SimCardStatus = "Deactivated" // 已停用
	SimCardStatusRecycled    SimCardStatus = "Recycled"    // 已回收
)

// SimCard 对应SIM卡资源表，按 ICCID 分区
type SimCard struct {
	ID        int64         `json:"id" gorm:"primaryKey"` // 全局序列分配
	Iccid     string        `json:"iccid" gorm:"column:iccid;unique;not null;size:50"`
	Imsi      string        `json:"imsi" gorm:"column:imsi;size:50;index"`
	Status    SimCardStatus `json:"status" gorm:"column:status;type:varchar(20);not null;index"`
	CreatedAt time.Time     `json:"createdAt" gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time     `json:"updatedAt" gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName 指定 SimCard 模型对应的数据库表名
func (SimCard) TableName() string {
	return "sim_cards"
}
