package models

import (
	"time"
)

// BindingStatus 定义了号码与IMSI绑定关系的状态
type BindingStatus string

const (
	BindingStatusBound   BindingStatus = "Bound"   // 已绑定
	BindingStatusUnbound BindingStatus = "Unbound" // 已解绑（保留记录，不删除）
)

// BindingType 定义了绑定关系的来源类型
type BindingType string

const (
	BindingTypeNormal BindingType = "Normal" // 普通绑定
	BindingTypeBatch  BindingType = "Batch"  // 批量任务绑定
	BindingTypeTest   BindingType = "Test"   // 测试绑定
)

// NumberImsiBinding 代表号码与 IMSI/ICCID 的权威绑定关系
// 不变式: 同一号码至多一条 Bound 记录；同一 ICCID 至多一条 Bound 记录
// （由数据库部分唯一索引保证，见 pkg/db 的索引创建）
type NumberImsiBinding struct {
	ID             int64         `json:"id" gorm:"primaryKey"` // 全局序列分配，跨分表唯一
	Number         string        `json:"number" gorm:"column:number;not null;size:50;index"`
	NumberID       int64         `json:"numberId" gorm:"column:number_id"`
	Imsi           string        `json:"imsi" gorm:"column:imsi;not null;size:50;index"`
	ImsiID         int64         `json:"imsiId" gorm:"column:imsi_id"`
	Iccid          string        `json:"iccid" gorm:"column:iccid;not null;size:50;index"`
	OrderID        *int64        `json:"orderId,omitempty" gorm:"column:order_id"`
	BindingType    BindingType   `json:"bindingType" gorm:"column:binding_type;type:varchar(20);not null"`
	BindingStatus  BindingStatus `json:"bindingStatus" gorm:"column:binding_status;type:varchar(20);not null;index"`
	OperatorUserID int64         `json:"operatorUserId" gorm:"column:operator_user_id"`
	Remark         string        `json:"remark,omitempty" gorm:"column:remark;size:255"`
	BindTime       time.Time     `json:"bindTime" gorm:"column:bind_time"`
	UnbindTime     *time.Time    `json:"unbindTime,omitempty" gorm:"column:unbind_time"`
	CreatedAt      time.Time     `json:"createdAt" gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt      time.Time     `json:"updatedAt" gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName 指定 NumberImsiBinding 模型对应的数据库表名
func (NumberImsiBinding) TableName() string {
	return "number_imsi_bindings"
}

// BatchBindItem 是批量绑定调用的单项入参
type BatchBindItem struct {
	Number string `json:"number"`
	Imsi   string `json:"imsi"`
	Iccid  string `json:"iccid"`
}

// BatchUnbindItem 是批量解绑调用的单项入参，以 (号码, IMSI) 定位绑定关系
type BatchUnbindItem struct {
	Number string `json:"number"`
	Imsi   string `json:"imsi"`
	Iccid  string `json:"iccid,omitempty"` // 可选，提供时须与绑定记录一致
}
