package models

import (
	"time"
)

// BindingDetailStatus 定义了任务明细行的处理状态
type BindingDetailStatus string

const (
	DetailStatusPending BindingDetailStatus = "Pending" // 等待处理
	DetailStatusSuccess BindingDetailStatus = "Success" // 处理成功
	DetailStatusFailed  BindingDetailStatus = "Failed"  // 处理失败，原因见 ErrorMsg
)

// 明细行失败原因的固定词汇表，除此之外 ErrorMsg 存放底层错误原文
const (
	ErrMsgNumberAlreadyBound      = "NUMBER_ALREADY_BOUND"
	ErrMsgIccidAlreadyBound       = "ICCID_ALREADY_BOUND"
	ErrMsgBindingNotFound         = "BINDING_NOT_FOUND"
	ErrMsgImsiMismatch            = "IMSI_MISMATCH"
	ErrMsgIccidMismatch           = "ICCID_MISMATCH"
	ErrMsgBatchBindingException   = "BATCH_BINDING_EXCEPTION"
	ErrMsgBatchUnbindingException = "BATCH_UNBINDING_EXCEPTION"
)

// BindingDetail 代表批量任务中的一行明细 (号码, IMSI, ICCID)
// ID 由全局序列分配，明细随任务级联删除
type BindingDetail struct {
	ID          int64               `json:"id" gorm:"primaryKey"`
	TaskID      int64               `json:"taskId" gorm:"column:task_id;not null;index"`
	Number      string              `json:"number" gorm:"column:number;not null;size:50;index"`
	Imsi        string              `json:"imsi" gorm:"column:imsi;not null;size:50"`
	Iccid       string              `json:"iccid" gorm:"column:iccid;size:50"` // 可选
	Status      BindingDetailStatus `json:"status" gorm:"column:status;type:varchar(20);not null;index"`
	ErrorMsg    string              `json:"errorMsg,omitempty" gorm:"column:error_msg;size:512"`
	ProcessTime *time.Time          `json:"processTime,omitempty" gorm:"column:process_time"`
	CreatedAt   time.Time           `json:"createdAt" gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt   time.Time           `json:"updatedAt" gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName 指定 BindingDetail 模型对应的数据库表名
func (BindingDetail) TableName() string {
	return "binding_details"
}
