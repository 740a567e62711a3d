package models

import (
	"time"
)

// BindingTaskStatus 定义了批量绑定任务的状态类型
type BindingTaskStatus string

const (
	TaskStatusPending    BindingTaskStatus = "Pending"    // 任务已创建，等待启动
	TaskStatusProcessing BindingTaskStatus = "Processing" // 任务正在处理中
	TaskStatusCompleted  BindingTaskStatus = "Completed"  // 任务全部明细处理完毕
	TaskStatusFailed     BindingTaskStatus = "Failed"     // 任务失败（异常、被停止或被取消）
)

// BindingTaskType 定义了批量任务的类型
type BindingTaskType string

const (
	TaskTypeBind   BindingTaskType = "Bind"   // 批量绑定任务
	TaskTypeUnbind BindingTaskType = "Unbind" // 批量解绑任务
)

// BindingTask 代表一个批量绑定/解绑任务
// 状态机: Pending -> Processing -> {Completed, Failed}，Failed 可通过重试回到 Pending
type BindingTask struct {
	ID             int64             `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskName       string            `json:"taskName" gorm:"column:task_name;not null;size:255"`
	TaskType       BindingTaskType   `json:"taskType" gorm:"column:task_type;type:varchar(20);not null;index"`
	Status         BindingTaskStatus `json:"status" gorm:"column:status;type:varchar(20);not null;index"`
	FilePath       string            `json:"filePath" gorm:"column:file_path;size:512"` // 导入文件的保存路径
	TotalCount     int               `json:"totalCount" gorm:"column:total_count;not null;default:0"`
	SuccessCount   int               `json:"successCount" gorm:"column:success_count;not null;default:0"`
	FailCount      int               `json:"failCount" gorm:"column:fail_count;not null;default:0"`
	StartTime      *time.Time        `json:"startTime,omitempty" gorm:"column:start_time"`
	EndTime        *time.Time        `json:"endTime,omitempty" gorm:"column:end_time"`
	OperatorUserID int64             `json:"operatorUserId" gorm:"column:operator_user_id"`
	CreatedAt      time.Time         `json:"createdAt" gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt      time.Time         `json:"updatedAt" gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName 指定 BindingTask 模型对应的数据库表名
func (BindingTask) TableName() string {
	return "binding_tasks"
}
