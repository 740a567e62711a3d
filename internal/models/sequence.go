package models

// 分区表插入使用全局序列分配ID，自增主键在分片之间不安全
const (
	SeqNumberImsiBindingID = "number_imsi_binding_id_seq"
	SeqBindingDetailID     = "binding_detail_id_seq"
	SeqNumberResourceID    = "number_resource_id_seq"
	SeqSimCardID           = "sim_card_id_seq"
	SeqImsiResourceID      = "imsi_resource_id_seq"
)

// SequenceValue 对应序列表中的一行，Value 为该序列已分配到的最大值
type SequenceValue struct {
	Name  string `json:"name" gorm:"primaryKey;size:100"`
	Value int64  `json:"value" gorm:"column:value;not null;default:0"`
}

// TableName 指定 SequenceValue 模型对应的数据库表名
func (SequenceValue) TableName() string {
	return "sequences"
}
