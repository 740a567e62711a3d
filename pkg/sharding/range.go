package sharding

import (
	"errors"
	"strings"
	"unicode"
)

// 绑定关系表按号码前3位分表，前缀查询须改写为闭区间范围查询
// 才能让分区感知的存储路由到正确的物理分表

var (
	ErrEmptyPrefix      = errors.New("前缀不能为空")
	ErrPrefixTooLong    = errors.New("前缀长度超过键宽度")
	ErrNonNumericPrefix = errors.New("前缀必须全部为数字")
)

// BaseTableName 是绑定关系分表的基础表名
const BaseTableName = "number_imsi_bindings"

// TablePrefixLen 是分表路由使用的号码前缀长度
const TablePrefixLen = 3

// KeyRange 表示一个闭区间 [Start, End] 的范围查询
// Exact 为 true 时表示前缀已是完整键，应使用精确匹配
type KeyRange struct {
	Start string
	End   string
	Exact bool
}

// Range 将长度为 L 的前缀 P 转换为宽度为 width 的键上的查询区间:
// rangeStart = P + "0"*(width-L), rangeEnd = P + "9"*(width-L)
// 所有以 P 为前缀的定宽数字键都落在 [rangeStart, rangeEnd] 内，且不含其他键
func Range(prefix string, width int) (KeyRange, error) {
	if prefix == "" {
		return KeyRange{}, ErrEmptyPrefix
	}
	if len(prefix) > width {
		return KeyRange{}, ErrPrefixTooLong
	}
	for _, r := range prefix {
		if !unicode.IsDigit(r) {
			return KeyRange{}, ErrNonNumericPrefix
		}
	}

	if len(prefix) == width {
		return KeyRange{Start: prefix, End: prefix, Exact: true}, nil
	}

	pad := width - len(prefix)
	return KeyRange{
		Start: prefix + strings.Repeat("0", pad),
		End:   prefix + strings.Repeat("9", pad),
	}, nil
}

// TableForNumber 根据号码返回其所属分表名
func TableForNumber(number string) (string, error) {
	if len(number) < TablePrefixLen {
		return "", errors.New("号码长度不足以确定分表")
	}
	return TableForPrefix(number[:TablePrefixLen])
}

// TableForPrefix 根据号码前缀返回分表名
func TableForPrefix(prefix string) (string, error) {
	if prefix == "" {
		return "", ErrEmptyPrefix
	}
	return BaseTableName + "_" + prefix, nil
}
