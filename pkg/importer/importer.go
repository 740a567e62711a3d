package importer

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"
)

// 导入文件为 CSV 格式: 第一行为表头，其后每行依次为 号码, IMSI, ICCID
// 号码与 IMSI 必填，ICCID 可选；缺少必填字段的行在进入任务引擎前被静默丢弃

// Row 是导入文件中的一行有效数据
type Row struct {
	Number string
	Imsi   string
	Iccid  string
}

// ErrClosed 表示迭代器已关闭
var ErrClosed = errors.New("导入迭代器已关闭")

// RowIterator 按需读取导入文件，惰性、有限、不可重放
type RowIterator struct {
	reader  *csv.Reader
	closer  io.Closer
	started bool // 表头是否已跳过
	closed  bool
}

// Open 打开导入文件并返回行迭代器，调用方负责 Close
func Open(filePath string) (*RowIterator, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // 行内列数允许不一致，缺失列按空值处理
	r.TrimLeadingSpace = true
	return &RowIterator{reader: r, closer: f}, nil
}

// NewFromReader 从任意 reader 构造迭代器，主要用于测试
func NewFromReader(r io.Reader) *RowIterator {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &RowIterator{reader: cr}
}

// Next 返回下一行有效数据；文件读完时返回 (Row{}, false, nil)
// 表头行与缺少号码或 IMSI 的行被跳过，不会返回给调用方
func (it *RowIterator) Next() (Row, bool, error) {
	if it.closed {
		return Row{}, false, ErrClosed
	}

	for {
		record, err := it.reader.Read()
		if err == io.EOF {
			return Row{}, false, nil
		}
		if err != nil {
			return Row{}, false, err
		}

		// 跳过表头行
		if !it.started {
			it.started = true
			continue
		}

		row := Row{
			Number: cell(record, 0),
			Imsi:   cell(record, 1),
			Iccid:  cell(record, 2),
		}
		if row.Number == "" || row.Imsi == "" {
			continue
		}
		return row, true, nil
	}
}

// Close 释放底层文件句柄
func (it *RowIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.closer != nil {
		return it.closer.Close()
	}
	return nil
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
