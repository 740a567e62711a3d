package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nsrs_binding/internal/models"
	"github.com/nsrs_binding/internal/repositories"
	"gorm.io/gorm"
)

var ErrSegmentNotFound = errors.New("号段不存在")

// SegmentTransition 描述一次号码状态转换对号段统计的影响
type SegmentTransition struct {
	SegmentID int64
	OldStatus models.NumberStatus
	NewStatus models.NumberStatus
}

// SegmentService 定义了号段统计服务的接口
// 统计计数器只跟踪有对应列的状态，其余状态的转换会被跳过并记录日志
type SegmentService interface {
	// IncrementalUpdate 根据一次状态转换调整号段计数器
	IncrementalUpdate(ctx context.Context, segmentID int64, oldStatus, newStatus models.NumberStatus) error
	// BatchIncrementalUpdate 聚合一批状态转换，每个号段只发出一条 UPDATE
	BatchIncrementalUpdate(ctx context.Context, transitions []SegmentTransition) error
	// ResetStatistics 按号码资源表全量重算号段计数器
	ResetStatistics(ctx context.Context, segmentID int64) (*models.NumberSegment, error)
	ListSegments(ctx context.Context, page, pageSize int) ([]models.NumberSegment, int64, error)
}

type segmentService struct {
	segmentRepo  repositories.NumberSegmentRepository
	resourceRepo repositories.NumberResourceRepository
}

// NewSegmentService 创建一个新的号段统计服务实例
func NewSegmentService(segmentRepo repositories.NumberSegmentRepository, resourceRepo repositories.NumberResourceRepository) SegmentService {
	return &segmentService{
		segmentRepo:  segmentRepo,
		resourceRepo: resourceRepo,
	}
}

// deltasForTransition 把一次状态转换翻译成计数器增减
// 返回 nil 表示两侧状态都没有对应的计数器列
func deltasForTransition(oldStatus, newStatus models.NumberStatus) map[string]int64 {
	if oldStatus == newStatus {
		return nil
	}
	deltas := make(map[string]int64, 2)
	if column := models.CounterColumn(oldStatus); column != "" {
		deltas[column]--
	} else {
		log.Printf("号段统计：状态 %s 没有对应的计数器列，跳过递减", oldStatus)
	}
	if column := models.CounterColumn(newStatus); column != "" {
		deltas[column]++
	} else {
		log.Printf("号段统计：状态 %s 没有对应的计数器列，跳过递增", newStatus)
	}
	if len(deltas) == 0 {
		return nil
	}
	return deltas
}

// IncrementalUpdate 根据一次状态转换调整号段计数器
func (s *segmentService) IncrementalUpdate(ctx context.Context, segmentID int64, oldStatus, newStatus models.NumberStatus) error {
	if segmentID == 0 {
		// 号码未归属任何号段，无统计可更新
		return nil
	}
	deltas := deltasForTransition(oldStatus, newStatus)
	if deltas == nil {
		return nil
	}
	if err := s.segmentRepo.ApplyCounterDeltas(ctx, segmentID, deltas); err != nil {
		return fmt.Errorf("更新号段 %d 统计失败: %w", segmentID, err)
	}
	return nil
}

// BatchIncrementalUpdate 聚合一批状态转换后按号段应用
func (s *segmentService) BatchIncrementalUpdate(ctx context.Context, transitions []SegmentTransition) error {
	bySegment := make(map[int64]map[string]int64)
	for _, tr := range transitions {
		if tr.SegmentID == 0 {
			continue
		}
		deltas := deltasForTransition(tr.OldStatus, tr.NewStatus)
		if deltas == nil {
			continue
		}
		acc, ok := bySegment[tr.SegmentID]
		if !ok {
			acc = make(map[string]int64, 2)
			bySegment[tr.SegmentID] = acc
		}
		for column, delta := range deltas {
			acc[column] += delta
		}
	}

	for segmentID, deltas := range bySegment {
		if err := s.segmentRepo.ApplyCounterDeltas(ctx, segmentID, deltas); err != nil {
			return fmt.Errorf("更新号段 %d 统计失败: %w", segmentID, err)
		}
	}
	return nil
}

// ResetStatistics 按号码资源表全量重算号段计数器并返回更新后的号段
func (s *segmentService) ResetStatistics(ctx context.Context, segmentID int64) (*models.NumberSegment, error) {
	if _, err := s.segmentRepo.GetByID(ctx, segmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSegmentNotFound
		}
		return nil, fmt.Errorf("查询号段失败: %w", err)
	}

	statusCounts, err := s.resourceRepo.CountBySegmentAndStatus(ctx, segmentID)
	if err != nil {
		return nil, fmt.Errorf("统计号段 %d 资源失败: %w", segmentID, err)
	}

	counters := map[string]int64{
		"idle_qty":      0,
		"reserved_qty":  0,
		"activated_qty": 0,
		"frozen_qty":    0,
		"blocked_qty":   0,
	}
	var total int64
	for status, count := range statusCounts {
		total += count
		if column := models.CounterColumn(status); column != "" {
			counters[column] += count
		}
	}
	counters["total_qty"] = total

	if err := s.segmentRepo.ReplaceCounters(ctx, segmentID, counters); err != nil {
		return nil, fmt.Errorf("写入号段 %d 统计失败: %w", segmentID, err)
	}
	return s.segmentRepo.GetByID(ctx, segmentID)
}

// ListSegments 分页查询号段列表
func (s *segmentService) ListSegments(ctx context.Context, page, pageSize int) ([]models.NumberSegment, int64, error) {
	return s.segmentRepo.List(ctx, page, pageSize)
}
