package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nsrs_binding/internal/models"
	"github.com/nsrs_binding/internal/repositories"
	"gorm.io/gorm"
)

// 冲突与前置检查错误，错误文本即任务明细 ErrorMsg 使用的固定词汇
var (
	ErrNumberAlreadyBound = errors.New(models.ErrMsgNumberAlreadyBound)
	ErrIccidAlreadyBound  = errors.New(models.ErrMsgIccidAlreadyBound)
	ErrBindingNotFound    = errors.New(models.ErrMsgBindingNotFound)
	ErrImsiMismatch       = errors.New(models.ErrMsgImsiMismatch)
	ErrIccidMismatch      = errors.New(models.ErrMsgIccidMismatch)

	ErrNumberResourceNotFound = errors.New("号码资源不存在")
	ErrImsiResourceNotFound   = errors.New("IMSI资源不存在")
)

// BindRequest 是单笔绑定操作的入参
type BindRequest struct {
	Number         string
	Imsi           string
	Iccid          string
	OrderID        *int64
	BindingType    models.BindingType
	OperatorUserID int64
	Remark         string
}

// BindingService 定义了号码-IMSI 绑定协议的接口
// 绑定表是权威数据，资源状态的联动更新是尽力而为的：
// 任何一步失败只记日志，不回滚已落库的绑定关系
type BindingService interface {
	// Bind 建立一条绑定关系，冲突时返回 ErrNumberAlreadyBound / ErrIccidAlreadyBound
	Bind(ctx context.Context, req BindRequest) (*models.NumberImsiBinding, error)
	// UnbindByNumber 按号码解除当前绑定，无 Bound 记录时返回 ErrBindingNotFound
	UnbindByNumber(ctx context.Context, number string, operatorUserID int64, remark string) error
	// CheckBindable 执行绑定前置检查，失败返回词汇表错误
	CheckBindable(ctx context.Context, number, imsi, iccid string) error
	// CheckUnbindable 执行解绑前置检查，按 (号码, IMSI) 定位，ICCID 双方都有值时才比较
	CheckUnbindable(ctx context.Context, number, imsi, iccid string) error
	// BatchBind 批量建立绑定关系，前置检查失败的项被跳过，返回实际落库条数
	// 批量落库本身失败时返回错误，此时没有任何项成功
	BatchBind(ctx context.Context, items []models.BatchBindItem, operatorUserID int64) (int, error)
	// BatchUnbind 批量解除绑定关系，语义与 BatchBind 对称
	BatchUnbind(ctx context.Context, items []models.BatchUnbindItem, operatorUserID int64) (int, error)
	IsNumberBound(ctx context.Context, number string) (bool, error)
	IsIccidBound(ctx context.Context, iccid string) (bool, error)
	GetActiveByNumber(ctx context.Context, number string) (*models.NumberImsiBinding, error)
	ListBindings(ctx context.Context, query repositories.BindingQuery, page, pageSize int) ([]models.NumberImsiBinding, int64, error)
	CountBindings(ctx context.Context) (map[models.BindingStatus]int64, error)
}

type bindingService struct {
	bindingRepo  repositories.BindingRepository
	numberRepo   repositories.NumberResourceRepository
	simCardRepo  repositories.SimCardRepository
	imsiRepo     repositories.ImsiResourceRepository
	sequenceRepo repositories.SequenceRepository
	segmentSvc   SegmentService
}

// NewBindingService 创建一个新的绑定服务实例
func NewBindingService(
	bindingRepo repositories.BindingRepository,
	numberRepo repositories.NumberResourceRepository,
	simCardRepo repositories.SimCardRepository,
	imsiRepo repositories.ImsiResourceRepository,
	sequenceRepo repositories.SequenceRepository,
	segmentSvc SegmentService,
) BindingService {
	return &bindingService{
		bindingRepo:  bindingRepo,
		numberRepo:   numberRepo,
		simCardRepo:  simCardRepo,
		imsiRepo:     imsiRepo,
		sequenceRepo: sequenceRepo,
		segmentSvc:   segmentSvc,
	}
}

// CheckBindable 执行绑定前置检查
func (s *bindingService) CheckBindable(ctx context.Context, number, imsi, iccid string) error {
	if _, err := s.numberRepo.GetByNumber(ctx, number); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNumberResourceNotFound
		}
		return fmt.Errorf("查询号码资源失败: %w", err)
	}
	if _, err := s.imsiRepo.GetByImsi(ctx, imsi); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrImsiResourceNotFound
		}
		return fmt.Errorf("查询IMSI资源失败: %w", err)
	}

	bound, err := s.bindingRepo.ExistsActiveByNumber(ctx, number)
	if err != nil {
		return fmt.Errorf("检查号码绑定状态失败: %w", err)
	}
	if bound {
		return ErrNumberAlreadyBound
	}

	if iccid != "" {
		bound, err = s.bindingRepo.ExistsActiveByIccid(ctx, iccid)
		if err != nil {
			return fmt.Errorf("检查ICCID绑定状态失败: %w", err)
		}
		if bound {
			return ErrIccidAlreadyBound
		}
	}
	return nil
}

// CheckUnbindable 执行解绑前置检查
func (s *bindingService) CheckUnbindable(ctx context.Context, number, imsi, iccid string) error {
	binding, err := s.bindingRepo.GetActiveByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBindingNotFound
		}
		return fmt.Errorf("查询绑定关系失败: %w", err)
	}
	if binding.Imsi != imsi {
		return ErrImsiMismatch
	}
	if iccid != "" && binding.Iccid != "" && binding.Iccid != iccid {
		return ErrIccidMismatch
	}
	return nil
}

// Bind 建立一条绑定关系并联动更新资源状态
func (s *bindingService) Bind(ctx context.Context, req BindRequest) (*models.NumberImsiBinding, error) {
	resource, err := s.numberRepo.GetByNumber(ctx, req.Number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNumberResourceNotFound
		}
		return nil, fmt.Errorf("查询号码资源失败: %w", err)
	}
	imsiResource, err := s.imsiRepo.GetByImsi(ctx, req.Imsi)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImsiResourceNotFound
		}
		return nil, fmt.Errorf("查询IMSI资源失败: %w", err)
	}

	bound, err := s.bindingRepo.ExistsActiveByNumber(ctx, req.Number)
	if err != nil {
		return nil, fmt.Errorf("检查号码绑定状态失败: %w", err)
	}
	if bound {
		return nil, ErrNumberAlreadyBound
	}
	if req.Iccid != "" {
		bound, err = s.bindingRepo.ExistsActiveByIccid(ctx, req.Iccid)
		if err != nil {
			return nil, fmt.Errorf("检查ICCID绑定状态失败: %w", err)
		}
		if bound {
			return nil, ErrIccidAlreadyBound
		}
	}

	id, err := s.sequenceRepo.Next(ctx, models.SeqNumberImsiBindingID)
	if err != nil {
		return nil, fmt.Errorf("分配绑定ID失败: %w", err)
	}

	bindingType := req.BindingType
	if bindingType == "" {
		bindingType = models.BindingTypeNormal
	}
	binding := &models.NumberImsiBinding{
		ID:             id,
		Number:         req.Number,
		NumberID:       resource.ID,
		Imsi:           req.Imsi,
		ImsiID:         imsiResource.ID,
		Iccid:          req.Iccid,
		OrderID:        req.OrderID,
		BindingType:    bindingType,
		BindingStatus:  models.BindingStatusBound,
		OperatorUserID: req.OperatorUserID,
		Remark:         req.Remark,
		BindTime:       time.Now(),
	}
	if err := s.bindingRepo.Create(ctx, binding); err != nil {
		// 部分唯一索引兜底：并发绑定竞争在这里落败
		if repositories.IsUniqueViolationOnIccid(err) {
			return nil, ErrIccidAlreadyBound
		}
		if repositories.IsUniqueViolation(err) {
			return nil, ErrNumberAlreadyBound
		}
		return nil, fmt.Errorf("创建绑定关系失败: %w", err)
	}

	s.propagateBind(ctx, binding, resource)
	return binding, nil
}

// propagateBind 绑定落库后联动更新各资源状态，每一步独立尽力而为
func (s *bindingService) propagateBind(ctx context.Context, binding *models.NumberImsiBinding, resource *models.NumberResource) {
	if binding.Iccid != "" {
		iccid := binding.Iccid
		if err := s.numberRepo.UpdateIccidByNumber(ctx, binding.Number, &iccid); err != nil {
			log.Printf("绑定 %d：更新号码资源 %s 的ICCID失败: %v", binding.ID, binding.Number, err)
		}
		if err := s.simCardRepo.UpdateStatusByIccid(ctx, binding.Iccid, models.SimCardStatusActivated); err != nil {
			log.Printf("绑定 %d：更新SIM卡 %s 状态失败: %v", binding.ID, binding.Iccid, err)
		}
	}
	if err := s.numberRepo.UpdateStatusByNumber(ctx, binding.Number, models.NumberStatusActivated); err != nil {
		log.Printf("绑定 %d：更新号码资源 %s 状态失败: %v", binding.ID, binding.Number, err)
	}
	if err := s.imsiRepo.UpdateStatusByImsi(ctx, binding.Imsi, models.ImsiStatusBound); err != nil {
		log.Printf("绑定 %d：更新IMSI资源 %s 状态失败: %v", binding.ID, binding.Imsi, err)
	}
	if err := s.segmentSvc.IncrementalUpdate(ctx, resource.SegmentID, resource.Status, models.NumberStatusActivated); err != nil {
		log.Printf("绑定 %d：更新号段统计失败: %v", binding.ID, err)
	}
}

// UnbindByNumber 按号码解除当前绑定并联动更新资源状态
func (s *bindingService) UnbindByNumber(ctx context.Context, number string, operatorUserID int64, remark string) error {
	binding, err := s.bindingRepo.GetActiveByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBindingNotFound
		}
		return fmt.Errorf("查询绑定关系失败: %w", err)
	}

	if err := s.bindingRepo.MarkUnbound(ctx, binding.Number, binding.Imsi, operatorUserID, remark); err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			return ErrBindingNotFound
		}
		return fmt.Errorf("解除绑定失败: %w", err)
	}

	s.propagateUnbind(ctx, binding)
	return nil
}

// propagateUnbind 解绑落库后联动更新各资源状态，每一步独立尽力而为
func (s *bindingService) propagateUnbind(ctx context.Context, binding *models.NumberImsiBinding) {
	var oldStatus models.NumberStatus
	var segmentID int64
	resource, err := s.numberRepo.GetByNumber(ctx, binding.Number)
	if err != nil {
		log.Printf("解绑 %d：查询号码资源 %s 失败: %v", binding.ID, binding.Number, err)
	} else {
		oldStatus = resource.Status
		segmentID = resource.SegmentID
	}

	if err := s.numberRepo.UpdateIccidByNumber(ctx, binding.Number, nil); err != nil {
		log.Printf("解绑 %d：清除号码资源 %s 的ICCID失败: %v", binding.ID, binding.Number, err)
	}
	if err := s.numberRepo.UpdateStatusByNumber(ctx, binding.Number, models.NumberStatusIdle); err != nil {
		log.Printf("解绑 %d：更新号码资源 %s 状态失败: %v", binding.ID, binding.Number, err)
	}
	if binding.Iccid != "" {
		if err := s.simCardRepo.UpdateStatusByIccid(ctx, binding.Iccid, models.SimCardStatusPublished); err != nil {
			log.Printf("解绑 %d：更新SIM卡 %s 状态失败: %v", binding.ID, binding.Iccid, err)
		}
	}
	if err := s.imsiRepo.UpdateStatusByImsi(ctx, binding.Imsi, models.ImsiStatusIdle); err != nil {
		log.Printf("解绑 %d：更新IMSI资源 %s 状态失败: %v", binding.ID, binding.Imsi, err)
	}
	if segmentID != 0 {
		if err := s.segmentSvc.IncrementalUpdate(ctx, segmentID, oldStatus, models.NumberStatusIdle); err != nil {
			log.Printf("解绑 %d：更新号段统计失败: %v", binding.ID, err)
		}
	}
}

// vettedBindItem 保存通过前置检查的批量绑定项及其已加载的资源
type vettedBindItem struct {
	item     models.BatchBindItem
	resource *models.NumberResource
	imsiID   int64
}

// BatchBind 批量建立绑定关系
// 前置检查逐项执行，失败的项被跳过；通过检查的项统一落库，
// 落库中任一环节失败视为整批失败并返回错误
func (s *bindingService) BatchBind(ctx context.Context, items []models.BatchBindItem, operatorUserID int64) (int, error) {
	vetted := make([]vettedBindItem, 0, len(items))
	for _, item := range items {
		if err := s.CheckBindable(ctx, item.Number, item.Imsi, item.Iccid); err != nil {
			log.Printf("批量绑定：号码 %s 前置检查未通过: %v", item.Number, err)
			continue
		}
		resource, err := s.numberRepo.GetByNumber(ctx, item.Number)
		if err != nil {
			log.Printf("批量绑定：查询号码资源 %s 失败: %v", item.Number, err)
			continue
		}
		imsiResource, err := s.imsiRepo.GetByImsi(ctx, item.Imsi)
		if err != nil {
			log.Printf("批量绑定：查询IMSI资源 %s 失败: %v", item.Imsi, err)
			continue
		}
		vetted = append(vetted, vettedBindItem{item: item, resource: resource, imsiID: imsiResource.ID})
	}
	if len(vetted) == 0 {
		return 0, nil
	}

	ids, err := s.sequenceRepo.NextBatch(ctx, models.SeqNumberImsiBindingID, len(vetted))
	if err != nil {
		return 0, fmt.Errorf("分配绑定ID失败: %w", err)
	}

	now := time.Now()
	bindings := make([]*models.NumberImsiBinding, 0, len(vetted))
	for i, v := range vetted {
		bindings = append(bindings, &models.NumberImsiBinding{
			ID:             ids[i],
			Number:         v.item.Number,
			NumberID:       v.resource.ID,
			Imsi:           v.item.Imsi,
			ImsiID:         v.imsiID,
			Iccid:          v.item.Iccid,
			BindingType:    models.BindingTypeBatch,
			BindingStatus:  models.BindingStatusBound,
			OperatorUserID: operatorUserID,
			BindTime:       now,
		})
	}
	// 整批一个事务：并发竞争触发唯一索引冲突时整批回滚，不留下半批绑定
	if err := s.bindingRepo.BatchCreate(ctx, bindings); err != nil {
		if repositories.IsUniqueViolationOnIccid(err) {
			return 0, fmt.Errorf("%w: %v", ErrIccidAlreadyBound, err)
		}
		if repositories.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", ErrNumberAlreadyBound, err)
		}
		return 0, fmt.Errorf("批量创建绑定关系失败: %w", err)
	}

	s.propagateBatchBind(ctx, vetted)
	return len(vetted), nil
}

// propagateBatchBind 批量绑定落库后联动更新资源状态，每一步独立尽力而为
// 号码与IMSI按组更新，SIM卡与号码ICCID回填逐项更新
func (s *bindingService) propagateBatchBind(ctx context.Context, vetted []vettedBindItem) {
	numbers := make([]string, 0, len(vetted))
	imsis := make([]string, 0, len(vetted))
	transitions := make([]SegmentTransition, 0, len(vetted))
	for _, v := range vetted {
		numbers = append(numbers, v.item.Number)
		imsis = append(imsis, v.item.Imsi)
		if v.item.Iccid != "" {
			iccid := v.item.Iccid
			if err := s.numberRepo.UpdateIccidByNumber(ctx, v.item.Number, &iccid); err != nil {
				log.Printf("批量绑定：更新号码资源 %s 的ICCID失败: %v", v.item.Number, err)
			}
			// SIM卡状态逐项更新，单项失败不影响其余项
			if err := s.simCardRepo.UpdateStatusByIccid(ctx, v.item.Iccid, models.SimCardStatusActivated); err != nil {
				log.Printf("批量绑定：更新SIM卡 %s 状态失败: %v", v.item.Iccid, err)
			}
		}
		transitions = append(transitions, SegmentTransition{
			SegmentID: v.resource.SegmentID,
			OldStatus: v.resource.Status,
			NewStatus: models.NumberStatusActivated,
		})
	}

	if err := s.numberRepo.BatchUpdateStatusByNumbers(ctx, numbers, models.NumberStatusActivated); err != nil {
		log.Printf("批量绑定：批量更新号码资源状态失败: %v", err)
	}
	if err := s.imsiRepo.BatchUpdateStatusByImsis(ctx, imsis, models.ImsiStatusBound); err != nil {
		log.Printf("批量绑定：批量更新IMSI资源状态失败: %v", err)
	}
	if err := s.segmentSvc.BatchIncrementalUpdate(ctx, transitions); err != nil {
		log.Printf("批量绑定：更新号段统计失败: %v", err)
	}
}

// BatchUnbind 批量解除绑定关系，语义与 BatchBind 对称
func (s *bindingService) BatchUnbind(ctx context.Context, items []models.BatchUnbindItem, operatorUserID int64) (int, error) {
	type vettedUnbind struct {
		binding *models.NumberImsiBinding
	}
	vetted := make([]vettedUnbind, 0, len(items))
	for _, item := range items {
		if err := s.CheckUnbindable(ctx, item.Number, item.Imsi, item.Iccid); err != nil {
			log.Printf("批量解绑：号码 %s 前置检查未通过: %v", item.Number, err)
			continue
		}
		binding, err := s.bindingRepo.GetActiveByNumberAndImsi(ctx, item.Number, item.Imsi)
		if err != nil {
			log.Printf("批量解绑：查询绑定关系 (%s, %s) 失败: %v", item.Number, item.Imsi, err)
			continue
		}
		vetted = append(vetted, vettedUnbind{binding: binding})
	}
	if len(vetted) == 0 {
		return 0, nil
	}

	keys := make([]models.BatchUnbindItem, 0, len(vetted))
	for _, v := range vetted {
		keys = append(keys, models.BatchUnbindItem{Number: v.binding.Number, Imsi: v.binding.Imsi})
	}
	if err := s.bindingRepo.BatchMarkUnbound(ctx, keys, operatorUserID); err != nil {
		return 0, fmt.Errorf("批量解除绑定失败: %w", err)
	}

	for _, v := range vetted {
		s.propagateUnbind(ctx, v.binding)
	}
	return len(vetted), nil
}

// IsNumberBound 查询号码是否存在 Bound 绑定
func (s *bindingService) IsNumberBound(ctx context.Context, number string) (bool, error) {
	return s.bindingRepo.ExistsActiveByNumber(ctx, number)
}

// IsIccidBound 查询 ICCID 是否存在 Bound 绑定
func (s *bindingService) IsIccidBound(ctx context.Context, iccid string) (bool, error) {
	return s.bindingRepo.ExistsActiveByIccid(ctx, iccid)
}

// GetActiveByNumber 查询号码当前的 Bound 绑定，没有时返回 ErrBindingNotFound
func (s *bindingService) GetActiveByNumber(ctx context.Context, number string) (*models.NumberImsiBinding, error) {
	binding, err := s.bindingRepo.GetActiveByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBindingNotFound
		}
		return nil, fmt.Errorf("查询绑定关系失败: %w", err)
	}
	return binding, nil
}

// ListBindings 分页查询绑定关系，号码条件支持前缀查询
func (s *bindingService) ListBindings(ctx context.Context, query repositories.BindingQuery, page, pageSize int) ([]models.NumberImsiBinding, int64, error) {
	return s.bindingRepo.List(ctx, query, page, pageSize)
}

// CountBindings 按状态统计绑定关系数量
func (s *bindingService) CountBindings(ctx context.Context) (map[models.BindingStatus]int64, error) {
	return s.bindingRepo.CountByStatus(ctx)
}
