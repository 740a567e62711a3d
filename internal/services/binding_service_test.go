package services

import (
	"context"
	"errors"
	"testing"

	"github.com/nsrs_binding/internal/models"
	"github.com/nsrs_binding/internal/repositories"
)

func TestBindAndDoubleBindConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	segID := env.seedSegment(t, "138000", "13800000000", "13800009999", 10)
	env.seedBindableTriple(t, "13800000001", "460001234567890", "89860001234567890001", segID)

	binding, err := env.bindingSvc.Bind(ctx, BindRequest{
		Number:         "13800000001",
		Imsi:           "460001234567890",
		Iccid:          "89860001234567890001",
		OperatorUserID: 1,
	})
	if err != nil {
		t.Fatalf("Bind 失败: %v", err)
	}
	if binding.BindingStatus != models.BindingStatusBound {
		t.Errorf("绑定状态 = %s, 期望 Bound", binding.BindingStatus)
	}
	if binding.ID == 0 {
		t.Error("绑定ID应由序列分配，不应为 0")
	}

	// 同一号码重复绑定
	env.seedImsi(t, "460009999999999")
	_, err = env.bindingSvc.Bind(ctx, BindRequest{
		Number: "13800000001",
		Imsi:   "460009999999999",
	})
	if !errors.Is(err, ErrNumberAlreadyBound) {
		t.Errorf("重复绑定同一号码: err = %v, 期望 ErrNumberAlreadyBound", err)
	}

	// 同一 ICCID 绑定到另一个号码
	env.seedNumber(t, "13800000002", segID, models.NumberStatusIdle)
	_, err = env.bindingSvc.Bind(ctx, BindRequest{
		Number: "13800000002",
		Imsi:   "460009999999999",
		Iccid:  "89860001234567890001",
	})
	if !errors.Is(err, ErrIccidAlreadyBound) {
		t.Errorf("重复绑定同一ICCID: err = %v, 期望 ErrIccidAlreadyBound", err)
	}
}

func TestBindPropagatesResourceStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	segID := env.seedSegment(t, "138001", "13800100000", "13800109999", 1)
	env.seedBindableTriple(t, "13800100001", "460001000000001", "89860001000000000001", segID)

	_, err := env.bindingSvc.Bind(ctx, BindRequest{
		Number: "13800100001",
		Imsi:   "460001000000001",
		Iccid:  "89860001000000000001",
	})
	if err != nil {
		t.Fatalf("Bind 失败: %v", err)
	}

	resource, err := env.numberRepo.GetByNumber(ctx, "13800100001")
	if err != nil {
		t.Fatalf("查询号码资源失败: %v", err)
	}
	if resource.Status != models.NumberStatusActivated {
		t.Errorf("号码资源状态 = %s, 期望 Activated", resource.Status)
	}
	if resource.Iccid == nil || *resource.Iccid != "89860001000000000001" {
		t.Errorf("号码资源 ICCID = %v, 期望已回填", resource.Iccid)
	}

	card, err := env.simRepo.GetByIccid(ctx, "89860001000000000001")
	if err != nil {
		t.Fatalf("查询SIM卡失败: %v", err)
	}
	if card.Status != models.SimCardStatusActivated {
		t.Errorf("SIM卡状态 = %s, 期望 Activated", card.Status)
	}

	imsiRes, err := env.imsiRepo.GetByImsi(ctx, "460001000000001")
	if err != nil {
		t.Fatalf("查询IMSI资源失败: %v", err)
	}
	if imsiRes.Status != models.ImsiStatusBound {
		t.Errorf("IMSI资源状态 = %s, 期望 Bound", imsiRes.Status)
	}

	segment, err := env.segmentRepo.GetByID(ctx, segID)
	if err != nil {
		t.Fatalf("查询号段失败: %v", err)
	}
	if segment.IdleQty != 0 || segment.ActivatedQty != 1 {
		t.Errorf("号段统计 idle=%d activated=%d, 期望 0/1", segment.IdleQty, segment.ActivatedQty)
	}
}

func TestUnbindByNumberRestoresResources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	segID := env.seedSegment(t, "138002", "13800200000", "13800209999", 1)
	env.seedBindableTriple(t, "13800200001", "460002000000001", "89860002000000000001", segID)

	if _, err := env.bindingSvc.Bind(ctx, BindRequest{
		Number: "13800200001",
		Imsi:   "460002000000001",
		Iccid:  "89860002000000000001",
	}); err != nil {
		t.Fatalf("Bind 失败: %v", err)
	}

	if err := env.bindingSvc.UnbindByNumber(ctx, "13800200001", 1, "测试解绑"); err != nil {
		t.Fatalf("UnbindByNumber 失败: %v", err)
	}

	if _, err := env.bindingSvc.GetActiveByNumber(ctx, "13800200001"); !errors.Is(err, ErrBindingNotFound) {
		t.Errorf("解绑后查询有效绑定: err = %v, 期望 ErrBindingNotFound", err)
	}

	resource, err := env.numberRepo.GetByNumber(ctx, "13800200001")
	if err != nil {
		t.Fatalf("查询号码资源失败: %v", err)
	}
	if resource.Status != models.NumberStatusIdle {
		t.Errorf("号码资源状态 = %s, 期望 Idle", resource.Status)
	}
	if resource.Iccid != nil {
		t.Errorf("号码资源 ICCID = %v, 期望已清除", *resource.Iccid)
	}

	card, _ := env.simRepo.GetByIccid(ctx, "89860002000000000001")
	if card.Status != models.SimCardStatusPublished {
		t.Errorf("SIM卡状态 = %s, 期望 Published", card.Status)
	}
	imsiRes, _ := env.imsiRepo.GetByImsi(ctx, "460002000000001")
	if imsiRes.Status != models.ImsiStatusIdle {
		t.Errorf("IMSI资源状态 = %s, 期望 Idle", imsiRes.Status)
	}

	segment, _ := env.segmentRepo.GetByID(ctx, segID)
	if segment.IdleQty != 1 || segment.ActivatedQty != 0 {
		t.Errorf("号段统计 idle=%d activated=%d, 期望 1/0", segment.IdleQty, segment.ActivatedQty)
	}

	// 再次解绑应报绑定不存在
	if err := env.bindingSvc.UnbindByNumber(ctx, "13800200001", 1, ""); !errors.Is(err, ErrBindingNotFound) {
		t.Errorf("重复解绑: err = %v, 期望 ErrBindingNotFound", err)
	}

	// 解绑后号码可重新绑定
	env.seedImsi(t, "460002000000002")
	if _, err := env.bindingSvc.Bind(ctx, BindRequest{
		Number: "13800200001",
		Imsi:   "460002000000002",
	}); err != nil {
		t.Errorf("解绑后重新绑定失败: %v", err)
	}
}

func TestBindMissingResources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.bindingSvc.Bind(ctx, BindRequest{Number: "13800300001", Imsi: "460003000000001"})
	if !errors.Is(err, ErrNumberResourceNotFound) {
		t.Errorf("号码资源缺失: err = %v, 期望 ErrNumberResourceNotFound", err)
	}

	segID := env.seedSegment(t, "138003", "13800300000", "13800309999", 1)
	env.seedNumber(t, "13800300001", segID, models.NumberStatusIdle)
	_, err = env.bindingSvc.Bind(ctx, BindRequest{Number: "13800300001", Imsi: "460003000000001"})
	if !errors.Is(err, ErrImsiResourceNotFound) {
		t.Errorf("IMSI资源缺失: err = %v, 期望 ErrImsiResourceNotFound", err)
	}
}

func TestCheckUnbindableMismatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	segID := env.seedSegment(t, "138004", "13800400000", "13800409999", 2)
	env.seedBindableTriple(t, "13800400001", "460004000000001", "89860004000000000001", segID)

	if _, err := env.bindingSvc.Bind(ctx, BindRequest{
		Number: "13800400001",
		Imsi:   "460004000000001",
		Iccid:  "89860004000000000001",
	}); err != nil {
		t.Fatalf("Bind 失败: %v", err)
	}

	if err := env.bindingSvc.CheckUnbindable(ctx, "13800400001", "460004000000001", "89860004000000000001"); err != nil {
		t.Errorf("匹配的解绑检查不应报错: %v", err)
	}
	if err := env.bindingSvc.CheckUnbindable(ctx, "13800400001", "460004999999999", ""); !errors.Is(err, ErrImsiMismatch) {
		t.Errorf("IMSI不匹配: err = %v, 期望 ErrImsiMismatch", err)
	}
	if err := env.bindingSvc.CheckUnbindable(ctx, "13800400001", "460004000000001", "89860004999999999999"); !errors.Is(err, ErrIccidMismatch) {
		t.Errorf("ICCID不匹配: err = %v, 期望 ErrIccidMismatch", err)
	}
	if err := env.bindingSvc.CheckUnbindable(ctx, "13800400002", "460004000000001", ""); !errors.Is(err, ErrBindingNotFound) {
		t.Errorf("无绑定关系: err = %v, 期望 ErrBindingNotFound", err)
	}

	// 绑定记录没有 ICCID 时不比较 ICCID
	env.seedNumber(t, "13800400002", segID, models.NumberStatusIdle)
	env.seedImsi(t, "460004000000002")
	if _, err := env.bindingSvc.Bind(ctx, BindRequest{Number: "13800400002", Imsi: "460004000000002"}); err != nil {
		t.Fatalf("无ICCID绑定失败: %v", err)
	}
	if err := env.bindingSvc.CheckUnbindable(ctx, "13800400002", "460004000000002", "89860004000000000002"); err != nil {
		t.Errorf("单侧有ICCID时不应比较: err = %v", err)
	}
}

func TestBatchBindSkipsConflictingItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	segID := env.seedSegment(t, "138005", "13800500000", "13800509999", 6)

	// 预先占用一个号码和一个 ICCID
	env.seedBindableTriple(t, "13800500000", "460005000000000", "89860005000000000000", segID)
	if _, err := env.bindingSvc.Bind(ctx, BindRequest{
		Number: "13800500000",
		Imsi:   "460005000000000",
		Iccid:  "89860005000000000000",
	}); err != nil {
		t.Fatalf("预占绑定失败: %v", err)
	}

	items := make([]models.BatchBindItem, 0, 5)
	for i := 1; i <= 3; i++ {
		number := "1380050000" + string(rune('0'+i))
		imsi := "46000500000000" + string(rune('0'+i))
		iccid := "8986000500000000000" + string(rune('0'+i))
		env.seedBindableTriple(t, number, imsi, iccid, segID)
		items = append(items, models.BatchBindItem{Number: number, Imsi: imsi, Iccid: iccid})
	}
	// 冲突项1: 号码已被绑定
	env.seedImsi(t, "460005000000008")
	items = append(items, models.BatchBindItem{Number: "13800500000", Imsi: "460005000000008"})
	// 冲突项2: ICCID 已被绑定
	env.seedNumber(t, "13800500009", segID, models.NumberStatusIdle)
	env.seedImsi(t, "460005000000009")
	items = append(items, models.BatchBindItem{
		Number: "13800500009",
		Imsi:   "460005000000009",
		Iccid:  "89860005000000000000",
	})

	successCount, err := env.bindingSvc.BatchBind(ctx, items, 1)
	if err != nil {
		t.Fatalf("BatchBind 失败: %v", err)
	}
	if successCount != 3 {
		t.Errorf("successCount = %d, 期望 3", successCount)
	}

	// 冲突项不应留下新的绑定记录
	if bound, _ := env.bindingSvc.IsNumberBound(ctx, "13800500009"); bound {
		t.Error("ICCID 冲突的号码不应被绑定")
	}
	binding, err := env.bindingSvc.GetActiveByNumber(ctx, "13800500000")
	if err != nil {
		t.Fatalf("查询预占绑定失败: %v", err)
	}
	if binding.Imsi != "460005000000000" {
		t.Errorf("预占绑定被覆盖: imsi = %s", binding.Imsi)
	}
	for i := 1; i <= 3; i++ {
		number := "1380050000" + string(rune('0'+i))
		if bound, _ := env.bindingSvc.IsNumberBound(ctx, number); !bound {
			t.Errorf("号码 %s 应已绑定", number)
		}
	}
}

func TestBatchUnbindSymmetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	segID := env.seedSegment(t, "138006", "13800600000", "13800609999", 3)

	items := make([]models.BatchBindItem, 0, 2)
	for i := 1; i <= 2; i++ {
		number := "1380060000" + string(rune('0'+i))
		imsi := "46000600000000" + string(rune('0'+i))
		env.seedBindableTriple(t, number, imsi, "", segID)
		items = append(items, models.BatchBindItem{Number: number, Imsi: imsi})
	}
	if _, err := env.bindingSvc.BatchBind(ctx, items, 1); err != nil {
		t.Fatalf("BatchBind 失败: %v", err)
	}

	unbindItems := []models.BatchUnbindItem{
		{Number: "13800600001", Imsi: "460006000000001"},
		{Number: "13800600002", Imsi: "460006999999999"}, // IMSI 不匹配，应被跳过
		{Number: "13800600003", Imsi: "460006000000003"}, // 无绑定，应被跳过
	}
	successCount, err := env.bindingSvc.BatchUnbind(ctx, unbindItems, 1)
	if err != nil {
		t.Fatalf("BatchUnbind 失败: %v", err)
	}
	if successCount != 1 {
		t.Errorf("successCount = %d, 期望 1", successCount)
	}
	if bound, _ := env.bindingSvc.IsNumberBound(ctx, "13800600001"); bound {
		t.Error("13800600001 应已解绑")
	}
	if bound, _ := env.bindingSvc.IsNumberBound(ctx, "13800600002"); !bound {
		t.Error("13800600002 不应被误解绑")
	}
}

func TestListAndCountBindings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	segID := env.seedSegment(t, "138007", "13800700000", "13800709999", 3)

	for i := 1; i <= 3; i++ {
		number := "1380070000" + string(rune('0'+i))
		imsi := "46000700000000" + string(rune('0'+i))
		env.seedBindableTriple(t, number, imsi, "", segID)
		if _, err := env.bindingSvc.Bind(ctx, BindRequest{Number: number, Imsi: imsi}); err != nil {
			t.Fatalf("Bind %s 失败: %v", number, err)
		}
	}
	if err := env.bindingSvc.UnbindByNumber(ctx, "13800700003", 1, ""); err != nil {
		t.Fatalf("解绑失败: %v", err)
	}

	// 前缀查询改写为范围条件
	bindings, total, err := env.bindingSvc.ListBindings(ctx, repositories.BindingQuery{
		Number:        "13800700",
		BindingStatus: models.BindingStatusBound,
	}, 1, 10)
	if err != nil {
		t.Fatalf("ListBindings 失败: %v", err)
	}
	if total != 2 || len(bindings) != 2 {
		t.Errorf("前缀查询 total = %d len = %d, 期望 2/2", total, len(bindings))
	}

	counts, err := env.bindingSvc.CountBindings(ctx)
	if err != nil {
		t.Fatalf("CountBindings 失败: %v", err)
	}
	if counts[models.BindingStatusBound] != 2 || counts[models.BindingStatusUnbound] != 1 {
		t.Errorf("状态统计 = %v, 期望 Bound:2 Unbound:1", counts)
	}
}

// recordingSimCardRepository 记录逐项状态更新，并可对指定 ICCID 注入失败
type recordingSimCardRepository struct {
	repositories.SimCardRepository
	updatedIccids []string
	failIccid     string
}

func (r *recordingSimCardRepository) UpdateStatusByIccid(ctx context.Context, iccid string, status models.SimCardStatus) error {
	r.updatedIccids = append(r.updatedIccids, iccid)
	if iccid == r.failIccid {
		return errors.New("注入的SIM卡更新失败")
	}
	return r.SimCardRepository.UpdateStatusByIccid(ctx, iccid, status)
}

func TestBatchBindUpdatesSimCardsPerItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	segID := env.seedSegment(t, "138008", "13800800000", "13800809999", 3)

	simRepo := &recordingSimCardRepository{
		SimCardRepository: env.simRepo,
		failIccid:         "89860008000000000002",
	}
	bindingSvc := NewBindingService(env.bindingRepo, env.numberRepo, simRepo, env.imsiRepo, env.seqRepo, env.segmentSvc)

	items := make([]models.BatchBindItem, 0, 3)
	for i := 1; i <= 3; i++ {
		number := "1380080000" + string(rune('0'+i))
		imsi := "46000800000000" + string(rune('0'+i))
		iccid := "8986000800000000000" + string(rune('0'+i))
		env.seedBindableTriple(t, number, imsi, iccid, segID)
		items = append(items, models.BatchBindItem{Number: number, Imsi: imsi, Iccid: iccid})
	}

	successCount, err := bindingSvc.BatchBind(ctx, items, 1)
	if err != nil {
		t.Fatalf("BatchBind 失败: %v", err)
	}
	if successCount != 3 {
		t.Errorf("successCount = %d, 期望 3", successCount)
	}

	// SIM卡状态应逐项更新，每张卡各一次
	if len(simRepo.updatedIccids) != 3 {
		t.Fatalf("逐项SIM卡更新 %d 次, 期望 3 次: %v", len(simRepo.updatedIccids), simRepo.updatedIccids)
	}

	// 单张卡更新失败不影响其余卡和绑定结果
	for i := 1; i <= 3; i++ {
		iccid := "8986000800000000000" + string(rune('0'+i))
		card, err := env.simRepo.GetByIccid(ctx, iccid)
		if err != nil {
			t.Fatalf("查询SIM卡 %s 失败: %v", iccid, err)
		}
		if iccid == simRepo.failIccid {
			if card.Status != models.SimCardStatusPublished {
				t.Errorf("更新失败的SIM卡状态 = %s, 应保持 Published", card.Status)
			}
			continue
		}
		if card.Status != models.SimCardStatusActivated {
			t.Errorf("SIM卡 %s 状态 = %s, 期望 Activated", iccid, card.Status)
		}
	}
}

// iccidBlindBindingRepository 让 ICCID 预检查看不到已有绑定，
// 用于验证并发竞争落到部分唯一索引兜底时的错误映射
type iccidBlindBindingRepository struct {
	repositories.BindingRepository
}

func (r *iccidBlindBindingRepository) ExistsActiveByIccid(ctx context.Context, iccid string) (bool, error) {
	return false, nil
}

func TestBindIccidConflictCaughtByUniqueIndex(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	segID := env.seedSegment(t, "138009", "13800900000", "13800909999", 2)

	// 先用另一个号码占用 ICCID
	env.seedBindableTriple(t, "13800900001", "460009000000001", "89860009000000000001", segID)
	if _, err := env.bindingSvc.Bind(ctx, BindRequest{
		Number: "13800900001",
		Imsi:   "460009000000001",
		Iccid:  "89860009000000000001",
	}); err != nil {
		t.Fatalf("预占绑定失败: %v", err)
	}

	env.seedNumber(t, "13800900002", segID, models.NumberStatusIdle)
	env.seedImsi(t, "460009000000002")

	// 预检查被屏蔽后，冲突只能由 uidx_bindings_active_iccid 兜住
	blindRepo := &iccidBlindBindingRepository{BindingRepository: env.bindingRepo}
	bindingSvc := NewBindingService(blindRepo, env.numberRepo, env.simRepo, env.imsiRepo, env.seqRepo, env.segmentSvc)

	_, err := bindingSvc.Bind(ctx, BindRequest{
		Number: "13800900002",
		Imsi:   "460009000000002",
		Iccid:  "89860009000000000001",
	})
	if !errors.Is(err, ErrIccidAlreadyBound) {
		t.Fatalf("err = %v, 期望 ErrIccidAlreadyBound", err)
	}
	if bound, _ := env.bindingSvc.IsNumberBound(ctx, "13800900002"); bound {
		t.Error("冲突失败的号码不应留下绑定")
	}
}
