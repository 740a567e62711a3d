package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nsrs_binding/internal/models"
	"github.com/nsrs_binding/internal/repositories"
	"github.com/nsrs_binding/pkg/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv 把一套完整的仓库和服务组装在一个临时 sqlite 库上
type testEnv struct {
	db          *gorm.DB
	taskRepo    repositories.BindingTaskRepository
	detailRepo  repositories.BindingDetailRepository
	bindingRepo repositories.BindingRepository
	numberRepo  repositories.NumberResourceRepository
	simRepo     repositories.SimCardRepository
	imsiRepo    repositories.ImsiResourceRepository
	segmentRepo repositories.NumberSegmentRepository
	seqRepo     repositories.SequenceRepository
	execMgr     TaskExecutionManager
	segmentSvc  SegmentService
	bindingSvc  BindingService
	taskSvc     BindingTaskService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	// sqlite 对并发写事务支持有限，测试固定单连接避免锁冲突
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("获取底层连接失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}
	return gdb
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := newTestDB(t)

	env := &testEnv{
		db:          gdb,
		taskRepo:    repositories.NewGormBindingTaskRepository(gdb),
		detailRepo:  repositories.NewGormBindingDetailRepository(gdb),
		bindingRepo: repositories.NewGormBindingRepository(gdb),
		numberRepo:  repositories.NewGormNumberResourceRepository(gdb),
		simRepo:     repositories.NewGormSimCardRepository(gdb),
		imsiRepo:    repositories.NewGormImsiResourceRepository(gdb),
		segmentRepo: repositories.NewGormNumberSegmentRepository(gdb),
		seqRepo:     repositories.NewGormSequenceRepository(gdb),
		execMgr:     NewTaskExecutionManager(),
	}
	env.segmentSvc = NewSegmentService(env.segmentRepo, env.numberRepo)
	env.bindingSvc = NewBindingService(env.bindingRepo, env.numberRepo, env.simRepo, env.imsiRepo, env.seqRepo, env.segmentSvc)
	env.taskSvc = NewBindingTaskService(env.taskRepo, env.detailRepo, env.seqRepo, env.bindingSvc, env.execMgr)
	return env
}

var testResourceID int64

func nextTestID() int64 {
	testResourceID++
	return testResourceID
}

// seedSegment 创建一个号段并返回其 ID
func (env *testEnv) seedSegment(t *testing.T, code, start, end string, idleQty int64) int64 {
	t.Helper()
	segment := &models.NumberSegment{
		SegmentCode: code,
		StartNumber: start,
		EndNumber:   end,
		TotalQty:    idleQty,
		IdleQty:     idleQty,
	}
	if err := env.segmentRepo.Create(context.Background(), segment); err != nil {
		t.Fatalf("创建测试号段失败: %v", err)
	}
	return segment.ID
}

func (env *testEnv) seedNumber(t *testing.T, number string, segmentID int64, status models.NumberStatus) {
	t.Helper()
	err := env.numberRepo.Create(context.Background(), &models.NumberResource{
		ID:        nextTestID(),
		Number:    number,
		Status:    status,
		SegmentID: segmentID,
	})
	if err != nil {
		t.Fatalf("创建测试号码资源 %s 失败: %v", number, err)
	}
}

func (env *testEnv) seedImsi(t *testing.T, imsi string) {
	t.Helper()
	err := env.imsiRepo.Create(context.Background(), &models.ImsiResource{
		ID:     nextTestID(),
		Imsi:   imsi,
		Status: models.ImsiStatusIdle,
	})
	if err != nil {
		t.Fatalf("创建测试IMSI资源 %s 失败: %v", imsi, err)
	}
}

func (env *testEnv) seedSimCard(t *testing.T, iccid, imsi string) {
	t.Helper()
	err := env.simRepo.Create(context.Background(), &models.SimCard{
		ID:     nextTestID(),
		Iccid:  iccid,
		Imsi:   imsi,
		Status: models.SimCardStatusPublished,
	})
	if err != nil {
		t.Fatalf("创建测试SIM卡 %s 失败: %v", iccid, err)
	}
}

// seedBindableTriple 一次性准备号码、IMSI 和 SIM 卡三种资源
func (env *testEnv) seedBindableTriple(t *testing.T, number, imsi, iccid string, segmentID int64) {
	t.Helper()
	env.seedNumber(t, number, segmentID, models.NumberStatusIdle)
	env.seedImsi(t, imsi)
	if iccid != "" {
		env.seedSimCard(t, iccid, imsi)
	}
}
