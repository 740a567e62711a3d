package repositories

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nsrs_binding/internal/models"
	"github.com/nsrs_binding/pkg/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func TestSequenceNextIsStrictlyIncreasing(t *testing.T) {
	repo := NewGormSequenceRepository(newTestDB(t))
	ctx := context.Background()

	var prev int64
	for i := 0; i < 10; i++ {
		v, err := repo.Next(ctx, models.SeqNumberImsiBindingID)
		if err != nil {
			t.Fatalf("Next 失败: %v", err)
		}
		if v <= prev {
			t.Fatalf("序列值 %d 未严格递增（前值 %d）", v, prev)
		}
		prev = v
	}
}

func TestSequenceNextBatchAllocatesContiguousRange(t *testing.T) {
	repo := NewGormSequenceRepository(newTestDB(t))
	ctx := context.Background()

	first, err := repo.Next(ctx, models.SeqBindingDetailID)
	if err != nil {
		t.Fatalf("Next 失败: %v", err)
	}
	ids, err := repo.NextBatch(ctx, models.SeqBindingDetailID, 5)
	if err != nil {
		t.Fatalf("NextBatch 失败: %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("len(ids) = %d, 期望 5", len(ids))
	}
	for i, id := range ids {
		if id != first+int64(i)+1 {
			t.Errorf("ids[%d] = %d, 期望连续区间从 %d 起", i, id, first+1)
		}
	}
}

func TestSequenceNamesAreIsolated(t *testing.T) {
	repo := NewGormSequenceRepository(newTestDB(t))
	ctx := context.Background()

	a, err := repo.Next(ctx, models.SeqNumberImsiBindingID)
	if err != nil {
		t.Fatalf("Next 失败: %v", err)
	}
	b, err := repo.Next(ctx, models.SeqBindingDetailID)
	if err != nil {
		t.Fatalf("Next 失败: %v", err)
	}
	if a != 1 || b != 1 {
		t.Errorf("不同序列应各自从 1 开始: a=%d b=%d", a, b)
	}
}

func TestSequenceConcurrentAllocationUnique(t *testing.T) {
	repo := NewGormSequenceRepository(newTestDB(t))
	ctx := context.Background()

	const workers = 8
	const perWorker = 5
	results := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				v, err := repo.Next(ctx, models.SeqNumberResourceID)
				if err != nil {
					t.Errorf("Next 失败: %v", err)
					return
				}
				results <- v
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for v := range results {
		if seen[v] {
			t.Fatalf("序列值 %d 被重复分配", v)
		}
		seen[v] = true
	}
}
