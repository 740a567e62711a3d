package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/nsrs_binding/configs"
	"github.com/nsrs_binding/internal/handlers"
	"github.com/nsrs_binding/internal/repositories"
	"github.com/nsrs_binding/internal/routes"
	"github.com/nsrs_binding/internal/services"
	"github.com/nsrs_binding/pkg/db"
)

func main() {
	configs.LoadConfig()

	// 初始化数据库连接
	db.InitDB()        // 从 pkg/db 调用 InitDB
	defer db.CloseDB() // 确保在 main 函数退出时关闭数据库连接
	gdb := db.GetDB()

	// 仓库层
	bindingRepo := repositories.NewGormBindingRepository(gdb)
	numberRepo := repositories.NewGormNumberResourceRepository(gdb)
	simCardRepo := repositories.NewGormSimCardRepository(gdb)
	imsiRepo := repositories.NewGormImsiResourceRepository(gdb)
	segmentRepo := repositories.NewGormNumberSegmentRepository(gdb)
	sequenceRepo := repositories.NewGormSequenceRepository(gdb)
	taskRepo := repositories.NewGormBindingTaskRepository(gdb)
	detailRepo := repositories.NewGormBindingDetailRepository(gdb)

	// 服务层
	execMgr := services.NewTaskExecutionManager()
	segmentSvc := services.NewSegmentService(segmentRepo, numberRepo)
	bindingSvc := services.NewBindingService(bindingRepo, numberRepo, simCardRepo, imsiRepo, sequenceRepo, segmentSvc)
	taskSvc := services.NewBindingTaskService(taskRepo, detailRepo, sequenceRepo, bindingSvc, execMgr)

	// 上次进程退出时卡在 Processing 的任务全部判定为失败
	if recovered, err := taskSvc.RecoverStalled(context.Background()); err != nil {
		log.Printf("Failed to recover stalled tasks: %v", err)
	} else if recovered > 0 {
		log.Printf("Recovered %d stalled task(s) to Failed", recovered)
	}

	router := gin.Default()

	// 设置API路由
	routes.SetupRoutes(router,
		handlers.NewBindingTaskHandler(taskSvc),
		handlers.NewBindingHandler(bindingSvc),
		handlers.NewSegmentHandler(segmentSvc),
	)

	port := configs.AppConfig.ServerPort
	log.Printf("Server starting on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
