package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/nsrs_binding/internal/handlers"
)

// SetupRoutes 初始化所有路由
func SetupRoutes(router *gin.Engine, taskHandler *handlers.BindingTaskHandler, bindingHandler *handlers.BindingHandler, segmentHandler *handlers.SegmentHandler) {
	api := router.Group("/api")
	SetupAuthRoutes(api) // 注册认证路由
	SetupBindingRoutes(api, taskHandler, bindingHandler, segmentHandler)
}
