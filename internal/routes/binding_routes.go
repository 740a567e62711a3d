package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/nsrs_binding/internal/auth"
	"github.com/nsrs_binding/internal/handlers"
)

// SetupBindingRoutes 设置绑定关系、批量任务与号段统计相关路由
func SetupBindingRoutes(router *gin.RouterGroup, taskHandler *handlers.BindingTaskHandler, bindingHandler *handlers.BindingHandler, segmentHandler *handlers.SegmentHandler) {
	apiV1 := router.Group("/v1")
	apiV1.Use(auth.JWTMiddleware()) // 全部接口需要JWT认证
	{
		// 批量绑定/解绑任务
		taskGroup := apiV1.Group("/binding-tasks")
		{
			taskGroup.POST("", taskHandler.SubmitTask)
			taskGroup.GET("", taskHandler.ListTasks)
			taskGroup.DELETE("", taskHandler.DeleteTasks)
			taskGroup.GET("/:id", taskHandler.GetTask)
			taskGroup.GET("/:id/details", taskHandler.ListTaskDetails)
			taskGroup.POST("/:id/start", taskHandler.StartTask)
			taskGroup.POST("/:id/stop", taskHandler.StopTask)
			taskGroup.POST("/:id/cancel", taskHandler.CancelTask)
			taskGroup.POST("/:id/retry", taskHandler.RetryTask)
		}

		// 绑定关系
		bindingGroup := apiV1.Group("/bindings")
		{
			bindingGroup.POST("", bindingHandler.Bind)
			bindingGroup.GET("", bindingHandler.ListBindings)
			bindingGroup.GET("/count", bindingHandler.CountBindings)
			bindingGroup.POST("/unbind-by-number", bindingHandler.UnbindByNumber)
		}

		// 号段统计
		segmentGroup := apiV1.Group("/segments")
		{
			segmentGroup.GET("", segmentHandler.ListSegments)
			segmentGroup.POST("/:id/reset-statistics", segmentHandler.ResetStatistics)
		}
	}
}
