package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/nsrs_binding/internal/auth" // 导入JWT中间件包
	"github.com/nsrs_binding/internal/handlers"
)

// SetupAuthRoutes 设置认证相关路由
func SetupAuthRoutes(router *gin.RouterGroup) {
	apiV1 := router.Group("/v1") // 创建 /api/v1 路由组
	{
		// 公共认证路由组 (例如登录)
		publicAuthGroup := apiV1.Group("/auth")
		{
			// POST /api/v1/auth/login
			publicAuthGroup.POST("/login", handlers.Login)
		}

		// 受保护的认证路由组 (例如登出)
		protectedAuthGroup := apiV1.Group("/auth")
		protectedAuthGroup.Use(auth.JWTMiddleware()) // 应用JWT中间件到这个组
		{
			// POST /api/v1/auth/logout
			protectedAuthGroup.POST("/logout", handlers.LogoutHandler)
		}
	}
}
