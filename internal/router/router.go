package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/movienight/internal/handler"
	"github.com/user/movienight/internal/middleware"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.Session())
	{
		// ==================== 会话 ====================
		api.GET("/session", h.GetSession)
		api.POST("/session/switch", h.SwitchUser)
		api.POST("/session/signout", h.SignOut)
		api.POST("/session/leave", h.Leave)
		api.POST("/session/visibility", h.Visibility)
		api.POST("/session/heartbeat", h.Heartbeat)
		api.GET("/users", h.Users)
		api.GET("/presence", h.OnlineUsers)

		// ==================== 共享片单 ====================
		api.GET("/planning", h.GetPlanning)
		api.POST("/planning", h.AddPlanning)
		api.POST("/planning/:id/vote", h.VotePlanning)
		api.DELETE("/planning/:id", h.RemovePlanning)

		// ==================== 目录 ====================
		api.GET("/catalog/:category", h.Category)
		api.GET("/search", h.Search)
		api.GET("/trailer/:type/:id", h.Trailer)
		api.GET("/genres", h.Genres)

		// ==================== 事件流 ====================
		api.GET("/events", h.Events)
	}
}
