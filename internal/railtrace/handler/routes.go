package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bitfantasy/railtrace/internal/middleware"
	"github.com/bitfantasy/railtrace/internal/railtrace/authz"
	"github.com/gin-gonic/gin"
)

// RouteOptions 路由配置
type RouteOptions struct {
	JWTSecret string
	// JWTIssuer is checked against the iss claim when set.
	JWTIssuer string
	Version   string
	BuildTime string
	// Ready reports backend health for /health/ready. Nil means always ready.
	Ready func(ctx context.Context) error
}

// RegisterRoutes 注册路由
func RegisterRoutes(r *gin.Engine, h *Handlers, opts RouteOptions) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		if opts.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    opts.Version,
			"build_time": opts.BuildTime,
		})
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "Not found"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(opts.JWTSecret, opts.JWTIssuer))
	{
		v1.GET("/events", h.SSE.Stream)

		// 制造商
		mfr := v1.Group("/manufacturer")
		mfr.Use(middleware.RequireRole(authz.RoleManufacturer))
		{
			mfr.GET("/me", h.Manufacturer.Me)
			mfr.POST("/components", h.Manufacturer.CreateComponent)
			mfr.GET("/components", h.Manufacturer.ListComponents)
			mfr.GET("/components/daily-counts", h.Manufacturer.DailyCounts)
			mfr.GET("/components/export", h.Manufacturer.Export)
			mfr.GET("/components/:id", h.Manufacturer.GetComponent)
			mfr.POST("/components/:id/qr", h.Manufacturer.RegenerateQR)
		}

		// 部件
		components := v1.Group("/components")
		{
			components.GET("", h.Component.List)
			components.POST("/scan", h.Component.Scan)
			components.GET("/:id", h.Component.Get)
			components.GET("/:id/qr", h.Component.QRImage)
			components.GET("/:id/activity", h.Component.Activity)
			components.POST("/:id/install", h.Component.Install)
			components.POST("/:id/maintenance", h.Component.Maintenance)
		}

		// 检验
		inspection := v1.Group("/inspection")
		{
			inspection.GET("/component/:id", h.Inspection.Component)
			inspection.POST("/report", h.Inspection.Report)
			inspection.GET("/history/:id", h.Inspection.History)
		}
	}
}
