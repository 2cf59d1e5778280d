package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/walkaround-go/internal/config"
	"github.com/jengzang/walkaround-go/internal/database"
	"github.com/jengzang/walkaround-go/internal/handler"
	"github.com/jengzang/walkaround-go/internal/middleware"
)

// Handlers groups the HTTP handlers served by the router
type Handlers struct {
	Session  *handler.SessionHandler
	Sections *handler.SectionHandler
	Settings *handler.SettingsHandler

	// Ingest limits the push endpoints; nil disables limiting
	Ingest *middleware.RateLimiter
	// DB is reported by the health check when set
	DB *sql.DB
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger("/health", "/api/v1/health"))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	health := func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"message": "Walkaround API is running",
		}
		if h.DB != nil {
			version, dirty, err := database.SchemaVersion(h.DB)
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": err.Error()})
				return
			}
			body["schemaVersion"] = version
			body["schemaDirty"] = dirty
		}
		c.JSON(http.StatusOK, body)
	}
	r.GET("/health", health)

	api := r.Group("/api/v1")
	api.GET("/health", health)

	// 以下接口在配置 JWT_SECRET 时需要鉴权
	secured := api.Group("", middleware.Auth(cfg.JWTSecret))
	{
		// 记录会话
		session := secured.Group("/session")
		{
			session.POST("/start", h.Session.Start)
			session.POST("/stop", h.Session.Stop)
			session.GET("/status", h.Session.Status)

			ingest := session.Group("", middleware.RateLimit(h.Ingest))
			ingest.POST("/locations", h.Session.PushLocations)
			ingest.POST("/steps", h.Session.PushSteps)
		}

		// 分段
		sections := secured.Group("/sections")
		{
			sections.GET("", h.Sections.ListSections)
			sections.GET("/summaries", h.Sections.Summaries)
			sections.GET("/:id/track", h.Sections.GetTrack)
			sections.POST("/:id/rebuild", h.Sections.Rebuild)
			sections.DELETE("/:id", h.Sections.DeleteSection)
		}

		secured.GET("/steps/today", h.Sections.TodaySteps)
		secured.GET("/address/current", h.Session.CurrentAddress)

		// 设置
		secured.GET("/settings", h.Settings.GetSettings)
		secured.PUT("/settings", h.Settings.UpdateSettings)
	}

	return r
}
