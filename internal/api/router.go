package api

import (
	"github.com/gin-gonic/gin"
	"github.com/pisoprint/kiosk/internal/config"
	"github.com/pisoprint/kiosk/internal/database"
	"github.com/pisoprint/kiosk/internal/hardware"
	"github.com/pisoprint/kiosk/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine          *gin.Engine
	kioskHandler    *KioskHandler
	hardwareHandler *HardwareHandler
	wsHandler       *WebSocketHandler
	hub             *Hub
	wsPath          string
	log             *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(
	cfg *config.Config,
	db *gorm.DB,
	kiosk *service.KioskService,
	comm *hardware.CommService,
	hub *Hub,
	log *zap.Logger,
) *Router {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	router := &Router{
		engine:          engine,
		kioskHandler:    NewKioskHandler(kiosk, log),
		hardwareHandler: NewHardwareHandler(comm, db, log),
		wsHandler:       NewWebSocketHandler(hub, cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, log),
		hub:             hub,
		wsPath:          cfg.WebSocket.Path,
		log:             log,
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// 终端界面事件推送
	r.engine.GET(r.wsPath, r.wsHandler.Serve)

	v1 := r.engine.Group("/api/v1")
	{
		// 会话与余额
		session := v1.Group("/session")
		{
			session.POST("", r.kioskHandler.StartSession)
			session.DELETE("", r.kioskHandler.EndSession)
			session.GET("/balance", r.kioskHandler.GetBalance)
		}

		// 打印任务
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", r.kioskHandler.SubmitJob)
			jobs.GET("/:id", r.kioskHandler.GetJob)
			jobs.POST("/:id/cancel", r.kioskHandler.CancelJob)
			jobs.POST("/:id/retry", r.kioskHandler.RetryJob)
		}

		// 询价与统计
		v1.GET("/quote", r.kioskHandler.Quote)
		v1.GET("/stats/daily", r.kioskHandler.GetDailyStats)

		// 硬件状态
		hw := v1.Group("/hardware")
		{
			hw.GET("/status", r.hardwareHandler.GetStatus)
			hw.GET("/devices", r.hardwareHandler.ListDevices)
			hw.GET("/serial-logs", r.hardwareHandler.ListSerialLogs)
		}
	}
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	respondOK(c, gin.H{
		"status":    "ok",
		"database":  database.IsConnected(),
		"ws_online": r.hub.OnlineCount(),
	})
}

// Engine 返回底层Gin引擎
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
