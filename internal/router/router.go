package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lingyuqian0301/ev-stage-2/internal/config"
	"github.com/lingyuqian0301/ev-stage-2/internal/handler"
	"github.com/lingyuqian0301/ev-stage-2/internal/ledger"
	"github.com/lingyuqian0301/ev-stage-2/internal/logger"
	"github.com/lingyuqian0301/ev-stage-2/internal/logic"
	"github.com/lingyuqian0301/ev-stage-2/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Setup 注册路由。db 为空（内存模式）时不注册依赖投影表的查询接口
func Setup(l *ledger.Ledger, db *gorm.DB, cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()

	// 中间件
	r.Use(requestLogger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(metricsMiddleware())

	var (
		projectLogic    *logic.ProjectLogic
		contributeLogic *logic.ContributeRecordLogic
		eventLogic      *logic.EventLogic
	)
	if db != nil {
		projectLogic = logic.NewProjectLogic(db)
		contributeLogic = logic.NewContributeRecordLogic(db)
		eventLogic = logic.NewEventLogic(db)
	}

	// 健康检查。持久化模式下对比内存版本与日志中的最新版本
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":         "ok",
			"service":        logger.ServiceName,
			"ledger_version": l.Version(),
		}
		if eventLogic != nil {
			journal, err := eventLogic.GetLatestVersion()
			if err != nil {
				logger.Error("Health check failed to read journal version: %v", err)
				body["status"] = "degraded"
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
			body["journal_version"] = journal
			body["in_sync"] = uint64(journal) == l.Version()
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API版本组
	v1 := r.Group("/api/v1")
	{
		projectHandler := handler.NewProjectHandler(l, projectLogic)
		contributeHandler := handler.NewContributeHandler(l, contributeLogic)
		requestHandler := handler.NewRequestHandler(l, projectLogic)

		projects := v1.Group("/projects")
		{
			projects.POST("", projectHandler.CreateProject)
			projects.GET("", projectHandler.GetProjects)
			projects.GET("/:id", projectHandler.GetProject)
			projects.POST("/:id/fund", contributeHandler.FundProject)
			projects.GET("/:id/contributors", contributeHandler.GetTopContributors)

			projects.POST("/:id/requests", requestHandler.CreateRequest)
			projects.GET("/:id/requests", requestHandler.GetRequests)
			projects.GET("/:id/requests/:rid", requestHandler.GetRequest)
			projects.POST("/:id/requests/:rid/votes", requestHandler.Vote)
			projects.POST("/:id/requests/:rid/finalize", requestHandler.FinalizeRequest)

			if db != nil {
				settlementHandler := handler.NewSettlementHandler(l, logic.NewSettlementLogic(db))
				projects.GET("/:id/contributions", contributeHandler.GetProjectContributeRecords)
				projects.GET("/:id/stats", contributeHandler.GetContributeStats)
				projects.GET("/:id/settlements", settlementHandler.GetProjectSettlements)
				projects.GET("/:id/requests/:rid/votes", requestHandler.GetVotes)
			}
		}

		if db != nil {
			eventHandler := handler.NewEventHandler(eventLogic)
			v1.GET("/events", eventHandler.GetEvents)
			v1.GET("/stats", projectHandler.GetPlatformStats)
		}
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Idempotency-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// metricsMiddleware 按路由模板统计请求数与耗时
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// requestLogger 使用应用日志记录访问日志
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			return
		}
		logger.Info("%s %s %d %s %s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}
