package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/internal/exchange"
	"github.com/yuechangmingzou/hybrid-go/internal/metrics"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
	"go.uber.org/zap"
)

// Server Web服务器
type Server struct {
	engine   *gin.Engine
	config   *config.Config
	logger   *zap.SugaredLogger
	exchange types.Exchange
	redis    utils.RedisClient
}

var globalServer *Server

// GetServer 获取Web服务器实例（单例）
func GetServer() *Server {
	if globalServer == nil {
		gin.SetMode(gin.ReleaseMode)
		cfg := config.Get()

		globalServer = &Server{
			engine:   gin.New(),
			config:   cfg,
			logger:   utils.GetLogger("web"),
			exchange: exchange.GetExchange(),
			redis:    utils.GetRedisClient(),
		}

		ttl := time.Duration(cfg.WebStatusCacheTTLSec * float64(time.Second))
		if ttl > 0 {
			globalStatusCache.ttl = ttl
		}

		globalServer.setupRoutes()
	}
	return globalServer
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	s.engine.Use(s.recoveryMiddleware())
	s.engine.Use(s.loggerMiddleware())
	s.engine.Use(s.metricsMiddleware())

	// 健康检查（无需认证）
	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/readyz", s.handleReadyz)

	// API路由组（需要认证）
	api := s.engine.Group("/api")
	if s.config.WebBasicAuthUser != "" && s.config.WebBasicAuthPass != "" {
		api.Use(gin.BasicAuth(gin.Accounts{
			s.config.WebBasicAuthUser: s.config.WebBasicAuthPass,
		}))
	}
	{
		// 状态
		api.GET("/status", s.handleStatus)
		api.GET("/portfolio", s.handlePortfolio)

		// 风险概览
		api.GET("/risk", s.handleRisk)

		// 持仓和成交
		api.GET("/positions", s.handlePositions)
		api.GET("/trades", s.handleTrades)
		api.GET("/audit", s.handleAudit)

		// 周期汇总
		api.GET("/cycles", s.handleCycles)

		// 运行指标
		api.GET("/metrics", s.handleMetrics)

		// WebSocket token
		api.GET("/ws-token", s.handleWSToken)
	}

	// WebSocket
	s.engine.GET("/ws", s.handleWebSocket)

	// 首页
	s.engine.GET("/", s.handleIndex)
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context) error {
	port := s.config.WebPort
	if port <= 0 {
		port = 8000
	}

	addr := fmt.Sprintf(":%d", port)
	s.logger.Infow("Web服务器启动", "addr", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		<-ctx.Done()
		s.logger.Info("Web服务器正在关闭...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// recoveryMiddleware 恢复中间件
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Errorw("请求处理panic",
					"error", err,
					"path", c.Request.URL.Path,
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "internal_server_error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggerMiddleware 日志中间件
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if status >= 500 {
			s.logger.Warnw("HTTP请求",
				"status", status,
				"method", c.Request.Method,
				"path", path,
				"latency", latency,
				"ip", c.ClientIP(),
			)
		}
	}
}

// metricsMiddleware 指标收集中间件
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		metrics.RecordHTTPRequest(c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// handleHealthz 健康检查
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReadyz 就绪检查
func (s *Server) handleReadyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": "redis_unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// handleIndex 首页
func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "hybrid-go",
		"mode":    s.modeName(),
	})
}

func (s *Server) modeName() string {
	if s.config.DryRun {
		return "paper"
	}
	return "live"
}
