package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/yuechangmingzou/hybrid-go/internal/bot"
	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/internal/exchange"
	"github.com/yuechangmingzou/hybrid-go/internal/metrics"
	"github.com/yuechangmingzou/hybrid-go/internal/risk"
	"github.com/yuechangmingzou/hybrid-go/internal/transfer"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/internal/web"
	"go.uber.org/zap"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	// 加载配置
	if err := config.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 验证配置
	config.ValidateAndExit()

	cfg := config.Get()

	// 初始化日志
	if err := utils.InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.SyncLogger()
	logger := utils.GetLogger("main")

	// 初始化Redis
	redisClient := utils.GetRedisClient()
	defer utils.CloseRedisClient()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.Fatalw("Redis连接失败", "error", err,
			"host", cfg.RedisHost, "port", cfg.RedisPort)
	}
	pingCancel()

	// 把Redis客户端注入配置优化器（config包不直接依赖utils）
	if adapter, ok := config.GetOptimizer().GetRedisAdapter(); ok {
		adapter.SetClient(redisClient)
	}

	// 初始化风险监控器
	risk.InitMonitor(risk.MonitorParams{
		MaxDailyLoss:         cfg.MaxDailyLoss,
		MaxDrawdown:          cfg.MaxDrawdown,
		StopLossPct:          cfg.StopLossPct,
		TakeProfitPct:        cfg.TakeProfitPct,
		PositionTimeoutHours: cfg.PositionTimeoutHours,
		MaxLeverage:          cfg.MaxLeverage,
		ShortPositionLimit:   cfg.ShortPositionLimit,
		MaxPositionSize:      cfg.MaxPositionSize,
	})

	logger.Infow("🚀 混合交易系统启动",
		"redis_host", cfg.RedisHost,
		"redis_port", cfg.RedisPort,
		"dry_run", cfg.DryRun,
		"symbols", cfg.TradingSymbols,
		"log_level", cfg.LogLevel,
	)

	// 创建主上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// 启动交易机器人
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("交易机器人panic", "error", r)
			}
		}()
		runBot(ctx, logger)
	}()

	// 启动资金划转监控器
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("资金划转监控器panic", "error", r)
			}
		}()
		transfer.NewMonitor(exchange.GetExchange(), cfg).Run(ctx)
	}()

	// 启动Web服务
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("Web服务panic", "error", r)
			}
		}()
		runWebServer(ctx, logger)
	}()

	// 启动性能指标收集器
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("指标收集器panic", "error", r)
			}
		}()
		metrics.StartCollector(ctx)
	}()

	// 启动配置优化器
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("配置优化器panic", "error", r)
			}
		}()
		config.StartOptimizer(ctx)
	}()

	logger.Info("✅ 所有服务已启动")

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("收到停止信号，正在关闭...")

	cancel()

	// 给服务一些时间优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("✅ 所有服务已停止")
	case <-shutdownCtx.Done():
		logger.Warn("⚠️  关闭超时，强制退出")
	}
}

// runBot 运行交易机器人
func runBot(ctx context.Context, logger *zap.SugaredLogger) {
	b := bot.GetBot()
	if err := b.Run(ctx); err != nil && err != context.Canceled {
		logger.Errorw("交易机器人错误", "error", err)
	}
}

// runWebServer 运行Web服务器
func runWebServer(ctx context.Context, logger *zap.SugaredLogger) {
	server := web.GetServer()
	if err := server.Run(ctx); err != nil && err != context.Canceled {
		logger.Errorw("Web服务器错误", "error", err)
	}
}
