package config

import (
	"fmt"
	"math"
	"os"
	"strings"
)

// ValidateConfig 验证配置
func ValidateConfig() error {
	cfg := Get()
	var errors []string

	// 验证Redis配置
	if cfg.RedisHost == "" {
		errors = append(errors, "REDIS_HOST is required")
	}
	if cfg.RedisPort <= 0 || cfg.RedisPort > 65535 {
		errors = append(errors, fmt.Sprintf("REDIS_PORT must be between 1 and 65535, got %d", cfg.RedisPort))
	}

	// 验证Web认证（可选，配置了就必须成对且合格）
	if (cfg.WebBasicAuthUser == "") != (cfg.WebBasicAuthPass == "") {
		errors = append(errors, "WEB_BASIC_AUTH_USER and WEB_BASIC_AUTH_PASS must be set together")
	}
	if cfg.WebBasicAuthPass != "" {
		if cfg.WebBasicAuthPass == "change_me" {
			errors = append(errors, "WEB_BASIC_AUTH_PASS cannot be the default value 'change_me'")
		}
		if len(cfg.WebBasicAuthPass) < 8 {
			errors = append(errors, "WEB_BASIC_AUTH_PASS must be at least 8 characters")
		}
	}
	if cfg.WebPort <= 0 || cfg.WebPort > 65535 {
		errors = append(errors, fmt.Sprintf("WEB_PORT must be between 1 and 65535, got %d", cfg.WebPort))
	}

	// 验证主循环配置
	if cfg.CycleIntervalSec <= 0 {
		errors = append(errors, "CYCLE_INTERVAL_SEC must be greater than 0")
	}
	if cfg.SnapshotConcurrency <= 0 {
		errors = append(errors, "SNAPSHOT_CONCURRENCY must be greater than 0")
	}
	if cfg.SnapshotConcurrency > 100 {
		errors = append(errors, "SNAPSHOT_CONCURRENCY should not exceed 100 (to avoid rate limiting)")
	}
	if len(cfg.TradingSymbols) == 0 {
		errors = append(errors, "TRADING_SYMBOLS must not be empty")
	}
	if cfg.OHLCVLimit < 30 {
		errors = append(errors, "OHLCV_LIMIT must be at least 30 for indicator warm-up")
	}

	// 验证组合配置
	if cfg.SpotAllocation <= 0 || cfg.SpotAllocation >= 1 {
		errors = append(errors, "SPOT_ALLOCATION must be between 0 and 1 (exclusive)")
	}
	if cfg.FuturesAllocation <= 0 || cfg.FuturesAllocation >= 1 {
		errors = append(errors, "FUTURES_ALLOCATION must be between 0 and 1 (exclusive)")
	}
	if math.Abs(cfg.SpotAllocation+cfg.FuturesAllocation-1.0) > 1e-9 {
		errors = append(errors, "SPOT_ALLOCATION + FUTURES_ALLOCATION must equal 1.0")
	}
	if cfg.RebalanceThreshold <= 0 {
		errors = append(errors, "REBALANCE_THRESHOLD must be greater than 0")
	}
	if cfg.RebalanceIntervalMinutes <= 0 {
		errors = append(errors, "REBALANCE_INTERVAL_MINUTES must be greater than 0")
	}
	if cfg.ArbitrageThreshold <= 0 {
		errors = append(errors, "ARBITRAGE_THRESHOLD must be greater than 0")
	}

	// 验证指标参数
	if cfg.RSIPeriod <= 0 {
		errors = append(errors, "RSI_PERIOD must be greater than 0")
	}
	if cfg.RSIOversold <= 0 || cfg.RSIOversold >= cfg.RSIOverbought {
		errors = append(errors, "RSI_OVERSOLD must be positive and below RSI_OVERBOUGHT")
	}
	if cfg.RSIOverbought >= 100 {
		errors = append(errors, "RSI_OVERBOUGHT must be below 100")
	}
	if cfg.MACDFast <= 0 || cfg.MACDSlow <= cfg.MACDFast {
		errors = append(errors, "MACD_SLOW must be greater than MACD_FAST, both positive")
	}
	if cfg.MACDSignal <= 0 {
		errors = append(errors, "MACD_SIGNAL must be greater than 0")
	}
	if cfg.BBPeriod <= 0 {
		errors = append(errors, "BB_PERIOD must be greater than 0")
	}
	if cfg.BBStdDev <= 0 {
		errors = append(errors, "BB_STD_DEV must be greater than 0")
	}
	if cfg.StochPeriod <= 0 || cfg.StochSmooth <= 0 {
		errors = append(errors, "STOCH_PERIOD and STOCH_SMOOTH must be greater than 0")
	}

	// 验证风控参数
	if cfg.MaxPositionSize <= 0 || cfg.MaxPositionSize > 1 {
		errors = append(errors, "MAX_POSITION_SIZE must be in (0, 1]")
	}
	if cfg.RiskPerTrade <= 0 || cfg.RiskPerTrade > 1 {
		errors = append(errors, "RISK_PER_TRADE must be in (0, 1]")
	}
	if cfg.MaxDailyLoss <= 0 || cfg.MaxDrawdown <= 0 {
		errors = append(errors, "MAX_DAILY_LOSS and MAX_DRAWDOWN must be greater than 0")
	}
	if cfg.StopLossPct <= 0 || cfg.TakeProfitPct <= 0 {
		errors = append(errors, "STOP_LOSS_PCT and TAKE_PROFIT_PCT must be greater than 0")
	}
	if cfg.MaxLeverage <= 0 {
		errors = append(errors, "MAX_LEVERAGE must be greater than 0")
	}
	if cfg.MaxLeverage > 125 {
		errors = append(errors, "MAX_LEVERAGE should not exceed 125 (Binance maximum)")
	}
	if cfg.ShortPositionLimit <= 0 || cfg.ShortPositionLimit > 1 {
		errors = append(errors, "SHORT_POSITION_LIMIT must be in (0, 1]")
	}
	if cfg.PositionTimeoutHours <= 0 {
		errors = append(errors, "POSITION_TIMEOUT_HOURS must be greater than 0")
	}

	// 验证信号筛选
	if cfg.BaseConfidenceThreshold < 0 || cfg.BaseConfidenceThreshold >= 1 {
		errors = append(errors, "BASE_CONFIDENCE_THRESHOLD must be in [0, 1)")
	}
	if cfg.MaxSignalsPerCycle <= 0 || cfg.MaxTradesPerCycle <= 0 {
		errors = append(errors, "MAX_SIGNALS_PER_CYCLE and MAX_TRADES_PER_CYCLE must be greater than 0")
	}

	// 验证资金划转配置
	if cfg.TransferMonitorIntervalSec <= 0 {
		errors = append(errors, "TRANSFER_MONITOR_INTERVAL_SEC must be greater than 0")
	}
	if cfg.MinTransferAmount <= 0 {
		errors = append(errors, "MIN_TRANSFER_AMOUNT must be greater than 0")
	}

	// 验证模拟交易所配置
	if cfg.DryRun && cfg.PaperInitialBalance <= 0 {
		errors = append(errors, "PAPER_INITIAL_BALANCE must be greater than 0 when DRY_RUN=true")
	}

	// 验证Binance配置（非DRY_RUN模式）
	if !cfg.DryRun {
		if cfg.BinanceAPIKey == "" {
			errors = append(errors, "BINANCE_API_KEY is required when DRY_RUN=false")
		}
		if cfg.BinanceSecretKey == "" {
			errors = append(errors, "BINANCE_SECRET_KEY is required when DRY_RUN=false")
		}
		if len(cfg.BinanceAPIKey) > 0 && len(cfg.BinanceAPIKey) < 20 {
			errors = append(errors, "BINANCE_API_KEY must be at least 20 characters")
		}
		if len(cfg.BinanceSecretKey) > 0 && len(cfg.BinanceSecretKey) < 20 {
			errors = append(errors, "BINANCE_SECRET_KEY must be at least 20 characters")
		}
	}

	// 验证告警配置
	if cfg.AlertEnabled && cfg.AlertWebhookURL == "" {
		errors = append(errors, "ALERT_WEBHOOK_URL is required when ALERT_ENABLED=true")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// ValidateAndExit 验证配置并在失败时退出
func ValidateAndExit() {
	if err := ValidateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed:\n%v\n", err)
		os.Exit(1)
	}
}
