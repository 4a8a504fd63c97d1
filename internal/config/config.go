package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config 配置结构体
type Config struct {
	// Redis配置
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Binance配置
	BinanceAPIKey         string
	BinanceSecretKey      string
	BinanceSpotBaseURL    string
	BinanceFAPIBaseURL    string
	BinanceHTTPTimeoutSec float64

	// Dry-run模式（true时使用内置模拟交易所）
	DryRun bool

	// 模拟交易所参数
	PaperInitialBalance float64
	PaperFeeRate        float64
	PaperSeed           int64

	// 主循环配置
	CycleIntervalSec    int
	SnapshotConcurrency int
	OHLCVTimeframe      string
	OHLCVLimit          int

	// 交易币种
	TradingSymbols          []string
	FuturesSupportedSymbols []string
	PrimarySymbols          []string

	// 组合配置
	SpotAllocation           float64
	FuturesAllocation        float64
	RebalanceThreshold       float64
	RebalanceIntervalMinutes int
	AutoTransferEnabled      bool

	// 套利阈值
	ArbitrageThreshold float64

	// 指标参数
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	BBPeriod      int
	BBStdDev      float64
	StochPeriod   int
	StochSmooth   int

	// 信号筛选
	BaseConfidenceThreshold float64
	MaxSignalsPerCycle      int
	MaxTradesPerCycle       int

	// 风控参数
	MaxPositionSize      float64
	RiskPerTrade         float64
	MaxDailyLoss         float64
	MaxDrawdown          float64
	StopLossPct          float64
	TakeProfitPct        float64
	PositionTimeoutHours int
	MaxLeverage          float64
	ShortPositionLimit   float64
	MinTradeNotional     float64
	MinOrderNotional     float64

	// 资金划转监控
	TransferMonitorIntervalSec int
	MinTransferAmount          float64
	TransferBuffer             float64

	// 历史记录长度
	TradeHistoryMaxLen  int
	OrderAuditMaxLen    int
	CycleHistoryMaxLen  int
	SignalHistoryMaxLen int

	// 订单去重
	OrderDedupeWindowSec int

	// 告警推送
	AlertEnabled        bool
	AlertWebhookURL     string
	AlertDedupeTTLSec   int
	AlertMinIntervalSec int

	// Web配置
	WebPort              int
	WebBasicAuthUser     string
	WebBasicAuthPass     string
	WebStatusCacheTTLSec float64
	WSBroadcastSec       int

	// 指标配置
	MetricsRefreshSec int
	MetricsTTLSec     int

	// 日志配置
	LogLevel string
}

var globalConfig *Config

// Load 加载配置
func Load() error {
	_ = godotenv.Load()

	globalConfig = &Config{
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getIntEnv("REDIS_PORT", 6379),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		BinanceAPIKey:         getEnv("BINANCE_API_KEY", ""),
		BinanceSecretKey:      getEnv("BINANCE_SECRET_KEY", ""),
		BinanceSpotBaseURL:    getEnv("BINANCE_SPOT_BASE_URL", "https://api.binance.com"),
		BinanceFAPIBaseURL:    getEnv("BINANCE_FAPI_BASE_URL", "https://fapi.binance.com"),
		BinanceHTTPTimeoutSec: getFloatEnv("BINANCE_HTTP_TIMEOUT_SEC", 10.0),

		DryRun: getBoolEnv("DRY_RUN", true),

		PaperInitialBalance: getFloatEnv("PAPER_INITIAL_BALANCE", 1000.0),
		PaperFeeRate:        getFloatEnv("PAPER_FEE_RATE", 0.001),
		PaperSeed:           int64(getIntEnv("PAPER_SEED", 42)),

		CycleIntervalSec:    getIntEnv("CYCLE_INTERVAL_SEC", 60),
		SnapshotConcurrency: getIntEnv("SNAPSHOT_CONCURRENCY", 10),
		OHLCVTimeframe:      getEnv("OHLCV_TIMEFRAME", "1h"),
		OHLCVLimit:          getIntEnv("OHLCV_LIMIT", 100),

		TradingSymbols: parseStringList(getEnv("TRADING_SYMBOLS",
			"BTC/USDT,ETH/USDT,BNB/USDT,XRP/USDT,SOL/USDT")),
		FuturesSupportedSymbols: parseStringList(getEnv("FUTURES_SUPPORTED_SYMBOLS",
			"BTC/USDT,ETH/USDT,BNB/USDT,XRP/USDT,SOL/USDT,ADA/USDT,AVAX/USDT,LINK/USDT,TRX/USDT")),
		PrimarySymbols: parseStringList(getEnv("PRIMARY_SYMBOLS", "BTC/USDT,ETH/USDT")),

		SpotAllocation:           getFloatEnv("SPOT_ALLOCATION", 0.4),
		FuturesAllocation:        getFloatEnv("FUTURES_ALLOCATION", 0.6),
		RebalanceThreshold:       getFloatEnv("REBALANCE_THRESHOLD", 0.03),
		RebalanceIntervalMinutes: getIntEnv("REBALANCE_INTERVAL_MINUTES", 15),
		AutoTransferEnabled:      getBoolEnv("AUTO_TRANSFER_ENABLED", true),

		ArbitrageThreshold: getFloatEnv("ARBITRAGE_THRESHOLD", 0.0005),

		RSIPeriod:     getIntEnv("RSI_PERIOD", 14),
		RSIOversold:   getFloatEnv("RSI_OVERSOLD", 30),
		RSIOverbought: getFloatEnv("RSI_OVERBOUGHT", 70),
		MACDFast:      getIntEnv("MACD_FAST", 12),
		MACDSlow:      getIntEnv("MACD_SLOW", 26),
		MACDSignal:    getIntEnv("MACD_SIGNAL", 9),
		BBPeriod:      getIntEnv("BB_PERIOD", 20),
		BBStdDev:      getFloatEnv("BB_STD_DEV", 2.0),
		StochPeriod:   getIntEnv("STOCH_PERIOD", 14),
		StochSmooth:   getIntEnv("STOCH_SMOOTH", 3),

		BaseConfidenceThreshold: getFloatEnv("BASE_CONFIDENCE_THRESHOLD", 0.25),
		MaxSignalsPerCycle:      getIntEnv("MAX_SIGNALS_PER_CYCLE", 10),
		MaxTradesPerCycle:       getIntEnv("MAX_TRADES_PER_CYCLE", 5),

		MaxPositionSize:      getFloatEnv("MAX_POSITION_SIZE", 0.2),
		RiskPerTrade:         getFloatEnv("RISK_PER_TRADE", 0.02),
		MaxDailyLoss:         getFloatEnv("MAX_DAILY_LOSS", 0.05),
		MaxDrawdown:          getFloatEnv("MAX_DRAWDOWN", 0.20),
		StopLossPct:          getFloatEnv("STOP_LOSS_PCT", 0.05),
		TakeProfitPct:        getFloatEnv("TAKE_PROFIT_PCT", 0.10),
		PositionTimeoutHours: getIntEnv("POSITION_TIMEOUT_HOURS", 24),
		MaxLeverage:          getFloatEnv("MAX_LEVERAGE", 5.0),
		ShortPositionLimit:   getFloatEnv("SHORT_POSITION_LIMIT", 0.3),
		MinTradeNotional:     getFloatEnv("MIN_TRADE_NOTIONAL", 10.0),
		MinOrderNotional:     getFloatEnv("MIN_ORDER_NOTIONAL", 5.0),

		TransferMonitorIntervalSec: getIntEnv("TRANSFER_MONITOR_INTERVAL_SEC", 300),
		MinTransferAmount:          getFloatEnv("MIN_TRANSFER_AMOUNT", 10.0),
		TransferBuffer:             getFloatEnv("TRANSFER_BUFFER", 5.0),

		TradeHistoryMaxLen:  getIntEnv("TRADE_HISTORY_MAX_LEN", 2000),
		OrderAuditMaxLen:    getIntEnv("ORDER_AUDIT_MAX_LEN", 2000),
		CycleHistoryMaxLen:  getIntEnv("CYCLE_HISTORY_MAX_LEN", 500),
		SignalHistoryMaxLen: getIntEnv("SIGNAL_HISTORY_MAX_LEN", 50),

		OrderDedupeWindowSec: getIntEnv("ORDER_DEDUPE_WINDOW_SEC", 55),

		AlertEnabled:        getBoolEnv("ALERT_ENABLED", false),
		AlertWebhookURL:     getEnv("ALERT_WEBHOOK_URL", ""),
		AlertDedupeTTLSec:   getIntEnv("ALERT_DEDUPE_TTL_SEC", 300),
		AlertMinIntervalSec: getIntEnv("ALERT_MIN_INTERVAL_SEC", 60),

		WebPort:              getIntEnv("WEB_PORT", 8000),
		WebBasicAuthUser:     getEnv("WEB_BASIC_AUTH_USER", ""),
		WebBasicAuthPass:     getEnv("WEB_BASIC_AUTH_PASS", ""),
		WebStatusCacheTTLSec: getFloatEnv("WEB_STATUS_CACHE_TTL_SEC", 15.0),
		WSBroadcastSec:       getIntEnv("WS_BROADCAST_SEC", 5),

		MetricsRefreshSec: getIntEnv("METRICS_REFRESH_SEC", 60),
		MetricsTTLSec:     getIntEnv("METRICS_TTL_SEC", 300),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	return nil
}

// Get 获取全局配置
func Get() *Config {
	return globalConfig
}

// GetRedisKey 生成Redis键名
func GetRedisKey(name string) string {
	return "hybrid:" + name
}

// FuturesSymbol 现货符号映射为合约符号
func FuturesSymbol(symbol string) string {
	if strings.Contains(symbol, ":") {
		return symbol
	}
	return symbol + ":USDT"
}

// IsFuturesSupported 合约白名单判断
func (c *Config) IsFuturesSupported(symbol string) bool {
	for _, s := range c.FuturesSupportedSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		value = strings.TrimSpace(value)
		if value == "" || value == "0" {
			return defaultValue
		}
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		value = strings.TrimSpace(value)
		if value == "" || value == "0" || value == "0.0" {
			return defaultValue
		}
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		value = strings.TrimSpace(value)
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func parseStringList(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(strings.ToUpper(part))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
