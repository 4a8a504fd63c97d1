package types

import (
	"context"
	"math"
	"time"
)

// Market 市场类型（现货/合约）
type Market string

const (
	MarketSpot    Market = "spot"
	MarketFutures Market = "futures"
)

// Side 交易方向
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Reading 指标读数
// 显式区分“数据缺失”和“合法中性值”，避免用0/50静默兜底
type Reading struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// ReadingOf 构造读数，NaN/Inf视为缺失
func ReadingOf(v float64) Reading {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Reading{}
	}
	return Reading{Value: v, Valid: true}
}

// OHLCV K线数据
type OHLCV struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Time   int64   `json:"time"`
}

// Ticker 行情快照
type Ticker struct {
	Last      float64 `json:"last"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"`
}

// IndicatorBundle 单个价格序列的指标集合
type IndicatorBundle struct {
	RSI          Reading `json:"rsi"`
	MACDHist     Reading `json:"macd_hist"`
	MACDHistPrev Reading `json:"macd_hist_prev"`
	BBUpper      Reading `json:"bb_upper"`
	BBMiddle     Reading `json:"bb_middle"`
	BBLower      Reading `json:"bb_lower"`
	StochK       Reading `json:"stoch_k"`
	StochD       Reading `json:"stoch_d"`
	Price        Reading `json:"price"`
	Volatility   Reading `json:"volatility"`
}

// SignalBundle 方向信号集合
// 各子信号取值 -1/0/+1，Combined 为有效子信号的算术平均
type SignalBundle struct {
	RSI        float64 `json:"rsi_signal"`
	MACD       float64 `json:"macd_signal"`
	Bollinger  float64 `json:"bb_signal"`
	Stochastic float64 `json:"stoch_signal"`
	Combined   float64 `json:"combined_signal"`
}

// SymbolSnapshot 单币种市场快照（现货+合约）
type SymbolSnapshot struct {
	Symbol            string          `json:"symbol"`
	SpotTicker        Ticker          `json:"spot_ticker"`
	FuturesTicker     Ticker          `json:"futures_ticker"`
	SpotOHLCV         []OHLCV         `json:"spot_ohlcv,omitempty"`
	FuturesOHLCV      []OHLCV         `json:"futures_ohlcv,omitempty"`
	SpotIndicators    IndicatorBundle `json:"spot_indicators"`
	FuturesIndicators IndicatorBundle `json:"futures_indicators"`
	SpotSignals       SignalBundle    `json:"spot_signals"`
	FuturesSignals    SignalBundle    `json:"futures_signals"`
	Timestamp         int64           `json:"timestamp"`
}

// MarketSnapshot 全市场快照（单个周期内不可变）
type MarketSnapshot struct {
	Symbols   map[string]*SymbolSnapshot `json:"symbols"`
	Timestamp int64                      `json:"timestamp"`
}

// OpportunityKind 交易机会类型
type OpportunityKind string

const (
	OpportunityArbitrage OpportunityKind = "arbitrage"
	OpportunityTrend     OpportunityKind = "trend_following"
	OpportunityHedge     OpportunityKind = "hedging"
	OpportunityMomentum  OpportunityKind = "momentum"
)

// Opportunity 交易机会（按Kind填充对应明细字段）
type Opportunity struct {
	Kind       OpportunityKind  `json:"kind"`
	Symbol     string           `json:"symbol"`
	Confidence float64          `json:"confidence"`
	Arbitrage  *ArbitrageDetail `json:"arbitrage,omitempty"`
	Trend      *TrendDetail     `json:"trend,omitempty"`
	Hedge      *HedgeDetail     `json:"hedge,omitempty"`
	Momentum   *MomentumDetail  `json:"momentum,omitempty"`
}

// ArbitrageDetail 期现套利明细
type ArbitrageDetail struct {
	Premium              float64 `json:"premium"`
	SpotPrice            float64 `json:"spot_price"`
	FuturesPrice         float64 `json:"futures_price"`
	LongSpotShortFutures bool    `json:"long_spot_short_futures"`
	ExpectedProfit       float64 `json:"expected_profit"`
}

// TrendDetail 趋势跟踪明细
type TrendDetail struct {
	Direction       string  `json:"direction"` // bullish / bearish
	SpotStrength    float64 `json:"spot_strength"`
	FuturesStrength float64 `json:"futures_strength"`
}

// HedgeDetail 对冲明细
type HedgeDetail struct {
	HedgeType       string  `json:"hedge_type"` // protective_short / protective_long
	SpotSide        Side    `json:"spot_side"`
	SpotSize        float64 `json:"spot_size"`
	FuturesStrength float64 `json:"futures_strength"`
}

// MomentumDetail 动量明细
type MomentumDetail struct {
	MomentumType string  `json:"momentum_type"` // oversold_bounce / overbought_correction
	SpotRSI      float64 `json:"spot_rsi"`
	FuturesRSI   float64 `json:"futures_rsi"`
}

// TradeSignal 交易信号（单周期内生成并消费）
type TradeSignal struct {
	Strategy       string  `json:"strategy"`
	Symbol         string  `json:"symbol"`
	Market         Market  `json:"market"`
	Action         Side    `json:"action"`
	Size           float64 `json:"size"`
	Confidence     float64 `json:"confidence"`
	ExpectedReturn float64 `json:"expected_return,omitempty"`
	Priority       int     `json:"priority"`
}

// Position 持仓（由风控模块独占管理）
type Position struct {
	Symbol        string    `json:"symbol"`
	Market        Market    `json:"market"`
	Side          Side      `json:"side"`
	Size          float64   `json:"size"`
	EntryPrice    float64   `json:"entry_price"`
	CurrentPrice  float64   `json:"current_price"`
	StopLoss      float64   `json:"stop_loss,omitempty"`
	TakeProfit    float64   `json:"take_profit,omitempty"`
	UnrealizedPnl float64   `json:"unrealized_pnl"`
	EntryTime     time.Time `json:"entry_time"`
}

// Notional 持仓名义价值（数量×现价）
func (p *Position) Notional() float64 {
	return math.Abs(p.Size * p.CurrentPrice)
}

// PnlPct 相对入场价的未实现盈亏比例
func (p *Position) PnlPct() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	if p.Side == SideBuy {
		return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice
	}
	return (p.EntryPrice - p.CurrentPrice) / p.EntryPrice
}

// PortfolioState 组合状态（每周期从真实余额重算，周期内只读共享）
type PortfolioState struct {
	TotalBalance       float64            `json:"total_balance"`
	SpotBalance        float64            `json:"spot_balance"`
	FuturesBalance     float64            `json:"futures_balance"`
	SpotFreeBalance    float64            `json:"spot_free_balance"`
	FuturesFreeBalance float64            `json:"futures_free_balance"`
	SpotRatio          float64            `json:"spot_ratio"`
	FuturesRatio       float64            `json:"futures_ratio"`
	TargetSpotRatio    float64            `json:"target_spot_ratio"`
	TargetFuturesRatio float64            `json:"target_futures_ratio"`
	Prices             map[string]float64 `json:"prices,omitempty"`
	Timestamp          int64              `json:"timestamp"`
}

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
	RiskUnknown  RiskLevel = "unknown"
)

// Score 风险等级对应的数值分数（unknown按中间值2计）
func (l RiskLevel) Score() float64 {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 2
	}
}

// RiskLevelFromScore 分数映射回等级
func RiskLevelFromScore(score float64) RiskLevel {
	switch {
	case score >= 3.5:
		return RiskCritical
	case score >= 2.5:
		return RiskHigh
	case score >= 1.5:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskAssessment 综合风险评估（每周期重算）
type RiskAssessment struct {
	Level           RiskLevel            `json:"level"`
	Score           float64              `json:"score"`
	Components      map[string]RiskLevel `json:"components"`
	ActionsTaken    []string             `json:"actions_taken,omitempty"`
	Warnings        []string             `json:"warnings,omitempty"`
	Recommendations []string             `json:"recommendations,omitempty"`
}

// RiskAlert 风险告警
type RiskAlert struct {
	Type      string `json:"type"`
	Symbol    string `json:"symbol"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// TradeRecord 成交记录（交给存储协作方的扁平结构）
type TradeRecord struct {
	Symbol    string  `json:"symbol"`
	Side      Side    `json:"side"`
	Size      float64 `json:"size"`
	Price     float64 `json:"price"`
	Market    Market  `json:"market"`
	Fees      float64 `json:"fees"`
	Strategy  string  `json:"strategy"`
	Timestamp int64   `json:"timestamp"`
}

// OrderResult 下单结果
type OrderResult struct {
	Success bool    `json:"success"`
	OrderID string  `json:"order_id,omitempty"`
	Price   float64 `json:"price,omitempty"`
	Fees    float64 `json:"fees,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// CycleSummary 单周期汇总
type CycleSummary struct {
	Cycle          int64          `json:"cycle"`
	DurationMS     int64          `json:"duration_ms"`
	Symbols        int            `json:"symbols"`
	Opportunities  map[string]int `json:"opportunities"`
	Signals        int            `json:"signals"`
	TradesExecuted int            `json:"trades_executed"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	Timestamp      int64          `json:"timestamp"`
}

// Exchange 交易所协作方接口
// 实现方负责处理瞬时网络错误；数据获取失败返回error由调用方跳过
type Exchange interface {
	// 获取行情
	GetTicker(ctx context.Context, symbol string, market Market) (*Ticker, error)

	// 获取K线数据
	GetOHLCV(ctx context.Context, symbol, timeframe string, limit int, market Market) ([]OHLCV, error)

	// 获取现货余额（资产→数量）
	GetSpotBalance(ctx context.Context) (map[string]float64, error)

	// 获取合约余额
	GetFuturesBalance(ctx context.Context) (map[string]float64, error)

	// 市价下单
	ExecuteOrder(ctx context.Context, symbol string, side Side, size float64, market Market) (*OrderResult, error)

	// 账户间划转
	Transfer(ctx context.Context, asset string, amount float64, from, to Market) error
}
