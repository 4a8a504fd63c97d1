package risk

import (
	"context"
	"math"

	"github.com/yuechangmingzou/hybrid-go/internal/analysis"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"go.uber.org/zap"
)

const (
	// Kelly仓位比例上限
	kellyCap = 0.25

	// 保守回退仓位（余额的1%）
	fallbackFraction = 0.01

	// 风险预算折算用的假定止损距离
	assumedStopDistance = 0.05
)

// SizingLimits 仓位安全上限
type SizingLimits struct {
	MaxPositionSize  float64
	RiskPerTrade     float64
	MinTradeNotional float64
}

// MarketConditions 仓位计算的市场条件
type MarketConditions struct {
	Volatility float64
	Regime     string
	Liquidity  string // high / normal / low
}

// Sizer 自适应仓位计算器
// 同一输入必然得到同一输出；任何异常输入走保守回退，绝不panic
type Sizer struct {
	limits SizingLimits
	stats  HistoricalStatsProvider
	book   *PositionBook
	log    *zap.SugaredLogger
}

// NewSizer 创建仓位计算器
func NewSizer(limits SizingLimits, stats HistoricalStatsProvider, book *PositionBook) *Sizer {
	if stats == nil {
		stats = FixedStats{}
	}
	return &Sizer{
		limits: limits,
		stats:  stats,
		book:   book,
		log:    utils.GetLogger("sizing"),
	}
}

// AdaptiveSize 计算自适应下单数量
// Kelly基准仓位依次叠加波动、状态、流动性、相关性调整，最后应用安全上限
func (s *Sizer) AdaptiveSize(ctx context.Context, symbol string, signalStrength, balance, price float64, cond MarketConditions) float64 {
	if price <= 0 || balance <= 0 {
		return 0
	}
	strength := math.Abs(signalStrength)
	if strength == 0 || math.IsNaN(strength) || math.IsInf(strength, 0) {
		return s.fallbackSize(balance, price)
	}
	if strength > 1 {
		strength = 1
	}

	winRate := s.stats.SymbolStats(ctx, symbol).WinRate
	kelly := DynamicKellyFraction(winRate, cond.Regime)

	fraction := kelly * strength
	fraction *= VolatilityAdjustment(cond.Volatility)
	fraction *= RegimeMultiplier(cond.Regime)
	fraction *= LiquidityAdjustment(cond.Liquidity)
	fraction *= s.correlationAdjustment(symbol)

	size := s.applySafetyLimits(fraction, balance, price)
	if math.IsNaN(size) || math.IsInf(size, 0) || size < 0 {
		s.log.Warnw("仓位计算结果异常，使用保守回退", "symbol", symbol, "size", size)
		return s.fallbackSize(balance, price)
	}
	return size
}

// fallbackSize 保守回退：余额1%对应的数量
func (s *Sizer) fallbackSize(balance, price float64) float64 {
	if price <= 0 || balance <= 0 {
		return 0
	}
	return balance * fallbackFraction / price
}

// DynamicKellyFraction 按市场状态取盈亏比后的Kelly比例
// f = (p*b - q) / b，b为平均盈亏比，结果裁剪到[0, 0.25]
func DynamicKellyFraction(winRate float64, regime string) float64 {
	if math.IsNaN(winRate) || winRate <= 0 {
		return 0
	}
	if winRate > 1 {
		winRate = 1
	}

	var avgWin, avgLoss float64
	switch regime {
	case analysis.RegimeTrending:
		avgWin, avgLoss = 0.18, 0.09
	case analysis.RegimeVolatile:
		avgWin, avgLoss = 0.12, 0.12
	default:
		avgWin, avgLoss = 0.15, 0.08
	}

	b := avgWin / avgLoss
	kelly := (winRate*b - (1 - winRate)) / b

	if kelly < 0 {
		return 0
	}
	if kelly > kellyCap {
		return kellyCap
	}
	return kelly
}

// VolatilityAdjustment 波动越高仓位越小，极低波动小幅加仓
func VolatilityAdjustment(volatility float64) float64 {
	switch {
	case volatility > 0.05:
		return 0.5
	case volatility > 0.03:
		return 0.7
	case volatility > 0.01:
		return 1.0
	default:
		return 1.2
	}
}

// RegimeMultiplier 市场状态乘数
func RegimeMultiplier(regime string) float64 {
	switch regime {
	case analysis.RegimeTrending:
		return 1.3
	case analysis.RegimeRanging:
		return 0.8
	case analysis.RegimeVolatile:
		return 0.6
	default:
		return 1.0
	}
}

// LiquidityAdjustment 流动性调整
func LiquidityAdjustment(liquidity string) float64 {
	switch liquidity {
	case "high":
		return 1.1
	case "low":
		return 0.7
	default:
		return 1.0
	}
}

// correlationAdjustment 与现有持仓的相关性越高，新仓位折扣越大
func (s *Sizer) correlationAdjustment(symbol string) float64 {
	if s.book == nil {
		return 1.0
	}
	positions := s.book.List()
	if len(positions) == 0 {
		return 1.0
	}

	totalValue := 0.0
	for _, p := range positions {
		totalValue += p.Notional()
	}
	if totalValue <= 0 {
		return 1.0
	}

	weighted := 0.0
	for _, p := range positions {
		weighted += estimateCorrelation(symbol, p.Symbol) * (p.Notional() / totalValue)
	}

	switch {
	case weighted > 0.8:
		return 0.5
	case weighted > 0.6:
		return 0.7
	case weighted > 0.3:
		return 0.9
	default:
		return 1.0
	}
}

// estimateCorrelation 粗粒度相关性估计：主流币之间相关性最高
func estimateCorrelation(a, b string) float64 {
	if baseAsset(a) == baseAsset(b) {
		return 1.0
	}
	majorA := isMajor(a)
	majorB := isMajor(b)
	switch {
	case majorA && majorB:
		return 0.8
	case majorA || majorB:
		return 0.6
	default:
		return 0.4
	}
}

func baseAsset(symbol string) string {
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '/' {
			return symbol[:i]
		}
	}
	return symbol
}

func isMajor(symbol string) bool {
	base := baseAsset(symbol)
	return base == "BTC" || base == "ETH"
}

// applySafetyLimits 应用仓位上限和单笔风险预算
// 名义价值低于最小门槛时整笔放弃
func (s *Sizer) applySafetyLimits(fraction, balance, price float64) float64 {
	if fraction <= 0 {
		return 0
	}

	maxFraction := s.limits.MaxPositionSize
	if maxFraction <= 0 {
		maxFraction = 0.2
	}
	if fraction > maxFraction {
		fraction = maxFraction
	}

	notional := balance * fraction

	// 单笔风险预算按假定止损距离折算成名义价值上限
	if s.limits.RiskPerTrade > 0 {
		riskCap := balance * s.limits.RiskPerTrade / assumedStopDistance
		if notional > riskCap {
			notional = riskCap
		}
	}

	minNotional := s.limits.MinTradeNotional
	if minNotional <= 0 {
		minNotional = 10.0
	}
	if notional < minNotional {
		return 0
	}

	return notional / price
}
