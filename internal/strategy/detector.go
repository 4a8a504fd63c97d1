package strategy

import (
	"math"
	"sort"

	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
	"go.uber.org/zap"
)

// Detector 交易机会检测器
type Detector struct {
	arbThreshold float64
	log          *zap.SugaredLogger
}

// NewDetector 创建机会检测器
func NewDetector(arbThreshold float64) *Detector {
	if arbThreshold <= 0 {
		arbThreshold = 0.0005
	}
	return &Detector{
		arbThreshold: arbThreshold,
		log:          utils.GetLogger("detector"),
	}
}

// DetectOpportunities 在全市场快照上检测四类交易机会
// spotPositions为当前现货持仓（用于对冲检测），价格非法的币种直接跳过
func (d *Detector) DetectOpportunities(snap *types.MarketSnapshot, spotPositions []*types.Position) []types.Opportunity {
	if snap == nil || len(snap.Symbols) == 0 {
		return nil
	}

	positionsBySymbol := make(map[string]*types.Position, len(spotPositions))
	for _, p := range spotPositions {
		if p.Market == types.MarketSpot {
			positionsBySymbol[p.Symbol] = p
		}
	}

	// 遍历顺序固定，保证同一快照输出确定
	symbols := make([]string, 0, len(snap.Symbols))
	for symbol := range snap.Symbols {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var opportunities []types.Opportunity
	for _, symbol := range symbols {
		ss := snap.Symbols[symbol]
		spotPrice := ss.SpotTicker.Last
		futuresPrice := ss.FuturesTicker.Last
		if spotPrice <= 0 || futuresPrice <= 0 {
			d.log.Debugw("跳过价格非法的币种", "symbol", symbol,
				"spot", spotPrice, "futures", futuresPrice)
			continue
		}

		if opp := d.detectArbitrage(ss, spotPrice, futuresPrice); opp != nil {
			opportunities = append(opportunities, *opp)
		}
		if opp := d.detectTrend(ss); opp != nil {
			opportunities = append(opportunities, *opp)
		}
		if opp := d.detectHedge(ss, positionsBySymbol[symbol]); opp != nil {
			opportunities = append(opportunities, *opp)
		}
		if opp := d.detectMomentum(ss); opp != nil {
			opportunities = append(opportunities, *opp)
		}
	}

	return opportunities
}

// detectArbitrage 期现价差套利：溢价绝对值超过阈值即成立
func (d *Detector) detectArbitrage(ss *types.SymbolSnapshot, spotPrice, futuresPrice float64) *types.Opportunity {
	premium := (futuresPrice - spotPrice) / spotPrice
	if math.Abs(premium) <= d.arbThreshold {
		return nil
	}

	confidence := math.Abs(premium) / d.arbThreshold
	if confidence > 1.0 {
		confidence = 1.0
	}

	return &types.Opportunity{
		Kind:       types.OpportunityArbitrage,
		Symbol:     ss.Symbol,
		Confidence: confidence,
		Arbitrage: &types.ArbitrageDetail{
			Premium:              premium,
			SpotPrice:            spotPrice,
			FuturesPrice:         futuresPrice,
			LongSpotShortFutures: premium > 0,
			ExpectedProfit:       math.Abs(premium),
		},
	}
}

// detectTrend 趋势跟踪：现货与合约合并信号同向且都足够强
func (d *Detector) detectTrend(ss *types.SymbolSnapshot) *types.Opportunity {
	spot := ss.SpotSignals.Combined
	futures := ss.FuturesSignals.Combined

	if math.Abs(spot) <= 0.1 || math.Abs(futures) <= 0.1 {
		return nil
	}
	if spot*futures <= 0 {
		return nil
	}

	direction := "bullish"
	if spot < 0 {
		direction = "bearish"
	}

	return &types.Opportunity{
		Kind:       types.OpportunityTrend,
		Symbol:     ss.Symbol,
		Confidence: (math.Abs(spot) + math.Abs(futures)) / 2,
		Trend: &types.TrendDetail{
			Direction:       direction,
			SpotStrength:    spot,
			FuturesStrength: futures,
		},
	}
}

// detectHedge 对冲：现货持仓方向与合约信号显著相反时用合约保护
func (d *Detector) detectHedge(ss *types.SymbolSnapshot, position *types.Position) *types.Opportunity {
	if position == nil || position.Size <= 0 {
		return nil
	}

	strength := ss.FuturesSignals.Combined

	var hedgeType string
	switch {
	case position.Side == types.SideBuy && strength < -0.2:
		hedgeType = "protective_short"
	case position.Side == types.SideSell && strength > 0.2:
		hedgeType = "protective_long"
	default:
		return nil
	}

	return &types.Opportunity{
		Kind:       types.OpportunityHedge,
		Symbol:     ss.Symbol,
		Confidence: math.Abs(strength),
		Hedge: &types.HedgeDetail{
			HedgeType:       hedgeType,
			SpotSide:        position.Side,
			SpotSize:        position.Size,
			FuturesStrength: strength,
		},
	}
}

// detectMomentum 动量：现货/合约RSI同时处于超卖或超买区间
func (d *Detector) detectMomentum(ss *types.SymbolSnapshot) *types.Opportunity {
	if !ss.SpotIndicators.RSI.Valid || !ss.FuturesIndicators.RSI.Valid {
		return nil
	}
	spotRSI := ss.SpotIndicators.RSI.Value
	futuresRSI := ss.FuturesIndicators.RSI.Value

	var momentumType string
	switch {
	case spotRSI < 40 && futuresRSI < 40:
		momentumType = "oversold_bounce"
	case spotRSI > 60 && futuresRSI > 60:
		momentumType = "overbought_correction"
	default:
		return nil
	}

	return &types.Opportunity{
		Kind:       types.OpportunityMomentum,
		Symbol:     ss.Symbol,
		Confidence: math.Abs(50-spotRSI) / 50,
		Momentum: &types.MomentumDetail{
			MomentumType: momentumType,
			SpotRSI:      spotRSI,
			FuturesRSI:   futuresRSI,
		},
	}
}
