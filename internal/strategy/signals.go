package strategy

import (
	"math"
	"sort"

	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
	"go.uber.org/zap"
)

// 信号优先级（数值越小越优先）
const (
	priorityArbitrage = 1
	priorityTrend     = 2
	priorityHedge     = 3
	priorityMomentum  = 4
)

// 可用余额低于该值视为无资金可用
const minFreeBalance = 5.0

// SignalGenerator 组合信号生成器
// 将检测到的机会按余额约束转换为可执行交易信号
type SignalGenerator struct {
	cfg *config.Config
	log *zap.SugaredLogger
}

// NewSignalGenerator 创建信号生成器
func NewSignalGenerator(cfg *config.Config) *SignalGenerator {
	return &SignalGenerator{
		cfg: cfg,
		log: utils.GetLogger("signals"),
	}
}

// GeneratePortfolioSignals 从机会列表生成交易信号
// spotHoldings为现货持仓数量（币种→数量），用于跳过无库存的卖出信号
func (g *SignalGenerator) GeneratePortfolioSignals(
	opportunities []types.Opportunity,
	state *types.PortfolioState,
	snap *types.MarketSnapshot,
	spotHoldings map[string]float64,
) []types.TradeSignal {
	if state == nil || snap == nil {
		return nil
	}

	spotFree := state.SpotFreeBalance
	futuresFree := state.FuturesFreeBalance
	if spotFree < minFreeBalance && futuresFree < minFreeBalance {
		g.log.Warnw("现货和合约可用余额均不足，跳过本周期信号生成",
			"spot_free", spotFree, "futures_free", futuresFree)
		return nil
	}

	var arbitrage, trend, hedge, momentum []types.Opportunity
	for _, opp := range opportunities {
		switch opp.Kind {
		case types.OpportunityArbitrage:
			arbitrage = append(arbitrage, opp)
		case types.OpportunityTrend:
			trend = append(trend, opp)
		case types.OpportunityHedge:
			hedge = append(hedge, opp)
		case types.OpportunityMomentum:
			momentum = append(momentum, opp)
		}
	}

	var signals []types.TradeSignal
	signals = append(signals, g.arbitrageSignals(arbitrage, spotFree, futuresFree)...)
	signals = append(signals, g.trendSignals(trend, snap, spotFree, futuresFree, spotHoldings)...)
	signals = append(signals, g.hedgeSignals(hedge)...)
	signals = append(signals, g.momentumSignals(momentum, snap, spotFree, futuresFree)...)

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Priority < signals[j].Priority
	})

	if len(signals) > g.cfg.MaxSignalsPerCycle {
		signals = signals[:g.cfg.MaxSignalsPerCycle]
	}
	return signals
}

// arbitrageSignals 套利机会按预期收益排序，生成现货+合约双腿信号
func (g *SignalGenerator) arbitrageSignals(opps []types.Opportunity, spotFree, futuresFree float64) []types.TradeSignal {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Arbitrage.ExpectedProfit > opps[j].Arbitrage.ExpectedProfit
	})

	var signals []types.TradeSignal
	for _, opp := range opps {
		if opp.Confidence < g.cfg.BaseConfidenceThreshold {
			continue
		}
		detail := opp.Arbitrage

		spotBudget := 0.0
		if spotFree >= minFreeBalance {
			spotBudget = math.Min(spotFree*0.8, 100.0)
		}
		futuresBudget := 0.0
		if futuresFree >= minFreeBalance {
			futuresBudget = math.Min(futuresFree*0.8, 100.0)
		}
		if spotBudget < g.cfg.MinOrderNotional && futuresBudget < g.cfg.MinOrderNotional {
			continue
		}

		spotQty := SafeQuantity(opp.Symbol, spotBudget, detail.SpotPrice)
		futuresQty := SafeQuantity(opp.Symbol, futuresBudget, detail.FuturesPrice)

		if g.cfg.IsFuturesSupported(opp.Symbol) && spotQty > 0 && futuresQty > 0 {
			spotAction, futuresAction := types.SideBuy, types.SideSell
			if !detail.LongSpotShortFutures {
				spotAction, futuresAction = types.SideSell, types.SideBuy
			}
			signals = append(signals,
				types.TradeSignal{
					Strategy:       "arbitrage",
					Symbol:         opp.Symbol,
					Market:         types.MarketSpot,
					Action:         spotAction,
					Size:           spotQty,
					Confidence:     opp.Confidence,
					ExpectedReturn: detail.ExpectedProfit,
					Priority:       priorityArbitrage,
				},
				types.TradeSignal{
					Strategy:       "arbitrage",
					Symbol:         config.FuturesSymbol(opp.Symbol),
					Market:         types.MarketFutures,
					Action:         futuresAction,
					Size:           futuresQty,
					Confidence:     opp.Confidence,
					ExpectedReturn: detail.ExpectedProfit,
					Priority:       priorityArbitrage,
				},
			)
		} else if spotQty > 0 && detail.LongSpotShortFutures {
			// 合约不可用时仅做现货腿
			signals = append(signals, types.TradeSignal{
				Strategy:       "arbitrage_spot_only",
				Symbol:         opp.Symbol,
				Market:         types.MarketSpot,
				Action:         types.SideBuy,
				Size:           spotQty,
				Confidence:     opp.Confidence,
				ExpectedReturn: detail.ExpectedProfit,
				Priority:       priorityArbitrage,
			})
		}
	}
	return signals
}

// trendSignals 趋势机会按方向在现货和合约各开一腿
func (g *SignalGenerator) trendSignals(
	opps []types.Opportunity,
	snap *types.MarketSnapshot,
	spotFree, futuresFree float64,
	spotHoldings map[string]float64,
) []types.TradeSignal {
	var signals []types.TradeSignal
	for _, opp := range opps {
		if opp.Confidence < g.cfg.BaseConfidenceThreshold {
			continue
		}
		ss := snap.Symbols[opp.Symbol]
		if ss == nil {
			continue
		}

		action := types.SideBuy
		if opp.Trend.Direction == "bearish" {
			action = types.SideSell
		}

		// 现货腿
		spotBudget := spotFree * 0.03
		if spotBudget >= minFreeBalance && ss.SpotTicker.Last > 0 {
			// 卖出信号要求有现货库存
			if action == types.SideBuy || spotHoldings[opp.Symbol] > 0 {
				budget := spotBudget
				if action == types.SideSell {
					held := spotHoldings[opp.Symbol] * ss.SpotTicker.Last
					budget = math.Min(budget, held)
				}
				if qty := SafeQuantity(opp.Symbol, budget, ss.SpotTicker.Last); qty > 0 {
					signals = append(signals, types.TradeSignal{
						Strategy:   "trend_following",
						Symbol:     opp.Symbol,
						Market:     types.MarketSpot,
						Action:     action,
						Size:       qty,
						Confidence: opp.Confidence,
						Priority:   priorityTrend,
					})
				}
			}
		}

		// 合约腿
		futuresBudget := futuresFree * 0.03
		if g.cfg.IsFuturesSupported(opp.Symbol) && futuresBudget >= minFreeBalance && ss.FuturesTicker.Last > 0 {
			if qty := SafeQuantity(opp.Symbol, futuresBudget, ss.FuturesTicker.Last); qty > 0 {
				signals = append(signals, types.TradeSignal{
					Strategy:   "trend_following",
					Symbol:     config.FuturesSymbol(opp.Symbol),
					Market:     types.MarketFutures,
					Action:     action,
					Size:       qty,
					Confidence: opp.Confidence,
					Priority:   priorityTrend,
				})
			}
		}
	}
	return signals
}

// hedgeSignals 高置信度对冲机会按现货仓位八成规模开合约保护腿
func (g *SignalGenerator) hedgeSignals(opps []types.Opportunity) []types.TradeSignal {
	var signals []types.TradeSignal
	for _, opp := range opps {
		if opp.Confidence <= 0.4 {
			continue
		}
		if !g.cfg.IsFuturesSupported(opp.Symbol) {
			continue
		}

		action := types.SideSell
		if opp.Hedge.HedgeType == "protective_long" {
			action = types.SideBuy
		}

		size := opp.Hedge.SpotSize * 0.8
		if size <= 0 {
			continue
		}

		signals = append(signals, types.TradeSignal{
			Strategy:   "hedging",
			Symbol:     config.FuturesSymbol(opp.Symbol),
			Market:     types.MarketFutures,
			Action:     action,
			Size:       size,
			Confidence: opp.Confidence,
			Priority:   priorityHedge,
		})
	}
	return signals
}

// momentumSignals 动量机会按置信度排序，低置信度直接丢弃
func (g *SignalGenerator) momentumSignals(
	opps []types.Opportunity,
	snap *types.MarketSnapshot,
	spotFree, futuresFree float64,
) []types.TradeSignal {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Confidence > opps[j].Confidence
	})

	var signals []types.TradeSignal
	for _, opp := range opps {
		if opp.Confidence <= 0.5 {
			continue
		}
		ss := snap.Symbols[opp.Symbol]
		if ss == nil || ss.SpotTicker.Last <= 0 {
			continue
		}

		budget := math.Min(spotFree, futuresFree) * 0.02
		if budget < 10.0 {
			continue
		}

		if opp.Momentum.MomentumType == "oversold_bounce" {
			if qty := SafeQuantity(opp.Symbol, budget, ss.SpotTicker.Last); qty > 0 {
				signals = append(signals, types.TradeSignal{
					Strategy:   "momentum",
					Symbol:     opp.Symbol,
					Market:     types.MarketSpot,
					Action:     types.SideBuy,
					Size:       qty,
					Confidence: opp.Confidence,
					Priority:   priorityMomentum,
				})
			}
			if g.cfg.IsFuturesSupported(opp.Symbol) && ss.FuturesTicker.Last > 0 {
				if qty := SafeQuantity(opp.Symbol, budget, ss.FuturesTicker.Last); qty > 0 {
					signals = append(signals, types.TradeSignal{
						Strategy:   "momentum",
						Symbol:     config.FuturesSymbol(opp.Symbol),
						Market:     types.MarketFutures,
						Action:     types.SideBuy,
						Size:       qty,
						Confidence: opp.Confidence,
						Priority:   priorityMomentum,
					})
				}
			}
		} else if g.cfg.IsFuturesSupported(opp.Symbol) && ss.FuturesTicker.Last > 0 {
			// 超买回调只做合约空头
			if qty := SafeQuantity(opp.Symbol, budget, ss.FuturesTicker.Last); qty > 0 {
				signals = append(signals, types.TradeSignal{
					Strategy:   "momentum",
					Symbol:     config.FuturesSymbol(opp.Symbol),
					Market:     types.MarketFutures,
					Action:     types.SideSell,
					Size:       qty,
					Confidence: opp.Confidence,
					Priority:   priorityMomentum,
				})
			}
		}
	}
	return signals
}
