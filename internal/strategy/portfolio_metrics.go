package strategy

import (
	"time"

	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

// PortfolioMetrics 组合体检指标
// 每周期从组合状态和持仓账本汇总一次，供状态接口展示
type PortfolioMetrics struct {
	TotalBalance     float64 `json:"total_balance"`
	SpotRatio        float64 `json:"spot_ratio"`
	FuturesRatio     float64 `json:"futures_ratio"`
	SpotDeviation    float64 `json:"spot_deviation"`
	FuturesDeviation float64 `json:"futures_deviation"`
	LeverageRatio    float64 `json:"leverage_ratio"`
	SpotPositions    int     `json:"spot_positions"`
	FuturesPositions int     `json:"futures_positions"`
	SpotNotional     float64 `json:"spot_notional"`
	FuturesNotional  float64 `json:"futures_notional"`
	UnrealizedPnl    float64 `json:"unrealized_pnl"`
	Timestamp        int64   `json:"timestamp"`
}

// ComputePortfolioMetrics 汇总组合体检指标
// 偏差为带符号的实际比例减目标比例，杠杆率为合约持仓名义价值与合约余额之比
func ComputePortfolioMetrics(state *types.PortfolioState, positions []*types.Position) PortfolioMetrics {
	m := PortfolioMetrics{Timestamp: time.Now().Unix()}
	if state == nil {
		return m
	}

	m.TotalBalance = state.TotalBalance
	m.SpotRatio = state.SpotRatio
	m.FuturesRatio = state.FuturesRatio
	m.SpotDeviation = state.SpotRatio - state.TargetSpotRatio
	m.FuturesDeviation = state.FuturesRatio - state.TargetFuturesRatio

	for _, pos := range positions {
		notional := pos.Notional()
		m.UnrealizedPnl += pos.UnrealizedPnl
		if pos.Market == types.MarketFutures {
			m.FuturesPositions++
			m.FuturesNotional += notional
		} else {
			m.SpotPositions++
			m.SpotNotional += notional
		}
	}

	if state.FuturesBalance > 0 {
		m.LeverageRatio = m.FuturesNotional / state.FuturesBalance
	}

	return m
}
