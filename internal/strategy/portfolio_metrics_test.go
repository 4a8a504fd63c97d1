package strategy

import (
	"math"
	"testing"

	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

func TestComputePortfolioMetricsDeviations(t *testing.T) {
	state := &types.PortfolioState{
		TotalBalance:       1000,
		SpotBalance:        600,
		FuturesBalance:     400,
		SpotRatio:          0.6,
		FuturesRatio:       0.4,
		TargetSpotRatio:    0.4,
		TargetFuturesRatio: 0.6,
	}

	m := ComputePortfolioMetrics(state, nil)

	if math.Abs(m.SpotDeviation-0.2) > 1e-9 {
		t.Errorf("expected spot deviation 0.2, got %f", m.SpotDeviation)
	}
	if math.Abs(m.FuturesDeviation-(-0.2)) > 1e-9 {
		t.Errorf("expected futures deviation -0.2, got %f", m.FuturesDeviation)
	}
	if m.SpotPositions != 0 || m.FuturesPositions != 0 {
		t.Errorf("expected no positions, got %d spot %d futures", m.SpotPositions, m.FuturesPositions)
	}
	if m.LeverageRatio != 0 {
		t.Errorf("expected zero leverage without positions, got %f", m.LeverageRatio)
	}
}

func TestComputePortfolioMetricsLeverage(t *testing.T) {
	state := &types.PortfolioState{
		TotalBalance:   1000,
		SpotBalance:    500,
		FuturesBalance: 500,
		SpotRatio:      0.5,
		FuturesRatio:   0.5,
	}
	positions := []*types.Position{
		{
			Symbol: "BTC/USDT", Market: types.MarketSpot, Side: types.SideBuy,
			Size: 0.004, CurrentPrice: 50000, UnrealizedPnl: 10,
		},
		{
			Symbol: "BTC/USDT:USDT", Market: types.MarketFutures, Side: types.SideSell,
			Size: 0.02, CurrentPrice: 50000, UnrealizedPnl: -25,
		},
	}

	m := ComputePortfolioMetrics(state, positions)

	if m.SpotPositions != 1 || m.FuturesPositions != 1 {
		t.Errorf("expected 1 spot and 1 futures position, got %d/%d", m.SpotPositions, m.FuturesPositions)
	}
	if math.Abs(m.SpotNotional-200) > 1e-9 {
		t.Errorf("expected spot notional 200, got %f", m.SpotNotional)
	}
	if math.Abs(m.FuturesNotional-1000) > 1e-9 {
		t.Errorf("expected futures notional 1000, got %f", m.FuturesNotional)
	}
	// 杠杆率 = 合约名义价值1000 / 合约余额500
	if math.Abs(m.LeverageRatio-2.0) > 1e-9 {
		t.Errorf("expected leverage ratio 2.0, got %f", m.LeverageRatio)
	}
	if math.Abs(m.UnrealizedPnl-(-15)) > 1e-9 {
		t.Errorf("expected unrealized pnl -15, got %f", m.UnrealizedPnl)
	}
}

func TestComputePortfolioMetricsNilState(t *testing.T) {
	m := ComputePortfolioMetrics(nil, nil)
	if m.TotalBalance != 0 || m.LeverageRatio != 0 {
		t.Errorf("expected zero metrics for nil state, got %+v", m)
	}
}
