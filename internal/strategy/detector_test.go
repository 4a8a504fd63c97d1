package strategy

import (
	"math"
	"testing"

	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

func snapshotWith(symbol string, ss *types.SymbolSnapshot) *types.MarketSnapshot {
	ss.Symbol = symbol
	return &types.MarketSnapshot{
		Symbols: map[string]*types.SymbolSnapshot{symbol: ss},
	}
}

func findOpportunity(opps []types.Opportunity, kind types.OpportunityKind) *types.Opportunity {
	for i := range opps {
		if opps[i].Kind == kind {
			return &opps[i]
		}
	}
	return nil
}

func TestDetectArbitrage(t *testing.T) {
	d := NewDetector(0.0005)

	// 溢价0.06%超过0.05%阈值，置信度封顶1.0
	snap := snapshotWith("BTC/USDT", &types.SymbolSnapshot{
		SpotTicker:    types.Ticker{Last: 100},
		FuturesTicker: types.Ticker{Last: 100.06},
	})
	opps := d.DetectOpportunities(snap, nil)

	opp := findOpportunity(opps, types.OpportunityArbitrage)
	if opp == nil {
		t.Fatal("expected an arbitrage opportunity")
	}
	if math.Abs(opp.Confidence-1.0) > 1e-9 {
		t.Errorf("expected confidence 1.0, got %f", opp.Confidence)
	}
	if !opp.Arbitrage.LongSpotShortFutures {
		t.Error("expected long spot / short futures on a positive premium")
	}
	if math.Abs(opp.Arbitrage.Premium-0.0006) > 1e-9 {
		t.Errorf("expected premium 0.0006, got %f", opp.Arbitrage.Premium)
	}

	// 溢价在阈值以内不触发
	snap = snapshotWith("BTC/USDT", &types.SymbolSnapshot{
		SpotTicker:    types.Ticker{Last: 100},
		FuturesTicker: types.Ticker{Last: 100.03},
	})
	if findOpportunity(d.DetectOpportunities(snap, nil), types.OpportunityArbitrage) != nil {
		t.Error("expected no arbitrage inside the threshold")
	}

	// 折价方向：做空现货做多合约
	snap = snapshotWith("BTC/USDT", &types.SymbolSnapshot{
		SpotTicker:    types.Ticker{Last: 100},
		FuturesTicker: types.Ticker{Last: 99.9},
	})
	opp = findOpportunity(d.DetectOpportunities(snap, nil), types.OpportunityArbitrage)
	if opp == nil {
		t.Fatal("expected an arbitrage opportunity on a discount")
	}
	if opp.Arbitrage.LongSpotShortFutures {
		t.Error("expected short spot / long futures on a negative premium")
	}
}

func TestDetectTrend(t *testing.T) {
	d := NewDetector(0.0005)

	// 现货合约同向且足够强
	snap := snapshotWith("ETH/USDT", &types.SymbolSnapshot{
		SpotTicker:     types.Ticker{Last: 3000},
		FuturesTicker:  types.Ticker{Last: 3000},
		SpotSignals:    types.SignalBundle{Combined: 0.5},
		FuturesSignals: types.SignalBundle{Combined: 0.4},
	})
	opp := findOpportunity(d.DetectOpportunities(snap, nil), types.OpportunityTrend)
	if opp == nil {
		t.Fatal("expected a trend opportunity")
	}
	if math.Abs(opp.Confidence-0.45) > 1e-9 {
		t.Errorf("expected confidence 0.45, got %f", opp.Confidence)
	}
	if opp.Trend.Direction != "bullish" {
		t.Errorf("expected bullish direction, got %s", opp.Trend.Direction)
	}

	// 方向相反不触发
	snap = snapshotWith("ETH/USDT", &types.SymbolSnapshot{
		SpotTicker:     types.Ticker{Last: 3000},
		FuturesTicker:  types.Ticker{Last: 3000},
		SpotSignals:    types.SignalBundle{Combined: 0.5},
		FuturesSignals: types.SignalBundle{Combined: -0.4},
	})
	if findOpportunity(d.DetectOpportunities(snap, nil), types.OpportunityTrend) != nil {
		t.Error("expected no trend opportunity on conflicting directions")
	}

	// 信号太弱不触发
	snap = snapshotWith("ETH/USDT", &types.SymbolSnapshot{
		SpotTicker:     types.Ticker{Last: 3000},
		FuturesTicker:  types.Ticker{Last: 3000},
		SpotSignals:    types.SignalBundle{Combined: 0.05},
		FuturesSignals: types.SignalBundle{Combined: 0.4},
	})
	if findOpportunity(d.DetectOpportunities(snap, nil), types.OpportunityTrend) != nil {
		t.Error("expected no trend opportunity on a weak leg")
	}

	// 看空方向
	snap = snapshotWith("ETH/USDT", &types.SymbolSnapshot{
		SpotTicker:     types.Ticker{Last: 3000},
		FuturesTicker:  types.Ticker{Last: 3000},
		SpotSignals:    types.SignalBundle{Combined: -0.5},
		FuturesSignals: types.SignalBundle{Combined: -0.3},
	})
	opp = findOpportunity(d.DetectOpportunities(snap, nil), types.OpportunityTrend)
	if opp == nil || opp.Trend.Direction != "bearish" {
		t.Error("expected a bearish trend opportunity")
	}
}

func TestDetectHedge(t *testing.T) {
	d := NewDetector(0.0005)

	position := &types.Position{
		Symbol: "BTC/USDT",
		Market: types.MarketSpot,
		Side:   types.SideBuy,
		Size:   0.1,
	}

	// 多头现货 + 明显看空的合约信号 → 保护性做空
	snap := snapshotWith("BTC/USDT", &types.SymbolSnapshot{
		SpotTicker:     types.Ticker{Last: 50000},
		FuturesTicker:  types.Ticker{Last: 50000},
		FuturesSignals: types.SignalBundle{Combined: -0.5},
	})
	opp := findOpportunity(d.DetectOpportunities(snap, []*types.Position{position}), types.OpportunityHedge)
	if opp == nil {
		t.Fatal("expected a hedge opportunity")
	}
	if opp.Hedge.HedgeType != "protective_short" {
		t.Errorf("expected protective_short, got %s", opp.Hedge.HedgeType)
	}
	if math.Abs(opp.Confidence-0.5) > 1e-9 {
		t.Errorf("expected confidence 0.5, got %f", opp.Confidence)
	}
	if math.Abs(opp.Hedge.SpotSize-0.1) > 1e-9 {
		t.Errorf("expected spot size 0.1, got %f", opp.Hedge.SpotSize)
	}

	// 信号不够强不触发
	snap = snapshotWith("BTC/USDT", &types.SymbolSnapshot{
		SpotTicker:     types.Ticker{Last: 50000},
		FuturesTicker:  types.Ticker{Last: 50000},
		FuturesSignals: types.SignalBundle{Combined: -0.1},
	})
	if findOpportunity(d.DetectOpportunities(snap, []*types.Position{position}), types.OpportunityHedge) != nil {
		t.Error("expected no hedge on a weak futures signal")
	}

	// 没有现货持仓不触发
	snap = snapshotWith("BTC/USDT", &types.SymbolSnapshot{
		SpotTicker:     types.Ticker{Last: 50000},
		FuturesTicker:  types.Ticker{Last: 50000},
		FuturesSignals: types.SignalBundle{Combined: -0.5},
	})
	if findOpportunity(d.DetectOpportunities(snap, nil), types.OpportunityHedge) != nil {
		t.Error("expected no hedge without a spot position")
	}
}

func TestDetectMomentum(t *testing.T) {
	d := NewDetector(0.0005)

	// 双市场超卖
	snap := snapshotWith("SOL/USDT", &types.SymbolSnapshot{
		SpotTicker:        types.Ticker{Last: 150},
		FuturesTicker:     types.Ticker{Last: 150},
		SpotIndicators:    types.IndicatorBundle{RSI: types.ReadingOf(30)},
		FuturesIndicators: types.IndicatorBundle{RSI: types.ReadingOf(35)},
	})
	opp := findOpportunity(d.DetectOpportunities(snap, nil), types.OpportunityMomentum)
	if opp == nil {
		t.Fatal("expected a momentum opportunity")
	}
	if opp.Momentum.MomentumType != "oversold_bounce" {
		t.Errorf("expected oversold_bounce, got %s", opp.Momentum.MomentumType)
	}
	if math.Abs(opp.Confidence-0.4) > 1e-9 {
		t.Errorf("expected confidence 0.4, got %f", opp.Confidence)
	}

	// 双市场超买
	snap = snapshotWith("SOL/USDT", &types.SymbolSnapshot{
		SpotTicker:        types.Ticker{Last: 150},
		FuturesTicker:     types.Ticker{Last: 150},
		SpotIndicators:    types.IndicatorBundle{RSI: types.ReadingOf(65)},
		FuturesIndicators: types.IndicatorBundle{RSI: types.ReadingOf(70)},
	})
	opp = findOpportunity(d.DetectOpportunities(snap, nil), types.OpportunityMomentum)
	if opp == nil || opp.Momentum.MomentumType != "overbought_correction" {
		t.Error("expected an overbought_correction opportunity")
	}

	// 只有一个市场超卖不触发
	snap = snapshotWith("SOL/USDT", &types.SymbolSnapshot{
		SpotTicker:        types.Ticker{Last: 150},
		FuturesTicker:     types.Ticker{Last: 150},
		SpotIndicators:    types.IndicatorBundle{RSI: types.ReadingOf(30)},
		FuturesIndicators: types.IndicatorBundle{RSI: types.ReadingOf(55)},
	})
	if findOpportunity(d.DetectOpportunities(snap, nil), types.OpportunityMomentum) != nil {
		t.Error("expected no momentum when only one market is oversold")
	}

	// RSI缺失不触发
	snap = snapshotWith("SOL/USDT", &types.SymbolSnapshot{
		SpotTicker:        types.Ticker{Last: 150},
		FuturesTicker:     types.Ticker{Last: 150},
		FuturesIndicators: types.IndicatorBundle{RSI: types.ReadingOf(30)},
	})
	if findOpportunity(d.DetectOpportunities(snap, nil), types.OpportunityMomentum) != nil {
		t.Error("expected no momentum with a missing RSI reading")
	}
}

func TestDetectSkipsInvalidPrices(t *testing.T) {
	d := NewDetector(0.0005)

	// 合约价格缺失时整个币种跳过
	snap := snapshotWith("BTC/USDT", &types.SymbolSnapshot{
		SpotTicker:        types.Ticker{Last: 50000},
		FuturesTicker:     types.Ticker{Last: 0},
		SpotSignals:       types.SignalBundle{Combined: 0.8},
		FuturesSignals:    types.SignalBundle{Combined: 0.8},
		SpotIndicators:    types.IndicatorBundle{RSI: types.ReadingOf(20)},
		FuturesIndicators: types.IndicatorBundle{RSI: types.ReadingOf(20)},
	})
	if opps := d.DetectOpportunities(snap, nil); len(opps) != 0 {
		t.Errorf("expected no opportunities for an invalid price, got %d", len(opps))
	}

	if opps := d.DetectOpportunities(nil, nil); opps != nil {
		t.Error("expected nil for a nil snapshot")
	}
}

func TestDetectDeterministicOrder(t *testing.T) {
	d := NewDetector(0.0005)

	snap := &types.MarketSnapshot{Symbols: map[string]*types.SymbolSnapshot{}}
	for _, symbol := range []string{"ETH/USDT", "BTC/USDT", "SOL/USDT"} {
		snap.Symbols[symbol] = &types.SymbolSnapshot{
			Symbol:        symbol,
			SpotTicker:    types.Ticker{Last: 100},
			FuturesTicker: types.Ticker{Last: 100.1},
		}
	}

	first := d.DetectOpportunities(snap, nil)
	second := d.DetectOpportunities(snap, nil)
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 arbitrage opportunities, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Symbol != second[i].Symbol {
			t.Errorf("expected stable iteration order, got %s vs %s at %d",
				first[i].Symbol, second[i].Symbol, i)
		}
	}
	// 按符号字典序输出
	if first[0].Symbol != "BTC/USDT" || first[1].Symbol != "ETH/USDT" || first[2].Symbol != "SOL/USDT" {
		t.Errorf("expected sorted symbol order, got %s/%s/%s",
			first[0].Symbol, first[1].Symbol, first[2].Symbol)
	}
}
