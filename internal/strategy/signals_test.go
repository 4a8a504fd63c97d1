package strategy

import (
	"math"
	"testing"

	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

func generatorConfig() *config.Config {
	return &config.Config{
		FuturesSupportedSymbols: []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"},
		BaseConfidenceThreshold: 0.25,
		MaxSignalsPerCycle:      10,
		MinOrderNotional:        5.0,
	}
}

func portfolioState(spotFree, futuresFree float64) *types.PortfolioState {
	return &types.PortfolioState{
		TotalBalance:       spotFree + futuresFree,
		SpotFreeBalance:    spotFree,
		FuturesFreeBalance: futuresFree,
	}
}

func TestArbitrageSignalsBothLegs(t *testing.T) {
	g := NewSignalGenerator(generatorConfig())

	opps := []types.Opportunity{{
		Kind:       types.OpportunityArbitrage,
		Symbol:     "BTC/USDT",
		Confidence: 1.0,
		Arbitrage: &types.ArbitrageDetail{
			Premium:              0.001,
			SpotPrice:            50000,
			FuturesPrice:         50050,
			LongSpotShortFutures: true,
			ExpectedProfit:       0.001,
		},
	}}
	snap := &types.MarketSnapshot{Symbols: map[string]*types.SymbolSnapshot{}}

	signals := g.GeneratePortfolioSignals(opps, portfolioState(500, 500), snap, nil)
	if len(signals) != 2 {
		t.Fatalf("expected 2 arbitrage legs, got %d", len(signals))
	}

	spot, futures := signals[0], signals[1]
	if spot.Market == types.MarketFutures {
		spot, futures = futures, spot
	}
	if spot.Action != types.SideBuy || futures.Action != types.SideSell {
		t.Errorf("expected buy spot / sell futures, got %s / %s", spot.Action, futures.Action)
	}
	if futures.Symbol != "BTC/USDT:USDT" {
		t.Errorf("expected futures symbol BTC/USDT:USDT, got %s", futures.Symbol)
	}
	// 每腿预算 min(500*0.8, 100) = 100 USDT
	if math.Abs(spot.Size-0.002) > 1e-9 {
		t.Errorf("expected spot size 0.002, got %f", spot.Size)
	}
	if spot.Priority != 1 || futures.Priority != 1 {
		t.Errorf("expected priority 1 for arbitrage, got %d/%d", spot.Priority, futures.Priority)
	}
}

func TestArbitrageSpotOnlyFallback(t *testing.T) {
	cfg := generatorConfig()
	cfg.FuturesSupportedSymbols = nil
	g := NewSignalGenerator(cfg)

	long := []types.Opportunity{{
		Kind:       types.OpportunityArbitrage,
		Symbol:     "BTC/USDT",
		Confidence: 1.0,
		Arbitrage: &types.ArbitrageDetail{
			SpotPrice:            50000,
			FuturesPrice:         50050,
			LongSpotShortFutures: true,
			ExpectedProfit:       0.001,
		},
	}}
	snap := &types.MarketSnapshot{Symbols: map[string]*types.SymbolSnapshot{}}

	signals := g.GeneratePortfolioSignals(long, portfolioState(500, 500), snap, nil)
	if len(signals) != 1 {
		t.Fatalf("expected a single spot-only leg, got %d signals", len(signals))
	}
	if signals[0].Strategy != "arbitrage_spot_only" || signals[0].Action != types.SideBuy {
		t.Errorf("unexpected fallback signal: %+v", signals[0])
	}

	// 折价方向需要做空现货，无法降级
	short := []types.Opportunity{{
		Kind:       types.OpportunityArbitrage,
		Symbol:     "BTC/USDT",
		Confidence: 1.0,
		Arbitrage: &types.ArbitrageDetail{
			SpotPrice:            50000,
			FuturesPrice:         49950,
			LongSpotShortFutures: false,
			ExpectedProfit:       0.001,
		},
	}}
	if signals := g.GeneratePortfolioSignals(short, portfolioState(500, 500), snap, nil); len(signals) != 0 {
		t.Errorf("expected no fallback for a short-spot arbitrage, got %d signals", len(signals))
	}
}

func TestTrendSellRequiresHoldings(t *testing.T) {
	g := NewSignalGenerator(generatorConfig())

	opps := []types.Opportunity{{
		Kind:       types.OpportunityTrend,
		Symbol:     "ETH/USDT",
		Confidence: 0.5,
		Trend:      &types.TrendDetail{Direction: "bearish"},
	}}
	snap := &types.MarketSnapshot{Symbols: map[string]*types.SymbolSnapshot{
		"ETH/USDT": {
			Symbol:        "ETH/USDT",
			SpotTicker:    types.Ticker{Last: 3000},
			FuturesTicker: types.Ticker{Last: 3000},
		},
	}}

	// 无现货库存：只出合约空头腿
	signals := g.GeneratePortfolioSignals(opps, portfolioState(1000, 1000), snap, nil)
	for _, sig := range signals {
		if sig.Market == types.MarketSpot {
			t.Errorf("expected no spot sell without holdings, got %+v", sig)
		}
	}
	if len(signals) != 1 {
		t.Fatalf("expected 1 futures leg, got %d", len(signals))
	}
	if signals[0].Action != types.SideSell {
		t.Errorf("expected a sell action, got %s", signals[0].Action)
	}

	// 有库存时现货卖出预算受持有市值约束
	holdings := map[string]float64{"ETH/USDT": 0.005}
	signals = g.GeneratePortfolioSignals(opps, portfolioState(1000, 1000), snap, holdings)
	var spotLeg *types.TradeSignal
	for i := range signals {
		if signals[i].Market == types.MarketSpot {
			spotLeg = &signals[i]
		}
	}
	if spotLeg == nil {
		t.Fatal("expected a spot sell leg with holdings")
	}
	// 持有市值15 USDT低于预算30 USDT，数量限制在0.005
	if spotLeg.Size > 0.005+1e-9 {
		t.Errorf("expected spot sell capped at holdings 0.005, got %f", spotLeg.Size)
	}
}

func TestHedgeSignals(t *testing.T) {
	g := NewSignalGenerator(generatorConfig())
	snap := &types.MarketSnapshot{Symbols: map[string]*types.SymbolSnapshot{}}

	opps := []types.Opportunity{{
		Kind:       types.OpportunityHedge,
		Symbol:     "BTC/USDT",
		Confidence: 0.5,
		Hedge: &types.HedgeDetail{
			HedgeType: "protective_short",
			SpotSide:  types.SideBuy,
			SpotSize:  0.1,
		},
	}}

	signals := g.GeneratePortfolioSignals(opps, portfolioState(500, 500), snap, nil)
	if len(signals) != 1 {
		t.Fatalf("expected 1 hedge signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Market != types.MarketFutures || sig.Action != types.SideSell {
		t.Errorf("expected a futures sell, got %s %s", sig.Market, sig.Action)
	}
	// 对冲规模为现货仓位的八成
	if math.Abs(sig.Size-0.08) > 1e-9 {
		t.Errorf("expected hedge size 0.08, got %f", sig.Size)
	}

	// 置信度0.4及以下丢弃
	opps[0].Confidence = 0.4
	if signals := g.GeneratePortfolioSignals(opps, portfolioState(500, 500), snap, nil); len(signals) != 0 {
		t.Errorf("expected no hedge at confidence 0.4, got %d signals", len(signals))
	}
}

func TestMomentumOverboughtFuturesOnly(t *testing.T) {
	g := NewSignalGenerator(generatorConfig())

	opps := []types.Opportunity{{
		Kind:       types.OpportunityMomentum,
		Symbol:     "SOL/USDT",
		Confidence: 0.6,
		Momentum:   &types.MomentumDetail{MomentumType: "overbought_correction"},
	}}
	snap := &types.MarketSnapshot{Symbols: map[string]*types.SymbolSnapshot{
		"SOL/USDT": {
			Symbol:        "SOL/USDT",
			SpotTicker:    types.Ticker{Last: 150},
			FuturesTicker: types.Ticker{Last: 150},
		},
	}}

	// 超买回调只做合约空头，不做现货
	signals := g.GeneratePortfolioSignals(opps, portfolioState(1000, 1000), snap, nil)
	if len(signals) != 1 {
		t.Fatalf("expected 1 momentum signal, got %d", len(signals))
	}
	if signals[0].Market != types.MarketFutures || signals[0].Action != types.SideSell {
		t.Errorf("expected a futures sell, got %s %s", signals[0].Market, signals[0].Action)
	}

	// 低置信度丢弃
	opps[0].Confidence = 0.5
	if signals := g.GeneratePortfolioSignals(opps, portfolioState(1000, 1000), snap, nil); len(signals) != 0 {
		t.Errorf("expected no momentum at confidence 0.5, got %d signals", len(signals))
	}
}

func TestGenerateSignalsOrderingAndCap(t *testing.T) {
	cfg := generatorConfig()
	cfg.MaxSignalsPerCycle = 2
	g := NewSignalGenerator(cfg)

	opps := []types.Opportunity{
		{
			Kind:       types.OpportunityMomentum,
			Symbol:     "SOL/USDT",
			Confidence: 0.6,
			Momentum:   &types.MomentumDetail{MomentumType: "overbought_correction"},
		},
		{
			Kind:       types.OpportunityArbitrage,
			Symbol:     "BTC/USDT",
			Confidence: 1.0,
			Arbitrage: &types.ArbitrageDetail{
				SpotPrice:            50000,
				FuturesPrice:         50050,
				LongSpotShortFutures: true,
				ExpectedProfit:       0.001,
			},
		},
	}
	snap := &types.MarketSnapshot{Symbols: map[string]*types.SymbolSnapshot{
		"SOL/USDT": {
			Symbol:        "SOL/USDT",
			SpotTicker:    types.Ticker{Last: 150},
			FuturesTicker: types.Ticker{Last: 150},
		},
	}}

	signals := g.GeneratePortfolioSignals(opps, portfolioState(1000, 1000), snap, nil)
	if len(signals) != 2 {
		t.Fatalf("expected signals truncated to 2, got %d", len(signals))
	}
	// 套利优先级最高，截断后动量信号被挤掉
	for _, sig := range signals {
		if sig.Strategy != "arbitrage" {
			t.Errorf("expected only arbitrage signals after truncation, got %s", sig.Strategy)
		}
	}
}

func TestGenerateSignalsNoFreeBalance(t *testing.T) {
	g := NewSignalGenerator(generatorConfig())
	snap := &types.MarketSnapshot{Symbols: map[string]*types.SymbolSnapshot{}}

	opps := []types.Opportunity{{
		Kind:       types.OpportunityArbitrage,
		Symbol:     "BTC/USDT",
		Confidence: 1.0,
		Arbitrage: &types.ArbitrageDetail{
			SpotPrice:            50000,
			FuturesPrice:         50050,
			LongSpotShortFutures: true,
		},
	}}

	if signals := g.GeneratePortfolioSignals(opps, portfolioState(2, 3), snap, nil); len(signals) != 0 {
		t.Errorf("expected no signals with exhausted balances, got %d", len(signals))
	}
	if signals := g.GeneratePortfolioSignals(opps, nil, snap, nil); signals != nil {
		t.Error("expected nil for a nil portfolio state")
	}
}
