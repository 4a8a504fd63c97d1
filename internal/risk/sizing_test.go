package risk

import (
	"context"
	"math"
	"testing"

	"github.com/yuechangmingzou/hybrid-go/internal/analysis"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

func testLimits() SizingLimits {
	return SizingLimits{
		MaxPositionSize:  0.2,
		RiskPerTrade:     0.02,
		MinTradeNotional: 10.0,
	}
}

func TestDynamicKellyFraction(t *testing.T) {
	// 趋势市盈亏比2：f = (0.58*2 - 0.42)/2 = 0.37，裁剪到0.25
	kelly := DynamicKellyFraction(0.58, analysis.RegimeTrending)
	if math.Abs(kelly-0.25) > 1e-9 {
		t.Errorf("expected kelly clamped to 0.25, got %f", kelly)
	}

	// 胜率100%也不超过上限
	if kelly := DynamicKellyFraction(1.0, analysis.RegimeRanging); math.Abs(kelly-0.25) > 1e-9 {
		t.Errorf("expected kelly 0.25 at a perfect win rate, got %f", kelly)
	}

	// 胜率1.5视为1
	if kelly := DynamicKellyFraction(1.5, analysis.RegimeTrending); math.Abs(kelly-0.25) > 1e-9 {
		t.Errorf("expected out-of-range win rate to be clamped, got %f", kelly)
	}

	// 高波动市盈亏比1：胜率50%的期望为零
	if kelly := DynamicKellyFraction(0.5, analysis.RegimeVolatile); kelly != 0 {
		t.Errorf("expected kelly 0 at break-even, got %f", kelly)
	}

	// 非法胜率
	if kelly := DynamicKellyFraction(0, analysis.RegimeTrending); kelly != 0 {
		t.Errorf("expected kelly 0 for zero win rate, got %f", kelly)
	}
	if kelly := DynamicKellyFraction(-0.5, analysis.RegimeTrending); kelly != 0 {
		t.Errorf("expected kelly 0 for negative win rate, got %f", kelly)
	}
	if kelly := DynamicKellyFraction(math.NaN(), analysis.RegimeTrending); kelly != 0 {
		t.Errorf("expected kelly 0 for NaN win rate, got %f", kelly)
	}
}

func TestVolatilityAdjustment(t *testing.T) {
	cases := []struct {
		vol      float64
		expected float64
	}{
		{0.06, 0.5},
		{0.04, 0.7},
		{0.02, 1.0},
		{0.005, 1.2},
	}
	for _, c := range cases {
		if adj := VolatilityAdjustment(c.vol); math.Abs(adj-c.expected) > 1e-9 {
			t.Errorf("volatility %.3f: expected %.1f, got %f", c.vol, c.expected, adj)
		}
	}
}

func TestRegimeMultiplier(t *testing.T) {
	cases := map[string]float64{
		analysis.RegimeTrending: 1.3,
		analysis.RegimeRanging:  0.8,
		analysis.RegimeVolatile: 0.6,
		analysis.RegimeNeutral:  1.0,
	}
	for regime, expected := range cases {
		if m := RegimeMultiplier(regime); math.Abs(m-expected) > 1e-9 {
			t.Errorf("regime %s: expected %.1f, got %f", regime, expected, m)
		}
	}
}

func TestLiquidityAdjustment(t *testing.T) {
	if adj := LiquidityAdjustment("high"); math.Abs(adj-1.1) > 1e-9 {
		t.Errorf("expected 1.1 for high liquidity, got %f", adj)
	}
	if adj := LiquidityAdjustment("low"); math.Abs(adj-0.7) > 1e-9 {
		t.Errorf("expected 0.7 for low liquidity, got %f", adj)
	}
	if adj := LiquidityAdjustment("normal"); math.Abs(adj-1.0) > 1e-9 {
		t.Errorf("expected 1.0 for normal liquidity, got %f", adj)
	}
}

func TestAdaptiveSize(t *testing.T) {
	s := NewSizer(testLimits(), FixedStats{}, NewPositionBook())
	ctx := context.Background()

	cond := MarketConditions{
		Volatility: 0.02,
		Regime:     analysis.RegimeTrending,
		Liquidity:  "normal",
	}

	// BTC基准胜率0.58，趋势市Kelly封顶0.25：
	// fraction = 0.25*0.5*1.0*1.3 = 0.1625，名义1625 USDT
	size := s.AdaptiveSize(ctx, "BTC/USDT", 0.5, 10000, 50000, cond)
	expected := 10000 * 0.1625 / 50000
	if math.Abs(size-expected) > 1e-9 {
		t.Errorf("expected size %f, got %f", expected, size)
	}

	// 同一输入必然得到同一输出
	again := s.AdaptiveSize(ctx, "BTC/USDT", 0.5, 10000, 50000, cond)
	if size != again {
		t.Errorf("expected deterministic sizing, got %f vs %f", size, again)
	}
}

func TestAdaptiveSizeFallbacks(t *testing.T) {
	s := NewSizer(testLimits(), FixedStats{}, NewPositionBook())
	ctx := context.Background()
	cond := MarketConditions{Volatility: 0.02, Regime: analysis.RegimeNeutral, Liquidity: "normal"}

	// 信号强度为零：保守回退到余额1%
	size := s.AdaptiveSize(ctx, "BTC/USDT", 0, 10000, 50000, cond)
	if math.Abs(size-0.002) > 1e-9 {
		t.Errorf("expected fallback size 0.002, got %f", size)
	}

	// NaN强度同样回退
	size = s.AdaptiveSize(ctx, "BTC/USDT", math.NaN(), 10000, 50000, cond)
	if math.Abs(size-0.002) > 1e-9 {
		t.Errorf("expected fallback size 0.002 for NaN strength, got %f", size)
	}

	// 非法价格/余额直接返回0
	if size := s.AdaptiveSize(ctx, "BTC/USDT", 0.5, 10000, 0, cond); size != 0 {
		t.Errorf("expected 0 for invalid price, got %f", size)
	}
	if size := s.AdaptiveSize(ctx, "BTC/USDT", 0.5, 0, 50000, cond); size != 0 {
		t.Errorf("expected 0 for invalid balance, got %f", size)
	}
}

func TestAdaptiveSizeMinNotional(t *testing.T) {
	s := NewSizer(testLimits(), FixedStats{}, NewPositionBook())
	ctx := context.Background()
	cond := MarketConditions{Volatility: 0.02, Regime: analysis.RegimeTrending, Liquidity: "normal"}

	// 余额50：名义 50*0.1625 = 8.125 低于10 USDT门槛，整笔放弃
	if size := s.AdaptiveSize(ctx, "BTC/USDT", 0.5, 50, 50000, cond); size != 0 {
		t.Errorf("expected 0 below the minimum trade notional, got %f", size)
	}
}

func TestApplySafetyLimitsRiskCap(t *testing.T) {
	s := NewSizer(testLimits(), FixedStats{}, NewPositionBook())

	// 风险预算：balance*0.02/0.05 = balance*0.4，高于仓位上限时不起作用
	size := s.applySafetyLimits(0.5, 10000, 100)
	// fraction裁剪到0.2 → 名义2000，风险上限4000不约束
	if math.Abs(size-20.0) > 1e-9 {
		t.Errorf("expected size 20 after the position cap, got %f", size)
	}

	// 收紧单笔风险预算后名义受riskCap约束
	tight := NewSizer(SizingLimits{MaxPositionSize: 0.2, RiskPerTrade: 0.005, MinTradeNotional: 10}, FixedStats{}, NewPositionBook())
	size = tight.applySafetyLimits(0.5, 10000, 100)
	// riskCap = 10000*0.005/0.05 = 1000
	if math.Abs(size-10.0) > 1e-9 {
		t.Errorf("expected size 10 under the risk cap, got %f", size)
	}

	if size := s.applySafetyLimits(0, 10000, 100); size != 0 {
		t.Errorf("expected 0 for a non-positive fraction, got %f", size)
	}
}

func TestCorrelationAdjustment(t *testing.T) {
	book := NewPositionBook()
	s := NewSizer(testLimits(), FixedStats{}, book)

	// 空账本不打折
	if adj := s.correlationAdjustment("BTC/USDT"); math.Abs(adj-1.0) > 1e-9 {
		t.Errorf("expected 1.0 with no positions, got %f", adj)
	}

	// 已持有同一标的：相关性1.0 → 折扣0.5
	book.Register("BTC/USDT", types.MarketSpot, types.SideBuy, 0.1, 50000)
	if adj := s.correlationAdjustment("BTC/USDT"); math.Abs(adj-0.5) > 1e-9 {
		t.Errorf("expected 0.5 against an identical holding, got %f", adj)
	}

	// 主流币对主流币：0.8 → 折扣0.7
	if adj := s.correlationAdjustment("ETH/USDT"); math.Abs(adj-0.7) > 1e-9 {
		t.Errorf("expected 0.7 between majors, got %f", adj)
	}

	// 主流币对山寨币：0.6 → 折扣0.9（0.6不满足>0.6）
	if adj := s.correlationAdjustment("TRX/USDT"); math.Abs(adj-0.9) > 1e-9 {
		t.Errorf("expected 0.9 major-vs-minor, got %f", adj)
	}
}
