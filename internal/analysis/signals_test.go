package analysis

import (
	"math"
	"testing"

	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

func reading(v float64) types.Reading {
	return types.ReadingOf(v)
}

func TestGenerateSignalsRSIBoundaries(t *testing.T) {
	th := DefaultThresholds()

	cases := []struct {
		rsi      float64
		expected float64
	}{
		{25, 1},
		{75, -1},
		{50, 0},
		// 阈值边界严格判定：恰好等于阈值输出中性
		{30, 0},
		{70, 0},
	}
	for _, c := range cases {
		bundle := GenerateSignals(types.IndicatorBundle{RSI: reading(c.rsi)}, th)
		if bundle.RSI != c.expected {
			t.Errorf("RSI %.0f: expected signal %.0f, got %.0f", c.rsi, c.expected, bundle.RSI)
		}
	}
}

func TestGenerateSignalsMACDFlip(t *testing.T) {
	th := DefaultThresholds()

	// 柱状图由负转正看多
	bundle := GenerateSignals(types.IndicatorBundle{
		MACDHist:     reading(0.3),
		MACDHistPrev: reading(-0.5),
	}, th)
	if bundle.MACD != 1 {
		t.Errorf("expected MACD signal 1 on a bullish flip, got %.0f", bundle.MACD)
	}

	// 由正转负看空
	bundle = GenerateSignals(types.IndicatorBundle{
		MACDHist:     reading(-0.2),
		MACDHistPrev: reading(0.5),
	}, th)
	if bundle.MACD != -1 {
		t.Errorf("expected MACD signal -1 on a bearish flip, got %.0f", bundle.MACD)
	}

	// 没有翻转则中性
	bundle = GenerateSignals(types.IndicatorBundle{
		MACDHist:     reading(0.4),
		MACDHistPrev: reading(0.2),
	}, th)
	if bundle.MACD != 0 {
		t.Errorf("expected MACD signal 0 without a flip, got %.0f", bundle.MACD)
	}

	// 缺少前值时不判定，合并信号不计入该指标
	bundle = GenerateSignals(types.IndicatorBundle{MACDHist: reading(0.4)}, th)
	if bundle.MACD != 0 || bundle.Combined != 0 {
		t.Errorf("expected neutral output without previous histogram, got macd=%.0f combined=%f",
			bundle.MACD, bundle.Combined)
	}
}

func TestGenerateSignalsBollinger(t *testing.T) {
	th := DefaultThresholds()

	base := types.IndicatorBundle{
		BBUpper: reading(110),
		BBLower: reading(90),
	}

	base.Price = reading(89)
	if s := GenerateSignals(base, th); s.Bollinger != 1 {
		t.Errorf("expected bollinger signal 1 below the lower band, got %.0f", s.Bollinger)
	}

	base.Price = reading(111)
	if s := GenerateSignals(base, th); s.Bollinger != -1 {
		t.Errorf("expected bollinger signal -1 above the upper band, got %.0f", s.Bollinger)
	}

	// 触轨也算（价格等于轨道）
	base.Price = reading(90)
	if s := GenerateSignals(base, th); s.Bollinger != 1 {
		t.Errorf("expected bollinger signal 1 at the lower band, got %.0f", s.Bollinger)
	}

	base.Price = reading(100)
	if s := GenerateSignals(base, th); s.Bollinger != 0 {
		t.Errorf("expected bollinger signal 0 inside the bands, got %.0f", s.Bollinger)
	}
}

func TestGenerateSignalsStochastic(t *testing.T) {
	th := DefaultThresholds()

	if s := GenerateSignals(types.IndicatorBundle{StochK: reading(15)}, th); s.Stochastic != 1 {
		t.Errorf("expected stochastic signal 1 below %v, got %.0f", th.StochLow, s.Stochastic)
	}
	if s := GenerateSignals(types.IndicatorBundle{StochK: reading(85)}, th); s.Stochastic != -1 {
		t.Errorf("expected stochastic signal -1 above %v, got %.0f", th.StochHigh, s.Stochastic)
	}
	if s := GenerateSignals(types.IndicatorBundle{StochK: reading(20)}, th); s.Stochastic != 0 {
		t.Errorf("expected stochastic signal 0 at the boundary, got %.0f", s.Stochastic)
	}
}

func TestGenerateSignalsCombined(t *testing.T) {
	th := DefaultThresholds()

	// 全部指标缺失时合并信号为0
	empty := GenerateSignals(types.IndicatorBundle{}, th)
	if empty.Combined != 0 {
		t.Errorf("expected combined 0 with no valid indicators, got %f", empty.Combined)
	}

	// 单一有效信号：合并即该信号本身
	single := GenerateSignals(types.IndicatorBundle{RSI: reading(25)}, th)
	if single.Combined != 1 {
		t.Errorf("expected combined 1 with a single bullish signal, got %f", single.Combined)
	}

	// 一多一中性：(1+0)/2
	mixed := GenerateSignals(types.IndicatorBundle{
		RSI:    reading(25),
		StochK: reading(50),
	}, th)
	if math.Abs(mixed.Combined-0.5) > 1e-9 {
		t.Errorf("expected combined 0.5, got %f", mixed.Combined)
	}

	// 合并信号不越界
	all := GenerateSignals(types.IndicatorBundle{
		RSI:          reading(25),
		MACDHist:     reading(0.3),
		MACDHistPrev: reading(-0.1),
		Price:        reading(89),
		BBUpper:      reading(110),
		BBLower:      reading(90),
		StochK:       reading(10),
	}, th)
	if all.Combined < -1 || all.Combined > 1 {
		t.Errorf("expected combined in [-1, 1], got %f", all.Combined)
	}
	if math.Abs(all.Combined-1.0) > 1e-9 {
		t.Errorf("expected combined 1.0 with four agreeing signals, got %f", all.Combined)
	}
}
