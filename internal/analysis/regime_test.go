package analysis

import "testing"

func TestClassifyRegime(t *testing.T) {
	// 样本不足
	if r := ClassifyRegime([]float64{100, 101, 102}); r != RegimeNeutral {
		t.Errorf("expected neutral with insufficient data, got %s", r)
	}

	// 平稳小幅波动，首尾几乎不变
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 100
	}
	if r := ClassifyRegime(flat); r != RegimeRanging {
		t.Errorf("expected ranging for a flat series, got %s", r)
	}

	// 持续上涨且波动低
	trending := make([]float64, 20)
	for i := range trending {
		trending[i] = 100 + float64(i)
	}
	if r := ClassifyRegime(trending); r != RegimeTrending {
		t.Errorf("expected trending for a steady rise, got %s", r)
	}

	// 大幅震荡优先判定为volatile，即使首尾有涨幅
	volatile := make([]float64, 20)
	for i := range volatile {
		if i%2 == 0 {
			volatile[i] = 100
		} else {
			volatile[i] = 112
		}
	}
	if r := ClassifyRegime(volatile); r != RegimeVolatile {
		t.Errorf("expected volatile for a choppy series, got %s", r)
	}

	// 只用最近20个样本分类
	long := make([]float64, 50)
	for i := range long {
		long[i] = 100
	}
	for i := 30; i < 50; i++ {
		long[i] = 100 + float64(i-30)
	}
	if r := ClassifyRegime(long); r != RegimeTrending {
		t.Errorf("expected trending from the most recent window, got %s", r)
	}
}
