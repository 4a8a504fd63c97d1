package analysis

import (
	"math"

	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

// 验证评分权重
const (
	weightConsistency = 0.25
	weightVolume      = 0.30
	weightRegime      = 0.20
	weightNoise       = 0.25

	// 综合置信度高于该值才算有效信号
	validConfidenceFloor = 0.25
)

// MarketContext 信号验证所需的市场上下文
type MarketContext struct {
	Volume        float64
	AvgVolume     float64
	HasVolume     bool
	PriceHistory  []float64
	SignalHistory []float64
}

// Validation 信号验证结果
type Validation struct {
	Valid              bool    `json:"valid"`
	Confidence         float64 `json:"confidence"`
	Consistency        float64 `json:"consistency"`
	VolumeConfirmation float64 `json:"volume_confirmation"`
	RegimeScore        float64 `json:"regime_score"`
	NoiseScore         float64 `json:"noise_score"`
}

// ValidateSignal 对合并信号做多因子验证
// 纯函数：相同输入必然得到相同输出，便于复算和测试
func ValidateSignal(signals types.SignalBundle, mctx MarketContext) Validation {
	v := Validation{
		Consistency:        consistencyScore(signals),
		VolumeConfirmation: volumeScore(mctx),
		RegimeScore:        regimeScore(mctx.PriceHistory),
		NoiseScore:         noiseScore(signals.Combined, mctx.SignalHistory),
	}

	v.Confidence = weightConsistency*v.Consistency +
		weightVolume*v.VolumeConfirmation +
		weightRegime*v.RegimeScore +
		weightNoise*v.NoiseScore
	v.Valid = v.Confidence > validConfidenceFloor

	return v
}

// consistencyScore 子信号一致性：与合并信号同向的非中性子信号占比
func consistencyScore(signals types.SignalBundle) float64 {
	if math.Abs(signals.Combined) < 0.1 {
		return 0
	}

	direction := 1.0
	if signals.Combined < 0 {
		direction = -1.0
	}

	subs := []float64{signals.RSI, signals.MACD, signals.Bollinger, signals.Stochastic}
	total := 0
	agreeing := 0
	for _, s := range subs {
		if math.Abs(s) < 0.1 {
			continue
		}
		total++
		if s*direction > 0 {
			agreeing++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(agreeing) / float64(total)
}

// volumeScore 成交量确认：放量加分，缩量减分，数据缺失给中性分
func volumeScore(mctx MarketContext) float64 {
	if !mctx.HasVolume || mctx.AvgVolume <= 0 {
		return 0.5
	}

	ratio := mctx.Volume / mctx.AvgVolume
	switch {
	case ratio > 1.5:
		return 0.9
	case ratio > 1.2:
		return 0.7
	case ratio > 0.8:
		return 0.5
	default:
		return 0.2
	}
}

// regimeScore 市场状态适配度：趋势市给高分，高波动给低分
func regimeScore(prices []float64) float64 {
	if len(prices) < 20 {
		return 0.5
	}

	window := prices[len(prices)-20:]
	trend := 0.0
	if window[0] > 0 {
		trend = math.Abs((window[len(window)-1] - window[0]) / window[0])
	}
	vol := pctChangeStd(window)

	switch {
	case trend > 0.05 && vol < 0.03:
		return 0.9
	case trend > 0.02 && vol < 0.05:
		return 0.7
	case vol > 0.05:
		return 0.3
	default:
		return 0.5
	}
}

// noiseScore 噪音过滤：弱信号直接判噪音，近期历史信号方向稳定则加分
func noiseScore(combined float64, history []float64) float64 {
	if math.Abs(combined) < 0.08 {
		return 0.1
	}
	if len(history) < 3 {
		return 0.6
	}

	direction := 1.0
	if combined < 0 {
		direction = -1.0
	}

	recent := history[len(history)-3:]
	agreeing := 0
	for _, s := range recent {
		if s*direction > 0 {
			agreeing++
		}
	}

	agreement := float64(agreeing) / float64(len(recent))
	switch {
	case agreement >= 2.0/3.0:
		return 0.9
	case agreement >= 1.0/3.0:
		return 0.6
	default:
		return 0.3
	}
}

func pctChangeStd(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 {
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	if len(returns) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}
