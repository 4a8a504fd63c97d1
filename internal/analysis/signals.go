package analysis

import (
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

// Thresholds 信号判定阈值
type Thresholds struct {
	RSIOversold   float64
	RSIOverbought float64
	StochLow      float64
	StochHigh     float64
}

// DefaultThresholds 默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		RSIOversold:   30,
		RSIOverbought: 70,
		StochLow:      20,
		StochHigh:     80,
	}
}

// GenerateSignals 从指标集合生成方向信号
// 各子信号取值-1/0/+1；阈值边界判定严格（等于阈值输出0）；
// 缺失指标输出中性0且不计入合并均值，全部缺失时合并信号为0
func GenerateSignals(ind types.IndicatorBundle, th Thresholds) types.SignalBundle {
	var bundle types.SignalBundle

	validCount := 0
	sum := 0.0

	// RSI超卖看多、超买看空
	if ind.RSI.Valid {
		switch {
		case ind.RSI.Value < th.RSIOversold:
			bundle.RSI = 1
		case ind.RSI.Value > th.RSIOverbought:
			bundle.RSI = -1
		}
		sum += bundle.RSI
		validCount++
	}

	// MACD柱状图翻转：需要当前和前一根柱值
	if ind.MACDHist.Valid && ind.MACDHistPrev.Valid {
		switch {
		case ind.MACDHistPrev.Value <= 0 && ind.MACDHist.Value > 0:
			bundle.MACD = 1
		case ind.MACDHistPrev.Value >= 0 && ind.MACDHist.Value < 0:
			bundle.MACD = -1
		}
		sum += bundle.MACD
		validCount++
	}

	// 布林带触轨
	if ind.Price.Valid && ind.BBUpper.Valid && ind.BBLower.Valid {
		switch {
		case ind.Price.Value <= ind.BBLower.Value:
			bundle.Bollinger = 1
		case ind.Price.Value >= ind.BBUpper.Value:
			bundle.Bollinger = -1
		}
		sum += bundle.Bollinger
		validCount++
	}

	// 随机指标%K极值
	if ind.StochK.Valid {
		switch {
		case ind.StochK.Value < th.StochLow:
			bundle.Stochastic = 1
		case ind.StochK.Value > th.StochHigh:
			bundle.Stochastic = -1
		}
		sum += bundle.Stochastic
		validCount++
	}

	if validCount > 0 {
		bundle.Combined = sum / float64(validCount)
	}

	return bundle
}
