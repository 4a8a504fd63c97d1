package indicators

import (
	"math"

	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

// Params 指标计算参数
type Params struct {
	RSIPeriod   int
	MACDFast    int
	MACDSlow    int
	MACDSignal  int
	BBPeriod    int
	BBStdDev    float64
	StochPeriod int
	StochSmooth int
}

// DefaultParams 默认指标参数
func DefaultParams() Params {
	return Params{
		RSIPeriod:   14,
		MACDFast:    12,
		MACDSlow:    26,
		MACDSignal:  9,
		BBPeriod:    20,
		BBStdDev:    2.0,
		StochPeriod: 14,
		StochSmooth: 3,
	}
}

// CalculateSMA 计算简单移动平均线
func CalculateSMA(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), true
}

// CalculateEMA 计算指数移动平均线
func CalculateEMA(prices []float64, period int) (float64, bool) {
	series := emaSeries(prices, period)
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}

// emaSeries EMA序列，首值用SMA初始化，与prices[period-1:]对齐
func emaSeries(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)

	out := make([]float64, 0, len(prices)-period+1)
	out = append(out, ema)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		out = append(out, ema)
	}
	return out
}

// CalculateRSI 计算相对强弱指标（最近period个涨跌幅的滚动均值）
func CalculateRSI(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		return 100.0, true
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs)), true
}

// MACDResult MACD计算结果
// HistPrev为倒数第二根柱值，用于判断柱状图翻转
type MACDResult struct {
	MACD     float64
	Signal   float64
	Hist     float64
	HistPrev float64
	HasPrev  bool
}

// CalculateMACD 计算MACD指标
func CalculateMACD(prices []float64, fast, slow, signalPeriod int) (MACDResult, bool) {
	if fast <= 0 || slow <= fast || signalPeriod <= 0 {
		return MACDResult{}, false
	}
	if len(prices) < slow+signalPeriod-1 {
		return MACDResult{}, false
	}

	fastSeries := emaSeries(prices, fast)
	slowSeries := emaSeries(prices, slow)

	// MACD线与prices[slow-1:]对齐
	offset := slow - fast
	macdLine := make([]float64, len(slowSeries))
	for i := range slowSeries {
		macdLine[i] = fastSeries[i+offset] - slowSeries[i]
	}

	signalSeries := emaSeries(macdLine, signalPeriod)
	if len(signalSeries) == 0 {
		return MACDResult{}, false
	}

	result := MACDResult{
		MACD:   macdLine[len(macdLine)-1],
		Signal: signalSeries[len(signalSeries)-1],
	}
	result.Hist = result.MACD - result.Signal

	if len(signalSeries) >= 2 {
		prevMACD := macdLine[len(macdLine)-2]
		prevSignal := signalSeries[len(signalSeries)-2]
		result.HistPrev = prevMACD - prevSignal
		result.HasPrev = true
	}

	return result, true
}

// CalculateBollingerBands 计算布林带
func CalculateBollingerBands(prices []float64, period int, stdDev float64) (upper, middle, lower float64, ok bool) {
	sma, ok := CalculateSMA(prices, period)
	if !ok {
		return 0, 0, 0, false
	}

	variance := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		diff := prices[i] - sma
		variance += diff * diff
	}
	variance /= float64(period)
	std := math.Sqrt(variance)

	return sma + stdDev*std, sma, sma - stdDev*std, true
}

// CalculateStochastic 计算随机震荡指标（慢速%K和%D）
func CalculateStochastic(ohlcv []types.OHLCV, period, smooth int) (k, d float64, ok bool) {
	if period <= 0 || smooth <= 0 || len(ohlcv) < period+smooth-1 {
		return 0, 0, false
	}

	rawK := make([]float64, 0, len(ohlcv)-period+1)
	for i := period - 1; i < len(ohlcv); i++ {
		highest := ohlcv[i].High
		lowest := ohlcv[i].Low
		for j := i - period + 1; j <= i; j++ {
			if ohlcv[j].High > highest {
				highest = ohlcv[j].High
			}
			if ohlcv[j].Low < lowest {
				lowest = ohlcv[j].Low
			}
		}
		if highest == lowest {
			rawK = append(rawK, 50.0)
			continue
		}
		rawK = append(rawK, (ohlcv[i].Close-lowest)/(highest-lowest)*100.0)
	}

	slowK := make([]float64, 0, len(rawK)-smooth+1)
	for i := smooth - 1; i < len(rawK); i++ {
		sum := 0.0
		for j := i - smooth + 1; j <= i; j++ {
			sum += rawK[j]
		}
		slowK = append(slowK, sum/float64(smooth))
	}
	if len(slowK) == 0 {
		return 0, 0, false
	}

	k = slowK[len(slowK)-1]

	dWindow := 3
	if len(slowK) < dWindow {
		dWindow = len(slowK)
	}
	sum := 0.0
	for i := len(slowK) - dWindow; i < len(slowK); i++ {
		sum += slowK[i]
	}
	d = sum / float64(dWindow)

	return k, d, true
}

// Volatility 计算收益率波动（逐根涨跌幅的标准差）
func Volatility(prices []float64) (float64, bool) {
	if len(prices) < 2 {
		return 0, false
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 {
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	if len(returns) == 0 {
		return 0, false
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

	return math.Sqrt(variance), true
}

// TrendStrength 计算趋势强度（区间首尾相对变化的绝对值）
func TrendStrength(prices []float64) (float64, bool) {
	if len(prices) < 2 || prices[0] <= 0 {
		return 0, false
	}
	return math.Abs((prices[len(prices)-1] - prices[0]) / prices[0]), true
}

// ComputeBundle 从K线序列计算完整指标集合
// 任一指标数据不足时对应读数标记为无效，不做静默兜底
func ComputeBundle(ohlcv []types.OHLCV, p Params) types.IndicatorBundle {
	var bundle types.IndicatorBundle

	if len(ohlcv) == 0 {
		return bundle
	}

	closes := make([]float64, len(ohlcv))
	for i, candle := range ohlcv {
		closes[i] = candle.Close
	}

	bundle.Price = types.ReadingOf(closes[len(closes)-1])

	if rsi, ok := CalculateRSI(closes, p.RSIPeriod); ok {
		bundle.RSI = types.ReadingOf(rsi)
	}

	if macd, ok := CalculateMACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal); ok {
		bundle.MACDHist = types.ReadingOf(macd.Hist)
		if macd.HasPrev {
			bundle.MACDHistPrev = types.ReadingOf(macd.HistPrev)
		}
	}

	if upper, middle, lower, ok := CalculateBollingerBands(closes, p.BBPeriod, p.BBStdDev); ok {
		bundle.BBUpper = types.ReadingOf(upper)
		bundle.BBMiddle = types.ReadingOf(middle)
		bundle.BBLower = types.ReadingOf(lower)
	}

	if k, d, ok := CalculateStochastic(ohlcv, p.StochPeriod, p.StochSmooth); ok {
		bundle.StochK = types.ReadingOf(k)
		bundle.StochD = types.ReadingOf(d)
	}

	if vol, ok := Volatility(closes); ok {
		bundle.Volatility = types.ReadingOf(vol)
	}

	return bundle
}
