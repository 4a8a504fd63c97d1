package analysis

import "math"

// 市场状态标签
const (
	RegimeTrending = "trending"
	RegimeRanging  = "ranging"
	RegimeVolatile = "volatile"
	RegimeNeutral  = "neutral"
)

// ClassifyRegime 从价格序列分类市场状态
// 数据不足时返回neutral
func ClassifyRegime(prices []float64) string {
	if len(prices) < 20 {
		return RegimeNeutral
	}

	window := prices[len(prices)-20:]
	vol := pctChangeStd(window)
	trend := 0.0
	if window[0] > 0 {
		trend = math.Abs((window[len(window)-1] - window[0]) / window[0])
	}

	switch {
	case vol > 0.05:
		return RegimeVolatile
	case trend > 0.05:
		return RegimeTrending
	case trend < 0.02:
		return RegimeRanging
	default:
		return RegimeNeutral
	}
}
