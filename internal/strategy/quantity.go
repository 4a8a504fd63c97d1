package strategy

import (
	"github.com/shopspring/decimal"
)

// 最小下单名义价值（USDT）
const minOrderNotional = 5.0

// 各币种最小下单数量
var minQuantities = map[string]float64{
	"BTC/USDT":   0.00001,
	"ETH/USDT":   0.0001,
	"BNB/USDT":   0.001,
	"XRP/USDT":   0.1,
	"SOL/USDT":   0.001,
	"ADA/USDT":   0.1,
	"AVAX/USDT":  0.01,
	"LINK/USDT":  0.01,
	"DOT/USDT":   0.01,
	"MATIC/USDT": 0.1,
	"TRX/USDT":   1.0,
}

const defaultMinQuantity = 0.001

// 各币种数量精度（小数位）
var quantityPrecision = map[string]int32{
	"BTC/USDT":   5,
	"ETH/USDT":   4,
	"BNB/USDT":   4,
	"SOL/USDT":   4,
	"AVAX/USDT":  3,
	"LINK/USDT":  3,
	"DOT/USDT":   3,
	"ADA/USDT":   2,
	"XRP/USDT":   2,
	"MATIC/USDT": 2,
}

const defaultPrecision int32 = 3

// SafeQuantity 计算安全下单数量
// 保证结果满足交易所最小数量和最小名义价值，精度按币种向下取整；
// 无法满足约束时返回0，调用方跳过该笔下单
func SafeQuantity(symbol string, maxAmount, price float64) float64 {
	if price <= 0 || maxAmount <= 0 {
		return 0
	}

	minQty := defaultMinQuantity
	if q, ok := minQuantities[symbol]; ok {
		minQty = q
	}

	maxQty := maxAmount / price
	if maxQty < minQty {
		return 0
	}
	if maxQty*price < minOrderNotional {
		return 0
	}

	precision := defaultPrecision
	if p, ok := quantityPrecision[symbol]; ok {
		precision = p
	}

	// 向下取整，绝不超出可用金额
	qty, _ := decimal.NewFromFloat(maxQty).RoundFloor(precision).Float64()

	if qty < minQty || qty*price < minOrderNotional {
		return 0
	}
	return qty
}
