package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
	"go.uber.org/zap"
)

// 模拟行情基准价
var paperBasePrices = map[string]float64{
	"BTC/USDT":  50000,
	"ETH/USDT":  3000,
	"BNB/USDT":  600,
	"XRP/USDT":  0.5,
	"SOL/USDT":  150,
	"ADA/USDT":  0.45,
	"AVAX/USDT": 35,
	"LINK/USDT": 14,
	"TRX/USDT":  0.12,
}

const paperDefaultPrice = 10.0

// 单步随机游走的波动幅度
const paperStepVol = 0.004

// PaperExchange 内置模拟交易所（DRY_RUN模式）
// 行情为随机游走，余额和持仓在内存中记账；随机性只存在于这里，
// 核心决策链路拿到快照后全程确定
type PaperExchange struct {
	mu sync.Mutex

	rng      *rand.Rand
	prices   map[string]float64
	premiums map[string]float64

	spotBalances    map[string]float64
	futuresBalances map[string]float64

	feeRate float64
	orderID int64

	log *zap.SugaredLogger
}

var globalPaperExchange *PaperExchange

// GetPaperExchange 获取模拟交易所实例（单例）
func GetPaperExchange() *PaperExchange {
	if globalPaperExchange == nil {
		cfg := config.Get()
		globalPaperExchange = NewPaperExchange(cfg.PaperInitialBalance, cfg.PaperFeeRate, cfg.PaperSeed)
	}
	return globalPaperExchange
}

// NewPaperExchange 创建模拟交易所
// 初始资金按4:6分配到现货和合约账户
func NewPaperExchange(initialBalance, feeRate float64, seed int64) *PaperExchange {
	if initialBalance <= 0 {
		initialBalance = 1000
	}
	return &PaperExchange{
		rng:      rand.New(rand.NewSource(seed)),
		prices:   make(map[string]float64),
		premiums: make(map[string]float64),
		spotBalances: map[string]float64{
			"USDT": initialBalance * 0.4,
		},
		futuresBalances: map[string]float64{
			"USDT": initialBalance * 0.6,
		},
		feeRate: feeRate,
		log:     utils.GetLogger("paper"),
	}
}

// spotSymbol 去掉合约后缀，统一用现货符号记价
func spotSymbol(symbol string) string {
	if i := strings.Index(symbol, ":"); i >= 0 {
		return symbol[:i]
	}
	return symbol
}

// currentPrice 当前价并推进一步随机游走（调用方必须持锁）
func (pe *PaperExchange) currentPrice(symbol string) float64 {
	key := spotSymbol(symbol)
	price, ok := pe.prices[key]
	if !ok {
		price = paperBasePrices[key]
		if price <= 0 {
			price = paperDefaultPrice
		}
	}
	price *= 1 + pe.rng.NormFloat64()*paperStepVol
	if price <= 0 {
		price = paperBasePrices[key]
	}
	pe.prices[key] = price

	// 期现溢价缓慢漂移，偶尔越过套利阈值
	premium := pe.premiums[key]
	premium += pe.rng.NormFloat64() * 0.0003
	if premium > 0.003 {
		premium = 0.003
	}
	if premium < -0.003 {
		premium = -0.003
	}
	pe.premiums[key] = premium

	return price
}

// GetTicker 获取模拟行情
func (pe *PaperExchange) GetTicker(_ context.Context, symbol string, market types.Market) (*types.Ticker, error) {
	pe.mu.Lock()
	defer pe.mu.Unlock()

	price := pe.currentPrice(symbol)
	if market == types.MarketFutures {
		price *= 1 + pe.premiums[spotSymbol(symbol)]
	}

	spread := price * 0.0002
	return &types.Ticker{
		Last:      price,
		Bid:       price - spread,
		Ask:       price + spread,
		Volume:    1000 + pe.rng.Float64()*9000,
		Timestamp: time.Now().Unix(),
	}, nil
}

// GetOHLCV 生成模拟K线（从当前价倒推随机游走）
func (pe *PaperExchange) GetOHLCV(_ context.Context, symbol, timeframe string, limit int, market types.Market) ([]types.OHLCV, error) {
	if limit <= 0 {
		limit = 100
	}

	pe.mu.Lock()
	defer pe.mu.Unlock()

	price := pe.currentPrice(symbol)
	if market == types.MarketFutures {
		price *= 1 + pe.premiums[spotSymbol(symbol)]
	}

	step := int64(3600)
	if strings.HasSuffix(timeframe, "m") {
		if v, err := strconv.Atoi(strings.TrimSuffix(timeframe, "m")); err == nil {
			step = int64(v) * 60
		}
	}

	// 倒推生成历史序列再正序输出
	closes := make([]float64, limit)
	closes[limit-1] = price
	for i := limit - 2; i >= 0; i-- {
		closes[i] = closes[i+1] / (1 + pe.rng.NormFloat64()*paperStepVol)
	}

	now := time.Now().Unix()
	ohlcv := make([]types.OHLCV, limit)
	for i := 0; i < limit; i++ {
		c := closes[i]
		o := c
		if i > 0 {
			o = closes[i-1]
		}
		high := o
		if c > high {
			high = c
		}
		low := o
		if c < low {
			low = c
		}
		ohlcv[i] = types.OHLCV{
			Open:   o,
			High:   high * (1 + pe.rng.Float64()*0.002),
			Low:    low * (1 - pe.rng.Float64()*0.002),
			Close:  c,
			Volume: 1000 + pe.rng.Float64()*9000,
			Time:   now - int64(limit-1-i)*step,
		}
	}
	return ohlcv, nil
}

// GetSpotBalance 现货余额副本
func (pe *PaperExchange) GetSpotBalance(_ context.Context) (map[string]float64, error) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	return copyBalances(pe.spotBalances), nil
}

// GetFuturesBalance 合约余额副本
func (pe *PaperExchange) GetFuturesBalance(_ context.Context) (map[string]float64, error) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	return copyBalances(pe.futuresBalances), nil
}

// ExecuteOrder 模拟市价成交
// 现货按余额记账并校验库存，合约只扣手续费（保证金简化处理）
func (pe *PaperExchange) ExecuteOrder(_ context.Context, symbol string, side types.Side, size float64, market types.Market) (*types.OrderResult, error) {
	if size <= 0 {
		return nil, fmt.Errorf("下单数量非法: %f", size)
	}

	pe.mu.Lock()
	defer pe.mu.Unlock()

	price := pe.currentPrice(symbol)
	if market == types.MarketFutures {
		price *= 1 + pe.premiums[spotSymbol(symbol)]
	}
	notional := size * price
	fees := notional * pe.feeRate

	if market == types.MarketSpot {
		base := strings.SplitN(spotSymbol(symbol), "/", 2)[0]
		if side == types.SideBuy {
			cost := notional + fees
			if pe.spotBalances["USDT"] < cost {
				return &types.OrderResult{Success: false, Error: "insufficient USDT balance"},
					fmt.Errorf("现货余额不足: 需要%.2f，可用%.2f", cost, pe.spotBalances["USDT"])
			}
			pe.spotBalances["USDT"] -= cost
			pe.spotBalances[base] += size
		} else {
			if pe.spotBalances[base] < size {
				return &types.OrderResult{Success: false, Error: "insufficient asset balance"},
					fmt.Errorf("现货库存不足: %s 需要%f，可用%f", base, size, pe.spotBalances[base])
			}
			pe.spotBalances[base] -= size
			pe.spotBalances["USDT"] += notional - fees
		}
	} else {
		if pe.futuresBalances["USDT"] < fees {
			return &types.OrderResult{Success: false, Error: "insufficient margin"},
				fmt.Errorf("合约账户余额不足以支付手续费")
		}
		pe.futuresBalances["USDT"] -= fees
	}

	pe.orderID++
	result := &types.OrderResult{
		Success: true,
		OrderID: fmt.Sprintf("paper-%d", pe.orderID),
		Price:   price,
		Fees:    fees,
	}
	pe.log.Infow("模拟成交", "symbol", symbol, "side", side, "size", size,
		"price", price, "market", market, "fees", fees)
	return result, nil
}

// Transfer 模拟账户间划转
func (pe *PaperExchange) Transfer(_ context.Context, asset string, amount float64, from, to types.Market) error {
	if amount <= 0 {
		return fmt.Errorf("划转金额非法: %f", amount)
	}

	pe.mu.Lock()
	defer pe.mu.Unlock()

	src, dst := pe.spotBalances, pe.futuresBalances
	if from == types.MarketFutures {
		src, dst = pe.futuresBalances, pe.spotBalances
	}
	if src[asset] < amount {
		return fmt.Errorf("划转余额不足: %s 需要%.2f，可用%.2f", asset, amount, src[asset])
	}

	src[asset] -= amount
	dst[asset] += amount
	pe.log.Infow("模拟划转", "asset", asset, "amount", amount, "from", from, "to", to)
	return nil
}

func copyBalances(src map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
