package strategy

import (
	"math"
	"sync"
	"time"

	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
	"go.uber.org/zap"
)

// 再平衡相关阈值
const (
	// 总资产低于该值不做任何再平衡
	minRebalanceBalance = 100.0

	// 初始建仓比例
	initialSpotFraction    = 0.8
	initialFuturesFraction = 0.3

	// 初始建仓单笔下限
	minInitialPerSymbol = 10.0
	minInitialFutures   = 50.0
)

// Rebalancer 组合再平衡器
// 独占管理上次再平衡时间戳，外部只能通过方法触发
type Rebalancer struct {
	mu            sync.Mutex
	lastRebalance time.Time

	cfg *config.Config
	log *zap.SugaredLogger

	now func() time.Time
}

// NewRebalancer 创建再平衡器
func NewRebalancer(cfg *config.Config) *Rebalancer {
	return &Rebalancer{
		lastRebalance: time.Now(),
		cfg:           cfg,
		log:           utils.GetLogger("rebalance"),
		now:           time.Now,
	}
}

// NeedsRebalancing 判断是否需要再平衡
// 偏差超阈值（且余额达标）或时间窗口到期且偏差超过半阈值时触发
func (r *Rebalancer) NeedsRebalancing(state *types.PortfolioState) bool {
	if state == nil || state.TotalBalance <= minRebalanceBalance {
		return false
	}

	spotDeviation := math.Abs(state.SpotRatio - r.cfg.SpotAllocation)

	// 自动划转关闭时放宽触发条件，避免频繁跨账户搬砖
	threshold := r.cfg.RebalanceThreshold
	minBalance := 20.0
	if !r.cfg.AutoTransferEnabled {
		threshold = r.cfg.RebalanceThreshold * 2
		minBalance = 200.0
	}

	if spotDeviation > threshold && state.TotalBalance >= minBalance {
		return true
	}

	r.mu.Lock()
	last := r.lastRebalance
	r.mu.Unlock()

	interval := time.Duration(r.cfg.RebalanceIntervalMinutes) * time.Minute
	if r.now().Sub(last) > interval && spotDeviation > r.cfg.RebalanceThreshold*0.5 {
		return true
	}

	return false
}

// GenerateRebalancingOrders 生成再平衡订单
// 当前实现为初始建仓：目标比例严重偏离且几乎无持仓时按目标分配买入
func (r *Rebalancer) GenerateRebalancingOrders(state *types.PortfolioState) []types.TradeSignal {
	if state == nil || state.TotalBalance < minRebalanceBalance {
		return nil
	}

	// 时间触发只用半阈值，建仓前再确认偏差确实超过完整阈值
	if math.Abs(state.SpotRatio-r.cfg.SpotAllocation) <= r.cfg.RebalanceThreshold {
		return nil
	}

	signals := r.initialPurchaseOrders(state)
	if len(signals) > 0 {
		r.mu.Lock()
		r.lastRebalance = r.now()
		r.mu.Unlock()
		r.log.Infow("生成再平衡订单", "count", len(signals),
			"total_balance", state.TotalBalance,
			"spot_ratio", state.SpotRatio, "target", r.cfg.SpotAllocation)
	}
	return signals
}

// initialPurchaseOrders 初始建仓订单
// 现货目标的八成均分到主力币种，合约目标的三成买入BTC
func (r *Rebalancer) initialPurchaseOrders(state *types.PortfolioState) []types.TradeSignal {
	var signals []types.TradeSignal

	primary := r.cfg.PrimarySymbols
	if len(primary) == 0 {
		primary = []string{"BTC/USDT", "ETH/USDT"}
	}

	spotTarget := state.TotalBalance * r.cfg.SpotAllocation * initialSpotFraction
	perSymbol := spotTarget / float64(len(primary))
	if perSymbol >= minInitialPerSymbol {
		for _, symbol := range primary {
			price := state.Prices[symbol]
			if price <= 0 {
				r.log.Warnw("初始建仓缺少价格，跳过", "symbol", symbol)
				continue
			}
			qty := SafeQuantity(symbol, perSymbol, price)
			if qty <= 0 {
				continue
			}
			signals = append(signals, types.TradeSignal{
				Strategy:   "initial_investment",
				Symbol:     symbol,
				Market:     types.MarketSpot,
				Action:     types.SideBuy,
				Size:       qty,
				Confidence: 0.8,
				Priority:   1,
			})
		}
	}

	futuresTarget := state.TotalBalance * r.cfg.FuturesAllocation * initialFuturesFraction
	btcPrice := state.Prices["BTC/USDT"]
	if futuresTarget >= minInitialFutures && btcPrice > 0 {
		qty := SafeQuantity("BTC/USDT", futuresTarget, btcPrice)
		if qty > 0 {
			signals = append(signals, types.TradeSignal{
				Strategy:   "initial_investment",
				Symbol:     config.FuturesSymbol("BTC/USDT"),
				Market:     types.MarketFutures,
				Action:     types.SideBuy,
				Size:       qty,
				Confidence: 0.7,
				Priority:   2,
			})
		}
	}

	return signals
}

// LastRebalance 上次再平衡时间（仅用于状态展示）
func (r *Rebalancer) LastRebalance() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRebalance
}
