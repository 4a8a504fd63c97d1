package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
	"go.uber.org/zap"
)

// Manager 组合状态管理器
// 每周期从交易所真实余额重算一份组合状态，周期内所有模块共享同一份只读快照
type Manager struct {
	exchange      types.Exchange
	targetSpot    float64
	targetFutures float64
	log           *zap.SugaredLogger
}

// NewManager 创建组合状态管理器
func NewManager(exchange types.Exchange, targetSpot, targetFutures float64) *Manager {
	return &Manager{
		exchange:      exchange,
		targetSpot:    targetSpot,
		targetFutures: targetFutures,
		log:           utils.GetLogger("portfolio"),
	}
}

// Snapshot 重算组合状态
// prices为现货最新价（币种→价格），用于给非USDT持仓估值
func (m *Manager) Snapshot(ctx context.Context, prices map[string]float64) (*types.PortfolioState, error) {
	spotBalances, err := m.exchange.GetSpotBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取现货余额失败: %w", err)
	}
	futuresBalances, err := m.exchange.GetFuturesBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取合约余额失败: %w", err)
	}

	spotFree := spotBalances["USDT"]
	spotValue := spotFree
	for asset, amount := range spotBalances {
		if asset == "USDT" || amount <= 0 {
			continue
		}
		price := prices[asset+"/USDT"]
		if price <= 0 {
			m.log.Debugw("持仓资产缺少价格，估值时忽略", "asset", asset, "amount", amount)
			continue
		}
		spotValue += amount * price
	}

	futuresFree := futuresBalances["USDT"]
	futuresValue := futuresFree
	for asset, amount := range futuresBalances {
		if asset == "USDT" || amount <= 0 {
			continue
		}
		price := prices[asset+"/USDT"]
		if price <= 0 {
			continue
		}
		futuresValue += amount * price
	}

	total := spotValue + futuresValue
	state := &types.PortfolioState{
		TotalBalance:       total,
		SpotBalance:        spotValue,
		FuturesBalance:     futuresValue,
		SpotFreeBalance:    spotFree,
		FuturesFreeBalance: futuresFree,
		TargetSpotRatio:    m.targetSpot,
		TargetFuturesRatio: m.targetFutures,
		Prices:             prices,
		Timestamp:          time.Now().Unix(),
	}
	if total > 0 {
		state.SpotRatio = spotValue / total
		state.FuturesRatio = futuresValue / total
	}

	return state, nil
}

// SpotHoldings 现货非USDT持仓数量（币种符号→数量）
func (m *Manager) SpotHoldings(ctx context.Context) (map[string]float64, error) {
	balances, err := m.exchange.GetSpotBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取现货余额失败: %w", err)
	}
	holdings := make(map[string]float64)
	for asset, amount := range balances {
		if asset == "USDT" || amount <= 0 {
			continue
		}
		holdings[asset+"/USDT"] = amount
	}
	return holdings, nil
}
