package transfer

import (
	"context"
	"math"
	"time"

	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/internal/metrics"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
	"go.uber.org/zap"
)

// Monitor 资金划转监控器
//
// 周期性比较现货/合约账户的USDT余额与目标配比,
// 偏差超过最小划转额时在两个账户间搬运资金。
type Monitor struct {
	exchange types.Exchange
	cfg      *config.Config
	log      *zap.SugaredLogger
}

// NewMonitor 创建资金划转监控器
func NewMonitor(exchange types.Exchange, cfg *config.Config) *Monitor {
	return &Monitor{
		exchange: exchange,
		cfg:      cfg,
		log:      utils.GetLogger("transfer"),
	}
}

// Run 启动监控循环, ctx取消后退出
func (m *Monitor) Run(ctx context.Context) {
	if !m.cfg.AutoTransferEnabled {
		m.log.Info("自动划转未启用, 资金划转监控器不启动")
		return
	}

	interval := time.Duration(m.cfg.TransferMonitorIntervalSec) * time.Second
	if interval <= 0 {
		interval = 300 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.log.Infow("资金划转监控器启动", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("资金划转监控器停止")
			return
		case <-ticker.C:
			if err := m.CheckOnce(ctx); err != nil {
				m.log.Warnw("资金划转检查失败", "error", err)
			}
		}
	}
}

// CheckOnce 执行一次余额检查, 必要时划转USDT
func (m *Monitor) CheckOnce(ctx context.Context) error {
	spotBalances, err := m.exchange.GetSpotBalance(ctx)
	if err != nil {
		return err
	}
	futuresBalances, err := m.exchange.GetFuturesBalance(ctx)
	if err != nil {
		return err
	}

	spotUSDT := spotBalances["USDT"]
	futuresUSDT := futuresBalances["USDT"]
	total := spotUSDT + futuresUSDT
	if total <= 0 {
		return nil
	}

	targetSpot := total * m.cfg.SpotAllocation
	diff := spotUSDT - targetSpot

	amount := math.Abs(diff) - m.cfg.TransferBuffer
	if amount < m.cfg.MinTransferAmount {
		return nil
	}

	var from, to types.Market
	if diff > 0 {
		from, to = types.MarketSpot, types.MarketFutures
	} else {
		from, to = types.MarketFutures, types.MarketSpot
	}

	if err := m.exchange.Transfer(ctx, "USDT", amount, from, to); err != nil {
		m.log.Errorw("资金划转失败",
			"from", from, "to", to, "amount", amount, "error", err)
		return err
	}

	metrics.RecordTransfer()
	m.log.Infow("资金划转完成",
		"from", from, "to", to, "amount", amount,
		"spot_usdt", spotUSDT, "futures_usdt", futuresUSDT,
		"target_spot", targetSpot)
	return nil
}
