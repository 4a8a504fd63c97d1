package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/yuechangmingzou/hybrid-go/internal/exchange"
	"github.com/yuechangmingzou/hybrid-go/internal/risk"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
	"go.uber.org/zap"
)

// ExecutionEngine 订单执行引擎
type ExecutionEngine struct {
	exchange types.Exchange
	redis    utils.RedisClient
	monitor  *risk.Monitor
	log      *zap.SugaredLogger
}

var globalEngine *ExecutionEngine

// GetExecutionEngine 获取执行引擎（单例）
func GetExecutionEngine() *ExecutionEngine {
	if globalEngine == nil {
		globalEngine = &ExecutionEngine{
			exchange: exchange.GetExchange(),
			redis:    utils.GetRedisClient(),
			monitor:  risk.GetMonitor(),
			log:      utils.GetLogger("execution"),
		}
	}
	return globalEngine
}

// NewEngine 创建执行引擎（依赖显式注入，便于测试）
func NewEngine(ex types.Exchange, rdb utils.RedisClient, monitor *risk.Monitor) *ExecutionEngine {
	return &ExecutionEngine{
		exchange: ex,
		redis:    rdb,
		monitor:  monitor,
		log:      utils.GetLogger("execution"),
	}
}

// ExecuteSignal 执行单个交易信号
// 返回是否成交和失败原因；volatility和strength用于计算初始止损止盈
func (e *ExecutionEngine) ExecuteSignal(ctx context.Context, sig *types.TradeSignal, volatility, strength float64) (bool, string) {
	if sig == nil || sig.Size <= 0 {
		return false, "invalid signal"
	}

	// 同一交易对串行下单
	lockToken, err := e.acquireLock(ctx, sig.Symbol, 10*time.Second)
	if err != nil {
		e.log.Debugw("交易对下单锁被占用，跳过", "symbol", sig.Symbol)
		return false, "symbol locked"
	}
	defer func() { _ = e.releaseLock(ctx, sig.Symbol, lockToken) }()

	if !e.checkAndSetDedupe(ctx, sig) {
		e.log.Infow("去重命中，跳过重复信号", "symbol", sig.Symbol,
			"strategy", sig.Strategy, "action", sig.Action)
		return false, "duplicate signal"
	}

	result, err := e.exchange.ExecuteOrder(ctx, sig.Symbol, sig.Action, sig.Size, sig.Market)
	if err != nil || result == nil || !result.Success {
		reason := "order failed"
		if err != nil {
			reason = err.Error()
		} else if result != nil && result.Error != "" {
			reason = result.Error
		}
		e.saveAudit(ctx, map[string]interface{}{
			"event":    "order_failed",
			"symbol":   sig.Symbol,
			"market":   sig.Market,
			"action":   sig.Action,
			"size":     sig.Size,
			"strategy": sig.Strategy,
			"reason":   utils.SanitizeString(reason),
		})
		e.log.Errorw("下单失败", "symbol", sig.Symbol, "strategy", sig.Strategy,
			"action", sig.Action, "size", sig.Size, "reason", reason)
		return false, reason
	}

	price := result.Price
	e.saveAudit(ctx, map[string]interface{}{
		"event":    "order_filled",
		"symbol":   sig.Symbol,
		"market":   sig.Market,
		"action":   sig.Action,
		"size":     sig.Size,
		"price":    price,
		"fees":     result.Fees,
		"strategy": sig.Strategy,
		"order_id": result.OrderID,
	})
	e.pushTradeHistory(ctx, types.TradeRecord{
		Symbol:    sig.Symbol,
		Side:      sig.Action,
		Size:      sig.Size,
		Price:     price,
		Market:    sig.Market,
		Fees:      result.Fees,
		Strategy:  sig.Strategy,
		Timestamp: time.Now().Unix(),
	})

	if e.monitor != nil && price > 0 {
		e.monitor.RegisterTrade(sig.Symbol, sig.Market, sig.Action, sig.Size, price, volatility, strength)
	}

	e.log.Infow("信号执行成功", "symbol", sig.Symbol, "strategy", sig.Strategy,
		"action", sig.Action, "size", sig.Size, "price", price, "market", sig.Market)
	return true, ""
}

// ReducePosition 风控自动减仓回调
func (e *ExecutionEngine) ReducePosition(ctx context.Context, symbol string, market types.Market, side types.Side, size float64) error {
	if size <= 0 {
		return fmt.Errorf("减仓数量非法: %f", size)
	}

	result, err := e.exchange.ExecuteOrder(ctx, symbol, side, size, market)
	if err != nil {
		return err
	}
	if result == nil || !result.Success {
		return fmt.Errorf("减仓订单未成交: %s", symbol)
	}

	e.saveAudit(ctx, map[string]interface{}{
		"event":    "risk_reduce",
		"symbol":   symbol,
		"market":   market,
		"action":   side,
		"size":     size,
		"price":    result.Price,
		"order_id": result.OrderID,
	})
	return nil
}
