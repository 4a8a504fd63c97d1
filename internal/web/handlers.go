package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/internal/metrics"
	"github.com/yuechangmingzou/hybrid-go/internal/risk"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

// handleStatus 获取系统状态（带缓存）
func (s *Server) handleStatus(c *gin.Context) {
	if cached, ok := globalStatusCache.get(); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := map[string]interface{}{
		"timestamp": time.Now().Unix(),
		"mode":      s.modeName(),
	}

	// Redis状态
	if err := s.redis.Ping(ctx).Err(); err != nil {
		status["redis"] = map[string]interface{}{
			"status": "error",
			"error":  utils.SanitizeString(err.Error()),
		}
	} else {
		status["redis"] = map[string]interface{}{
			"status": "ok",
		}
	}

	// 当前风险等级
	status["risk_level"] = metrics.GetMetrics().CurrentRiskLevel

	// 最近一次周期汇总
	if raw, err := s.redis.Get(ctx, config.GetRedisKey("cycle_summary_latest")).Result(); err == nil {
		var summary map[string]interface{}
		if json.Unmarshal([]byte(raw), &summary) == nil {
			status["last_cycle"] = summary
		}
	}

	globalStatusCache.set(status)
	c.JSON(http.StatusOK, status)
}

// handlePortfolio 获取现货/合约账户余额
func (s *Server) handlePortfolio(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	spot, err := s.exchange.GetSpotBalance(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "spot_balance_unavailable"})
		return
	}
	futures, err := s.exchange.GetFuturesBalance(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "futures_balance_unavailable"})
		return
	}

	spotUSDT := spot["USDT"]
	futuresUSDT := futures["USDT"]
	total := spotUSDT + futuresUSDT

	resp := gin.H{
		"spot":                      spot,
		"futures":                   futures,
		"spot_usdt":                 spotUSDT,
		"futures_usdt":              futuresUSDT,
		"total_usdt":                total,
		"target_spot_allocation":    s.config.SpotAllocation,
		"target_futures_allocation": s.config.FuturesAllocation,
		"timestamp":                 time.Now().Unix(),
	}
	if total > 0 {
		resp["spot_ratio"] = spotUSDT / total
		resp["futures_ratio"] = futuresUSDT / total
	}

	// 最近一次周期的组合体检指标
	if raw, err := s.redis.Get(ctx, config.GetRedisKey("portfolio_metrics_latest")).Result(); err == nil {
		var m map[string]interface{}
		if json.Unmarshal([]byte(raw), &m) == nil {
			resp["metrics"] = m
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleRisk 获取当前风险概览
func (s *Server) handleRisk(c *gin.Context) {
	resp := gin.H{
		"risk_level": metrics.GetMetrics().CurrentRiskLevel,
		"timestamp":  time.Now().Unix(),
	}

	if monitor := risk.GetMonitor(); monitor != nil {
		spotCount, futuresCount := 0, 0
		totalNotional := 0.0
		for _, pos := range monitor.Positions() {
			totalNotional += pos.Notional()
			if pos.Market == types.MarketFutures {
				futuresCount++
			} else {
				spotCount++
			}
		}
		resp["daily_pnl"] = monitor.DailyPnl()
		resp["drawdown"] = monitor.Drawdown()
		resp["spot_positions"] = spotCount
		resp["futures_positions"] = futuresCount
		resp["total_notional"] = totalNotional
	}

	c.JSON(http.StatusOK, resp)
}

// handlePositions 获取当前持仓
func (s *Server) handlePositions(c *gin.Context) {
	monitor := risk.GetMonitor()
	if monitor == nil {
		c.JSON(http.StatusOK, gin.H{"positions": []interface{}{}})
		return
	}

	positions := monitor.Positions()
	items := make([]map[string]interface{}, 0, len(positions))
	for _, pos := range positions {
		items = append(items, map[string]interface{}{
			"symbol":             pos.Symbol,
			"market":             pos.Market,
			"side":               pos.Side,
			"size":               pos.Size,
			"entry_price":        pos.EntryPrice,
			"current_price":      pos.CurrentPrice,
			"stop_loss":          pos.StopLoss,
			"take_profit":        pos.TakeProfit,
			"unrealized_pnl":     pos.UnrealizedPnl,
			"unrealized_pnl_pct": pos.PnlPct(),
			"notional":           pos.Notional(),
			"entry_time":         pos.EntryTime.Unix(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"positions": items,
		"count":     len(items),
	})
}

// handleTrades 获取成交历史
func (s *Server) handleTrades(c *gin.Context) {
	s.serveRedisList(c, "trade_history", 50)
}

// handleAudit 获取订单审计记录
func (s *Server) handleAudit(c *gin.Context) {
	s.serveRedisList(c, "order_audit", 50)
}

// handleCycles 获取周期汇总历史
func (s *Server) handleCycles(c *gin.Context) {
	s.serveRedisList(c, "cycle_history", 20)
}

// serveRedisList 输出Redis列表中的JSON记录
func (s *Server) serveRedisList(c *gin.Context, name string, defaultLimit int) {
	limit := defaultLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, err := s.redis.LRange(ctx, config.GetRedisKey(name), 0, int64(limit-1)).Result()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"items": []interface{}{}})
		return
	}

	items := make([]json.RawMessage, 0, len(raw))
	for _, entry := range raw {
		if json.Valid([]byte(entry)) {
			items = append(items, json.RawMessage(entry))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// handleMetrics 获取运行指标
func (s *Server) handleMetrics(c *gin.Context) {
	m := metrics.GetMetrics()
	c.JSON(http.StatusOK, gin.H{
		"http": gin.H{
			"requests_total":   m.HTTPRequestsTotal,
			"requests_success": m.HTTPRequestsSuccess,
			"requests_error":   m.HTTPRequestsError,
			"by_path":          m.HTTPRequestsByPath,
		},
		"trading": gin.H{
			"cycles_total":          m.CyclesTotal,
			"cycles_failed":         m.CyclesFailed,
			"last_cycle_ms":         m.LastCycleDurationMS,
			"opportunities_by_type": m.OpportunitiesByType,
			"signals_generated":     m.SignalsGenerated,
			"signals_validated":     m.SignalsValidated,
			"signals_rejected":      m.SignalsRejected,
			"orders_placed":         m.OrdersPlaced,
			"orders_failed":         m.OrdersFailed,
			"rebalances_triggered":  m.RebalancesTriggered,
			"transfers_executed":    m.TransfersExecuted,
			"risk_level":            m.CurrentRiskLevel,
		},
		"system": gin.H{
			"goroutines":   m.GoroutineCount,
			"memory_alloc": m.MemoryAlloc,
			"num_gc":       m.NumGC,
		},
		"timestamp": m.LastUpdate.Unix(),
	})
}

// handleWSToken 签发一次性WebSocket token
func (s *Server) handleWSToken(c *gin.Context) {
	token := utils.GenerateToken(32)
	if token == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_generation_failed"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := config.GetRedisKey(fmt.Sprintf("ws_token:%s", token))
	if err := s.redis.Set(ctx, key, "1", 30*time.Second).Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "redis_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": 30,
	})
}
