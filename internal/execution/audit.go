package execution

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

// saveAudit 保存订单审计日志
func (e *ExecutionEngine) saveAudit(ctx context.Context, event map[string]interface{}) {
	cfg := config.Get()
	key := config.GetRedisKey("order_audit")

	event["ts"] = time.Now().Unix()
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return
	}

	eventStr := string(eventJSON)
	if len(eventStr) > 2000 {
		eventStr = eventStr[:2000] + "...[已截断]"
	}

	e.redis.LPush(ctx, key, eventStr)
	maxLen := cfg.OrderAuditMaxLen
	if maxLen <= 0 {
		maxLen = 2000
	}
	e.redis.LTrim(ctx, key, 0, int64(maxLen-1))
}

// pushTradeHistory 推送成交历史
func (e *ExecutionEngine) pushTradeHistory(ctx context.Context, record types.TradeRecord) {
	cfg := config.Get()
	key := config.GetRedisKey("trade_history")

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return
	}

	e.redis.LPush(ctx, key, string(recordJSON))
	maxLen := cfg.TradeHistoryMaxLen
	if maxLen <= 0 {
		maxLen = 500
	}
	e.redis.LTrim(ctx, key, 0, int64(maxLen-1))
}
