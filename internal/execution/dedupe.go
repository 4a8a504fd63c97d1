package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

// checkAndSetDedupe 检查并设置去重标记
// 同一(symbol, market, action, size)在去重窗口内只允许执行一次
func (e *ExecutionEngine) checkAndSetDedupe(ctx context.Context, sig *types.TradeSignal) bool {
	cfg := config.Get()

	dedupeKey := config.GetRedisKey(fmt.Sprintf("dedupe:%s:%s:%s:%.8f",
		sig.Symbol,
		sig.Market,
		sig.Action,
		sig.Size,
	))

	exists, err := e.redis.Exists(ctx, dedupeKey).Result()
	if err != nil {
		return true // 出错时允许继续（避免阻塞）
	}
	if exists > 0 {
		return false // 去重命中
	}

	ttl := time.Duration(cfg.OrderDedupeWindowSec) * time.Second
	if ttl <= 0 {
		ttl = 55 * time.Second
	}
	e.redis.Set(ctx, dedupeKey, "1", ttl)
	return true
}
