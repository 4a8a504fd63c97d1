package risk

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"go.uber.org/zap"
)

// SymbolStats 单币种历史统计
type SymbolStats struct {
	WinRate float64
	Samples int
}

// HistoricalStatsProvider 历史统计提供方
// 仓位计算只依赖该接口，统计来源可替换且可在测试中固定
type HistoricalStatsProvider interface {
	SymbolStats(ctx context.Context, symbol string) SymbolStats
}

// 各币种基准胜率（样本不足时的回退值）
var baselineWinRates = map[string]float64{
	"BTC/USDT":  0.58,
	"ETH/USDT":  0.56,
	"BNB/USDT":  0.54,
	"XRP/USDT":  0.52,
	"SOL/USDT":  0.55,
	"ADA/USDT":  0.53,
	"AVAX/USDT": 0.54,
	"LINK/USDT": 0.56,
	"TRX/USDT":  0.51,
}

const defaultWinRate = 0.52

// 胜率统计至少需要的平仓样本数
const minStatsSamples = 10

// BaselineWinRate 基准胜率查表
func BaselineWinRate(symbol string) float64 {
	if rate, ok := baselineWinRates[symbol]; ok {
		return rate
	}
	return defaultWinRate
}

// statsStore 统计读写所需的最小Redis命令集
type statsStore interface {
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// LedgerStats 基于Redis平仓记录的统计提供方
// 样本不足时回退到基准胜率表
type LedgerStats struct {
	rdb statsStore
	log *zap.SugaredLogger
}

// NewLedgerStats 创建统计提供方
func NewLedgerStats(rdb utils.RedisClient) *LedgerStats {
	s := &LedgerStats{log: utils.GetLogger("stats")}
	if rdb != nil {
		s.rdb = rdb
	}
	return s
}

// SymbolStats 读取最近平仓盈亏计算胜率
func (s *LedgerStats) SymbolStats(ctx context.Context, symbol string) SymbolStats {
	fallback := SymbolStats{WinRate: BaselineWinRate(symbol)}
	if s.rdb == nil {
		return fallback
	}

	key := config.GetRedisKey("trade_results:" + symbol)
	values, err := s.rdb.LRange(ctx, key, 0, 99).Result()
	if err != nil && err != redis.Nil {
		s.log.Warnw("读取平仓记录失败，使用基准胜率", "symbol", symbol, "error", err)
		return fallback
	}
	if len(values) < minStatsSamples {
		return fallback
	}

	wins := 0
	total := 0
	for _, v := range values {
		pnl, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		total++
		if pnl > 0 {
			wins++
		}
	}
	if total < minStatsSamples {
		return fallback
	}

	return SymbolStats{
		WinRate: float64(wins) / float64(total),
		Samples: total,
	}
}

// RecordTradeResult 记录一笔平仓盈亏
func (s *LedgerStats) RecordTradeResult(ctx context.Context, symbol string, pnl float64) {
	if s.rdb == nil {
		return
	}
	key := config.GetRedisKey("trade_results:" + symbol)
	if err := s.rdb.LPush(ctx, key, strconv.FormatFloat(pnl, 'f', -1, 64)).Err(); err != nil {
		s.log.Warnw("记录平仓盈亏失败", "symbol", symbol, "error", err)
		return
	}
	s.rdb.LTrim(ctx, key, 0, 199)
}

// FixedStats 固定胜率提供方（仅查基准表），便于确定性复算
type FixedStats struct{}

// SymbolStats 返回基准胜率
func (FixedStats) SymbolStats(_ context.Context, symbol string) SymbolStats {
	return SymbolStats{WinRate: BaselineWinRate(symbol)}
}
