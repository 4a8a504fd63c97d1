package config

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// PerformanceOptimizer 性能优化器
// 周期性读取指标快照，生成配置调优建议写回Redis；只建议，不直接改配置
type PerformanceOptimizer struct {
	redis *RedisAdapter
}

var globalOptimizer *PerformanceOptimizer

// GetOptimizer 获取优化器实例
func GetOptimizer() *PerformanceOptimizer {
	if globalOptimizer == nil {
		globalOptimizer = &PerformanceOptimizer{
			redis: NewRedisAdapter(),
		}
	}
	return globalOptimizer
}

// GetRedisAdapter 获取Redis适配器
func (o *PerformanceOptimizer) GetRedisAdapter() (*RedisAdapter, bool) {
	return o.redis, o.redis != nil
}

// OptimizeConfig 根据性能指标生成优化建议
func (o *PerformanceOptimizer) OptimizeConfig(ctx context.Context) error {
	logger := zap.S().Named("optimizer")
	cfg := Get()

	key := GetRedisKey("metrics:performance")
	raw, err := o.redis.Get(ctx, key).Result()
	if err != nil {
		logger.Debugw("未找到性能指标，跳过优化", "error", err)
		return nil
	}

	var metrics map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &metrics); err != nil {
		logger.Warnw("解析性能指标失败", "error", err)
		return err
	}

	recommendations := make(map[string]interface{})

	// 分析HTTP指标
	if httpData, ok := metrics["http"].(map[string]interface{}); ok {
		avgLatencyMs, _ := httpData["avg_latency_ms"].(float64)
		errorRate := 0.0
		if total, _ := httpData["requests_total"].(float64); total > 0 {
			errors, _ := httpData["requests_error"].(float64)
			errorRate = errors / total
		}

		// 平均延迟高时增加状态缓存时间
		if avgLatencyMs > 200 {
			if cfg.WebStatusCacheTTLSec < 30 {
				recommendations["web_status_cache_ttl_sec"] = 30.0
				logger.Infow("建议增加状态缓存时间",
					"当前", cfg.WebStatusCacheTTLSec,
					"建议", 30.0,
					"原因", "平均延迟较高",
				)
			}
		}

		// 错误率高时增加交易所HTTP超时
		if errorRate > 0.05 {
			if cfg.BinanceHTTPTimeoutSec < 30 {
				recommendations["binance_http_timeout_sec"] = 30.0
				logger.Infow("建议增加HTTP超时时间",
					"当前", cfg.BinanceHTTPTimeoutSec,
					"建议", 30.0,
					"原因", "错误率较高",
				)
			}
		}
	}

	// 分析系统指标
	if sysData, ok := metrics["system"].(map[string]interface{}); ok {
		goroutines, _ := sysData["goroutines"].(float64)
		memoryAlloc, _ := sysData["memory_alloc"].(float64)

		// goroutine过多时减少快照采集并发
		if goroutines > 1000 {
			if cfg.SnapshotConcurrency > 5 {
				recommendations["snapshot_concurrency"] = 5
				logger.Infow("建议减少快照采集并发数",
					"当前", cfg.SnapshotConcurrency,
					"建议", 5,
					"原因", "goroutine数量过多",
				)
			}
		}

		// 内存使用高时缩短周期历史保留长度
		if memoryAlloc > 500*1024*1024 { // 500MB
			if cfg.CycleHistoryMaxLen > 200 {
				recommendations["cycle_history_max_len"] = 200
				logger.Infow("建议缩短周期历史保留长度",
					"当前", cfg.CycleHistoryMaxLen,
					"建议", 200,
					"原因", "内存使用较高",
				)
			}
		}
	}

	// 分析交易指标
	if tradingData, ok := metrics["trading"].(map[string]interface{}); ok {
		lastCycleMs, _ := tradingData["last_cycle_ms"].(float64)
		cycleFailRate := 0.0
		if total, _ := tradingData["cycles_total"].(float64); total > 0 {
			failed, _ := tradingData["cycles_failed"].(float64)
			cycleFailRate = failed / total
		}

		// 单周期耗时接近周期间隔时拉长间隔
		budgetMs := float64(cfg.CycleIntervalSec) * 1000
		if budgetMs > 0 && lastCycleMs > budgetMs*0.8 {
			recommendations["cycle_interval_sec"] = cfg.CycleIntervalSec * 2
			logger.Infow("建议拉长交易周期间隔",
				"当前", cfg.CycleIntervalSec,
				"建议", cfg.CycleIntervalSec*2,
				"原因", "单周期耗时接近周期间隔",
			)
		}

		if cycleFailRate > 0.1 {
			logger.Warnw("交易周期失败率较高",
				"fail_rate", cycleFailRate,
				"建议", "检查交易所连通性和Redis可用性",
			)
		}
	}

	// 保存优化建议
	if len(recommendations) > 0 {
		recommendationsKey := GetRedisKey("config:recommendations")
		recommendationsData := map[string]interface{}{
			"recommendations": recommendations,
			"timestamp":       time.Now().Unix(),
		}
		recommendationsJSON, _ := json.Marshal(recommendationsData)
		_ = o.redis.Set(ctx, recommendationsKey, recommendationsJSON, 24*time.Hour)
	}

	return nil
}

// StartOptimizer 启动优化器
func StartOptimizer(ctx context.Context) {
	logger := zap.S().Named("optimizer")
	optimizer := GetOptimizer()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	logger.Info("配置优化器启动")

	for {
		select {
		case <-ctx.Done():
			logger.Info("配置优化器停止")
			return
		case <-ticker.C:
			if err := optimizer.OptimizeConfig(ctx); err != nil {
				logger.Warnw("配置优化失败", "error", err)
			}
		}
	}
}
