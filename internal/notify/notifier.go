package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"go.uber.org/zap"
)

// Notifier 告警推送器
//
// 通过Webhook推送风险告警, 用Redis做去重和限频,
// 避免同一告警在短时间内重复轰炸。
type Notifier struct {
	client *resty.Client
	redis  *redis.Client
	cfg    *config.Config
	log    *zap.SugaredLogger
}

var globalNotifier *Notifier

// GetNotifier 获取告警推送器（单例模式）
func GetNotifier() *Notifier {
	if globalNotifier == nil {
		globalNotifier = NewNotifier(config.Get(), utils.GetRedisClient())
	}
	return globalNotifier
}

// NewNotifier 创建告警推送器
func NewNotifier(cfg *config.Config, redis *redis.Client) *Notifier {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetRetryCount(2)

	return &Notifier{
		client: client,
		redis:  redis,
		cfg:    cfg,
		log:    utils.GetLogger("notify"),
	}
}

// SendRiskAlert 推送风险告警
func (n *Notifier) SendRiskAlert(ctx context.Context, level, symbol, message string) {
	n.send(ctx, map[string]interface{}{
		"type":      "risk_alert",
		"level":     level,
		"symbol":    symbol,
		"message":   utils.SanitizeString(message),
		"timestamp": time.Now().Unix(),
	}, fmt.Sprintf("%s:%s:%s", level, symbol, message))
}

// SendError 推送系统错误
func (n *Notifier) SendError(ctx context.Context, source, message string) {
	n.send(ctx, map[string]interface{}{
		"type":      "system_error",
		"source":    source,
		"message":   utils.SanitizeString(message),
		"timestamp": time.Now().Unix(),
	}, fmt.Sprintf("error:%s:%s", source, message))
}

func (n *Notifier) send(ctx context.Context, payload map[string]interface{}, dedupeSeed string) {
	if !n.cfg.AlertEnabled || n.cfg.AlertWebhookURL == "" {
		return
	}

	if !n.passDedupe(ctx, dedupeSeed) {
		return
	}
	if !n.passRateLimit(ctx) {
		return
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(n.cfg.AlertWebhookURL)
	if err != nil {
		n.log.Warnw("告警推送失败", "error", err)
		return
	}
	if resp.StatusCode() >= 400 {
		n.log.Warnw("告警推送被拒绝", "status", resp.StatusCode())
		return
	}

	n.log.Debugw("告警已推送", "type", payload["type"])
}

// passDedupe 同一内容在TTL内只推送一次
func (n *Notifier) passDedupe(ctx context.Context, seed string) bool {
	sum := sha256.Sum256([]byte(seed))
	key := config.GetRedisKey("alert:dedupe:" + hex.EncodeToString(sum[:8]))
	ttl := time.Duration(n.cfg.AlertDedupeTTLSec) * time.Second
	if ttl <= 0 {
		ttl = 300 * time.Second
	}

	ok, err := n.redis.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		// Redis不可用时放行, 宁可重复也不丢告警
		return true
	}
	return ok
}

// passRateLimit 全局最小推送间隔
func (n *Notifier) passRateLimit(ctx context.Context) bool {
	interval := time.Duration(n.cfg.AlertMinIntervalSec) * time.Second
	if interval <= 0 {
		return true
	}

	key := config.GetRedisKey("alert:last_sent")
	ok, err := n.redis.SetNX(ctx, key, "1", interval).Result()
	if err != nil {
		return true
	}
	return ok
}
