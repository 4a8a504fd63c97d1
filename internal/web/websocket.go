package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/internal/metrics"
	"github.com/yuechangmingzou/hybrid-go/internal/risk"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 连接需先通过/api/ws-token获取一次性token
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWebSocket WebSocket处理
// token通过Sec-WebSocket-Protocol传递: ["hybrid", "<token>"]
func (s *Server) handleWebSocket(c *gin.Context) {
	wsToken := ""
	protocols := c.GetHeader("Sec-WebSocket-Protocol")
	if protocols != "" {
		parts := splitAndTrim(protocols, ",")
		for i := len(parts) - 1; i >= 0; i-- {
			if parts[i] != "hybrid" {
				wsToken = parts[i]
				break
			}
		}
	}

	if wsToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_ws_token"})
		return
	}

	// 验证并一次性消费token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := config.GetRedisKey(fmt.Sprintf("ws_token:%s", wsToken))
	if _, err := s.redis.Get(ctx, key).Result(); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_ws_token"})
		return
	}
	_ = s.redis.Del(ctx, key)

	header := make(http.Header)
	header.Set("Sec-WebSocket-Protocol", "hybrid")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, header)
	if err != nil {
		s.logger.Warnw("WebSocket升级失败", "error", err)
		return
	}
	defer conn.Close()

	metrics.RecordWebSocketConnection(true)

	broadcastSec := s.config.WSBroadcastSec
	if broadcastSec <= 0 {
		broadcastSec = 5
	}
	ticker := time.NewTicker(time.Duration(broadcastSec) * time.Second)
	defer ticker.Stop()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	// 读取goroutine只用于检测连接关闭
	errChan := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				errChan <- err
				return
			}
		}
	}()

	for {
		select {
		case err := <-errChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warnw("WebSocket连接异常关闭", "error", err)
			}
			return
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ticker.C:
			wsCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			summary := s.latestCycleSummary(wsCtx)
			cancel()

			if summary != nil {
				data := map[string]interface{}{
					"type":      "cycle_summary",
					"summary":   summary,
					"timestamp": time.Now().Unix(),
				}
				if err := s.sendWSMessage(conn, data); err != nil {
					return
				}
			}

			positions := s.positionsForWS()
			data := map[string]interface{}{
				"type":      "positions",
				"positions": positions,
				"timestamp": time.Now().Unix(),
			}
			if err := s.sendWSMessage(conn, data); err != nil {
				return
			}
		}
	}
}

// sendWSMessage 发送WebSocket消息
func (s *Server) sendWSMessage(conn *websocket.Conn, data map[string]interface{}) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Warnw("WebSocket序列化失败", "error", err)
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, dataJSON); err != nil {
		metrics.RecordWebSocketMessage(false)
		return err
	}
	metrics.RecordWebSocketMessage(true)
	return nil
}

// latestCycleSummary 读取最近一次周期汇总
func (s *Server) latestCycleSummary(ctx context.Context) map[string]interface{} {
	raw, err := s.redis.Get(ctx, config.GetRedisKey("cycle_summary_latest")).Result()
	if err != nil {
		return nil
	}

	var summary map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil
	}
	return summary
}

// positionsForWS 获取广播用的持仓数据
func (s *Server) positionsForWS() []map[string]interface{} {
	monitor := risk.GetMonitor()
	if monitor == nil {
		return []map[string]interface{}{}
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
			"unrealized_pnl":     pos.UnrealizedPnl,
			"unrealized_pnl_pct": pos.PnlPct(),
		})
	}
	return items
}

// splitAndTrim 分割字符串并去除空格
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
