package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

// HTTPClient Binance HTTP客户端封装
// 现货和合约分属不同主机，共用限流和退避
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	spotURL     string
	futuresURL  string
	apiKey      string
	secretKey   string
}

var globalHTTPClient *HTTPClient

// GetHTTPClient 获取全局HTTP客户端（单例）
func GetHTTPClient() *HTTPClient {
	if globalHTTPClient == nil {
		cfg := config.Get()
		globalHTTPClient = &HTTPClient{
			client: &http.Client{
				Timeout: time.Duration(cfg.BinanceHTTPTimeoutSec) * time.Second,
			},
			rateLimiter: NewRateLimiter(10.0, 20), // 10 req/s, capacity 20
			spotURL:     cfg.BinanceSpotBaseURL,
			futuresURL:  cfg.BinanceFAPIBaseURL,
			apiKey:      cfg.BinanceAPIKey,
			secretKey:   cfg.BinanceSecretKey,
		}
	}
	return globalHTTPClient
}

func (c *HTTPClient) baseURL(market types.Market) string {
	if market == types.MarketFutures {
		return c.futuresURL
	}
	return c.spotURL
}

// FetchJSON 获取公开JSON数据（带限流和退避）
func (c *HTTPClient) FetchJSON(ctx context.Context, market types.Market, endpoint string, params map[string]string) (interface{}, error) {
	return c.do(ctx, http.MethodGet, market, endpoint, params, false)
}

// SignedRequest 发送签名请求（自动附加timestamp和signature）
func (c *HTTPClient) SignedRequest(ctx context.Context, method string, market types.Market, endpoint string, params map[string]string) (interface{}, error) {
	if c.apiKey == "" || c.secretKey == "" {
		return nil, fmt.Errorf("binance credentials not configured")
	}
	if params == nil {
		params = make(map[string]string)
	}
	params["timestamp"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	return c.do(ctx, method, market, endpoint, params, true)
}

func (c *HTTPClient) do(ctx context.Context, method string, market types.Market, endpoint string, params map[string]string, signed bool) (interface{}, error) {
	// 等待退避窗口（如果有）
	backoff := GetGlobalBackoff()
	backoff.WaitBackoff("binance")

	// 应用限流
	c.rateLimiter.Wait(1)

	u, err := url.Parse(c.baseURL(market) + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	query := q.Encode()

	if signed {
		mac := hmac.New(sha256.New, []byte(c.secretKey))
		mac.Write([]byte(query))
		signature := hex.EncodeToString(mac.Sum(nil))
		query += "&signature=" + signature
	}
	u.RawQuery = query

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		backoff.ResetBackoff("binance")

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body failed: %w", err)
		}

		var result interface{}
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("parse JSON failed: %w", err)
		}
		return result, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418 {
		retryAfterStr := resp.Header.Get("Retry-After")
		var retryAfter *float64
		if retryAfterStr != "" {
			retryAfter = ParseRetryAfter(retryAfterStr)
		}

		waitSec := backoff.OnRateLimited("binance", resp.StatusCode, retryAfter)
		utils.GetLogger("exchange").Warnw("API rate limited",
			"status", resp.StatusCode,
			"endpoint", endpoint,
			"wait_sec", waitSec,
		)
		return nil, fmt.Errorf("rate limited: HTTP %d, wait %.1fs", resp.StatusCode, waitSec)
	}

	body, _ := io.ReadAll(resp.Body)
	return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, utils.SanitizeString(string(body)))
}
