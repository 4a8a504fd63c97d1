package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
	"go.uber.org/zap"
)

// BinanceExchange Binance交易所实现（现货+USDT本位合约）
type BinanceExchange struct {
	client *HTTPClient
	log    *zap.SugaredLogger
}

var globalBinanceExchange *BinanceExchange

// GetBinanceExchange 获取Binance交易所实例（单例）
func GetBinanceExchange() *BinanceExchange {
	if globalBinanceExchange == nil {
		globalBinanceExchange = &BinanceExchange{
			client: GetHTTPClient(),
			log:    utils.GetLogger("exchange"),
		}
	}
	return globalBinanceExchange
}

// symbolToID 交易对符号转Binance符号："BTC/USDT"或"BTC/USDT:USDT" -> "BTCUSDT"
func symbolToID(symbol string) string {
	if i := strings.Index(symbol, ":"); i >= 0 {
		symbol = symbol[:i]
	}
	return strings.ReplaceAll(utils.NormalizeSymbol(symbol), "/", "")
}

// timeframeToInterval 时间周期映射（与Binance interval一致，直接透传）
func timeframeToInterval(timeframe string) string {
	if timeframe == "" {
		return "1h"
	}
	return timeframe
}

// GetTicker 获取行情
func (be *BinanceExchange) GetTicker(ctx context.Context, symbol string, market types.Market) (*types.Ticker, error) {
	endpoint := "/api/v3/ticker/24hr"
	if market == types.MarketFutures {
		endpoint = "/fapi/v1/ticker/24hr"
	}

	data, err := be.client.FetchJSON(ctx, market, endpoint, map[string]string{
		"symbol": symbolToID(symbol),
	})
	if err != nil {
		return nil, fmt.Errorf("获取行情失败 %s: %w", symbol, err)
	}

	obj, ok := data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("行情响应格式异常 %s", symbol)
	}

	ticker := &types.Ticker{
		Last:      parseFloatField(obj, "lastPrice"),
		Bid:       parseFloatField(obj, "bidPrice"),
		Ask:       parseFloatField(obj, "askPrice"),
		Volume:    parseFloatField(obj, "volume"),
		Timestamp: time.Now().Unix(),
	}
	if ticker.Last <= 0 {
		return nil, fmt.Errorf("行情价格非法 %s: %v", symbol, obj["lastPrice"])
	}
	return ticker, nil
}

// GetOHLCV 获取K线数据
func (be *BinanceExchange) GetOHLCV(ctx context.Context, symbol, timeframe string, limit int, market types.Market) ([]types.OHLCV, error) {
	endpoint := "/api/v3/klines"
	if market == types.MarketFutures {
		endpoint = "/fapi/v1/klines"
	}
	if limit <= 0 {
		limit = 100
	}

	data, err := be.client.FetchJSON(ctx, market, endpoint, map[string]string{
		"symbol":   symbolToID(symbol),
		"interval": timeframeToInterval(timeframe),
		"limit":    strconv.Itoa(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("获取K线失败 %s: %w", symbol, err)
	}

	rows, ok := data.([]interface{})
	if !ok {
		return nil, fmt.Errorf("K线响应格式异常 %s", symbol)
	}

	ohlcv := make([]types.OHLCV, 0, len(rows))
	for _, row := range rows {
		fields, ok := row.([]interface{})
		if !ok || len(fields) < 6 {
			continue
		}
		candle := types.OHLCV{
			Open:   parseFloatValue(fields[1]),
			High:   parseFloatValue(fields[2]),
			Low:    parseFloatValue(fields[3]),
			Close:  parseFloatValue(fields[4]),
			Volume: parseFloatValue(fields[5]),
		}
		if ts, ok := fields[0].(float64); ok {
			candle.Time = int64(ts) / 1000
		}
		ohlcv = append(ohlcv, candle)
	}
	return ohlcv, nil
}

// GetSpotBalance 获取现货余额（仅返回非零free部分）
func (be *BinanceExchange) GetSpotBalance(ctx context.Context) (map[string]float64, error) {
	data, err := be.client.SignedRequest(ctx, "GET", types.MarketSpot, "/api/v3/account", nil)
	if err != nil {
		return nil, fmt.Errorf("获取现货账户失败: %w", err)
	}

	obj, ok := data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("现货账户响应格式异常")
	}

	result := make(map[string]float64)
	balances, _ := obj["balances"].([]interface{})
	for _, b := range balances {
		entry, ok := b.(map[string]interface{})
		if !ok {
			continue
		}
		asset, _ := entry["asset"].(string)
		free := parseFloatField(entry, "free")
		if asset != "" && free > 0 {
			result[asset] = free
		}
	}
	return result, nil
}

// GetFuturesBalance 获取合约余额
func (be *BinanceExchange) GetFuturesBalance(ctx context.Context) (map[string]float64, error) {
	data, err := be.client.SignedRequest(ctx, "GET", types.MarketFutures, "/fapi/v2/balance", nil)
	if err != nil {
		return nil, fmt.Errorf("获取合约账户失败: %w", err)
	}

	rows, ok := data.([]interface{})
	if !ok {
		return nil, fmt.Errorf("合约账户响应格式异常")
	}

	result := make(map[string]float64)
	for _, row := range rows {
		entry, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		asset, _ := entry["asset"].(string)
		free := parseFloatField(entry, "availableBalance")
		if asset != "" && free > 0 {
			result[asset] = free
		}
	}
	return result, nil
}

// ExecuteOrder 市价下单
func (be *BinanceExchange) ExecuteOrder(ctx context.Context, symbol string, side types.Side, size float64, market types.Market) (*types.OrderResult, error) {
	if size <= 0 {
		return nil, fmt.Errorf("下单数量非法: %f", size)
	}

	endpoint := "/api/v3/order"
	if market == types.MarketFutures {
		endpoint = "/fapi/v1/order"
	}

	params := map[string]string{
		"symbol":   symbolToID(symbol),
		"side":     strings.ToUpper(string(side)),
		"type":     "MARKET",
		"quantity": strconv.FormatFloat(size, 'f', -1, 64),
	}

	data, err := be.client.SignedRequest(ctx, "POST", market, endpoint, params)
	if err != nil {
		return &types.OrderResult{Success: false, Error: err.Error()}, err
	}

	obj, ok := data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("下单响应格式异常 %s", symbol)
	}

	result := &types.OrderResult{Success: true}
	switch id := obj["orderId"].(type) {
	case float64:
		result.OrderID = strconv.FormatInt(int64(id), 10)
	case string:
		result.OrderID = id
	}

	executedQty := parseFloatField(obj, "executedQty")
	quoteQty := parseFloatField(obj, "cummulativeQuoteQty")
	if executedQty > 0 && quoteQty > 0 {
		result.Price = quoteQty / executedQty
	} else {
		result.Price = parseFloatField(obj, "avgPrice")
	}

	be.log.Infow("订单已提交", "symbol", symbol, "side", side,
		"size", size, "market", market, "order_id", result.OrderID)
	return result, nil
}

// Transfer 现货/合约账户间划转USDT
func (be *BinanceExchange) Transfer(ctx context.Context, asset string, amount float64, from, to types.Market) error {
	if amount <= 0 {
		return fmt.Errorf("划转金额非法: %f", amount)
	}

	var transferType string
	switch {
	case from == types.MarketSpot && to == types.MarketFutures:
		transferType = "MAIN_UMFUTURE"
	case from == types.MarketFutures && to == types.MarketSpot:
		transferType = "UMFUTURE_MAIN"
	default:
		return fmt.Errorf("不支持的划转方向: %s -> %s", from, to)
	}

	_, err := be.client.SignedRequest(ctx, "POST", types.MarketSpot, "/sapi/v1/asset/transfer", map[string]string{
		"type":   transferType,
		"asset":  asset,
		"amount": strconv.FormatFloat(amount, 'f', -1, 64),
	})
	if err != nil {
		return fmt.Errorf("划转失败: %w", err)
	}

	be.log.Infow("账户划转完成", "asset", asset, "amount", amount, "from", from, "to", to)
	return nil
}

func parseFloatField(obj map[string]interface{}, key string) float64 {
	return parseFloatValue(obj[key])
}

func parseFloatValue(v interface{}) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case string:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
