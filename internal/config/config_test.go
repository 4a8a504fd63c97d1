package config

import (
	"math"
	"testing"
)

func TestGetRedisKey(t *testing.T) {
	if key := GetRedisKey("trades"); key != "hybrid:trades" {
		t.Errorf("expected hybrid:trades, got %s", key)
	}
}

func TestFuturesSymbol(t *testing.T) {
	if s := FuturesSymbol("BTC/USDT"); s != "BTC/USDT:USDT" {
		t.Errorf("expected BTC/USDT:USDT, got %s", s)
	}
	// 已经是合约符号时保持不变
	if s := FuturesSymbol("BTC/USDT:USDT"); s != "BTC/USDT:USDT" {
		t.Errorf("expected idempotent mapping, got %s", s)
	}
}

func TestIsFuturesSupported(t *testing.T) {
	cfg := &Config{FuturesSupportedSymbols: []string{"BTC/USDT", "ETH/USDT"}}

	if !cfg.IsFuturesSupported("BTC/USDT") {
		t.Error("expected BTC/USDT to be supported")
	}
	if cfg.IsFuturesSupported("DOGE/USDT") {
		t.Error("expected DOGE/USDT to be unsupported")
	}
}

func TestLoadDefaults(t *testing.T) {
	if err := Load(); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	cfg := Get()

	if cfg.CycleIntervalSec <= 0 {
		t.Errorf("expected a positive cycle interval, got %d", cfg.CycleIntervalSec)
	}
	if math.Abs(cfg.SpotAllocation+cfg.FuturesAllocation-1.0) > 1e-9 {
		t.Errorf("expected default allocations to sum to 1, got %f + %f",
			cfg.SpotAllocation, cfg.FuturesAllocation)
	}
	if len(cfg.TradingSymbols) == 0 {
		t.Error("expected default trading symbols")
	}
	if cfg.BaseConfidenceThreshold <= 0 || cfg.BaseConfidenceThreshold >= 1 {
		t.Errorf("expected confidence threshold in (0, 1), got %f", cfg.BaseConfidenceThreshold)
	}
}

func TestParseStringList(t *testing.T) {
	t.Setenv("TRADING_SYMBOLS", " btc/usdt , eth/usdt ,")
	if err := Load(); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	symbols := Get().TradingSymbols
	if len(symbols) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(symbols))
	}
	// 统一大写并去除空白
	if symbols[0] != "BTC/USDT" || symbols[1] != "ETH/USDT" {
		t.Errorf("expected normalized symbols, got %v", symbols)
	}
}
