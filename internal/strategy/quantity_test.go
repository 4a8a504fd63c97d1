package strategy

import (
	"math"
	"testing"
)

func TestSafeQuantityBasic(t *testing.T) {
	// 100 USDT按5万买BTC：0.002，精度5位无需截断
	qty := SafeQuantity("BTC/USDT", 100, 50000)
	if math.Abs(qty-0.002) > 1e-9 {
		t.Errorf("expected 0.002 BTC, got %f", qty)
	}

	// 未知币种走默认精度3位
	qty = SafeQuantity("DOGE/USDT", 50, 0.1)
	if math.Abs(qty-500.0) > 1e-9 {
		t.Errorf("expected 500 DOGE, got %f", qty)
	}
}

func TestSafeQuantityMinNotional(t *testing.T) {
	// 3 USDT低于最小名义价值5 USDT
	if qty := SafeQuantity("BTC/USDT", 3, 50000); qty != 0 {
		t.Errorf("expected 0 below the minimum notional, got %f", qty)
	}

	// 恰好5 USDT可以成交
	if qty := SafeQuantity("BTC/USDT", 5, 50000); qty == 0 {
		t.Error("expected a non-zero quantity at exactly the minimum notional")
	}
}

func TestSafeQuantityMinQuantity(t *testing.T) {
	// TRX最小下单量1.0，预算只够0.42个
	if qty := SafeQuantity("TRX/USDT", 0.05, 0.12); qty != 0 {
		t.Errorf("expected 0 below the minimum quantity, got %f", qty)
	}
}

func TestSafeQuantityRoundingRecheck(t *testing.T) {
	// ADA精度2位：11.111向下取整到11.11后名义价值4.9995，跌破5 USDT门槛
	if qty := SafeQuantity("ADA/USDT", 5.0, 0.45); qty != 0 {
		t.Errorf("expected 0 after rounding pushes notional below the floor, got %f", qty)
	}
}

func TestSafeQuantityRoundsDown(t *testing.T) {
	// ETH精度4位，0.033333...截断为0.0333，绝不超出预算
	qty := SafeQuantity("ETH/USDT", 100, 3000)
	if math.Abs(qty-0.0333) > 1e-9 {
		t.Errorf("expected 0.0333 ETH, got %f", qty)
	}
	if qty*3000 > 100 {
		t.Errorf("rounded quantity exceeds the budget: %f", qty*3000)
	}
}

func TestSafeQuantityInvalidInputs(t *testing.T) {
	if qty := SafeQuantity("BTC/USDT", 100, 0); qty != 0 {
		t.Errorf("expected 0 for non-positive price, got %f", qty)
	}
	if qty := SafeQuantity("BTC/USDT", 0, 50000); qty != 0 {
		t.Errorf("expected 0 for non-positive budget, got %f", qty)
	}
	if qty := SafeQuantity("BTC/USDT", -10, 50000); qty != 0 {
		t.Errorf("expected 0 for negative budget, got %f", qty)
	}
}
