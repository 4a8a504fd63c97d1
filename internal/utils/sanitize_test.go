package utils

import (
	"strings"
	"testing"
)

func TestSanitizeStringSignedRequestURL(t *testing.T) {
	url := "https://fapi.binance.com/fapi/v1/order?symbol=BTCUSDT&timestamp=1700000000000&signature=0d4f2a9c8b7e6d5f1a2b3c4d5e6f7a8b"
	got := SanitizeString(url)
	if strings.Contains(got, "0d4f2a9c8b7e6d5f1a2b3c4d5e6f7a8b") {
		t.Errorf("signature not scrubbed: %s", got)
	}
	if !strings.Contains(got, "signature=***") {
		t.Errorf("expected masked signature, got %s", got)
	}
	if !strings.Contains(got, "symbol=BTCUSDT") {
		t.Errorf("non-sensitive params should survive, got %s", got)
	}
}

func TestSanitizeStringAPIKeyHeader(t *testing.T) {
	line := `request headers: X-MBX-APIKEY: vmPUZE6mv9SD5VNHk4HlWFsOr6aKE2zvsw0MuIgwCIPy6utIco14y7Ju91duEh8A`
	got := SanitizeString(line)
	if strings.Contains(got, "vmPUZE6mv9SD5VNHk4HlWFsOr6aKE2zvsw0MuIgwCIPy6utIco14y7Ju91duEh8A") {
		t.Errorf("api key not scrubbed: %s", got)
	}
	if !strings.Contains(got, "X-MBX-APIKEY: ***") {
		t.Errorf("expected masked header, got %s", got)
	}
}

func TestSanitizeStringListenKey(t *testing.T) {
	url := "wss://stream.binance.com:9443/ws?listenKey=pqia91ma19a5s61cv6a81va65sdf19v8"
	got := SanitizeString(url)
	if strings.Contains(got, "pqia91ma19a5s61cv6a81va65sdf19v8") {
		t.Errorf("listenKey not scrubbed: %s", got)
	}
	if !strings.Contains(got, "listenKey=***") {
		t.Errorf("expected masked listenKey, got %s", got)
	}
}

func TestSanitizeStringBareLongKey(t *testing.T) {
	// 64位密钥即使没有字段名也应被兜底规则捕获
	line := "credential check failed for NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"
	got := SanitizeString(line)
	if strings.Contains(got, "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j") {
		t.Errorf("bare key not scrubbed: %s", got)
	}
}

func TestSanitizeStringPassword(t *testing.T) {
	got := SanitizeString(`redis password="hunter2secret"`)
	if strings.Contains(got, "hunter2secret") {
		t.Errorf("password not scrubbed: %s", got)
	}
	if !strings.Contains(got, `password="***"`) {
		t.Errorf("expected masked password, got %s", got)
	}
}

func TestSanitizeStringEmpty(t *testing.T) {
	if got := SanitizeString(""); got != "" {
		t.Errorf("expected empty string unchanged, got %q", got)
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if got := NormalizeSymbol(" btc-usdt "); got != "BTCUSDT" {
		t.Errorf("expected BTCUSDT, got %s", got)
	}
}
