package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/yuechangmingzou/hybrid-go/internal/risk"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		engine: gin.New(),
		logger: utils.GetLogger("web"),
	}
	s.engine.GET("/api/risk", s.handleRisk)
	return s
}

func TestHandleRisk(t *testing.T) {
	monitor := risk.InitMonitor(risk.MonitorParams{
		MaxDailyLoss: 0.05,
		MaxDrawdown:  0.20,
	})
	monitor.Book().Register("BTC/USDT", types.MarketSpot, types.SideBuy, 0.1, 50000)
	monitor.Book().Register("BTC/USDT:USDT", types.MarketFutures, types.SideSell, 0.02, 50000)

	s := newTestServer()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/risk", nil)
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if _, ok := body["risk_level"]; !ok {
		t.Error("expected a risk_level field")
	}
	if got, ok := body["spot_positions"].(float64); !ok || got != 1 {
		t.Errorf("expected 1 spot position, got %v", body["spot_positions"])
	}
	if got, ok := body["futures_positions"].(float64); !ok || got != 1 {
		t.Errorf("expected 1 futures position, got %v", body["futures_positions"])
	}
	// 名义价值 0.1*50000 + 0.02*50000 = 6000
	if got, ok := body["total_notional"].(float64); !ok || got != 6000 {
		t.Errorf("expected total notional 6000, got %v", body["total_notional"])
	}
}
