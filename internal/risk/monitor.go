package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/yuechangmingzou/hybrid-go/internal/analysis"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
	"go.uber.org/zap"
)

const (
	// 盈利超过该比例后启动移动止损
	trailingActivationPct = 0.05

	// 移动止损距离现价的比例
	trailingStopPct = 0.02

	// 亏损超过该比例触发大额亏损告警
	largeLossPct = -0.08

	// 危机模式下减仓的亏损线和减仓比例
	reduceLossThreshold = -0.05
	reduceFraction      = 0.5

	// 高风险模式下收紧止损的距离
	tightStopPct = 0.03

	// 流动性冲击名义价值门槛
	highImpactNotional   = 10000.0
	mediumImpactNotional = 5000.0
)

// MonitorParams 风险监控参数
type MonitorParams struct {
	MaxDailyLoss         float64
	MaxDrawdown          float64
	StopLossPct          float64
	TakeProfitPct        float64
	PositionTimeoutHours int
	MaxLeverage          float64
	ShortPositionLimit   float64
	MaxPositionSize      float64
}

// OrderExecutor 风控自动动作的下单回调
type OrderExecutor func(ctx context.Context, symbol string, market types.Market, side types.Side, size float64) error

// TradeResultRecorder 平仓盈亏记录方（历史胜率的数据来源）
type TradeResultRecorder interface {
	RecordTradeResult(ctx context.Context, symbol string, pnl float64)
}

// TradeValidation 交易前校验结果
type TradeValidation struct {
	Valid        bool     `json:"valid"`
	AdjustedSize float64  `json:"adjusted_size"`
	Warnings     []string `json:"warnings,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// Monitor 多因子风险监控器
// 持仓账本由本监控器独占，其他模块只读副本
type Monitor struct {
	params MonitorParams
	book   *PositionBook
	log    *zap.SugaredLogger

	mu             sync.Mutex
	alerts         []types.RiskAlert
	previousRegime string
	appliedActions map[string]bool

	dailyPnL        float64
	peakBalance     float64
	currentDrawdown float64

	executor OrderExecutor
	ledger   TradeResultRecorder
}

var (
	monitorOnce sync.Once
	monitor     *Monitor
)

// NewMonitor 创建风险监控器
func NewMonitor(params MonitorParams) *Monitor {
	return &Monitor{
		params:         params,
		book:           NewPositionBook(),
		log:            utils.GetLogger("risk"),
		appliedActions: make(map[string]bool),
	}
}

// InitMonitor 初始化全局风险监控器
func InitMonitor(params MonitorParams) *Monitor {
	monitorOnce.Do(func() {
		monitor = NewMonitor(params)
	})
	return monitor
}

// GetMonitor 获取全局风险监控器
func GetMonitor() *Monitor {
	return monitor
}

// SetExecutor 注册自动减仓的下单回调
func (m *Monitor) SetExecutor(fn OrderExecutor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executor = fn
}

// SetLedger 注册平仓盈亏记录方
func (m *Monitor) SetLedger(ledger TradeResultRecorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = ledger
}

// Book 持仓账本
func (m *Monitor) Book() *PositionBook {
	return m.book
}

// Positions 全部持仓副本
func (m *Monitor) Positions() []*types.Position {
	return m.book.List()
}

// RegisterTrade 登记成交并设置初始止损止盈
// 反向成交轧差出的已实现盈亏计入当日统计并写入平仓账本
func (m *Monitor) RegisterTrade(symbol string, market types.Market, side types.Side, size, price, volatility, strength float64) {
	p, realized := m.book.Register(symbol, market, side, size, price)
	if realized != 0 {
		m.recordRealized(context.Background(), symbol, realized)
	}
	if p == nil {
		return
	}
	stopLoss := m.StopLossPrice(side, price, volatility)
	takeProfit := m.TakeProfitPrice(side, price, strength)
	m.book.SetProtection(symbol, market, stopLoss, takeProfit)
}

// recordRealized 已实现盈亏入账：当日累计和历史胜率账本
func (m *Monitor) recordRealized(ctx context.Context, symbol string, pnl float64) {
	m.mu.Lock()
	m.dailyPnL += pnl
	ledger := m.ledger
	m.mu.Unlock()

	if ledger != nil {
		ledger.RecordTradeResult(ctx, symbol, pnl)
	}
}

// UpdatePrice 更新持仓标记价格
func (m *Monitor) UpdatePrice(symbol string, market types.Market, price float64) {
	m.book.UpdatePrice(symbol, market, price)
}

// MonitorCycle 执行一轮完整风险评估
// 五个子评估的分数取平均得到总体等级，危机/高风险触发自动动作；
// 同一周期内自动动作只应用一次
func (m *Monitor) MonitorCycle(ctx context.Context, regime string, balance float64) types.RiskAssessment {
	m.mu.Lock()
	m.appliedActions = make(map[string]bool)
	m.mu.Unlock()

	components := map[string]types.RiskLevel{
		"position":    m.assessPositionRisks(),
		"correlation": m.assessCorrelationRisks(),
		"regime":      m.assessRegimeChange(regime),
		"liquidity":   m.assessLiquidityRisks(),
		"leverage":    m.assessLeverageRisks(balance),
	}

	total := 0.0
	for _, level := range components {
		total += level.Score()
	}
	score := total / float64(len(components))
	level := types.RiskLevelFromScore(score)

	assessment := types.RiskAssessment{
		Level:           level,
		Score:           score,
		Components:      components,
		Recommendations: m.recommendations(components),
	}

	switch level {
	case types.RiskCritical:
		assessment.ActionsTaken = m.reduceLosingPositions(ctx)
	case types.RiskHigh:
		assessment.ActionsTaken = m.tightenStopLosses()
	}

	if level == types.RiskHigh || level == types.RiskCritical {
		m.log.Warnw("风险等级偏高", "level", level, "score", score,
			"components", components, "actions", assessment.ActionsTaken)
	}

	return assessment
}

// assessPositionRisks 逐仓检查盈亏和持仓时长
func (m *Monitor) assessPositionRisks() types.RiskLevel {
	positions := m.book.List()
	alertCount := 0

	for _, p := range positions {
		pnlPct := p.PnlPct()

		// 盈利足够后移动止损，止损只朝有利方向移动
		if pnlPct > trailingActivationPct {
			var newStop float64
			if p.Side == types.SideBuy {
				newStop = p.CurrentPrice * (1 - trailingStopPct)
				if newStop > p.StopLoss {
					m.book.SetProtection(p.Symbol, p.Market, newStop, 0)
				}
			} else {
				newStop = p.CurrentPrice * (1 + trailingStopPct)
				if p.StopLoss == 0 || newStop < p.StopLoss {
					m.book.SetProtection(p.Symbol, p.Market, newStop, 0)
				}
			}
		}

		if pnlPct < largeLossPct {
			m.addAlert(types.RiskAlert{
				Type:     "position_large_loss",
				Symbol:   p.Symbol,
				Severity: "critical",
				Message:  fmt.Sprintf("持仓亏损%.1f%%，超过大额亏损线", pnlPct*100),
			})
			alertCount++
		}

		timeout := time.Duration(m.params.PositionTimeoutHours) * time.Hour
		if m.params.PositionTimeoutHours > 0 && time.Since(p.EntryTime) > timeout {
			m.addAlert(types.RiskAlert{
				Type:     "position_timeout",
				Symbol:   p.Symbol,
				Severity: "warning",
				Message:  fmt.Sprintf("持仓超过%d小时未平仓", m.params.PositionTimeoutHours),
			})
			alertCount++
		}
	}

	switch {
	case alertCount > 2:
		return types.RiskHigh
	case alertCount > 0:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// assessCorrelationRisks 持仓相关性：按名义价值加权的两两相关性估计
func (m *Monitor) assessCorrelationRisks() types.RiskLevel {
	positions := m.book.List()
	if len(positions) < 2 {
		return types.RiskLow
	}

	weightedSum := 0.0
	weightTotal := 0.0
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			weight := positions[i].Notional() + positions[j].Notional()
			weightedSum += estimateCorrelation(positions[i].Symbol, positions[j].Symbol) * weight
			weightTotal += weight
		}
	}
	if weightTotal <= 0 {
		return types.RiskLow
	}

	avg := weightedSum / weightTotal
	switch {
	case avg > 0.8:
		m.addAlert(types.RiskAlert{
			Type:     "correlation",
			Severity: "warning",
			Message:  fmt.Sprintf("持仓相关性过高: %.2f", avg),
		})
		return types.RiskHigh
	case avg > 0.6:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// assessRegimeChange 市场状态切换风险
func (m *Monitor) assessRegimeChange(regime string) types.RiskLevel {
	m.mu.Lock()
	previous := m.previousRegime
	m.previousRegime = regime
	m.mu.Unlock()

	if previous == "" || previous == regime {
		return types.RiskLow
	}

	m.addAlert(types.RiskAlert{
		Type:     "regime_change",
		Severity: "info",
		Message:  fmt.Sprintf("市场状态切换: %s -> %s", previous, regime),
	})

	switch regime {
	case analysis.RegimeVolatile:
		return types.RiskHigh
	case analysis.RegimeRanging:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// assessLiquidityRisks 单仓名义价值过大时的冲击成本风险
func (m *Monitor) assessLiquidityRisks() types.RiskLevel {
	level := types.RiskLow
	for _, p := range m.book.List() {
		notional := p.Notional()
		if notional > highImpactNotional {
			m.addAlert(types.RiskAlert{
				Type:     "liquidity_high_impact",
				Symbol:   p.Symbol,
				Severity: "warning",
				Message:  fmt.Sprintf("持仓名义价值%.0f USDT，平仓冲击成本偏高", notional),
			})
			return types.RiskHigh
		}
		if notional > mediumImpactNotional {
			level = types.RiskMedium
		}
	}
	return level
}

// assessLeverageRisks 全部持仓名义敞口相对总资产的杠杆风险
func (m *Monitor) assessLeverageRisks(balance float64) types.RiskLevel {
	if balance <= 0 {
		return types.RiskUnknown
	}

	notional := 0.0
	for _, p := range m.book.List() {
		notional += p.Notional()
	}

	ratio := notional / balance
	switch {
	case ratio > 0.8:
		m.addAlert(types.RiskAlert{
			Type:     "leverage",
			Severity: "critical",
			Message:  fmt.Sprintf("持仓敞口占总资产%.0f%%", ratio*100),
		})
		return types.RiskCritical
	case ratio > 0.6:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// reduceLosingPositions 危机模式：亏损持仓减半
func (m *Monitor) reduceLosingPositions(ctx context.Context) []string {
	var actions []string
	for _, p := range m.book.List() {
		if p.PnlPct() >= reduceLossThreshold {
			continue
		}

		key := "reduce|" + p.Symbol + "|" + string(p.Market)
		m.mu.Lock()
		applied := m.appliedActions[key]
		if !applied {
			m.appliedActions[key] = true
		}
		executor := m.executor
		m.mu.Unlock()
		if applied {
			continue
		}

		reduceSize := p.Size * reduceFraction
		closeSide := types.SideSell
		if p.Side == types.SideSell {
			closeSide = types.SideBuy
		}

		if executor != nil {
			if err := executor(ctx, p.Symbol, p.Market, closeSide, reduceSize); err != nil {
				m.log.Errorw("自动减仓下单失败", "symbol", p.Symbol, "error", err)
				continue
			}
		}
		if _, realized := m.book.Reduce(p.Symbol, p.Market, reduceFraction); realized != 0 {
			m.recordRealized(ctx, p.Symbol, realized)
		}
		actions = append(actions, fmt.Sprintf("reduced %s %s by 50%%", p.Symbol, p.Market))
		m.log.Warnw("危机模式自动减仓", "symbol", p.Symbol, "market", p.Market,
			"size", reduceSize, "pnl_pct", p.PnlPct())
	}
	return actions
}

// tightenStopLosses 高风险模式：全部持仓止损收紧到3%
func (m *Monitor) tightenStopLosses() []string {
	var actions []string
	for _, p := range m.book.List() {
		key := "tighten|" + p.Symbol + "|" + string(p.Market)
		m.mu.Lock()
		applied := m.appliedActions[key]
		if !applied {
			m.appliedActions[key] = true
		}
		m.mu.Unlock()
		if applied {
			continue
		}

		var newStop float64
		if p.Side == types.SideBuy {
			newStop = p.CurrentPrice * (1 - tightStopPct)
			if newStop <= p.StopLoss {
				continue
			}
		} else {
			newStop = p.CurrentPrice * (1 + tightStopPct)
			if p.StopLoss != 0 && newStop >= p.StopLoss {
				continue
			}
		}
		m.book.SetProtection(p.Symbol, p.Market, newStop, 0)
		actions = append(actions, fmt.Sprintf("tightened stop for %s %s", p.Symbol, p.Market))
	}
	return actions
}

// recommendations 按组件等级生成处置建议
func (m *Monitor) recommendations(components map[string]types.RiskLevel) []string {
	var recs []string
	if components["position"].Score() >= types.RiskMedium.Score() {
		recs = append(recs, "review losing or stale positions")
	}
	if components["correlation"].Score() >= types.RiskMedium.Score() {
		recs = append(recs, "diversify holdings to reduce correlation")
	}
	if components["leverage"].Score() >= types.RiskMedium.Score() {
		recs = append(recs, "reduce futures exposure")
	}
	if components["liquidity"].Score() >= types.RiskMedium.Score() {
		recs = append(recs, "split large positions before exit")
	}
	return recs
}

// ValidateTrade 交易前校验
// 超限仓位自动缩减，触发账户级风控线时整笔拒绝
func (m *Monitor) ValidateTrade(symbol string, side types.Side, size, price, balance float64, market types.Market) TradeValidation {
	v := TradeValidation{Valid: true, AdjustedSize: size}
	if size <= 0 || price <= 0 {
		v.Valid = false
		v.Errors = append(v.Errors, "size and price must be positive")
		return v
	}

	notional := size * price

	// 单仓上限：超出时缩减而非拒绝
	maxNotional := balance * m.params.MaxPositionSize
	if balance > 0 && notional > maxNotional && maxNotional > 0 {
		v.AdjustedSize = maxNotional / price
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("size reduced to fit max position value %.2f", maxNotional))
		notional = maxNotional
	}

	m.mu.Lock()
	dailyPnL := m.dailyPnL
	drawdown := m.currentDrawdown
	m.mu.Unlock()

	if balance > 0 && dailyPnL < -balance*m.params.MaxDailyLoss {
		v.Valid = false
		v.Errors = append(v.Errors, "daily loss limit breached")
	}
	if m.params.MaxDrawdown > 0 && drawdown > m.params.MaxDrawdown {
		v.Valid = false
		v.Errors = append(v.Errors, "max drawdown breached")
	}

	if market == types.MarketFutures && side == types.SideSell && balance > 0 {
		shortNotional := notional
		for _, p := range m.book.ListByMarket(types.MarketFutures) {
			if p.Side == types.SideSell {
				shortNotional += p.Notional()
			}
		}
		if shortNotional > balance*m.params.ShortPositionLimit {
			v.Valid = false
			v.Errors = append(v.Errors, "short position limit breached")
		}
	}

	if market == types.MarketFutures && balance > 0 && m.params.MaxLeverage > 0 {
		exposure := notional
		for _, p := range m.book.ListByMarket(types.MarketFutures) {
			exposure += p.Notional()
		}
		if exposure > balance*m.params.MaxLeverage*0.8 {
			v.Warnings = append(v.Warnings, "approaching leverage margin limit")
		}
	}

	return v
}

// StopLossPrice 波动自适应止损价
// 止损距离取固定比例和两倍波动的较大者
func (m *Monitor) StopLossPrice(side types.Side, entry, volatility float64) float64 {
	if entry <= 0 {
		return 0
	}
	distance := m.params.StopLossPct
	if volatility*2 > distance {
		distance = volatility * 2
	}
	if side == types.SideBuy {
		return entry * (1 - distance)
	}
	return entry * (1 + distance)
}

// TakeProfitPrice 信号强度自适应止盈价，距离不超过止损的两倍（保持盈亏比）
func (m *Monitor) TakeProfitPrice(side types.Side, entry, strength float64) float64 {
	if entry <= 0 {
		return 0
	}
	distance := m.params.TakeProfitPct * (1 + math.Abs(strength))
	if limit := m.params.StopLossPct * 2; distance > limit {
		distance = limit
	}
	if side == types.SideBuy {
		return entry * (1 + distance)
	}
	return entry * (1 - distance)
}

// addAlert 追加告警
func (m *Monitor) addAlert(alert types.RiskAlert) {
	alert.Timestamp = time.Now().Unix()
	m.mu.Lock()
	m.alerts = append(m.alerts, alert)
	m.mu.Unlock()
}

// DrainAlerts 取走并清空当前告警队列
func (m *Monitor) DrainAlerts() []types.RiskAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.alerts
	m.alerts = nil
	return out
}

// RecordRealizedPnl 记录已实现盈亏（当日累计）
func (m *Monitor) RecordRealizedPnl(pnl float64) {
	m.mu.Lock()
	m.dailyPnL += pnl
	m.mu.Unlock()
}

// UpdateBalance 更新资产峰值和回撤
func (m *Monitor) UpdateBalance(balance float64) {
	if balance <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if balance > m.peakBalance {
		m.peakBalance = balance
	}
	if m.peakBalance > 0 {
		m.currentDrawdown = (m.peakBalance - balance) / m.peakBalance
	}
}

// ResetDaily 重置当日统计（每日边界调用）
func (m *Monitor) ResetDaily() {
	m.mu.Lock()
	m.dailyPnL = 0
	m.mu.Unlock()
}

// Drawdown 当前回撤
func (m *Monitor) Drawdown() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentDrawdown
}

// DailyPnl 当日累计已实现盈亏
func (m *Monitor) DailyPnl() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnL
}
