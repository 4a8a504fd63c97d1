package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yuechangmingzou/hybrid-go/internal/analysis"
	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/internal/exchange"
	"github.com/yuechangmingzou/hybrid-go/internal/execution"
	"github.com/yuechangmingzou/hybrid-go/internal/indicators"
	"github.com/yuechangmingzou/hybrid-go/internal/metrics"
	"github.com/yuechangmingzou/hybrid-go/internal/notify"
	"github.com/yuechangmingzou/hybrid-go/internal/portfolio"
	"github.com/yuechangmingzou/hybrid-go/internal/risk"
	"github.com/yuechangmingzou/hybrid-go/internal/strategy"
	"github.com/yuechangmingzou/hybrid-go/internal/utils"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
	"go.uber.org/zap"
)

// Bot 混合交易机器人
// 每个周期依次完成: 行情快照 → 组合状态 → 风险评估 → 再平衡 →
// 机会检测 → 信号生成与验证 → 仓位计算 → 下单执行 → 周期汇总
type Bot struct {
	cfg        *config.Config
	exchange   types.Exchange
	redis      utils.RedisClient
	portfolio  *portfolio.Manager
	detector   *strategy.Detector
	rebalancer *strategy.Rebalancer
	signalGen  *strategy.SignalGenerator
	sizer      *risk.Sizer
	monitor    *risk.Monitor
	engine     *execution.ExecutionEngine
	notifier   *notify.Notifier
	log        *zap.SugaredLogger

	cycle   int64
	lastDay string
}

var globalBot *Bot

// GetBot 获取交易机器人实例（单例）
func GetBot() *Bot {
	if globalBot == nil {
		cfg := config.Get()
		ex := exchange.GetExchange()
		rdb := utils.GetRedisClient()
		monitor := risk.GetMonitor()
		engine := execution.GetExecutionEngine()

		// 风控自动减仓通过执行引擎下单，保持账本和真实订单一致
		monitor.SetExecutor(engine.ReducePosition)

		stats := risk.NewLedgerStats(rdb)
		// 平仓盈亏回流到胜率账本，Kelly估计随实盘表现更新
		monitor.SetLedger(stats)
		limits := risk.SizingLimits{
			MaxPositionSize:  cfg.MaxPositionSize,
			RiskPerTrade:     cfg.RiskPerTrade,
			MinTradeNotional: cfg.MinTradeNotional,
		}

		globalBot = &Bot{
			cfg:        cfg,
			exchange:   ex,
			redis:      rdb,
			portfolio:  portfolio.NewManager(ex, cfg.SpotAllocation, cfg.FuturesAllocation),
			detector:   strategy.NewDetector(cfg.ArbitrageThreshold),
			rebalancer: strategy.NewRebalancer(cfg),
			signalGen:  strategy.NewSignalGenerator(cfg),
			sizer:      risk.NewSizer(limits, stats, monitor.Book()),
			monitor:    monitor,
			engine:     engine,
			notifier:   notify.GetNotifier(),
			log:        utils.GetLogger("bot"),
			lastDay:    time.Now().Format("2006-01-02"),
		}
	}
	return globalBot
}

// Run 运行主循环, 周期串行执行, 上一周期未结束不会启动下一周期
func (b *Bot) Run(ctx context.Context) error {
	interval := time.Duration(b.cfg.CycleIntervalSec) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}

	b.log.Infow("🚀 混合交易机器人启动",
		"mode", b.modeName(),
		"symbols", b.cfg.TradingSymbols,
		"cycle_interval", interval,
		"spot_allocation", b.cfg.SpotAllocation,
		"futures_allocation", b.cfg.FuturesAllocation,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 启动后先跑一轮, 不等第一个tick
	b.safeRunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			b.log.Info("交易机器人停止")
			return ctx.Err()
		case <-ticker.C:
			b.safeRunCycle(ctx)
		}
	}
}

func (b *Bot) modeName() string {
	if b.cfg.DryRun {
		return "paper"
	}
	return "live"
}

// safeRunCycle 单周期的panic不拖垮主循环
func (b *Bot) safeRunCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("交易周期panic", "panic", r)
			metrics.RecordCycle(false, 0)
		}
	}()

	start := time.Now()
	if err := b.runCycle(ctx); err != nil {
		b.log.Errorw("交易周期失败", "cycle", b.cycle, "error", err)
		metrics.RecordCycle(false, time.Since(start))
		return
	}
	metrics.RecordCycle(true, time.Since(start))
}

// runCycle 执行一个完整交易周期
func (b *Bot) runCycle(ctx context.Context) error {
	start := time.Now()
	b.cycle++
	b.maybeResetDaily()

	// 1. 行情快照
	snap := b.collectSnapshot(ctx)
	if len(snap.Symbols) == 0 {
		return fmt.Errorf("no market data for any symbol")
	}

	// 2. 组合状态（从真实余额重算）
	prices := make(map[string]float64, len(snap.Symbols))
	for symbol, ss := range snap.Symbols {
		prices[symbol] = ss.SpotTicker.Last
	}
	state, err := b.portfolio.Snapshot(ctx, prices)
	if err != nil {
		return fmt.Errorf("portfolio snapshot: %w", err)
	}

	// 3. 更新持仓标记价格
	b.refreshPositionPrices(snap)

	// 4. 市场状态分类（以BTC现货收盘价为基准）
	regime := b.classifyRegime(snap)

	// 5. 风险评估
	b.monitor.UpdateBalance(state.TotalBalance)
	assessment := b.monitor.MonitorCycle(ctx, regime, state.TotalBalance)
	metrics.SetRiskLevel(string(assessment.Level))

	// 6. 再平衡
	if b.rebalancer.NeedsRebalancing(state) {
		b.executeRebalancing(ctx, state, snap)
	}

	// 7. 机会检测
	spotPositions := b.monitor.Book().ListByMarket(types.MarketSpot)
	opportunities := b.detector.DetectOpportunities(snap, spotPositions)
	oppCounts := make(map[string]int)
	for _, opp := range opportunities {
		oppCounts[string(opp.Kind)]++
		metrics.RecordOpportunity(string(opp.Kind))
	}

	// 8. 信号生成
	spotHoldings, err := b.portfolio.SpotHoldings(ctx)
	if err != nil {
		b.log.Warnw("获取现货持仓失败", "error", err)
		spotHoldings = map[string]float64{}
	}
	signals := b.signalGen.GeneratePortfolioSignals(opportunities, state, snap, spotHoldings)

	// 9. 按风险等级收紧置信度门槛
	threshold := b.cfg.BaseConfidenceThreshold
	switch assessment.Level {
	case types.RiskHigh:
		threshold = 0.6
	case types.RiskCritical:
		threshold = 0.8
		if len(signals) > 2 {
			signals = signals[:2]
		}
	}

	// 10. 验证 → 仓位 → 执行
	executed := b.executeSignals(ctx, signals, snap, state, regime, threshold)

	// 11. 告警外发
	b.dispatchAlerts(ctx, assessment)

	// 组合体检指标
	b.savePortfolioMetrics(ctx, strategy.ComputePortfolioMetrics(state, b.monitor.Positions()))

	// 12. 周期汇总
	summary := types.CycleSummary{
		Cycle:          b.cycle,
		DurationMS:     time.Since(start).Milliseconds(),
		Symbols:        len(snap.Symbols),
		Opportunities:  oppCounts,
		Signals:        len(signals),
		TradesExecuted: executed,
		RiskLevel:      assessment.Level,
		Timestamp:      time.Now().Unix(),
	}
	b.saveCycleSummary(ctx, summary)

	b.log.Infow("周期完成",
		"cycle", b.cycle,
		"duration_ms", summary.DurationMS,
		"symbols", summary.Symbols,
		"opportunities", oppCounts,
		"signals", len(signals),
		"executed", executed,
		"risk_level", assessment.Level,
		"total_balance", state.TotalBalance,
	)
	return nil
}

// collectSnapshot 并发抓取所有币种的现货/合约行情并计算指标
// 单个币种失败只跳过该币种, 不影响整体
func (b *Bot) collectSnapshot(ctx context.Context) *types.MarketSnapshot {
	snap := &types.MarketSnapshot{
		Symbols:   make(map[string]*types.SymbolSnapshot),
		Timestamp: time.Now().Unix(),
	}

	concurrency := b.cfg.SnapshotConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	sem := make(chan struct{}, concurrency)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, symbol := range b.cfg.TradingSymbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			ss, err := b.scanSymbol(ctx, symbol)
			if err != nil {
				b.log.Warnw("币种快照失败", "symbol", symbol, "error", err)
				return
			}

			mu.Lock()
			snap.Symbols[symbol] = ss
			mu.Unlock()
		}(symbol)
	}

	wg.Wait()
	return snap
}

// scanSymbol 抓取单个币种的行情和K线并计算指标与信号
func (b *Bot) scanSymbol(ctx context.Context, symbol string) (*types.SymbolSnapshot, error) {
	params := indicators.Params{
		RSIPeriod:   b.cfg.RSIPeriod,
		MACDFast:    b.cfg.MACDFast,
		MACDSlow:    b.cfg.MACDSlow,
		MACDSignal:  b.cfg.MACDSignal,
		BBPeriod:    b.cfg.BBPeriod,
		BBStdDev:    b.cfg.BBStdDev,
		StochPeriod: b.cfg.StochPeriod,
		StochSmooth: b.cfg.StochSmooth,
	}
	thresholds := analysis.Thresholds{
		RSIOversold:   b.cfg.RSIOversold,
		RSIOverbought: b.cfg.RSIOverbought,
		StochLow:      20,
		StochHigh:     80,
	}

	spotTicker, err := b.exchange.GetTicker(ctx, symbol, types.MarketSpot)
	if err != nil {
		return nil, fmt.Errorf("spot ticker: %w", err)
	}
	spotOHLCV, err := b.exchange.GetOHLCV(ctx, symbol, b.cfg.OHLCVTimeframe, b.cfg.OHLCVLimit, types.MarketSpot)
	if err != nil {
		return nil, fmt.Errorf("spot ohlcv: %w", err)
	}

	ss := &types.SymbolSnapshot{
		Symbol:     symbol,
		SpotTicker: *spotTicker,
		SpotOHLCV:  spotOHLCV,
		Timestamp:  time.Now().Unix(),
	}
	ss.SpotIndicators = indicators.ComputeBundle(spotOHLCV, params)
	ss.SpotSignals = analysis.GenerateSignals(ss.SpotIndicators, thresholds)

	// 合约行情失败只降级为现货快照
	if b.cfg.IsFuturesSupported(symbol) {
		futSymbol := config.FuturesSymbol(symbol)
		futTicker, err := b.exchange.GetTicker(ctx, futSymbol, types.MarketFutures)
		if err != nil {
			b.log.Debugw("合约行情获取失败", "symbol", symbol, "error", err)
			return ss, nil
		}
		futOHLCV, err := b.exchange.GetOHLCV(ctx, futSymbol, b.cfg.OHLCVTimeframe, b.cfg.OHLCVLimit, types.MarketFutures)
		if err != nil {
			b.log.Debugw("合约K线获取失败", "symbol", symbol, "error", err)
			return ss, nil
		}
		ss.FuturesTicker = *futTicker
		ss.FuturesOHLCV = futOHLCV
		ss.FuturesIndicators = indicators.ComputeBundle(futOHLCV, params)
		ss.FuturesSignals = analysis.GenerateSignals(ss.FuturesIndicators, thresholds)
	}

	return ss, nil
}

// refreshPositionPrices 用最新快照更新持仓标记价格
func (b *Bot) refreshPositionPrices(snap *types.MarketSnapshot) {
	for _, pos := range b.monitor.Positions() {
		ss, ok := snap.Symbols[baseSymbol(pos.Symbol)]
		if !ok {
			continue
		}
		price := ss.SpotTicker.Last
		if pos.Market == types.MarketFutures && ss.FuturesTicker.Last > 0 {
			price = ss.FuturesTicker.Last
		}
		if price > 0 {
			b.monitor.UpdatePrice(pos.Symbol, pos.Market, price)
		}
	}
}

// classifyRegime 以BTC现货收盘价分类市场状态
func (b *Bot) classifyRegime(snap *types.MarketSnapshot) string {
	ss, ok := snap.Symbols["BTC/USDT"]
	if !ok || len(ss.SpotOHLCV) == 0 {
		// BTC数据缺失时用第一个有数据的币种兜底
		for _, s := range snap.Symbols {
			if len(s.SpotOHLCV) > 0 {
				ss = s
				break
			}
		}
	}
	if ss == nil || len(ss.SpotOHLCV) == 0 {
		return analysis.RegimeNeutral
	}

	closes := make([]float64, 0, len(ss.SpotOHLCV))
	for _, candle := range ss.SpotOHLCV {
		closes = append(closes, candle.Close)
	}
	return analysis.ClassifyRegime(closes)
}

// executeRebalancing 执行再平衡订单
func (b *Bot) executeRebalancing(ctx context.Context, state *types.PortfolioState, snap *types.MarketSnapshot) {
	orders := b.rebalancer.GenerateRebalancingOrders(state)
	if len(orders) == 0 {
		return
	}

	metrics.RecordRebalance()
	b.log.Infow("触发再平衡",
		"spot_ratio", state.SpotRatio,
		"target_spot_ratio", state.TargetSpotRatio,
		"orders", len(orders),
	)

	for i := range orders {
		order := orders[i]
		volatility, strength := b.marketContext(snap, order.Symbol, order.Market)
		ok, reason := b.engine.ExecuteSignal(ctx, &order, volatility, strength)
		metrics.RecordOrder(ok)
		if !ok {
			b.log.Warnw("再平衡订单执行失败",
				"symbol", order.Symbol, "market", order.Market, "reason", reason)
		}
	}
}

// executeSignals 逐个验证、计算仓位并执行信号, 返回成功笔数
func (b *Bot) executeSignals(
	ctx context.Context,
	signals []types.TradeSignal,
	snap *types.MarketSnapshot,
	state *types.PortfolioState,
	regime string,
	threshold float64,
) int {
	executed := 0
	for i := range signals {
		if executed >= b.cfg.MaxTradesPerCycle {
			break
		}
		sig := signals[i]

		if sig.Confidence < threshold {
			metrics.RecordSignal(false)
			b.log.Debugw("信号置信度不足", "symbol", sig.Symbol,
				"strategy", sig.Strategy, "confidence", sig.Confidence, "threshold", threshold)
			continue
		}

		ss, ok := snap.Symbols[baseSymbol(sig.Symbol)]
		if !ok {
			metrics.RecordSignal(false)
			continue
		}

		bundle, ticker := ss.SpotSignals, ss.SpotTicker
		indicatorSet := ss.SpotIndicators
		ohlcv := ss.SpotOHLCV
		if sig.Market == types.MarketFutures {
			bundle, ticker = ss.FuturesSignals, ss.FuturesTicker
			indicatorSet = ss.FuturesIndicators
			ohlcv = ss.FuturesOHLCV
		}
		price := ticker.Last
		if price <= 0 {
			metrics.RecordSignal(false)
			continue
		}

		// 多因子验证
		validation := analysis.ValidateSignal(bundle, b.buildMarketContext(ctx, sig.Symbol, ticker, ohlcv, bundle.Combined))
		if !validation.Valid {
			metrics.RecordSignal(false)
			b.log.Debugw("信号验证未通过", "symbol", sig.Symbol,
				"strategy", sig.Strategy, "confidence", validation.Confidence)
			continue
		}
		metrics.RecordSignal(true)

		// 自适应仓位
		balance := state.SpotFreeBalance
		if sig.Market == types.MarketFutures {
			balance = state.FuturesFreeBalance
		}
		volatility := indicatorSet.Volatility.Value
		cond := risk.MarketConditions{
			Volatility: volatility,
			Regime:     regime,
			Liquidity:  liquidityBand(ticker.Volume, avgVolume(ohlcv)),
		}
		adaptive := b.sizer.AdaptiveSize(ctx, sig.Symbol, bundle.Combined, balance, price, cond)
		size := sig.Size
		if adaptive > 0 && adaptive < size {
			size = adaptive
		}
		if size <= 0 {
			continue
		}

		// 交易前风控校验
		tv := b.monitor.ValidateTrade(sig.Symbol, sig.Action, size, price, state.TotalBalance, sig.Market)
		if !tv.Valid {
			b.log.Warnw("交易校验拒绝", "symbol", sig.Symbol,
				"strategy", sig.Strategy, "errors", tv.Errors)
			continue
		}
		for _, w := range tv.Warnings {
			b.log.Warnw("交易校验警告", "symbol", sig.Symbol, "warning", w)
		}
		sig.Size = tv.AdjustedSize

		ok, reason := b.engine.ExecuteSignal(ctx, &sig, volatility, bundle.Combined)
		metrics.RecordOrder(ok)
		if ok {
			executed++
		} else {
			b.log.Warnw("信号执行失败", "symbol", sig.Symbol,
				"strategy", sig.Strategy, "reason", reason)
		}
	}
	return executed
}

// buildMarketContext 构建信号验证上下文, 并把本周期合并信号写入历史
func (b *Bot) buildMarketContext(
	ctx context.Context,
	symbol string,
	ticker types.Ticker,
	ohlcv []types.OHLCV,
	combined float64,
) analysis.MarketContext {
	prices := make([]float64, 0, len(ohlcv))
	for _, candle := range ohlcv {
		prices = append(prices, candle.Close)
	}

	mctx := analysis.MarketContext{
		Volume:        ticker.Volume,
		AvgVolume:     avgVolume(ohlcv),
		HasVolume:     ticker.Volume > 0,
		PriceHistory:  prices,
		SignalHistory: b.recentSignalHistory(ctx, symbol),
	}

	b.pushSignalHistory(ctx, symbol, combined)
	return mctx
}

// recentSignalHistory 读取最近3个历史合并信号
func (b *Bot) recentSignalHistory(ctx context.Context, symbol string) []float64 {
	key := config.GetRedisKey("signal_history:" + symbol)
	values, err := b.redis.LRange(ctx, key, 0, 2).Result()
	if err != nil {
		return nil
	}

	history := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		history = append(history, f)
	}
	return history
}

// pushSignalHistory 记录本周期合并信号
func (b *Bot) pushSignalHistory(ctx context.Context, symbol string, combined float64) {
	key := config.GetRedisKey("signal_history:" + symbol)
	b.redis.LPush(ctx, key, strconv.FormatFloat(combined, 'f', 6, 64))

	maxLen := b.cfg.SignalHistoryMaxLen
	if maxLen <= 0 {
		maxLen = 50
	}
	b.redis.LTrim(ctx, key, 0, int64(maxLen-1))
}

// dispatchAlerts 把风控告警写日志并外发
func (b *Bot) dispatchAlerts(ctx context.Context, assessment types.RiskAssessment) {
	for _, alert := range b.monitor.DrainAlerts() {
		b.log.Warnw("风险告警",
			"type", alert.Type, "symbol", alert.Symbol,
			"severity", alert.Severity, "message", alert.Message)
		b.notifier.SendRiskAlert(ctx, alert.Severity, alert.Symbol, alert.Message)
	}

	if assessment.Level == types.RiskCritical {
		b.notifier.SendRiskAlert(ctx, string(assessment.Level), "",
			fmt.Sprintf("组合风险进入危机模式, score=%.2f", assessment.Score))
	}
}

// saveCycleSummary 保存周期汇总到Redis（最新值+历史列表）
func (b *Bot) saveCycleSummary(ctx context.Context, summary types.CycleSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}

	b.redis.Set(ctx, config.GetRedisKey("cycle_summary_latest"), data, 0)

	historyKey := config.GetRedisKey("cycle_history")
	b.redis.LPush(ctx, historyKey, data)
	maxLen := b.cfg.CycleHistoryMaxLen
	if maxLen <= 0 {
		maxLen = 500
	}
	b.redis.LTrim(ctx, historyKey, 0, int64(maxLen-1))
}

// savePortfolioMetrics 保存组合体检指标（供状态接口读取）
func (b *Bot) savePortfolioMetrics(ctx context.Context, m strategy.PortfolioMetrics) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	b.redis.Set(ctx, config.GetRedisKey("portfolio_metrics_latest"), data, 0)
}

// maybeResetDaily 跨日时重置当日已实现盈亏
func (b *Bot) maybeResetDaily() {
	today := time.Now().Format("2006-01-02")
	if today != b.lastDay {
		b.monitor.ResetDaily()
		b.lastDay = today
		b.log.Infow("跨日重置日内统计", "date", today)
	}
}

// marketContext 从快照提取指定市场的波动率和合并信号
func (b *Bot) marketContext(snap *types.MarketSnapshot, symbol string, market types.Market) (volatility, strength float64) {
	ss, ok := snap.Symbols[baseSymbol(symbol)]
	if !ok {
		return 0, 0
	}
	if market == types.MarketFutures && ss.FuturesTicker.Last > 0 {
		return ss.FuturesIndicators.Volatility.Value, ss.FuturesSignals.Combined
	}
	return ss.SpotIndicators.Volatility.Value, ss.SpotSignals.Combined
}

// baseSymbol 合约符号还原为现货符号（快照以现货符号为键）
func baseSymbol(symbol string) string {
	if i := strings.Index(symbol, ":"); i >= 0 {
		return symbol[:i]
	}
	return symbol
}

// avgVolume K线平均成交量
func avgVolume(ohlcv []types.OHLCV) float64 {
	if len(ohlcv) == 0 {
		return 0
	}
	sum := 0.0
	for _, candle := range ohlcv {
		sum += candle.Volume
	}
	return sum / float64(len(ohlcv))
}

// liquidityBand 按成交量相对均值划分流动性档位
func liquidityBand(volume, average float64) string {
	if volume <= 0 || average <= 0 {
		return "normal"
	}
	ratio := volume / average
	switch {
	case ratio >= 1.2:
		return "high"
	case ratio <= 0.5:
		return "low"
	default:
		return "normal"
	}
}
