package risk

import (
	"sort"
	"sync"
	"time"

	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

// PositionBook 持仓账本
// 每个(symbol, market)至多一条持仓，所有修改都经过账本方法
type PositionBook struct {
	mu        sync.RWMutex
	positions map[string]*types.Position
}

// NewPositionBook 创建持仓账本
func NewPositionBook() *PositionBook {
	return &PositionBook{
		positions: make(map[string]*types.Position),
	}
}

func positionKey(symbol string, market types.Market) string {
	return symbol + "|" + string(market)
}

// Register 登记新成交
// 同向成交合并（加权均价），反向成交按数量轧差并结算已实现盈亏
func (b *PositionBook) Register(symbol string, market types.Market, side types.Side, size, price float64) (*types.Position, float64) {
	if size <= 0 || price <= 0 {
		return nil, 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := positionKey(symbol, market)
	existing := b.positions[key]

	if existing == nil {
		p := &types.Position{
			Symbol:       symbol,
			Market:       market,
			Side:         side,
			Size:         size,
			EntryPrice:   price,
			CurrentPrice: price,
			EntryTime:    time.Now(),
		}
		b.positions[key] = p
		return p, 0
	}

	if existing.Side == side {
		totalSize := existing.Size + size
		existing.EntryPrice = (existing.EntryPrice*existing.Size + price*size) / totalSize
		existing.Size = totalSize
		existing.CurrentPrice = price
		return existing, 0
	}

	// 反向成交：先平旧仓结算盈亏，剩余部分反向开新仓
	closed := size
	if closed > existing.Size {
		closed = existing.Size
	}
	realized := closed * closedPnlPerUnit(existing, price)

	if size < existing.Size {
		existing.Size -= size
		existing.CurrentPrice = price
		return existing, realized
	}
	remainder := size - existing.Size
	if remainder <= 0 {
		delete(b.positions, key)
		return nil, realized
	}
	p := &types.Position{
		Symbol:       symbol,
		Market:       market,
		Side:         side,
		Size:         remainder,
		EntryPrice:   price,
		CurrentPrice: price,
		EntryTime:    time.Now(),
	}
	b.positions[key] = p
	return p, realized
}

// closedPnlPerUnit 按平仓价计算单位已实现盈亏
func closedPnlPerUnit(p *types.Position, closePrice float64) float64 {
	if p.Side == types.SideBuy {
		return closePrice - p.EntryPrice
	}
	return p.EntryPrice - closePrice
}

// UpdatePrice 更新标记价格并重算未实现盈亏
func (b *PositionBook) UpdatePrice(symbol string, market types.Market, price float64) {
	if price <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.positions[positionKey(symbol, market)]
	if p == nil {
		return
	}
	p.CurrentPrice = price
	p.UnrealizedPnl = p.PnlPct() * p.EntryPrice * p.Size
}

// SetProtection 更新止损止盈价
func (b *PositionBook) SetProtection(symbol string, market types.Market, stopLoss, takeProfit float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.positions[positionKey(symbol, market)]
	if p == nil {
		return
	}
	if stopLoss > 0 {
		p.StopLoss = stopLoss
	}
	if takeProfit > 0 {
		p.TakeProfit = takeProfit
	}
}

// Reduce 按比例减仓，减到0以下时移除
// 返回减掉的数量和按现价结算的已实现盈亏
func (b *PositionBook) Reduce(symbol string, market types.Market, fraction float64) (float64, float64) {
	if fraction <= 0 {
		return 0, 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	key := positionKey(symbol, market)
	p := b.positions[key]
	if p == nil {
		return 0, 0
	}
	if fraction >= 1 {
		removed := p.Size
		delete(b.positions, key)
		return removed, removed * closedPnlPerUnit(p, p.CurrentPrice)
	}
	removed := p.Size * fraction
	p.Size -= removed
	return removed, removed * closedPnlPerUnit(p, p.CurrentPrice)
}

// Remove 移除持仓
func (b *PositionBook) Remove(symbol string, market types.Market) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.positions, positionKey(symbol, market))
}

// Get 查询单条持仓（副本）
func (b *PositionBook) Get(symbol string, market types.Market) (types.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p := b.positions[positionKey(symbol, market)]
	if p == nil {
		return types.Position{}, false
	}
	return *p, true
}

// List 列出全部持仓（副本，按键排序保证输出稳定）
func (b *PositionBook) List() []*types.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.positions))
	for k := range b.positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*types.Position, 0, len(keys))
	for _, k := range keys {
		copied := *b.positions[k]
		out = append(out, &copied)
	}
	return out
}

// ListByMarket 列出指定市场的持仓
func (b *PositionBook) ListByMarket(market types.Market) []*types.Position {
	all := b.List()
	out := make([]*types.Position, 0, len(all))
	for _, p := range all {
		if p.Market == market {
			out = append(out, p)
		}
	}
	return out
}

// TotalNotional 全部持仓名义价值之和
func (b *PositionBook) TotalNotional() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0.0
	for _, p := range b.positions {
		total += p.Notional()
	}
	return total
}

// Count 持仓数量
func (b *PositionBook) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}
