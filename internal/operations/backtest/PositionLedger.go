package backtest

import (
	"sort"

	"PerpTradeBot/internal/models"
)

// dustFraction of the original size below which remaining units count as closed
const dustFraction = 1e-9

// Position is one open synthetic position
type Position struct {
	Symbol          string
	Action          string
	EntryPrice      float64 // after slippage
	TotalUnits      float64
	RemainingUnits  float64
	UnitsPerTarget  float64
	Targets         []float64 // in the order price reaches them
	StopLosses      []float64 // nearest first
	TrailingStop    float64   // 0 until price first moves into profit
	TakeProfit      float64   // only used when Targets is empty
	ExecutedTargets map[int]bool
	OpenTimestamp   int64
	CurrentPrice    float64
	LastTimestamp   int64
	RealizedPnL     float64
	TradeSystem     string
	Investment      float64 // margin committed at open
}

func (p *Position) IsLong() bool {
	return p.Action == models.TradeActionLong
}

// markExecuted records a filled target and recomputes the remaining size
func (p *Position) markExecuted(idx int) {
	p.ExecutedTargets[idx] = true
	if len(p.ExecutedTargets) >= len(p.Targets) {
		p.RemainingUnits = 0
		return
	}
	p.RemainingUnits = p.TotalUnits - float64(len(p.ExecutedTargets))*p.UnitsPerTarget
	if p.RemainingUnits < 0 {
		p.RemainingUnits = 0
	}
}

// AllTargetsExecuted is false for positions without targets
func (p *Position) AllTargetsExecuted() bool {
	return len(p.Targets) > 0 && len(p.ExecutedTargets) >= len(p.Targets)
}

// HasDust reports whether the remaining units are too small to be worth a fill
func (p *Position) HasDust() bool {
	return p.RemainingUnits <= p.TotalUnits*dustFraction
}

// UnrealizedPnL is the gross move of the remaining units at the current price
func (p *Position) UnrealizedPnL() float64 {
	if p.IsLong() {
		return (p.CurrentPrice - p.EntryPrice) * p.RemainingUnits
	}
	return (p.EntryPrice - p.CurrentPrice) * p.RemainingUnits
}

// PositionLedger holds at most one open position per symbol. It belongs to
// a single run and is never shared.
type PositionLedger struct {
	maxOpen   int
	positions map[string]*Position
}

func NewPositionLedger(maxOpen int) *PositionLedger {
	return &PositionLedger{
		maxOpen:   maxOpen,
		positions: make(map[string]*Position),
	}
}

// Open inserts pos. It is a no-op returning false when the symbol already
// has a position or the ledger is full.
func (l *PositionLedger) Open(pos *Position) bool {
	if _, exists := l.positions[pos.Symbol]; exists {
		return false
	}
	if l.Full() {
		return false
	}
	l.positions[pos.Symbol] = pos
	return true
}

func (l *PositionLedger) Get(symbol string) (*Position, bool) {
	pos, ok := l.positions[symbol]
	return pos, ok
}

func (l *PositionLedger) Remove(symbol string) {
	delete(l.positions, symbol)
}

func (l *PositionLedger) Count() int {
	return len(l.positions)
}

func (l *PositionLedger) Full() bool {
	return len(l.positions) >= l.maxOpen
}

// Symbols returns the symbols with open positions in sorted order
func (l *PositionLedger) Symbols() []string {
	symbols := make([]string, 0, len(l.positions))
	for symbol := range l.positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
