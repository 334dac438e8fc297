package backtest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"PerpTradeBot/internal/models"
	"PerpTradeBot/internal/services/indicators"
	"PerpTradeBot/internal/services/strategy"
)

type SimulationMode string

const (
	ModeAuto         SimulationMode = "AUTO"
	ModeHighFidelity SimulationMode = "HIGH_FIDELITY"
	ModeStandard     SimulationMode = "STANDARD"
)

// Defaults used by NewConfig and by Normalize when clamping
const (
	InitialBalance       = 1000.0
	Fee                  = 0.0004
	InvestmentPerTrade   = 100.0
	MaxConcurrentTrades  = 3
	Leverage             = 1
	MaxNotional          = 1_000_000.0
	MinAmbientHistory    = 50
	LookbackWindow       = 200
	ProgressInterval     = 100
	TrailingStopDistance = 0.01
	maxTrailingDistance  = 0.5
)

// Exit reasons written to TradeRecord.Reason
const (
	ReasonStopLoss        = "stop loss"
	ReasonMinProfit       = "min profit"
	ReasonTarget          = "target"
	ReasonTakeProfit      = "take profit"
	ReasonEndOfSimulation = "end of simulation"
)

// highFidelityTimeframes are the ambient timeframes AUTO runs minute by minute
var highFidelityTimeframes = map[string]bool{
	models.TimeFrame1m:  true,
	models.TimeFrame5m:  true,
	models.TimeFrame15m: true,
	models.TimeFrame30m: true,
}

// SimulationConfig is built once per run and never mutated afterwards
type SimulationConfig struct {
	InitialBalance       float64
	Fee                  float64 // rate per side, 0.0004 = 0.04%
	InvestmentPerTrade   float64 // fixed USD margin per trade
	CapitalPercentage    float64 // percent of balance per trade, wins over InvestmentPerTrade when > 0
	MaxConcurrentTrades  int
	EnableStopLoss       bool
	EnableTakeProfit     bool
	Slippage             float64 // fraction of price
	Leverage             int
	MinProfitPercentage  float64 // percent of entry value, used by the min-profit exit
	EnableTrailingStop   bool
	TrailingStopDistance float64 // fraction of price
	SimulationMode       SimulationMode
	AmbientTimeframe     string // timeframe strategies decide on
	ActionTimeframe      string // 1m in HIGH_FIDELITY; STANDARD checks exits on the ambient candles

	StrategyName string
	Strategy     strategy.Config

	MinAmbientHistory int     // closed ambient candles required before the strategy is asked
	LookbackWindow    int     // candles handed to indicator computation
	ProgressInterval  int     // ticks between progress reports
	MaxNotional       float64 // hard cap on leveraged position size
}

// ConfigAdjustment records one value clamped by Normalize
type ConfigAdjustment struct {
	Field string
	From  any
	To    any
}

func (a ConfigAdjustment) Error() string {
	return fmt.Sprintf("%v: %s clamped from %v to %v", ErrConfiguration, a.Field, a.From, a.To)
}

func (a ConfigAdjustment) Unwrap() error {
	return ErrConfiguration
}

// NewConfig creates default config
func NewConfig() SimulationConfig {
	return SimulationConfig{
		InitialBalance:       InitialBalance,
		Fee:                  Fee,
		InvestmentPerTrade:   InvestmentPerTrade,
		MaxConcurrentTrades:  MaxConcurrentTrades,
		EnableStopLoss:       true,
		EnableTakeProfit:     true,
		Leverage:             Leverage,
		TrailingStopDistance: TrailingStopDistance,
		SimulationMode:       ModeAuto,
		AmbientTimeframe:     models.TimeFrame1h,
		ActionTimeframe:      models.TimeFrame1m,
		StrategyName:         strategy.StrategyDefault,
		Strategy:             strategy.DefaultConfig(),
		MinAmbientHistory:    MinAmbientHistory,
		LookbackWindow:       LookbackWindow,
		ProgressInterval:     ProgressInterval,
		MaxNotional:          MaxNotional,
	}
}

// Normalize clamps out-of-range values to safe bounds and reports each change.
func (c SimulationConfig) Normalize() (SimulationConfig, []ConfigAdjustment) {
	var adj []ConfigAdjustment
	clamp := func(field string, from, to any) {
		adj = append(adj, ConfigAdjustment{Field: field, From: from, To: to})
	}
	bad := func(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }

	if bad(c.InitialBalance) || c.InitialBalance <= 0 {
		clamp("InitialBalance", c.InitialBalance, InitialBalance)
		c.InitialBalance = InitialBalance
	}
	if bad(c.Fee) || c.Fee < 0 {
		clamp("Fee", c.Fee, 0.0)
		c.Fee = 0
	}
	if bad(c.InvestmentPerTrade) || c.InvestmentPerTrade < 0 {
		clamp("InvestmentPerTrade", c.InvestmentPerTrade, 0.0)
		c.InvestmentPerTrade = 0
	}
	if bad(c.CapitalPercentage) || c.CapitalPercentage < 0 {
		clamp("CapitalPercentage", c.CapitalPercentage, 0.0)
		c.CapitalPercentage = 0
	} else if c.CapitalPercentage > 100 {
		clamp("CapitalPercentage", c.CapitalPercentage, 100.0)
		c.CapitalPercentage = 100
	}
	if c.InvestmentPerTrade == 0 && c.CapitalPercentage == 0 {
		clamp("InvestmentPerTrade", 0.0, InvestmentPerTrade)
		c.InvestmentPerTrade = InvestmentPerTrade
	}
	if c.MaxConcurrentTrades < 1 {
		clamp("MaxConcurrentTrades", c.MaxConcurrentTrades, 1)
		c.MaxConcurrentTrades = 1
	}
	if bad(c.Slippage) || c.Slippage < 0 {
		clamp("Slippage", c.Slippage, 0.0)
		c.Slippage = 0
	}
	if c.Leverage < 1 {
		clamp("Leverage", c.Leverage, 1)
		c.Leverage = 1
	}
	if bad(c.MinProfitPercentage) || c.MinProfitPercentage < 0 {
		clamp("MinProfitPercentage", c.MinProfitPercentage, 0.0)
		c.MinProfitPercentage = 0
	}
	if c.EnableTrailingStop {
		if bad(c.TrailingStopDistance) || c.TrailingStopDistance <= 0 {
			clamp("EnableTrailingStop", true, false)
			c.EnableTrailingStop = false
		} else if c.TrailingStopDistance > maxTrailingDistance {
			clamp("TrailingStopDistance", c.TrailingStopDistance, maxTrailingDistance)
			c.TrailingStopDistance = maxTrailingDistance
		}
	}

	mode := SimulationMode(strings.ToUpper(string(c.SimulationMode)))
	switch mode {
	case ModeAuto, ModeHighFidelity, ModeStandard:
		c.SimulationMode = mode
	default:
		clamp("SimulationMode", c.SimulationMode, ModeAuto)
		c.SimulationMode = ModeAuto
	}
	if models.TimeFrameDuration(c.AmbientTimeframe) == 0 {
		clamp("AmbientTimeframe", c.AmbientTimeframe, models.TimeFrame1h)
		c.AmbientTimeframe = models.TimeFrame1h
	}
	if models.TimeFrameDuration(c.ActionTimeframe) == 0 {
		clamp("ActionTimeframe", c.ActionTimeframe, models.TimeFrame1m)
		c.ActionTimeframe = models.TimeFrame1m
	}
	if c.ResolveMode() == ModeHighFidelity && c.ActionTimeframe != models.TimeFrame1m {
		clamp("ActionTimeframe", c.ActionTimeframe, models.TimeFrame1m)
		c.ActionTimeframe = models.TimeFrame1m
	}

	if c.MinAmbientHistory < 1 {
		clamp("MinAmbientHistory", c.MinAmbientHistory, MinAmbientHistory)
		c.MinAmbientHistory = MinAmbientHistory
	}
	if c.LookbackWindow < indicators.MinimumCandles {
		clamp("LookbackWindow", c.LookbackWindow, LookbackWindow)
		c.LookbackWindow = LookbackWindow
	}
	if c.ProgressInterval < 1 {
		clamp("ProgressInterval", c.ProgressInterval, ProgressInterval)
		c.ProgressInterval = ProgressInterval
	}
	if bad(c.MaxNotional) || c.MaxNotional <= 0 {
		clamp("MaxNotional", c.MaxNotional, MaxNotional)
		c.MaxNotional = MaxNotional
	}
	if c.Strategy.TargetCount < 1 {
		clamp("Strategy.TargetCount", c.Strategy.TargetCount, 1)
		c.Strategy.TargetCount = 1
	}

	return c, adj
}

// ResolveMode turns AUTO into a concrete mode from the ambient timeframe.
func (c SimulationConfig) ResolveMode() SimulationMode {
	switch c.SimulationMode {
	case ModeHighFidelity, ModeStandard:
		return c.SimulationMode
	}
	if highFidelityTimeframes[c.AmbientTimeframe] {
		return ModeHighFidelity
	}
	return ModeStandard
}

// DataTimeframe is the candle interval the clock must be fed with.
func (c SimulationConfig) DataTimeframe() string {
	if c.ResolveMode() == ModeHighFidelity {
		return models.TimeFrame1m
	}
	return c.AmbientTimeframe
}

// InvestmentAmount is the margin committed to the next trade.
func (c SimulationConfig) InvestmentAmount(balance float64) float64 {
	if c.CapitalPercentage > 0 {
		return balance * c.CapitalPercentage / 100
	}
	return c.InvestmentPerTrade
}

// ReferenceInvestment is the per-trade investment used to normalise returns.
func (c SimulationConfig) ReferenceInvestment() float64 {
	return c.InvestmentAmount(c.InitialBalance)
}

// TargetIndex is the target a fill executed, or FinalTarget for closing fills.
type TargetIndex int

const FinalTarget TargetIndex = -1

func (t TargetIndex) MarshalJSON() ([]byte, error) {
	if t == FinalTarget {
		return []byte(`"final"`), nil
	}
	return []byte(strconv.Itoa(int(t))), nil
}

func (t *TargetIndex) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "final" || s == "null" {
		*t = FinalTarget
		return nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid target index %q: %w", s, err)
	}
	*t = TargetIndex(i)
	return nil
}

// TradeRecord is one fill, partial or full. PnL is net of both fees.
type TradeRecord struct {
	Symbol        string      `json:"symbol"`
	Action        string      `json:"action"`
	EntryPrice    float64     `json:"entryPrice"`
	ExitPrice     float64     `json:"exitPrice"`
	Units         float64     `json:"units"`
	PnL           float64     `json:"pnl"`
	Fees          float64     `json:"fees"`
	Reason        string      `json:"reason"`
	Timestamp     int64       `json:"timestamp"` // entry
	ExitTimestamp int64       `json:"exitTimestamp"`
	IsPartial     bool        `json:"isPartial"`
	TargetIndex   TargetIndex `json:"targetIndex"`
	TradeSystem   string      `json:"tradeSystem,omitempty"`
}

// EquityPoint is the balance right after a fill
type EquityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Balance   float64 `json:"balance"`
}

// BacktestResults is everything one run produces. Report is nil when the run
// produced no trades.
type BacktestResults struct {
	Mode           SimulationMode
	Strategy       string
	Ticks          int
	InitialBalance float64
	FinalBalance   float64
	MaxDrawdown    float64
	Trades         []TradeRecord
	EquityCurve    []EquityPoint
	Report         *Report
}

type Report struct {
	Summary     SummaryReport     `json:"summary"`
	Performance PerformanceReport `json:"performance"`
	Risk        RiskReport        `json:"risk"`
	Trades      []TradeRecord     `json:"trades"`
}

type SummaryReport struct {
	InitialBalance float64 `json:"initialBalance"`
	FinalBalance   float64 `json:"finalBalance"`
	TotalReturn    float64 `json:"totalReturn"` // percent
	TotalPnL       float64 `json:"totalPnL"`
	TotalFees      float64 `json:"totalFees"`
	Leverage       int     `json:"leverage"`
}

type PerformanceReport struct {
	TotalTrades     int     `json:"totalTrades"`
	WinningTrades   int     `json:"winningTrades"`
	LosingTrades    int     `json:"losingTrades"`
	WinRate         float64 `json:"winRate"` // percent
	AverageWin      float64 `json:"averageWin"`
	AverageLoss     float64 `json:"averageLoss"` // absolute value
	ProfitFactor    float64 `json:"profitFactor"`
	SharpeRatio     float64 `json:"sharpeRatio"`
	AverageDuration int64   `json:"averageDurationMs"`
}

type RiskReport struct {
	MaxDrawdown          float64 `json:"maxDrawdown"` // fraction of peak
	MaxConsecutiveLosses int     `json:"maxConsecutiveLosses"`
}
