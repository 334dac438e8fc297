package strategy

import (
	"fmt"
	"sort"
	"strings"

	"PerpTradeBot/internal/services/analysis"
)

const (
	StrategyDefault = "DEFAULT"
	StrategyProMax  = "PROMAX"
	StrategyLevel   = "LEVEL"
)

// Strategy decides whether to open a trade for one symbol at one tick. It
// must not keep state between calls; returning a nil Decision means no trade.
type Strategy interface {
	Name() string
	AnalyzeTrade(fee float64, snapshot *analysis.MarketSnapshot, investmentUSD float64, rsiAverage float64, cfg Config) (*Decision, error)
}

// Decision is a strategy-approved trade. Targets and StopLosses are optional;
// when empty the single Target and Stop apply.
type Decision struct {
	Action      string // models.TradeActionLong or models.TradeActionShort
	Entry       float64
	Stop        float64
	Target      float64
	Targets     []float64
	StopLosses  []float64
	TradeSystem string
	Confidence  float64
	Reason      string
}

// Config holds every strategy threshold. Defaults come from DefaultConfig.
type Config struct {
	RSILongMin  float64 // 40
	RSILongMax  float64 // 70
	RSIShortMin float64 // 30
	RSIShortMax float64 // 60

	// market-wide RSI average filter used by PROMAX
	MarketRSIOverbought float64 // 70
	MarketRSIOversold   float64 // 30

	ADXMin float64 // 20

	StopATRMultiplier       float64 // 1.5
	SecondStopATRMultiplier float64 // 2.5
	TargetATRMultiplier     float64 // 1.0, distance between consecutive targets
	TargetCount             int     // 3

	StochOversold   float64 // 20
	StochOverbought float64 // 80

	MinConfidence  float64 // 0.5
	MinVolumeRatio float64 // 0.8
}

func DefaultConfig() Config {
	return Config{
		RSILongMin:              40,
		RSILongMax:              70,
		RSIShortMin:             30,
		RSIShortMax:             60,
		MarketRSIOverbought:     70,
		MarketRSIOversold:       30,
		ADXMin:                  20,
		StopATRMultiplier:       1.5,
		SecondStopATRMultiplier: 2.5,
		TargetATRMultiplier:     1.0,
		TargetCount:             3,
		StochOversold:           20,
		StochOverbought:         80,
		MinConfidence:           0.5,
		MinVolumeRatio:          0.8,
	}
}

// New returns the strategy registered under name (case insensitive).
func New(name string) (Strategy, error) {
	switch strings.ToUpper(name) {
	case StrategyDefault, "":
		return NewStrategyManager(), nil
	case StrategyProMax:
		return NewProMaxStrategy(), nil
	case StrategyLevel:
		return NewLevelStrategy(), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

// Names lists the registered strategies.
func Names() []string {
	return []string{StrategyDefault, StrategyLevel, StrategyProMax}
}

// coversFees reports whether moving from entry to target beats the round-trip fee.
func coversFees(entry, target, fee float64) bool {
	if entry <= 0 {
		return false
	}
	move := (target - entry) / entry
	if move < 0 {
		move = -move
	}
	return move > 2*fee
}

// atrLadder builds count levels spaced step apart starting one step from entry.
// Long levels ascend, short levels descend.
func atrLadder(entry, step float64, count int, long bool) []float64 {
	levels := make([]float64, 0, count)
	for i := 1; i <= count; i++ {
		if long {
			levels = append(levels, entry+step*float64(i))
		} else {
			levels = append(levels, entry-step*float64(i))
		}
	}
	return levels
}

// orderTargets sorts targets in the order price reaches them and drops
// duplicates and levels on the wrong side of entry.
func orderTargets(entry float64, long bool, levels ...float64) []float64 {
	out := make([]float64, 0, len(levels))
	seen := make(map[float64]bool, len(levels))
	for _, l := range levels {
		if seen[l] || l <= 0 {
			continue
		}
		if (long && l > entry) || (!long && l < entry) {
			out = append(out, l)
			seen[l] = true
		}
	}
	sort.Float64s(out)
	if !long {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}
