package backtest

import (
	"math"

	"PerpTradeBot/internal/models"
	"PerpTradeBot/internal/services/analysis"
	"PerpTradeBot/internal/services/strategy"
)

const (
	minuteMs = int64(60_000)
	hourMs   = int64(3_600_000)
)

func candle(symbol string, ts int64, open, high, low, close float64) models.Candle {
	return models.Candle{
		Symbol:      symbol,
		Timestamp:   ts,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       close,
		Volume:      10,
		QuoteVolume: 10 * close,
		Trades:      5,
	}
}

// flatSeries alternates closes around base so indicators stay defined
func flatSeries(symbol string, n int, step int64, base float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		c := base
		if i%2 == 1 {
			c = base + 0.2
		}
		out[i] = candle(symbol, int64(i)*step, c, c+0.3, c-0.3, c)
	}
	return out
}

// waveSeries is a slow sine so positions both win and lose
func waveSeries(symbol string, n int, step int64, base float64) []models.Candle {
	out := make([]models.Candle, n)
	prev := base
	for i := range out {
		c := base * (1 + 0.05*math.Sin(float64(i)/9))
		high := math.Max(prev, c) * 1.002
		low := math.Min(prev, c) * 0.998
		out[i] = candle(symbol, int64(i)*step, prev, high, low, c)
		prev = c
	}
	return out
}

// stubStrategy hands out decisions from a callback and records what it saw
type stubStrategy struct {
	name   string
	decide func(snap *analysis.MarketSnapshot) *strategy.Decision
	seen   []*analysis.MarketSnapshot
}

var _ strategy.Strategy = (*stubStrategy)(nil)

func (s *stubStrategy) Name() string {
	return s.name
}

func (s *stubStrategy) AnalyzeTrade(fee float64, snap *analysis.MarketSnapshot, investmentUSD float64, rsiAverage float64, cfg strategy.Config) (*strategy.Decision, error) {
	s.seen = append(s.seen, snap)
	if s.decide == nil {
		return nil, nil
	}
	return s.decide(snap), nil
}

// openOnce opens d on the first call only
func openOnce(d strategy.Decision) func(*analysis.MarketSnapshot) *strategy.Decision {
	opened := false
	return func(*analysis.MarketSnapshot) *strategy.Decision {
		if opened {
			return nil
		}
		opened = true
		out := d
		return &out
	}
}

// alwaysLong opens a long with a two target ladder at every chance
func alwaysLong(snap *analysis.MarketSnapshot) *strategy.Decision {
	return &strategy.Decision{
		Action:  models.TradeActionLong,
		Entry:   snap.Price,
		Stop:    snap.Price * 0.99,
		Targets: []float64{snap.Price * 1.01, snap.Price * 1.02},
	}
}

func standardConfig(strategyName string) SimulationConfig {
	cfg := NewConfig()
	cfg.SimulationMode = ModeStandard
	cfg.AmbientTimeframe = models.TimeFrame1h
	cfg.StrategyName = strategyName
	return cfg
}
