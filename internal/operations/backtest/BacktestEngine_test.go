package backtest

import (
	"context"
	"errors"
	"testing"

	"PerpTradeBot/internal/models"
	"PerpTradeBot/internal/services/strategy"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ladderDecision = strategy.Decision{
	Action:  models.TradeActionLong,
	Entry:   100,
	Stop:    95,
	Targets: []float64{105, 110},
}

// scenarioStore is 34 quiet hours followed by the given candles
func scenarioStore(t *testing.T, tail ...models.Candle) *CandleStore {
	t.Helper()
	series := flatSeries("BTCUSDT", 34, hourMs, 100)
	for i, c := range tail {
		c.Symbol = "BTCUSDT"
		c.Timestamp = int64(34+i) * hourMs
		series = append(series, c)
	}
	store, err := NewCandleStore(models.TimeFrame1h, map[string][]models.Candle{"BTCUSDT": series})
	require.NoError(t, err)
	return store
}

func newTestEngine(t *testing.T, cfg SimulationConfig, strat strategy.Strategy, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	engine, err := NewEngine(cfg, strat, opts...)
	require.NoError(t, err)
	return engine
}

func TestRunTargetsScenario(t *testing.T) {
	store := scenarioStore(t,
		candle("", 0, 100.2, 105.3, 100.1, 105),
		candle("", 0, 105, 110.4, 104.9, 110),
	)
	stub := &stubStrategy{name: strategy.StrategyLevel, decide: openOnce(ladderDecision)}

	results, err := newTestEngine(t, standardConfig(strategy.StrategyLevel), stub).Run(context.Background(), store)
	require.NoError(t, err)

	require.Len(t, results.Trades, 2)
	for i, rec := range results.Trades {
		assert.True(t, rec.IsPartial)
		assert.Equal(t, TargetIndex(i), rec.TargetIndex)
		assert.Equal(t, 0.5, rec.Units)
		assert.Equal(t, 33*hourMs, rec.Timestamp)
		assert.Greater(t, rec.PnL, 0.0)
	}
	assert.InDelta(t, 2.5-0.041, results.Trades[0].PnL, 1e-9)
	assert.InDelta(t, 5-0.042, results.Trades[1].PnL, 1e-9)

	assert.InDelta(t, 1007.417, results.FinalBalance, 1e-9)
	require.NotNil(t, results.Report)
	assert.Equal(t, 1, results.Report.Performance.TotalTrades)
	assert.Equal(t, 100.0, results.Report.Performance.WinRate)
	assert.Equal(t, 0.0, results.Report.Performance.ProfitFactor)
	assert.Equal(t, 0.0, results.MaxDrawdown)
	assert.Len(t, results.EquityCurve, 2)
	assert.Equal(t, ModeStandard, results.Mode)
}

func TestRunStopScenario(t *testing.T) {
	store := scenarioStore(t,
		candle("", 0, 100.2, 100.3, 94.8, 95),
		candle("", 0, 95, 111, 94.9, 110),
	)
	stub := &stubStrategy{name: strategy.StrategyLevel, decide: openOnce(ladderDecision)}

	results, err := newTestEngine(t, standardConfig(strategy.StrategyLevel), stub).Run(context.Background(), store)
	require.NoError(t, err)

	require.Len(t, results.Trades, 1)
	rec := results.Trades[0]
	assert.False(t, rec.IsPartial)
	assert.Equal(t, FinalTarget, rec.TargetIndex)
	assert.Equal(t, ReasonStopLoss, rec.Reason)
	assert.Equal(t, 1.0, rec.Units)
	assert.InDelta(t, (95-100)*1.0-(100+95)*0.0004, rec.PnL, 1e-9)
	assert.Equal(t, 34*hourMs, rec.ExitTimestamp)

	require.NotNil(t, results.Report)
	assert.Equal(t, 0.0, results.Report.Performance.WinRate)
	assert.Equal(t, 1, results.Report.Risk.MaxConsecutiveLosses)
	assert.Greater(t, results.MaxDrawdown, 0.0)
}

func TestRunForceClosesAtEnd(t *testing.T) {
	store := scenarioStore(t, candle("", 0, 100, 101, 99, 101))
	stub := &stubStrategy{name: strategy.StrategyLevel, decide: openOnce(ladderDecision)}

	results, err := newTestEngine(t, standardConfig(strategy.StrategyLevel), stub).Run(context.Background(), store)
	require.NoError(t, err)

	require.Len(t, results.Trades, 1)
	rec := results.Trades[0]
	assert.Equal(t, ReasonEndOfSimulation, rec.Reason)
	assert.Equal(t, 101.0, rec.ExitPrice)
	assert.Equal(t, 34*hourMs, rec.ExitTimestamp)
}

func TestRunWithoutTradesHasNoReport(t *testing.T) {
	stub := &stubStrategy{name: strategy.StrategyLevel}
	results, err := newTestEngine(t, standardConfig(strategy.StrategyLevel), stub).Run(context.Background(), scenarioStore(t))
	require.NoError(t, err)

	assert.Nil(t, results.Report)
	assert.Empty(t, results.Trades)
	assert.Equal(t, 1000.0, results.FinalBalance)
	assert.Len(t, stub.seen, 1)
}

func TestRunHighFidelityNoLookAhead(t *testing.T) {
	minutes := waveSeries("BTCUSDT", 400, minuteMs, 100)
	store, err := NewCandleStore(models.TimeFrame1m, map[string][]models.Candle{"BTCUSDT": minutes})
	require.NoError(t, err)

	cfg := NewConfig()
	cfg.AmbientTimeframe = models.TimeFrame5m
	stub := &stubStrategy{name: strategy.StrategyLevel}

	results, err := newTestEngine(t, cfg, stub).Run(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, ModeHighFidelity, results.Mode)

	bucket := 5 * minuteMs
	require.Len(t, stub.seen, 400-250)
	for _, snap := range stub.seen {
		require.NotEmpty(t, snap.Window)
		for _, c := range snap.Window {
			assert.Less(t, c.Timestamp+bucket-1, snap.Timestamp)
		}
		latest := snap.Window[len(snap.Window)-1]
		assert.Equal(t, BucketStart(snap.Timestamp, bucket)-bucket, latest.Timestamp)

		minute, ok := store.At("BTCUSDT", snap.Timestamp)
		require.True(t, ok)
		assert.Equal(t, minute.Close, snap.Price)
	}
}

func TestRunHighFidelityFallsBack(t *testing.T) {
	cfg := standardConfig(strategy.StrategyLevel)
	cfg.SimulationMode = ModeHighFidelity
	stub := &stubStrategy{name: strategy.StrategyLevel}

	results, err := newTestEngine(t, cfg, stub).Run(context.Background(), scenarioStore(t))
	require.NoError(t, err)
	assert.Equal(t, ModeStandard, results.Mode)
}

func TestRunHighFidelityIntrabarStop(t *testing.T) {
	// 5m buckets need 250 minutes before the strategy is asked
	minutes := flatSeries("BTCUSDT", 252, minuteMs, 100)
	minutes = append(minutes,
		candle("BTCUSDT", 252*minuteMs, 100, 100.5, 94, 99.5),
		candle("BTCUSDT", 253*minuteMs, 99.5, 100, 99, 99.8),
	)
	store, err := NewCandleStore(models.TimeFrame1m, map[string][]models.Candle{"BTCUSDT": minutes})
	require.NoError(t, err)

	cfg := NewConfig()
	cfg.AmbientTimeframe = models.TimeFrame5m
	cfg.StrategyName = strategy.StrategyLevel
	stub := &stubStrategy{name: strategy.StrategyLevel, decide: openOnce(ladderDecision)}

	results, err := newTestEngine(t, cfg, stub).Run(context.Background(), store)
	require.NoError(t, err)

	require.Len(t, results.Trades, 1)
	rec := results.Trades[0]
	assert.Equal(t, ReasonStopLoss, rec.Reason)
	assert.Equal(t, 95.0, rec.ExitPrice)
	assert.Equal(t, 252*minuteMs, rec.ExitTimestamp)
}

func TestRunDeterministic(t *testing.T) {
	store, err := NewCandleStore(models.TimeFrame1h, map[string][]models.Candle{
		"BTCUSDT": waveSeries("BTCUSDT", 400, hourMs, 30000),
		"ETHUSDT": waveSeries("ETHUSDT", 380, hourMs, 2000),
	})
	require.NoError(t, err)

	engine := newTestEngine(t, standardConfig(strategy.StrategyLevel), &stubStrategy{name: strategy.StrategyLevel, decide: alwaysLong})

	first, err := engine.Run(context.Background(), store)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), store)
	require.NoError(t, err)

	require.NotEmpty(t, first.Trades)
	a, err := json.Marshal(first.Trades)
	require.NoError(t, err)
	b, err := json.Marshal(second.Trades)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, first.FinalBalance, second.FinalBalance)

	drawdown := 0.0
	peak := first.InitialBalance
	for _, p := range first.EquityCurve {
		if p.Balance > peak {
			peak = p.Balance
		}
		if dd := (peak - p.Balance) / peak; dd > drawdown {
			drawdown = dd
		}
	}
	assert.LessOrEqual(t, first.MaxDrawdown, drawdown+1e-12)
}

func TestRunConcurrencyCap(t *testing.T) {
	data := map[string][]models.Candle{}
	for _, symbol := range []string{"ADAUSDT", "BTCUSDT", "ETHUSDT"} {
		data[symbol] = waveSeries(symbol, 200, hourMs, 50)
	}
	store, err := NewCandleStore(models.TimeFrame1h, data)
	require.NoError(t, err)

	cfg := standardConfig(strategy.StrategyLevel)
	cfg.MaxConcurrentTrades = 2
	cfg.ProgressInterval = 1

	maxOpen, reports := 0, 0
	progress := ProgressFunc(func(p Progress) {
		reports++
		if p.OpenPositions > maxOpen {
			maxOpen = p.OpenPositions
		}
	})

	results, err := newTestEngine(t, cfg, &stubStrategy{name: strategy.StrategyLevel, decide: alwaysLong}, WithProgress(progress)).
		Run(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, 2, maxOpen)
	assert.Equal(t, results.Ticks, reports)
}

func TestRunProgressTracksOpenPositions(t *testing.T) {
	cfg := standardConfig(strategy.StrategyLevel)
	cfg.EnableStopLoss = false
	cfg.EnableTakeProfit = false
	cfg.ProgressInterval = 1

	var last Progress
	progress := ProgressFunc(func(p Progress) { last = p })
	store := scenarioStore(t, candle("", 0, 100, 100, 100, 100), candle("", 0, 100, 104, 100, 104))
	_, err := newTestEngine(t, cfg, &stubStrategy{name: strategy.StrategyLevel, decide: openOnce(ladderDecision)}, WithProgress(progress)).
		Run(context.Background(), store)
	require.NoError(t, err)

	require.Equal(t, 1, last.OpenPositions)
	assert.InDelta(t, cfg.InvestmentPerTrade, last.MarginInUse, 1e-9)
	units := cfg.InvestmentPerTrade * float64(cfg.Leverage) / 100
	assert.InDelta(t, 4*units, last.UnrealizedPnL, 1e-6)
}

func TestPositionUnrealizedPnL(t *testing.T) {
	long := &Position{Action: models.TradeActionLong, EntryPrice: 100, CurrentPrice: 103, RemainingUnits: 2}
	assert.InDelta(t, 6.0, long.UnrealizedPnL(), 1e-9)

	short := &Position{Action: models.TradeActionShort, EntryPrice: 100, CurrentPrice: 103, RemainingUnits: 2}
	assert.InDelta(t, -6.0, short.UnrealizedPnL(), 1e-9)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(t, standardConfig(strategy.StrategyLevel), &stubStrategy{name: strategy.StrategyLevel}).Run(ctx, scenarioStore(t))
	assert.ErrorIs(t, err, ErrRunCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunCancelledBetweenTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := standardConfig(strategy.StrategyLevel)
	cfg.ProgressInterval = 10
	progress := ProgressFunc(func(p Progress) {
		if p.Tick == 20 {
			cancel()
		}
	})

	_, err := newTestEngine(t, cfg, &stubStrategy{name: strategy.StrategyLevel}, WithProgress(progress)).Run(ctx, scenarioStore(t))
	assert.True(t, errors.Is(err, ErrRunCancelled))
}

func TestRunNilStore(t *testing.T) {
	_, err := newTestEngine(t, NewConfig(), nil).Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrCorruptCandles)
}

func TestNewEngine(t *testing.T) {
	cfg := NewConfig()
	cfg.StrategyName = "promax"
	cfg.Leverage = 0
	engine, err := NewEngine(cfg, nil, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, strategy.StrategyProMax, engine.Config().StrategyName)
	assert.Equal(t, 1, engine.Config().Leverage)

	cfg.StrategyName = "martingale"
	_, err = NewEngine(cfg, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRunRealStrategies(t *testing.T) {
	store, err := NewCandleStore(models.TimeFrame1h, map[string][]models.Candle{
		"BTCUSDT": waveSeries("BTCUSDT", 300, hourMs, 30000),
	})
	require.NoError(t, err)

	for _, name := range strategy.Names() {
		t.Run(name, func(t *testing.T) {
			results, err := newTestEngine(t, standardConfig(name), nil).Run(context.Background(), store)
			require.NoError(t, err)
			assert.Equal(t, name, results.Strategy)
			assert.Equal(t, len(store.Timestamps()), results.Ticks)
			if results.Report != nil {
				assert.Equal(t, results.FinalBalance, results.Report.Summary.FinalBalance)
			}
		})
	}
}
