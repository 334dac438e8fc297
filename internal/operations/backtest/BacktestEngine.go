package backtest

import (
	"context"
	"errors"
	"fmt"

	"PerpTradeBot/internal/models"
	"PerpTradeBot/internal/services/analysis"
	"PerpTradeBot/internal/services/strategy"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Engine replays a candle store through a strategy. An Engine holds only
// immutable configuration; every Run builds its own ledger and account so
// one Engine may run many backtests, also concurrently.
type Engine struct {
	config   SimulationConfig
	strategy strategy.Strategy
	progress ProgressReporter
	logger   zerolog.Logger
}

type Option func(*Engine)

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithProgress(reporter ProgressReporter) Option {
	return func(e *Engine) {
		if reporter != nil {
			e.progress = reporter
		}
	}
}

// NewEngine normalizes config and resolves the strategy. A nil strat is
// looked up by config.StrategyName.
func NewEngine(config SimulationConfig, strat strategy.Strategy, opts ...Option) (*Engine, error) {
	e := &Engine{
		progress: noopProgress{},
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	normalized, adjustments := config.Normalize()
	for _, adj := range adjustments {
		e.logger.Warn().Err(adj).Str("field", adj.Field).Msg("config value clamped")
	}

	if strat == nil {
		s, err := strategy.New(normalized.StrategyName)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		strat = s
	}
	normalized.StrategyName = strat.Name()

	e.config = normalized
	e.strategy = strat
	e.logger = e.logger.With().Str("strategy", strat.Name()).Logger()
	return e, nil
}

func (e *Engine) Config() SimulationConfig {
	return e.config
}

// Run simulates store from its first to its last timestamp. Only
// ErrCorruptCandles and ErrRunCancelled abort a run; everything else is
// logged per symbol and skipped.
func (e *Engine) Run(ctx context.Context, store *CandleStore) (*BacktestResults, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil candle store", ErrCorruptCandles)
	}

	r, err := e.newRun(store)
	if err != nil {
		return nil, err
	}

	timestamps := store.Timestamps()
	r.logger.Info().
		Str("mode", string(r.mode)).
		Str("timeframe", store.TimeFrame()).
		Strs("symbols", store.Symbols()).
		Int("ticks", len(timestamps)).
		Msg("backtest started")

	for _, ts := range timestamps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRunCancelled, err)
		}
		if err := r.tick(ts); err != nil {
			return nil, err
		}
		r.ticks++
		if r.ticks%r.config.ProgressInterval == 0 {
			r.reportProgress(ts, len(timestamps))
		}
	}
	r.closeAll()

	results := &BacktestResults{
		Mode:           r.mode,
		Strategy:       e.strategy.Name(),
		Ticks:          r.ticks,
		InitialBalance: r.account.InitialBalance,
		FinalBalance:   r.account.Balance,
		MaxDrawdown:    r.account.MaxDrawdown,
		Trades:         r.account.Trades,
		EquityCurve:    r.account.Equity,
		Report:         NewMetricsAggregator(r.config).Compute(r.account),
	}

	r.logger.Info().
		Int("fills", len(results.Trades)).
		Float64("final_balance", results.FinalBalance).
		Float64("max_drawdown", results.MaxDrawdown).
		Msg("backtest finished")
	return results, nil
}

// run is the state of one backtest. It is discarded when Run returns.
type run struct {
	config   SimulationConfig
	mode     SimulationMode
	strategy strategy.Strategy
	policy   StopLossPolicy
	progress ProgressReporter
	logger   zerolog.Logger

	store    *CandleStore
	analysis *analysis.Analysis
	ledger   *PositionLedger
	account  *AccountState
	exec     *ExecutionSimulator

	builders  map[string]*AmbientBuilder
	snapshots map[string]cachedSnapshot
	ticks     int
}

// cachedSnapshot is reused while no new ambient candle closed
type cachedSnapshot struct {
	closed   int
	snapshot *analysis.MarketSnapshot
}

type tickCandle struct {
	symbol string
	candle models.Candle
}

func (e *Engine) newRun(store *CandleStore) (*run, error) {
	config := e.config
	mode := config.ResolveMode()
	if mode == ModeHighFidelity && store.TimeFrame() != models.TimeFrame1m {
		e.logger.Warn().
			Str("timeframe", store.TimeFrame()).
			Msg("high fidelity needs 1m candles, falling back to standard")
		mode = ModeStandard
	}
	if mode == ModeStandard && store.TimeFrame() != config.AmbientTimeframe {
		e.logger.Warn().
			Str("ambient", config.AmbientTimeframe).
			Str("timeframe", store.TimeFrame()).
			Msg("store timeframe differs from ambient timeframe, deciding on store candles")
	}

	r := &run{
		config:    config,
		mode:      mode,
		strategy:  e.strategy,
		policy:    NewStopLossPolicy(e.strategy.Name(), config),
		progress:  e.progress,
		logger:    e.logger.With().Str("mode", string(mode)).Logger(),
		store:     store,
		analysis:  analysis.NewAnalysis(),
		ledger:    NewPositionLedger(config.MaxConcurrentTrades),
		account:   NewAccountState(config.InitialBalance),
		exec:      NewExecutionSimulator(config),
		builders:  make(map[string]*AmbientBuilder),
		snapshots: make(map[string]cachedSnapshot),
	}

	if mode == ModeHighFidelity {
		for _, symbol := range store.Symbols() {
			b, err := NewAmbientBuilder(config.AmbientTimeframe)
			if err != nil {
				return nil, err
			}
			r.builders[symbol] = b
		}
	}
	return r, nil
}

func (r *run) tick(ts int64) error {
	present, err := r.collect(ts)
	if err != nil {
		return err
	}

	for _, tc := range present {
		if pos, ok := r.ledger.Get(tc.symbol); ok {
			pos.CurrentPrice = tc.candle.Close
			pos.LastTimestamp = ts
		}
	}

	if r.mode == ModeStandard && r.config.EnableTrailingStop {
		for _, tc := range present {
			if pos, ok := r.ledger.Get(tc.symbol); ok {
				trailStops(pos, tc.candle.Close, r.config.TrailingStopDistance)
			}
		}
	}

	for _, tc := range present {
		if pos, ok := r.ledger.Get(tc.symbol); ok {
			r.evaluateExit(pos, tickFromCandle(tc.candle, r.mode == ModeHighFidelity))
		}
	}

	if !r.ledger.Full() {
		r.openPositions(ts, present)
	}
	return nil
}

// collect returns the symbols with a candle at ts in sorted order and feeds
// the ambient builders in high fidelity mode.
func (r *run) collect(ts int64) ([]tickCandle, error) {
	var present []tickCandle
	for _, symbol := range r.store.Symbols() {
		if b, ok := r.builders[symbol]; ok {
			b.Advance(ts)
		}
		c, ok := r.store.At(symbol, ts)
		if !ok {
			continue
		}
		if b, ok := r.builders[symbol]; ok {
			if err := b.Add(c); err != nil {
				return nil, err
			}
		}
		present = append(present, tickCandle{symbol: symbol, candle: c})
	}
	return present, nil
}

func (r *run) evaluateExit(pos *Position, tick PriceTick) {
	decision := r.policy.Evaluate(pos, tick)
	if decision == nil {
		return
	}

	switch decision.Kind {
	case ExitTargets:
		for _, idx := range decision.Targets {
			r.account.ApplyFill(r.exec.ExecuteTarget(pos, idx, tick.Timestamp))
		}
		if decision.CloseAll || pos.AllTargetsExecuted() {
			r.finish(pos, decision.Price, tick.Timestamp, ReasonTarget)
		}
	default:
		r.finish(pos, decision.Price, tick.Timestamp, decision.Reason)
	}
}

// finish closes whatever is left of pos and books the logical trade
func (r *run) finish(pos *Position, price float64, ts int64, reason string) {
	if !pos.HasDust() {
		r.account.ApplyFill(r.exec.ClosePosition(pos, price, ts, reason))
	}
	r.account.CloseTrade(pos.RealizedPnL)
	r.ledger.Remove(pos.Symbol)

	r.logger.Debug().
		Str("symbol", pos.Symbol).
		Str("reason", reason).
		Float64("pnl", pos.RealizedPnL).
		Float64("balance", r.account.Balance).
		Msg("position closed")
}

func (r *run) openPositions(ts int64, present []tickCandle) {
	snapshots := make(map[string]*analysis.MarketSnapshot, len(present))
	var rsiSum float64
	for _, tc := range present {
		snap, err := r.snapshot(tc, ts)
		if err != nil {
			r.logger.Debug().Err(err).Str("symbol", tc.symbol).Msg("snapshot skipped")
			continue
		}
		snapshots[tc.symbol] = snap
		rsiSum += snap.Indicators.RSI
	}
	if len(snapshots) == 0 {
		return
	}
	rsiAverage := rsiSum / float64(len(snapshots))

	for _, tc := range present {
		if r.ledger.Full() {
			return
		}
		if _, open := r.ledger.Get(tc.symbol); open {
			continue
		}
		snap, ok := snapshots[tc.symbol]
		if !ok {
			continue
		}

		investment := r.config.InvestmentAmount(r.account.Balance)
		if r.account.Balance <= 0 || investment <= 0 {
			return
		}

		decision, err := r.strategy.AnalyzeTrade(r.config.Fee, snap, investment, rsiAverage, r.config.Strategy)
		if err != nil {
			r.logger.Warn().Err(err).Str("symbol", tc.symbol).Msg("strategy failed")
			continue
		}
		if decision == nil {
			continue
		}

		pos, err := r.exec.OpenPosition(tc.symbol, decision, ts, r.account.Balance)
		if err != nil {
			r.logger.Warn().Err(err).Str("symbol", tc.symbol).Msg("decision rejected")
			continue
		}
		if !r.ledger.Open(pos) {
			continue
		}

		r.logger.Debug().
			Str("symbol", pos.Symbol).
			Str("action", pos.Action).
			Float64("entry", pos.EntryPrice).
			Float64("units", pos.TotalUnits).
			Int("targets", len(pos.Targets)).
			Msg("position opened")
	}
}

// snapshot builds the strategy view of one symbol. Standard mode decides on
// the store's own candles, high fidelity on closed ambient candles priced at
// the current minute.
func (r *run) snapshot(tc tickCandle, ts int64) (*analysis.MarketSnapshot, error) {
	if r.mode == ModeStandard {
		idx, ok := r.store.IndexOf(tc.symbol, ts)
		if !ok {
			return nil, ErrDataInsufficient
		}
		snap, err := r.analysis.BuildSnapshot(tc.symbol, r.store.Window(tc.symbol, idx, r.config.LookbackWindow))
		if err != nil {
			return nil, wrapInsufficient(err)
		}
		return snap, nil
	}

	b := r.builders[tc.symbol]
	closed := b.ClosedCount()
	if closed < r.config.MinAmbientHistory {
		return nil, fmt.Errorf("%w: %d closed %s candles", ErrDataInsufficient, closed, r.config.AmbientTimeframe)
	}

	cached, ok := r.snapshots[tc.symbol]
	if !ok || cached.closed != closed {
		snap, err := r.analysis.BuildSnapshot(tc.symbol, b.ClosedCandles(r.config.LookbackWindow))
		if err != nil {
			return nil, wrapInsufficient(err)
		}
		cached = cachedSnapshot{closed: closed, snapshot: snap}
		r.snapshots[tc.symbol] = cached
	}

	snap := *cached.snapshot
	snap.Price = tc.candle.Close
	snap.Timestamp = ts
	return &snap, nil
}

func wrapInsufficient(err error) error {
	if errors.Is(err, analysis.ErrInsufficientData) {
		return fmt.Errorf("%w: %w", ErrDataInsufficient, err)
	}
	return err
}

// closeAll force-closes every open position at its last known price
func (r *run) closeAll() {
	for _, symbol := range r.ledger.Symbols() {
		pos, _ := r.ledger.Get(symbol)
		r.finish(pos, pos.CurrentPrice, pos.LastTimestamp, ReasonEndOfSimulation)
	}
}

func (r *run) reportProgress(ts int64, total int) {
	p := Progress{
		Tick:          r.ticks,
		TotalTicks:    total,
		Timestamp:     ts,
		Balance:       r.account.Balance,
		OpenPositions: r.ledger.Count(),
		Trades:        len(r.account.Trades),
		MaxDrawdown:   r.account.MaxDrawdown,
		WinRate:       r.account.WinRate(),
	}
	for _, symbol := range r.ledger.Symbols() {
		pos, _ := r.ledger.Get(symbol)
		p.UnrealizedPnL += pos.UnrealizedPnL()
		p.MarginInUse += pos.Investment
	}
	r.progress.ReportProgress(p)
	r.logger.Debug().
		Int("tick", p.Tick).
		Int("total", total).
		Float64("balance", p.Balance).
		Int("open", p.OpenPositions).
		Float64("unrealized_pnl", p.UnrealizedPnL).
		Msg("progress")
}
