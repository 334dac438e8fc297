package backtest

import "errors"

var (
	// ErrDataInsufficient marks a symbol or tick skipped for lack of candles.
	ErrDataInsufficient = errors.New("insufficient data")
	// ErrInvalidDecision marks a strategy decision rejected before opening.
	ErrInvalidDecision = errors.New("invalid decision")
	// ErrConfiguration marks a configuration value that had to be clamped.
	ErrConfiguration = errors.New("configuration error")
	// ErrCorruptCandles aborts a run: unsorted or duplicate timestamps.
	ErrCorruptCandles = errors.New("corrupt candle store")
	// ErrRunCancelled is returned when the context ends between ticks.
	ErrRunCancelled = errors.New("backtest run cancelled")
)
