package backtest

import (
	"fmt"
	"sort"

	"PerpTradeBot/internal/models"

	"github.com/rs/zerolog/log"
)

// gapFactor is how many nominal intervals two consecutive candles may be
// apart before the hole is reported as a data quality issue.
const gapFactor = 3

// Gap is a hole in one symbol's series
type Gap struct {
	From int64 // timestamp of the candle before the hole
	To   int64 // timestamp of the candle after the hole
}

// CandleStore holds validated, immutable per-symbol candle series of one
// timeframe and indexes them by timestamp.
type CandleStore struct {
	timeFrame  string
	intervalMs int64
	series     map[string][]models.Candle
	index      map[string]map[int64]int
	gaps       map[string][]Gap
	timestamps []int64
}

// NewCandleStore validates and indexes the given series. Every series must be
// in strictly increasing timestamp order; anything else is ErrCorruptCandles.
// Candles with an inconsistent OHLC envelope are dropped with a warning and
// symbols left without candles are omitted.
func NewCandleStore(timeFrame string, data map[string][]models.Candle) (*CandleStore, error) {
	intervalMs := models.TimeFrameMillis(timeFrame)
	if intervalMs <= 0 {
		return nil, fmt.Errorf("%w: unknown timeframe %q", ErrConfiguration, timeFrame)
	}

	store := &CandleStore{
		timeFrame:  timeFrame,
		intervalMs: intervalMs,
		series:     make(map[string][]models.Candle, len(data)),
		index:      make(map[string]map[int64]int, len(data)),
		gaps:       make(map[string][]Gap),
	}

	symbols := make([]string, 0, len(data))
	for symbol := range data {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	seen := make(map[int64]struct{})
	for _, symbol := range symbols {
		raw := data[symbol]
		candles := make([]models.Candle, 0, len(raw))
		dropped := 0

		for i, c := range raw {
			if i > 0 && c.Timestamp <= raw[i-1].Timestamp {
				return nil, fmt.Errorf("%w: %s timestamp %d follows %d",
					ErrCorruptCandles, symbol, c.Timestamp, raw[i-1].Timestamp)
			}
			if !c.Valid() {
				dropped++
				continue
			}
			candles = append(candles, c)
		}
		if dropped > 0 {
			log.Warn().Str("symbol", symbol).Int("dropped", dropped).Msg("dropped candles with invalid OHLC")
		}
		if len(candles) == 0 {
			log.Warn().Str("symbol", symbol).Msg("no candles, symbol skipped")
			continue
		}

		idx := make(map[int64]int, len(candles))
		for i, c := range candles {
			idx[c.Timestamp] = i
			seen[c.Timestamp] = struct{}{}
			if i > 0 && c.Timestamp-candles[i-1].Timestamp > gapFactor*intervalMs {
				store.gaps[symbol] = append(store.gaps[symbol], Gap{From: candles[i-1].Timestamp, To: c.Timestamp})
			}
		}
		if n := len(store.gaps[symbol]); n > 0 {
			log.Warn().Str("symbol", symbol).Int("gaps", n).Msg("candle series has gaps")
		}

		store.series[symbol] = candles
		store.index[symbol] = idx
	}

	store.timestamps = make([]int64, 0, len(seen))
	for ts := range seen {
		store.timestamps = append(store.timestamps, ts)
	}
	sort.Slice(store.timestamps, func(i, j int) bool { return store.timestamps[i] < store.timestamps[j] })

	return store, nil
}

func (s *CandleStore) TimeFrame() string {
	return s.timeFrame
}

// Interval is the nominal candle interval in milliseconds
func (s *CandleStore) Interval() int64 {
	return s.intervalMs
}

// Symbols returns the stored symbols in sorted order
func (s *CandleStore) Symbols() []string {
	symbols := make([]string, 0, len(s.series))
	for symbol := range s.series {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Series returns the full series for symbol. Callers must not modify it.
func (s *CandleStore) Series(symbol string) []models.Candle {
	return s.series[symbol]
}

// IndexOf returns the position of the candle at ts in symbol's series
func (s *CandleStore) IndexOf(symbol string, ts int64) (int, bool) {
	i, ok := s.index[symbol][ts]
	return i, ok
}

// At returns the candle of symbol starting exactly at ts
func (s *CandleStore) At(symbol string, ts int64) (models.Candle, bool) {
	i, ok := s.IndexOf(symbol, ts)
	if !ok {
		return models.Candle{}, false
	}
	return s.series[symbol][i], true
}

// Window returns up to n candles ending at index idx inclusive
func (s *CandleStore) Window(symbol string, idx, n int) []models.Candle {
	series := s.series[symbol]
	if idx < 0 || idx >= len(series) || n <= 0 {
		return nil
	}
	start := idx - n + 1
	if start < 0 {
		start = 0
	}
	return series[start : idx+1]
}

// Timestamps is the sorted union of all symbols' timestamps
func (s *CandleStore) Timestamps() []int64 {
	return s.timestamps
}

// Gaps lists holes wider than three intervals in symbol's series
func (s *CandleStore) Gaps(symbol string) []Gap {
	return s.gaps[symbol]
}

// Len is the total number of stored candles
func (s *CandleStore) Len() int {
	n := 0
	for _, series := range s.series {
		n += len(series)
	}
	return n
}
