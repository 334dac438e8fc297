package backtest

import (
	"fmt"
	"sort"

	"PerpTradeBot/internal/models"
)

// AmbientCandle is a candle aggregated from finer candles. Start and End are
// inclusive millisecond bounds of its bucket.
type AmbientCandle struct {
	models.Candle
	Start int64
	End   int64
}

// BucketStart maps a timestamp to the start of its bucket. It depends only on
// ts and bucketMs, never on arrival order.
func BucketStart(ts, bucketMs int64) int64 {
	start := ts / bucketMs * bucketMs
	if ts < 0 && ts%bucketMs != 0 {
		start -= bucketMs
	}
	return start
}

func newAmbient(c models.Candle, timeFrame string, bucketMs int64) AmbientCandle {
	start := BucketStart(c.Timestamp, bucketMs)
	a := AmbientCandle{Candle: c, Start: start, End: start + bucketMs - 1}
	a.ID = 0
	a.Timestamp = start
	a.TimeFrame = timeFrame
	return a
}

// merge folds a later component candle into the bucket
func (a *AmbientCandle) merge(c models.Candle) {
	if c.High > a.High {
		a.High = c.High
	}
	if c.Low < a.Low {
		a.Low = c.Low
	}
	a.Close = c.Close
	a.Volume += c.Volume
	a.QuoteVolume += c.QuoteVolume
	a.Trades += c.Trades
}

// Aggregate buckets candles into timeFrame candles. Within a bucket the first
// candle given supplies the open and the last the close; output is ordered by
// bucket start.
func Aggregate(candles []models.Candle, timeFrame string) ([]AmbientCandle, error) {
	bucketMs := models.TimeFrameMillis(timeFrame)
	if bucketMs <= 0 {
		return nil, fmt.Errorf("%w: unknown timeframe %q", ErrConfiguration, timeFrame)
	}

	buckets := make(map[int64]*AmbientCandle)
	for _, c := range candles {
		start := BucketStart(c.Timestamp, bucketMs)
		if b, ok := buckets[start]; ok {
			b.merge(c)
			continue
		}
		a := newAmbient(c, timeFrame, bucketMs)
		buckets[start] = &a
	}

	out := make([]AmbientCandle, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

// Candles strips the bucket bounds
func Candles(ambient []AmbientCandle) []models.Candle {
	out := make([]models.Candle, len(ambient))
	for i, a := range ambient {
		out[i] = a.Candle
	}
	return out
}

// AmbientBuilder aggregates one symbol's minute candles incrementally and only
// hands out buckets that have closed.
type AmbientBuilder struct {
	timeFrame string
	bucketMs  int64
	closed    []models.Candle
	bounds    []AmbientCandle
	forming   *AmbientCandle
}

func NewAmbientBuilder(timeFrame string) (*AmbientBuilder, error) {
	bucketMs := models.TimeFrameMillis(timeFrame)
	if bucketMs <= 0 {
		return nil, fmt.Errorf("%w: unknown timeframe %q", ErrConfiguration, timeFrame)
	}
	return &AmbientBuilder{timeFrame: timeFrame, bucketMs: bucketMs}, nil
}

// Add folds a component candle into the bucket in formation, closing the
// previous bucket when c starts a new one.
func (b *AmbientBuilder) Add(c models.Candle) error {
	start := BucketStart(c.Timestamp, b.bucketMs)
	if b.forming != nil {
		switch {
		case start == b.forming.Start:
			b.forming.merge(c)
			return nil
		case start < b.forming.Start:
			return fmt.Errorf("%w: %s candle %d precedes bucket %d",
				ErrCorruptCandles, c.Symbol, c.Timestamp, b.forming.Start)
		}
		b.finalize()
	}
	if n := len(b.bounds); n > 0 && start <= b.bounds[n-1].Start {
		return fmt.Errorf("%w: %s candle %d falls in closed bucket %d",
			ErrCorruptCandles, c.Symbol, c.Timestamp, b.bounds[n-1].Start)
	}

	a := newAmbient(c, b.timeFrame, b.bucketMs)
	b.forming = &a
	return nil
}

// Advance closes the bucket in formation once ts is past its end.
func (b *AmbientBuilder) Advance(ts int64) {
	if b.forming != nil && b.forming.End < ts {
		b.finalize()
	}
}

func (b *AmbientBuilder) finalize() {
	b.bounds = append(b.bounds, *b.forming)
	b.closed = append(b.closed, b.forming.Candle)
	b.forming = nil
}

// Closed returns every closed bucket. Callers must not modify it.
func (b *AmbientBuilder) Closed() []AmbientCandle {
	return b.bounds
}

// ClosedCandles returns up to the last n closed buckets as plain candles
func (b *AmbientBuilder) ClosedCandles(n int) []models.Candle {
	if n <= 0 || n >= len(b.closed) {
		return b.closed
	}
	return b.closed[len(b.closed)-n:]
}

// ClosedCount is the number of closed buckets
func (b *AmbientBuilder) ClosedCount() int {
	return len(b.closed)
}

// Forming returns the bucket still in formation, if any
func (b *AmbientBuilder) Forming() (AmbientCandle, bool) {
	if b.forming == nil {
		return AmbientCandle{}, false
	}
	return *b.forming, true
}
