package price

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"PerpTradeBot/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel symbol fetches
const DefaultConcurrency = 4

// CandleSource is anything candles can be read from: the exchange, postgres
// or clickhouse.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol, timeFrame string, start, end int64) ([]models.Candle, error)
}

// CandleSink persists fetched candles
type CandleSink interface {
	SaveCandles(ctx context.Context, symbol, timeFrame string, candles []models.Candle) error
}

// Loader preloads every symbol's history before a backtest starts.
type Loader struct {
	source      CandleSource
	concurrency int
}

func NewLoader(source CandleSource, concurrency int) *Loader {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Loader{source: source, concurrency: concurrency}
}

// LoadCandles fetches [start, end) for all symbols in parallel. Series come
// back sorted with duplicate timestamps removed; symbols without candles are
// left out.
func (l *Loader) LoadCandles(ctx context.Context, symbols []string, timeFrame string, start, end int64) (map[string][]models.Candle, error) {
	var (
		mu     sync.Mutex
		result = make(map[string][]models.Candle, len(symbols))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for _, symbol := range symbols {
		g.Go(func() error {
			candles, err := l.source.GetCandles(ctx, symbol, timeFrame, start, end)
			if err != nil {
				return fmt.Errorf("load %s %s: %w", symbol, timeFrame, err)
			}
			candles, dropped := Normalize(candles)
			if dropped > 0 {
				log.Warn().Str("symbol", symbol).Str("timeframe", timeFrame).Int("duplicates", dropped).Msg("duplicate candles dropped")
			}
			if len(candles) == 0 {
				log.Warn().Str("symbol", symbol).Str("timeframe", timeFrame).Msg("no candles in range")
				return nil
			}

			mu.Lock()
			result[symbol] = candles
			mu.Unlock()

			log.Info().Str("symbol", symbol).Str("timeframe", timeFrame).Int("candles", len(candles)).Msg("candles loaded")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Normalize sorts candles by timestamp and keeps the last of any duplicates.
// dropped counts the candles that lost to a later duplicate.
func Normalize(candles []models.Candle) (out []models.Candle, dropped int) {
	if len(candles) == 0 {
		return nil, 0
	}
	sorted := make([]models.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	out = sorted[:0]
	for _, c := range sorted {
		if n := len(out); n > 0 && out[n-1].Timestamp == c.Timestamp {
			out[n-1] = c
			dropped++
			continue
		}
		out = append(out, c)
	}
	return out, dropped
}
