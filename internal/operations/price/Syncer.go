package price

import (
	"context"
	"fmt"
	"sync/atomic"

	"PerpTradeBot/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// CandleStore is a sink that knows what it already holds
type CandleStore interface {
	CandleSink
	GetLatestCandle(ctx context.Context, symbol, timeFrame string) (*models.Candle, error)
	GetEarliestCandle(ctx context.Context, symbol, timeFrame string) (*models.Candle, error)
}

// Syncer backfills a store from a remote source. A symbol resumes after its
// newest stored candle only when the store already reaches back to the start
// of the requested range; otherwise the whole range is fetched again.
type Syncer struct {
	remote      CandleSource
	store       CandleStore
	symbols     []string
	concurrency int
}

func NewSyncer(remote CandleSource, store CandleStore, symbols []string) *Syncer {
	return &Syncer{
		remote:      remote,
		store:       store,
		symbols:     symbols,
		concurrency: DefaultConcurrency,
	}
}

// Sync fetches [since, until) for every symbol, skipping what the store
// already has, and returns how many candles were saved.
func (s *Syncer) Sync(ctx context.Context, timeFrame string, since, until int64) (int, error) {
	interval := models.TimeFrameMillis(timeFrame)
	if interval <= 0 {
		return 0, fmt.Errorf("unsupported timeframe %q", timeFrame)
	}

	var saved atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, symbol := range s.symbols {
		g.Go(func() error {
			start, err := s.resumeFrom(ctx, symbol, timeFrame, since, interval)
			if err != nil {
				return err
			}
			if start >= until {
				log.Debug().Str("symbol", symbol).Str("timeframe", timeFrame).Msg("already up to date")
				return nil
			}

			candles, err := s.remote.GetCandles(ctx, symbol, timeFrame, start, until)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", symbol, err)
			}
			candles, dropped := Normalize(candles)
			if dropped > 0 {
				log.Warn().Str("symbol", symbol).Str("timeframe", timeFrame).Int("duplicates", dropped).Msg("duplicate candles dropped")
			}
			if err := s.store.SaveCandles(ctx, symbol, timeFrame, candles); err != nil {
				return fmt.Errorf("save %s: %w", symbol, err)
			}

			saved.Add(int64(len(candles)))
			log.Info().Str("symbol", symbol).Str("timeframe", timeFrame).Int("candles", len(candles)).Msg("candles synced")
			return nil
		})
	}

	err := g.Wait()
	return int(saved.Load()), err
}

// resumeFrom is the first timestamp of symbol still missing from the store
func (s *Syncer) resumeFrom(ctx context.Context, symbol, timeFrame string, since, interval int64) (int64, error) {
	latest, err := s.store.GetLatestCandle(ctx, symbol, timeFrame)
	if err != nil {
		return 0, fmt.Errorf("latest %s candle: %w", symbol, err)
	}
	if latest == nil || latest.Timestamp+interval <= since {
		return since, nil
	}

	earliest, err := s.store.GetEarliestCandle(ctx, symbol, timeFrame)
	if err != nil {
		return 0, fmt.Errorf("earliest %s candle: %w", symbol, err)
	}
	if earliest == nil || earliest.Timestamp > since {
		log.Debug().Str("symbol", symbol).Str("timeframe", timeFrame).Msg("store starts after range, fetching all of it")
		return since, nil
	}
	return latest.Timestamp + interval, nil
}
