package handlers

import (
	"context"
	"fmt"
	"time"

	"PerpTradeBot/internal/operations/price"

	"github.com/rs/zerolog/log"
)

// PriceHandler keeps the local candle store filled from the exchange
type PriceHandler struct {
	syncer *price.Syncer
}

func NewPriceHandler(remote price.CandleSource, store price.CandleStore, symbols []string) *PriceHandler {
	return &PriceHandler{
		syncer: price.NewSyncer(remote, store, symbols),
	}
}

// Backfill syncs [start, end) for each timeframe
func (h *PriceHandler) Backfill(ctx context.Context, start, end time.Time, timeFrames ...string) error {
	for _, timeFrame := range timeFrames {
		log.Info().
			Str("timeframe", timeFrame).
			Time("start", start).
			Time("end", end).
			Msg("Fetching historical candles")

		saved, err := h.syncer.Sync(ctx, timeFrame, start.UnixMilli(), end.UnixMilli())
		if err != nil {
			return fmt.Errorf("backfill %s: %w", timeFrame, err)
		}
		log.Info().Str("timeframe", timeFrame).Int("saved", saved).Msg("Backfill done")
	}
	return nil
}
