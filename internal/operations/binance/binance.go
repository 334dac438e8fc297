package binance

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"PerpTradeBot/internal/models"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// KlineLimit is the most klines Binance returns per request
const KlineLimit = 500

type klineFetcher func(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]*futures.Kline, error)

type BinanceClient struct {
	client      *futures.Client
	rateLimiter *rate.Limiter
	httpClient  *http.Client
	fetch       klineFetcher
}

func NewBinanceClient(apiKey, secretKey string) *BinanceClient {
	// Create custom HTTP client with timeouts
	httpClient := &http.Client{
		Timeout: time.Second * 10,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	futuresClient := futures.NewClient(apiKey, secretKey)
	futuresClient.HTTPClient = httpClient

	// 10 requests per second with burst of 20
	limiter := rate.NewLimiter(rate.Limit(10), 20)

	c := &BinanceClient{
		client:      futuresClient,
		rateLimiter: limiter,
		httpClient:  httpClient,
	}
	c.fetch = c.GetKlines
	return c
}

// GetKlines fetches one page of klines, retrying with exponential backoff
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]*futures.Kline, error) {
	maxRetries := 3
	backoff := 100 * time.Millisecond

	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		klines, err := c.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(startTime).
			EndTime(endTime).
			Limit(KlineLimit).
			Do(ctx)
		if err == nil {
			return klines, nil
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, interval, err)
		}

		waitTime := time.Duration(math.Pow(2, float64(attempt))) * backoff
		log.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt+1).Dur("backoff", waitTime).Msg("kline request failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// GetCandles pages through [start, end) and converts klines to candles.
func (c *BinanceClient) GetCandles(ctx context.Context, symbol, timeFrame string, start, end int64) ([]models.Candle, error) {
	interval := models.TimeFrameMillis(timeFrame)
	if interval <= 0 {
		return nil, fmt.Errorf("unsupported timeframe %q", timeFrame)
	}

	var candles []models.Candle
	for cursor := start; cursor < end; {
		klines, err := c.fetch(ctx, symbol, timeFrame, cursor, end-1)
		if err != nil {
			return nil, err
		}
		if len(klines) == 0 {
			break
		}

		next := cursor
		for _, k := range klines {
			if k.OpenTime < cursor || k.OpenTime >= end {
				continue
			}
			candles = append(candles, KlineToCandle(symbol, timeFrame, k))
			next = k.OpenTime + interval
		}
		if next <= cursor {
			break
		}
		cursor = next
	}

	log.Debug().Str("symbol", symbol).Str("timeframe", timeFrame).Int("candles", len(candles)).Msg("fetched candles")
	return candles, nil
}

// KlineToCandle converts a futures kline into a candle
func KlineToCandle(symbol, timeFrame string, k *futures.Kline) models.Candle {
	return models.Candle{
		Symbol:      symbol,
		TimeFrame:   timeFrame,
		Timestamp:   k.OpenTime,
		Open:        parseFloat(k.Open),
		High:        parseFloat(k.High),
		Low:         parseFloat(k.Low),
		Close:       parseFloat(k.Close),
		Volume:      parseFloat(k.Volume),
		QuoteVolume: parseFloat(k.QuoteAssetVolume),
		Trades:      k.TradeNum,
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Warn().Err(err).Str("value", s).Msg("error parsing float")
		return 0
	}
	return f
}
