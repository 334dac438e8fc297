package models

import (
	"math"
	"time"
)

type Candle struct {
	ID          uint    `gorm:"primaryKey" json:"-"`
	Symbol      string  `gorm:"uniqueIndex:idx_candle_key;not null" json:"symbol"`
	TimeFrame   string  `gorm:"uniqueIndex:idx_candle_key;not null" json:"timeFrame"`
	Timestamp   int64   `gorm:"uniqueIndex:idx_candle_key;not null" json:"timestamp"` // ms, bucket start
	Open        float64 `gorm:"type:decimal(20,8)" json:"open"`
	High        float64 `gorm:"type:decimal(20,8)" json:"high"`
	Low         float64 `gorm:"type:decimal(20,8)" json:"low"`
	Close       float64 `gorm:"type:decimal(20,8)" json:"close"`
	Volume      float64 `gorm:"type:decimal(28,8)" json:"volume"`
	QuoteVolume float64 `gorm:"type:decimal(28,8)" json:"quoteVolume"`
	Trades      int64   `json:"trades"`
}

const (
	TimeFrame1m  = "1m"
	TimeFrame3m  = "3m"
	TimeFrame5m  = "5m"
	TimeFrame15m = "15m"
	TimeFrame30m = "30m"
	TimeFrame1h  = "1h"
	TimeFrame2h  = "2h"
	TimeFrame4h  = "4h"
	TimeFrame1d  = "1d"
)

var timeFrameDurations = map[string]time.Duration{
	TimeFrame1m:  time.Minute,
	TimeFrame3m:  3 * time.Minute,
	TimeFrame5m:  5 * time.Minute,
	TimeFrame15m: 15 * time.Minute,
	TimeFrame30m: 30 * time.Minute,
	TimeFrame1h:  time.Hour,
	TimeFrame2h:  2 * time.Hour,
	TimeFrame4h:  4 * time.Hour,
	TimeFrame1d:  24 * time.Hour,
}

// TableName sets the table name for Candle model
func (Candle) TableName() string {
	return "candles"
}

// TimeFrameDuration returns the nominal interval of a timeframe, or 0 when unknown.
func TimeFrameDuration(timeFrame string) time.Duration {
	return timeFrameDurations[timeFrame]
}

// TimeFrameMillis is TimeFrameDuration in milliseconds.
func TimeFrameMillis(timeFrame string) int64 {
	return TimeFrameDuration(timeFrame).Milliseconds()
}

// Valid reports whether the candle has finite positive prices and a consistent OHLC envelope.
func (c Candle) Valid() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return c.High >= math.Max(c.Open, c.Close) && c.Low <= math.Min(c.Open, c.Close)
}

// OpenTime converts the millisecond bucket start into a UTC time.
func (c Candle) OpenTime() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}
