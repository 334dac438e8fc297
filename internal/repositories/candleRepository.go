package repositories

import (
	"context"
	"errors"
	"fmt"

	"PerpTradeBot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const candleBatchSize = 500

type CandleRepository struct {
	db *gorm.DB
}

// NewCandleRepository creates a new instance of CandleRepository
func NewCandleRepository(db *gorm.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

// Create stores a single candle
func (r *CandleRepository) Create(ctx context.Context, candle *models.Candle) error {
	if candle == nil {
		return errors.New("candle cannot be nil")
	}
	return r.CreateBatch(ctx, []models.Candle{*candle})
}

// CreateBatch upserts candles on (symbol, time_frame, timestamp)
func (r *CandleRepository) CreateBatch(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "symbol"}, {Name: "time_frame"}, {Name: "timestamp"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"open", "high", "low", "close", "volume", "quote_volume", "trades",
			}),
		}).
		CreateInBatches(&candles, candleBatchSize).Error
}

// SaveCandles stores candles fetched for symbol
func (r *CandleRepository) SaveCandles(ctx context.Context, symbol, timeFrame string, candles []models.Candle) error {
	for i := range candles {
		candles[i].Symbol = symbol
		candles[i].TimeFrame = timeFrame
	}
	return r.CreateBatch(ctx, candles)
}

// GetCandles returns candles with start <= timestamp < end in ascending order
func (r *CandleRepository) GetCandles(ctx context.Context, symbol, timeFrame string, start, end int64) ([]models.Candle, error) {
	if symbol == "" || timeFrame == "" {
		return nil, errors.New("invalid symbol or timeframe")
	}

	var candles []models.Candle
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND time_frame = ? AND timestamp >= ? AND timestamp < ?",
			symbol, timeFrame, start, end).
		Order("timestamp ASC").
		Find(&candles).Error
	if err != nil {
		return nil, fmt.Errorf("get candles %s %s: %w", symbol, timeFrame, err)
	}
	return candles, nil
}

// GetCandlesByTimeFrame returns the newest limit candles in ascending order
func (r *CandleRepository) GetCandlesByTimeFrame(ctx context.Context, symbol, timeFrame string, limit int) ([]models.Candle, error) {
	if symbol == "" || timeFrame == "" {
		return nil, errors.New("invalid symbol or timeframe")
	}

	var candles []models.Candle
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND time_frame = ?", symbol, timeFrame).
		Order("timestamp DESC").
		Limit(limit).
		Find(&candles).Error
	if err != nil {
		return nil, fmt.Errorf("get %s %s candles: %w", symbol, timeFrame, err)
	}

	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// GetLatestCandle gets the most recent candle for a symbol and timeframe
func (r *CandleRepository) GetLatestCandle(ctx context.Context, symbol, timeFrame string) (*models.Candle, error) {
	return r.edgeCandle(ctx, symbol, timeFrame, "timestamp DESC")
}

// GetEarliestCandle gets the oldest stored candle for a symbol and timeframe
func (r *CandleRepository) GetEarliestCandle(ctx context.Context, symbol, timeFrame string) (*models.Candle, error) {
	return r.edgeCandle(ctx, symbol, timeFrame, "timestamp ASC")
}

func (r *CandleRepository) edgeCandle(ctx context.Context, symbol, timeFrame, order string) (*models.Candle, error) {
	if symbol == "" || timeFrame == "" {
		return nil, errors.New("invalid symbol or timeframe")
	}

	var candle models.Candle
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND time_frame = ?", symbol, timeFrame).
		Order(order).
		First(&candle).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &candle, err
}

// CountCandles counts stored candles for a symbol and timeframe
func (r *CandleRepository) CountCandles(ctx context.Context, symbol, timeFrame string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Candle{}).
		Where("symbol = ? AND time_frame = ?", symbol, timeFrame).
		Count(&count).Error
	return count, err
}
