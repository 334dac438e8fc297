package repositories

import (
	"context"
	"errors"

	"PerpTradeBot/internal/models"

	"gorm.io/gorm"
)

const recordBatchSize = 500

type TradeRecordRepository struct {
	db *gorm.DB
}

// NewTradeRecordRepository creates a new instance of TradeRecordRepository
func NewTradeRecordRepository(db *gorm.DB) *TradeRecordRepository {
	return &TradeRecordRepository{db: db}
}

// CreateBatch stores the fills of one run
func (r *TradeRecordRepository) CreateBatch(ctx context.Context, records []models.TradeRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&records, recordBatchSize).Error
}

// FindByRunID returns the fills of a run in the order they happened
func (r *TradeRecordRepository) FindByRunID(ctx context.Context, runID string) ([]models.TradeRecord, error) {
	if runID == "" {
		return nil, errors.New("invalid run id")
	}
	var records []models.TradeRecord
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("sequence ASC").
		Find(&records).Error
	return records, err
}

// FindBySymbol returns a run's fills for one symbol
func (r *TradeRecordRepository) FindBySymbol(ctx context.Context, runID, symbol string) ([]models.TradeRecord, error) {
	var records []models.TradeRecord
	err := r.db.WithContext(ctx).
		Where("run_id = ? AND symbol = ?", runID, symbol).
		Order("sequence ASC").
		Find(&records).Error
	return records, err
}

// GetTotalPnL gets the net PnL of a run
func (r *TradeRecordRepository) GetTotalPnL(ctx context.Context, runID string) (float64, error) {
	var total struct {
		Total float64
	}
	err := r.db.WithContext(ctx).
		Model(&models.TradeRecord{}).
		Select("COALESCE(SUM(pnl), 0) as total").
		Where("run_id = ?", runID).
		Scan(&total).Error
	return total.Total, err
}
