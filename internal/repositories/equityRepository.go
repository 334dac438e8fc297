package repositories

import (
	"context"

	"PerpTradeBot/internal/models"

	"gorm.io/gorm"
)

type EquityRepository struct {
	db *gorm.DB
}

// NewEquityRepository creates a new instance of EquityRepository
func NewEquityRepository(db *gorm.DB) *EquityRepository {
	return &EquityRepository{db: db}
}

// CreateBatch stores a run's equity curve
func (r *EquityRepository) CreateBatch(ctx context.Context, points []models.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&points, recordBatchSize).Error
}

// FindByRunID returns the equity curve of a run
func (r *EquityRepository) FindByRunID(ctx context.Context, runID string) ([]models.EquityPoint, error) {
	var points []models.EquityPoint
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("timestamp ASC, id ASC").
		Find(&points).Error
	return points, err
}
