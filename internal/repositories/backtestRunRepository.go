package repositories

import (
	"context"
	"errors"

	"PerpTradeBot/internal/models"

	"gorm.io/gorm"
)

type BacktestRunRepository struct {
	db *gorm.DB
}

// NewBacktestRunRepository creates a new instance of BacktestRunRepository
func NewBacktestRunRepository(db *gorm.DB) *BacktestRunRepository {
	return &BacktestRunRepository{db: db}
}

// Create adds a new BacktestRun record to the database
func (r *BacktestRunRepository) Create(ctx context.Context, run *models.BacktestRun) error {
	if run == nil {
		return errors.New("backtest run cannot be nil")
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// FindByRunID retrieves a run by its RunID, nil when missing
func (r *BacktestRunRepository) FindByRunID(ctx context.Context, runID string) (*models.BacktestRun, error) {
	if runID == "" {
		return nil, errors.New("invalid run id")
	}
	var run models.BacktestRun
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &run, err
}

// FindRecent lists the latest runs, newest first
func (r *BacktestRunRepository) FindRecent(ctx context.Context, limit int) ([]models.BacktestRun, error) {
	var runs []models.BacktestRun
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// FindByStrategy lists runs of a strategy ordered by total return
func (r *BacktestRunRepository) FindByStrategy(ctx context.Context, strategy string) ([]models.BacktestRun, error) {
	var runs []models.BacktestRun
	err := r.db.WithContext(ctx).
		Where("strategy = ?", strategy).
		Order("total_return DESC").
		Find(&runs).Error
	return runs, err
}

// Delete removes a run together with its fills and equity curve
func (r *BacktestRunRepository) Delete(ctx context.Context, runID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&models.TradeRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", runID).Delete(&models.EquityPoint{}).Error; err != nil {
			return err
		}
		return tx.Where("run_id = ?", runID).Delete(&models.BacktestRun{}).Error
	})
}
