package repositories

import (
	"PerpTradeBot/internal/models"

	"gorm.io/gorm"
)

// Migrate creates or updates every table the backtester writes
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Candle{},
		&models.BacktestRun{},
		&models.TradeRecord{},
		&models.EquityPoint{},
	)
}
