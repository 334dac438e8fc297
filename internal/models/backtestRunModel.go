package models

import "time"

type BacktestRun struct {
	ID             uint   `gorm:"primaryKey"`
	RunID          string `gorm:"uniqueIndex;not null"`
	Strategy       string `gorm:"not null"`
	Mode           string `gorm:"not null"`
	Status         string `gorm:"not null"`
	Symbols        string `gorm:"not null"` // comma separated
	Leverage       int
	InitialBalance float64 `gorm:"type:decimal(20,8);not null"`
	FinalBalance   float64 `gorm:"type:decimal(20,8);not null"`
	TotalReturn    float64 `gorm:"type:decimal(20,8)"`
	TotalTrades    int
	WinRate        float64 `gorm:"type:decimal(10,4)"`
	ProfitFactor   float64 `gorm:"type:decimal(20,8)"`
	SharpeRatio    float64 `gorm:"type:decimal(20,8)"`
	MaxDrawdown    float64 `gorm:"type:decimal(10,8)"`
	StartTime      int64
	EndTime        int64

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

const (
	BacktestRunStatusCompleted = "completed"
	BacktestRunStatusEmpty     = "empty"
)

// TableName sets the table name for BacktestRun model
func (BacktestRun) TableName() string {
	return "backtest_runs"
}
