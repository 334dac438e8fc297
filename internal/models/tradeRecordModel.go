package models

import "time"

type TradeRecord struct {
	ID          uint      `gorm:"primaryKey"`
	RunID       string    `gorm:"index;not null"`
	Sequence    int       `gorm:"not null"`
	Symbol      string    `gorm:"index;not null"`
	Action      string    `gorm:"not null"`
	EntryPrice  float64   `gorm:"type:decimal(20,8);not null"`
	ExitPrice   float64   `gorm:"type:decimal(20,8);not null"`
	Units       float64   `gorm:"type:decimal(28,12);not null"`
	PnL         float64   `gorm:"column:pnl;type:decimal(20,8)"`
	Fees        float64   `gorm:"type:decimal(20,8)"`
	Reason      string    `gorm:"not null"`
	EntryTime   int64     `gorm:"index;not null"`
	ExitTime    int64     `gorm:"not null"`
	IsPartial   bool      `gorm:"not null"`
	TargetIndex int       `gorm:"not null"` // -1 for the final fill
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

const (
	TradeActionLong  = "long"
	TradeActionShort = "short"
)

// TableName sets the table name for TradeRecord model
func (TradeRecord) TableName() string {
	return "trade_records"
}
