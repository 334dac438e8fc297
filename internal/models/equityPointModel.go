package models

type EquityPoint struct {
	ID        uint    `gorm:"primaryKey"`
	RunID     string  `gorm:"index;not null"`
	Timestamp int64   `gorm:"index;not null"`
	Balance   float64 `gorm:"type:decimal(20,8);not null"`
}

// TableName sets the table name for EquityPoint model
func (EquityPoint) TableName() string {
	return "equity_points"
}
