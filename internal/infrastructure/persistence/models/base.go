package models

import "time"

// TimestampModel provides bookkeeping columns shared by the billing tables
type TimestampModel struct {
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
