package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultReputation is the score a user starts with before any rating.
var DefaultReputation = decimal.NewFromInt(5)

// Profile carries the public stats of a user. RidesTaken, RidesOffered and
// Reputation are rollups maintained by the ride and rating services.
type Profile struct {
	UserID       uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey"`
	Picture      *string         `gorm:"column:picture"`
	Biography    string          `gorm:"column:biography;type:text;not null"`
	RidesTaken   int             `gorm:"column:rides_taken;not null"`
	RidesOffered int             `gorm:"column:rides_offered;not null"`
	Reputation   decimal.Decimal `gorm:"column:reputation;type:numeric(2,1);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
