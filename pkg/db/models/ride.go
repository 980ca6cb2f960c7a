package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ride is a trip offered by one member. Seats is the capacity fixed at
// creation; AvailableSeats shrinks by one per admitted passenger.
type Ride struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OfferedBy         uuid.UUID           `gorm:"column:offered_by;type:uuid;not null;index"`
	OfferedIn         uuid.UUID           `gorm:"column:offered_in;type:uuid;not null;index"`
	DepartureLocation string              `gorm:"column:departure_location;type:text;not null"`
	DepartureDate     time.Time           `gorm:"column:departure_date;not null"`
	ArrivalLocation   string              `gorm:"column:arrival_location;type:text;not null"`
	ArrivalDate       time.Time           `gorm:"column:arrival_date;not null"`
	Seats             int                 `gorm:"column:seats;not null"`
	AvailableSeats    int                 `gorm:"column:available_seats;not null"`
	Comments          string              `gorm:"column:comments;type:text;not null"`
	Rating            decimal.NullDecimal `gorm:"column:rating;type:numeric(2,1)"`
	IsActive          bool                `gorm:"column:is_active;not null;index"`
	EndedAt           *time.Time          `gorm:"column:ended_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Ride) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RidePassenger is one admitted passenger of a ride.
type RidePassenger struct {
	RideID   uuid.UUID `gorm:"column:ride_id;type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	JoinedAt time.Time `gorm:"column:joined_at;not null"`
}
