package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Rating is immutable once written; at most one per (ride, rater).
type Rating struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CircleID     uuid.UUID `gorm:"column:circle_id;type:uuid;not null"`
	RideID       uuid.UUID `gorm:"column:ride_id;type:uuid;not null;uniqueIndex:ratings_ride_rater_key,priority:1"`
	RatingUserID uuid.UUID `gorm:"column:rating_user_id;type:uuid;not null;uniqueIndex:ratings_ride_rater_key,priority:2"`
	RatedUserID  uuid.UUID `gorm:"column:rated_user_id;type:uuid;not null;index"`
	Score        int       `gorm:"column:rating;not null"`
	Comments     string    `gorm:"column:comments;type:text;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (r *Rating) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
