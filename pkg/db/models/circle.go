package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Circle is a closed group of users sharing rides. SlugName never changes
// once created.
type Circle struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SlugName     string    `gorm:"column:slug_name;type:text;not null;uniqueIndex:circles_slug_name_key"`
	Name         string    `gorm:"column:name;type:text;not null"`
	About        string    `gorm:"column:about;type:text;not null"`
	Picture      *string   `gorm:"column:picture"`
	IsPublic     bool      `gorm:"column:is_public;not null"`
	Verified     bool      `gorm:"column:verified;not null"`
	IsLimited    bool      `gorm:"column:is_limited;not null"`
	MembersLimit int       `gorm:"column:members_limit;not null"`
	RidesOffered int       `gorm:"column:rides_offered;not null"`
	RidesTaken   int       `gorm:"column:rides_taken;not null"`
	CreatedBy    uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Circle) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
