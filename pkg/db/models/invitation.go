package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invitation is a single-use code granting membership in a circle.
// Used flips false to true exactly once, together with UsedBy and UsedAt.
type Invitation struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Code      string     `gorm:"column:code;type:text;not null;uniqueIndex:invitations_code_key"`
	IssuedBy  uuid.UUID  `gorm:"column:issued_by;type:uuid;not null;index:invitations_issuer_circle_idx,priority:1"`
	CircleID  uuid.UUID  `gorm:"column:circle_id;type:uuid;not null;index:invitations_issuer_circle_idx,priority:2"`
	UsedBy    *uuid.UUID `gorm:"column:used_by;type:uuid"`
	Used      bool       `gorm:"column:used;not null"`
	UsedAt    *time.Time `gorm:"column:used_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Invitation) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
