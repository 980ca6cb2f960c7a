package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Membership is a user's standing within one circle. Rows are deactivated,
// never deleted.
type Membership struct {
	ID                   uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID               uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:memberships_user_circle_key,priority:1"`
	CircleID             uuid.UUID  `gorm:"column:circle_id;type:uuid;not null;uniqueIndex:memberships_user_circle_key,priority:2"`
	InvitedBy            *uuid.UUID `gorm:"column:invited_by;type:uuid"`
	IsAdmin              bool       `gorm:"column:is_admin;not null"`
	IsActive             bool       `gorm:"column:is_active;not null"`
	UsedInvitations      int        `gorm:"column:used_invitations;not null"`
	RemainingInvitations int        `gorm:"column:remaining_invitations;not null"`
	RidesTaken           int        `gorm:"column:rides_taken;not null"`
	RidesOffered         int        `gorm:"column:rides_offered;not null"`
	JoinedAt             time.Time  `gorm:"column:joined_at;not null"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Membership) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
