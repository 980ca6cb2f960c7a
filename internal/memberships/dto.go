package memberships

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comparteride/circles-backend/pkg/db/models"
)

// MembershipView is the transport shape for a membership record.
type MembershipView struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               uuid.UUID  `json:"user_id"`
	CircleID             uuid.UUID  `json:"circle_id"`
	InvitedBy            *uuid.UUID `json:"invited_by,omitempty"`
	IsAdmin              bool       `json:"is_admin"`
	IsActive             bool       `json:"is_active"`
	UsedInvitations      int        `json:"used_invitations"`
	RemainingInvitations int        `json:"remaining_invitations"`
	RidesTaken           int        `json:"rides_taken"`
	RidesOffered         int        `json:"rides_offered"`
	JoinedAt             time.Time  `json:"joined_at"`
}

// MemberView mixes membership stats with the member's public identity.
type MemberView struct {
	MembershipView
	Username   string          `json:"username"`
	FirstName  string          `json:"first_name"`
	LastName   string          `json:"last_name"`
	Reputation decimal.Decimal `json:"reputation"`
}

type memberRow struct {
	models.Membership
	Username   string              `gorm:"column:username"`
	FirstName  string              `gorm:"column:first_name"`
	LastName   string              `gorm:"column:last_name"`
	Reputation decimal.NullDecimal `gorm:"column:reputation"`
}

// ToView converts a model to the external view.
func ToView(m *models.Membership) *MembershipView {
	if m == nil {
		return nil
	}
	return &MembershipView{
		ID:                   m.ID,
		UserID:               m.UserID,
		CircleID:             m.CircleID,
		InvitedBy:            copyUUIDPointer(m.InvitedBy),
		IsAdmin:              m.IsAdmin,
		IsActive:             m.IsActive,
		UsedInvitations:      m.UsedInvitations,
		RemainingInvitations: m.RemainingInvitations,
		RidesTaken:           m.RidesTaken,
		RidesOffered:         m.RidesOffered,
		JoinedAt:             m.JoinedAt,
	}
}

func memberRowsToViews(rows []memberRow) []MemberView {
	out := make([]MemberView, 0, len(rows))
	for i := range rows {
		rep := models.DefaultReputation
		if rows[i].Reputation.Valid {
			rep = rows[i].Reputation.Decimal
		}
		out = append(out, MemberView{
			MembershipView: *ToView(&rows[i].Membership),
			Username:       rows[i].Username,
			FirstName:      rows[i].FirstName,
			LastName:       rows[i].LastName,
			Reputation:     rep,
		})
	}
	return out
}

func copyUUIDPointer(src *uuid.UUID) *uuid.UUID {
	if src == nil {
		return nil
	}
	dst := *src
	return &dst
}
