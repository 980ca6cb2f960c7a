package memberships

import (
	"context"
	"fmt"

	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RideCounter names a per-membership ride rollup column.
type RideCounter string

const (
	CounterRidesOffered RideCounter = "rides_offered"
	CounterRidesTaken   RideCounter = "rides_taken"
)

// IsValid reports whether the counter is one of the known columns.
func (c RideCounter) IsValid() bool {
	return c == CounterRidesOffered || c == CounterRidesTaken
}

// Repository exposes membership persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// GetMembership retrieves a membership by user and circle. Inactive rows are
// returned too; gorm.ErrRecordNotFound when there is none.
func (r *Repository) GetMembership(ctx context.Context, userID, circleID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND circle_id = ?", userID, circleID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// LockMembership loads the membership holding a row lock until the
// surrounding transaction ends.
func (r *Repository) LockMembership(ctx context.Context, userID, circleID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND circle_id = ?", userID, circleID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// IsActiveMember reports whether the user holds an active membership in the circle.
func (r *Repository) IsActiveMember(ctx context.Context, userID, circleID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("user_id = ? AND circle_id = ? AND is_active = ?", userID, circleID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateMembership persists a new membership record.
func (r *Repository) CreateMembership(ctx context.Context, membership *models.Membership) error {
	if membership.RemainingInvitations < 0 {
		return fmt.Errorf("remaining invitations cannot be negative")
	}
	return r.db.WithContext(ctx).Create(membership).Error
}

// Reactivate brings back a previously deactivated membership. Ride counters
// survive; the invitation quota is reset and any codes still held from the
// earlier membership are voided.
func (r *Repository) Reactivate(ctx context.Context, membershipID uuid.UUID, invitedBy *uuid.UUID, quota int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var membership models.Membership
		if err := tx.Where("id = ?", membershipID).First(&membership).Error; err != nil {
			return err
		}
		err := tx.Model(&models.Membership{}).
			Where("id = ?", membershipID).
			Updates(map[string]any{
				"is_active":             true,
				"is_admin":              false,
				"invited_by":            invitedBy,
				"remaining_invitations": quota,
				"used_invitations":      0,
			}).Error
		if err != nil {
			return err
		}
		return voidOutstandingInvitations(tx, membership.UserID, membership.CircleID)
	})
}

// RecordInvitationUsed bumps used_invitations and consumes one unit of
// quota, never going below zero.
func (r *Repository) RecordInvitationUsed(ctx context.Context, membershipID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("id = ?", membershipID).
		Updates(map[string]any{
			"used_invitations":      gorm.Expr("used_invitations + 1"),
			"remaining_invitations": gorm.Expr("CASE WHEN remaining_invitations > 0 THEN remaining_invitations - 1 ELSE 0 END"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementRideCounter atomically adds one to the named counter.
func (r *Repository) IncrementRideCounter(ctx context.Context, membershipID uuid.UUID, counter RideCounter) error {
	if !counter.IsValid() {
		return fmt.Errorf("invalid ride counter %q", counter)
	}
	column := string(counter)
	res := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("id = ?", membershipID).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountActiveMembers returns the number of active memberships in the circle.
func (r *Repository) CountActiveMembers(ctx context.Context, circleID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("circle_id = ? AND is_active = ?", circleID, true).
		Count(&count).Error
	return count, err
}

// ListCircleMembers returns the active members joined with their user and
// profile data, most active riders first.
func (r *Repository) ListCircleMembers(ctx context.Context, circleID uuid.UUID) ([]MemberView, error) {
	var rows []memberRow
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Select("memberships.*, users.username, users.first_name, users.last_name, profiles.reputation").
		Joins("JOIN users ON users.id = memberships.user_id").
		Joins("LEFT JOIN profiles ON profiles.user_id = memberships.user_id").
		Where("memberships.circle_id = ? AND memberships.is_active = ?", circleID, true).
		Order("memberships.rides_taken DESC, memberships.rides_offered DESC, users.username").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return memberRowsToViews(rows), nil
}

// Deactivate soft-removes the membership and voids the unused codes the
// member issued, so a removed member cannot keep admitting people.
func (r *Repository) Deactivate(ctx context.Context, membershipID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var membership models.Membership
		if err := tx.Where("id = ? AND is_active = ?", membershipID, true).First(&membership).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Membership{}).
			Where("id = ? AND is_active = ?", membershipID, true).
			Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return voidOutstandingInvitations(tx, membership.UserID, membership.CircleID)
	})
}

func voidOutstandingInvitations(tx *gorm.DB, issuerID, circleID uuid.UUID) error {
	return tx.Where("circle_id = ? AND issued_by = ? AND used = ?", circleID, issuerID, false).
		Delete(&models.Invitation{}).Error
}
