package invitations

import (
	"context"
	"time"

	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists invitation codes.
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

// CodeExists reports whether any invitation already carries code.
func (r *Repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}

// Create inserts one unused invitation. Inside a transaction the insert runs
// under a savepoint so a duplicate code leaves the outer transaction usable.
func (r *Repository) Create(ctx context.Context, invitation *models.Invitation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(invitation).Error
	})
}

// ListOutstanding returns the unused codes the issuer holds for the circle,
// oldest first.
func (r *Repository) ListOutstanding(ctx context.Context, circleID, issuerID uuid.UUID) ([]models.Invitation, error) {
	var rows []models.Invitation
	err := r.db.WithContext(ctx).
		Where("circle_id = ? AND issued_by = ? AND used = ?", circleID, issuerID, false).
		Order("created_at ASC, code ASC").
		Find(&rows).Error
	return rows, err
}

// LockByCode loads the invitation holding a row lock.
func (r *Repository) LockByCode(ctx context.Context, code string) (*models.Invitation, error) {
	var invitation models.Invitation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		First(&invitation).Error
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

// MarkUsed flips the invitation to used. It reports false when another
// redeemer got there first.
func (r *Repository) MarkUsed(ctx context.Context, id, redeemerID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("id = ? AND used = ?", id, false).
		Updates(map[string]any{
			"used":    true,
			"used_by": redeemerID,
			"used_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
