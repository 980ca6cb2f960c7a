package circles

import (
	"context"
	"fmt"

	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository handles circle persistence and the circle-level ride rollups.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to circle operations.
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

// Create persists a new circle row.
func (r *Repository) Create(ctx context.Context, circle *models.Circle) error {
	return r.db.WithContext(ctx).Create(circle).Error
}

// FindByID loads a circle by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Circle, error) {
	var circle models.Circle
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&circle).Error; err != nil {
		return nil, err
	}
	return &circle, nil
}

// FindBySlug loads a circle by its slug name.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Circle, error) {
	var circle models.Circle
	if err := r.db.WithContext(ctx).Where("slug_name = ?", slug).First(&circle).Error; err != nil {
		return nil, err
	}
	return &circle, nil
}

// ListPublic returns public circles, busiest first.
func (r *Repository) ListPublic(ctx context.Context, limit int) ([]models.Circle, error) {
	var circles []models.Circle
	err := r.db.WithContext(ctx).
		Where("is_public = ?", true).
		Order("rides_offered DESC, rides_taken DESC, name ASC").
		Limit(limit).
		Find(&circles).Error
	return circles, err
}

// Update saves the mutable circle fields. The slug is never written.
func (r *Repository) Update(ctx context.Context, circle *models.Circle) error {
	if circle == nil {
		return fmt.Errorf("circle is required")
	}
	return r.db.WithContext(ctx).
		Model(circle).
		Select("name", "about", "picture", "is_public", "is_limited", "members_limit").
		Updates(circle).Error
}

// IncrementRidesOffered adds one to the circle's rides_offered rollup.
func (r *Repository) IncrementRidesOffered(ctx context.Context, circleID uuid.UUID) error {
	return r.increment(ctx, circleID, "rides_offered")
}

// IncrementRidesTaken adds one to the circle's rides_taken rollup.
func (r *Repository) IncrementRidesTaken(ctx context.Context, circleID uuid.UUID) error {
	return r.increment(ctx, circleID, "rides_taken")
}

func (r *Repository) increment(ctx context.Context, circleID uuid.UUID, column string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Circle{}).
		Where("id = ?", circleID).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
