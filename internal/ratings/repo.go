package ratings

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/comparteride/circles-backend/pkg/db/models"
)

// Repository stores ratings and computes their aggregates.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the rating inside a savepoint so a duplicate leaves the
// surrounding transaction usable.
func (r *Repository) Create(ctx context.Context, rating *models.Rating) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(rating).Error
	})
}

func (r *Repository) Exists(ctx context.Context, rideID, raterID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Rating{}).
		Where("ride_id = ? AND rating_user_id = ?", rideID, raterID).
		Count(&count).Error
	return count > 0, err
}

// ListForRide returns the ratings of a ride, oldest first.
func (r *Repository) ListForRide(ctx context.Context, rideID uuid.UUID) ([]models.Rating, error) {
	var rows []models.Rating
	err := r.db.WithContext(ctx).
		Where("ride_id = ?", rideID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

type scoreTotals struct {
	Total int64
	Count int64
}

// RideAverage is the mean score of a ride. ok is false when it has none.
func (r *Repository) RideAverage(ctx context.Context, rideID uuid.UUID) (avg decimal.Decimal, ok bool, err error) {
	return r.average(ctx, "ride_id = ?", rideID)
}

// ReceivedAverage is the mean score a user received across all rides.
func (r *Repository) ReceivedAverage(ctx context.Context, userID uuid.UUID) (avg decimal.Decimal, ok bool, err error) {
	return r.average(ctx, "rated_user_id = ?", userID)
}

func (r *Repository) average(ctx context.Context, where string, id uuid.UUID) (decimal.Decimal, bool, error) {
	var totals scoreTotals
	err := r.db.WithContext(ctx).
		Model(&models.Rating{}).
		Select("COALESCE(SUM(rating), 0) AS total, COUNT(*) AS count").
		Where(where, id).
		Scan(&totals).Error
	if err != nil {
		return decimal.Zero, false, err
	}
	if totals.Count == 0 {
		return decimal.Zero, false, nil
	}
	return Mean(totals.Total, totals.Count), true, nil
}

// Mean divides total by count rounding half up to one decimal place.
func Mean(total, count int64) decimal.Decimal {
	return decimal.NewFromInt(total).Div(decimal.NewFromInt(count)).Round(1)
}

// SetRideRating stores a recomputed ride average.
func (r *Repository) SetRideRating(ctx context.Context, rideID uuid.UUID, rating decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&models.Ride{}).
		Where("id = ?", rideID).
		UpdateColumn("rating", rating)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
