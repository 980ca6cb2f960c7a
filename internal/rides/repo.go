package rides

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/comparteride/circles-backend/pkg/pagination"
)

// Repository persists rides and their passenger sets.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, ride *models.Ride) error {
	return r.db.WithContext(ctx).Create(ride).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	var ride models.Ride
	if err := r.db.WithContext(ctx).First(&ride, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ride, nil
}

// LockByID loads the ride holding its row lock until the transaction ends.
// Joins, ratings and owner actions on one ride serialize here.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	var ride models.Ride
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&ride, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

// UpdateDetails writes the owner-editable columns.
func (r *Repository) UpdateDetails(ctx context.Context, ride *models.Ride) error {
	return r.db.WithContext(ctx).
		Model(ride).
		Select("departure_location", "departure_date", "arrival_location", "arrival_date", "seats", "available_seats", "comments").
		Updates(ride).Error
}

// TakeSeat decrements available_seats by one unless the ride is already
// full. It reports false when no seat was left.
func (r *Repository) TakeSeat(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Ride{}).
		Where("id = ? AND available_seats >= 1", id).
		UpdateColumn("available_seats", gorm.Expr("available_seats - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) AddPassenger(ctx context.Context, rideID, userID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Create(&models.RidePassenger{RideID: rideID, UserID: userID, JoinedAt: at}).Error
}

func (r *Repository) IsPassenger(ctx context.Context, rideID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RidePassenger{}).
		Where("ride_id = ? AND user_id = ?", rideID, userID).
		Count(&count).Error
	return count > 0, err
}

// ListPassengerIDs returns passengers in join order.
func (r *Repository) ListPassengerIDs(ctx context.Context, rideID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.RidePassenger{}).
		Where("ride_id = ?", rideID).
		Order("joined_at ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// Deactivate closes an active ride. It reports false when the ride was
// already inactive, which makes repeated closes no-ops.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID, endedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Ride{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"is_active": false, "ended_at": endedAt})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListExpired returns active rides whose arrival is older than cutoff, in
// (arrival_date, id) order. A non-nil after resumes past that key.
func (r *Repository) ListExpired(ctx context.Context, cutoff time.Time, after *pagination.Cursor, limit int) ([]models.Ride, error) {
	q := r.db.WithContext(ctx).Where("is_active = ? AND arrival_date < ?", true, cutoff)
	if after != nil {
		q = q.Where("(arrival_date > ?) OR (arrival_date = ? AND id > ?)", after.At, after.At, after.ID)
	}
	var rows []models.Ride
	err := q.Order("arrival_date ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListCircleRides pages through a circle's rides by departure date. When
// activeOnly is set only rides still open are returned.
func (r *Repository) ListCircleRides(ctx context.Context, circleID uuid.UUID, cursor *pagination.Cursor, limit int, activeOnly bool) ([]models.Ride, error) {
	q := r.db.WithContext(ctx).Where("offered_in = ?", circleID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if cursor != nil {
		q = q.Where("(departure_date > ?) OR (departure_date = ? AND id > ?)", cursor.At, cursor.At, cursor.ID)
	}
	var rows []models.Ride
	err := q.Order("departure_date ASC").Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}
