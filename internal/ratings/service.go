package ratings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/comparteride/circles-backend/internal/rides"
	"github.com/comparteride/circles-backend/internal/users"
	"github.com/comparteride/circles-backend/pkg/db"
	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/comparteride/circles-backend/pkg/enums"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/logger"
	"github.com/comparteride/circles-backend/pkg/outbox"
	"github.com/comparteride/circles-backend/pkg/outbox/payloads"
)

const (
	MinScore = 1
	MaxScore = 5

	uniqueRideRater = "ratings_ride_rater_key"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service records passenger ratings and keeps ride and offerer averages.
type Service interface {
	RateRide(ctx context.Context, rideID, raterID uuid.UUID, score int, comment string) (*rides.RideView, error)
	ListRideRatings(ctx context.Context, rideID uuid.UUID) ([]RatingView, error)
}

// ServiceParams wires the rating service.
type ServiceParams struct {
	Tx     txRunner
	Repo   *Repository
	Rides  *rides.Repository
	Users  *users.Repository
	Outbox outboxPublisher
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	tx     txRunner
	repo   *Repository
	rides  *rides.Repository
	users  *users.Repository
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Repo == nil:
		return nil, fmt.Errorf("rating repository required")
	case params.Rides == nil:
		return nil, fmt.Errorf("ride repository required")
	case params.Users == nil:
		return nil, fmt.Errorf("user repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:     params.Tx,
		repo:   params.Repo,
		rides:  params.Rides,
		users:  params.Users,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    now,
	}, nil
}

// RateRide stores one passenger's score for a completed ride, then
// recomputes the ride average and the offerer's reputation from every
// stored rating, the new one included. A rejected attempt changes nothing.
func (s *service) RateRide(ctx context.Context, rideID, raterID uuid.UUID, score int, comment string) (*rides.RideView, error) {
	now := s.now()
	var view *rides.RideView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rideRepo := s.rides.WithTx(tx)
		ride, err := rideRepo.LockByID(ctx, rideID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock ride")
		}
		if score < MinScore || score > MaxScore {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("rating must be between %d and %d", MinScore, MaxScore))
		}
		if rides.PhaseOf(ride, now) != enums.RidePhaseCompleted {
			return pkgerrors.New(pkgerrors.CodeValidation, "ride not finished")
		}
		passenger, err := rideRepo.IsPassenger(ctx, ride.ID, raterID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check passenger")
		}
		if !passenger {
			return pkgerrors.New(pkgerrors.CodeValidation, "not a passenger of this ride")
		}

		repo := s.repo.WithTx(tx)
		rated, err := repo.Exists(ctx, ride.ID, raterID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check prior rating")
		}
		if rated {
			return pkgerrors.New(pkgerrors.CodeValidation, "already rated")
		}
		if err := repo.Create(ctx, &models.Rating{
			CircleID:     ride.OfferedIn,
			RideID:       ride.ID,
			RatingUserID: raterID,
			RatedUserID:  ride.OfferedBy,
			Score:        score,
			Comments:     strings.TrimSpace(comment),
		}); err != nil {
			if db.IsUniqueViolation(err, uniqueRideRater) {
				return pkgerrors.New(pkgerrors.CodeValidation, "already rated")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create rating")
		}

		rideAvg, _, err := repo.RideAverage(ctx, ride.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "average ride ratings")
		}
		if err := repo.SetRideRating(ctx, ride.ID, rideAvg); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store ride rating")
		}
		reputation, _, err := repo.ReceivedAverage(ctx, ride.OfferedBy)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "average received ratings")
		}
		if err := s.users.WithTx(tx).SetReputation(ctx, ride.OfferedBy, reputation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store reputation")
		}
		ride.Rating = decimal.NewNullDecimal(rideAvg)

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRideRated,
			AggregateType: enums.AggregateRide,
			AggregateID:   ride.ID,
			Actor:         &outbox.ActorRef{UserID: raterID, CircleID: &ride.OfferedIn},
			Data: payloads.RideRatedEvent{
				RideID:      ride.ID,
				CircleID:    ride.OfferedIn,
				RaterID:     raterID,
				RatedUserID: ride.OfferedBy,
				Score:       score,
				RideRating:  rideAvg.StringFixed(1),
				Reputation:  reputation.StringFixed(1),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit ride rated")
		}

		passengers, err := rideRepo.ListPassengerIDs(ctx, ride.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list passengers")
		}
		view = rides.ToView(ride, passengers, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithRideID(s.logg.WithUserID(ctx, raterID.String()), rideID.String())
		s.logg.Info(s.logg.WithField(logCtx, "score", score), "ride rated")
	}
	return view, nil
}

func (s *service) ListRideRatings(ctx context.Context, rideID uuid.UUID) ([]RatingView, error) {
	if _, err := s.rides.FindByID(ctx, rideID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ride")
	}
	rows, err := s.repo.ListForRide(ctx, rideID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ratings")
	}
	views := make([]RatingView, 0, len(rows))
	for _, row := range rows {
		views = append(views, FromModel(row))
	}
	return views, nil
}
