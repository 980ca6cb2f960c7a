package rides

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/comparteride/circles-backend/internal/memberships"
	"github.com/comparteride/circles-backend/internal/users"
	"github.com/comparteride/circles-backend/pkg/db"
	"github.com/comparteride/circles-backend/pkg/enums"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/metrics"
	"github.com/comparteride/circles-backend/pkg/outbox"
	"github.com/comparteride/circles-backend/pkg/outbox/payloads"
)

// errSeatRace marks an attempt whose guarded seat decrement matched no row
// even though the locked read still showed a free seat.
var errSeatRace = errors.New("seat taken concurrently")

// JoinRide admits passengerID to the ride. The whole admission runs in one
// transaction holding the ride row lock; attempts that lose a race to
// another writer are retried with exponential backoff and surface as a
// conflict once the attempts run out.
func (s *service) JoinRide(ctx context.Context, rideID, passengerID uuid.UUID) (*RideView, error) {
	backoff := retry.WithMaxRetries(s.cfg.JoinAttempts-1, retry.NewExponential(s.joinBackoff()))

	var view *RideView
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempt > 0 {
			s.metrics.IncJoinRetry()
		}
		attempt++
		v, err := s.joinOnce(ctx, rideID, passengerID)
		if err != nil {
			if isTransientJoinError(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		view = v
		return nil
	})

	switch {
	case err == nil:
		s.metrics.IncJoin(metrics.OutcomeAdmitted)
		if s.logg != nil {
			logCtx := s.logg.WithRideID(s.logg.WithUserID(ctx, passengerID.String()), rideID.String())
			s.logg.Info(logCtx, "passenger admitted")
		}
		return view, nil
	case isTransientJoinError(err):
		s.metrics.IncJoin(metrics.OutcomeConflict)
		if s.logg != nil {
			s.logg.Warn(s.logg.WithRideID(ctx, rideID.String()), "join retries exhausted")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "ride is busy, try again")
	default:
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.metrics.IncJoin(metrics.OutcomeRejected)
		}
		return nil, err
	}
}

func (s *service) joinOnce(ctx context.Context, rideID, passengerID uuid.UUID) (*RideView, error) {
	now := s.now()
	var view *RideView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ride, err := repo.LockByID(ctx, rideID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock ride")
		}

		userRepo := s.users.WithTx(tx)
		if _, err := userRepo.FindByID(ctx, passengerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "passenger not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load passenger")
		}
		membership, err := s.activeMembership(ctx, tx, passengerID, ride.OfferedIn)
		if err != nil {
			return err
		}
		if ride.OfferedBy == passengerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "you can't join your own ride")
		}
		if !ride.IsActive || now.After(ride.DepartureDate.Add(s.cfg.JoinGrace)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "too late to join this ride")
		}
		if ride.AvailableSeats < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "ride is already full")
		}
		joined, err := repo.IsPassenger(ctx, ride.ID, passengerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check passenger")
		}
		if joined {
			return pkgerrors.New(pkgerrors.CodeValidation, "passenger already joined this ride")
		}

		if err := repo.AddPassenger(ctx, ride.ID, passengerID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add passenger")
		}
		took, err := repo.TakeSeat(ctx, ride.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "take seat")
		}
		if !took {
			return errSeatRace
		}
		ride.AvailableSeats--

		if err := s.memberships.WithTx(tx).IncrementRideCounter(ctx, membership.ID, memberships.CounterRidesTaken); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment membership rides taken")
		}
		if err := userRepo.IncrementProfileCounter(ctx, passengerID, users.ProfileRidesTaken); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment profile rides taken")
		}
		if err := s.circles.WithTx(tx).IncrementRidesTaken(ctx, ride.OfferedIn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment circle rides taken")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRideJoined,
			AggregateType: enums.AggregateRide,
			AggregateID:   ride.ID,
			Actor:         actor(passengerID, ride.OfferedIn),
			Data: payloads.RideJoinedEvent{
				RideID:         ride.ID,
				CircleID:       ride.OfferedIn,
				PassengerID:    passengerID,
				OfferedBy:      ride.OfferedBy,
				AvailableSeats: ride.AvailableSeats,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit ride joined")
		}

		passengers, err := repo.ListPassengerIDs(ctx, ride.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list passengers")
		}
		view = ToView(ride, passengers, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) joinBackoff() time.Duration {
	if s.cfg.JoinBackoff <= 0 {
		return 20 * time.Millisecond
	}
	return s.cfg.JoinBackoff
}

// isTransientJoinError reports failures a fresh attempt can resolve: lock
// contention, a lost seat decrement and a concurrent insert of the same
// passenger.
func isTransientJoinError(err error) bool {
	return errors.Is(err, errSeatRace) ||
		db.IsTransientConflict(err) ||
		db.IsUniqueViolation(err, "ride_passengers_pkey")
}
