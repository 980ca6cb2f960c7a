package rides

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/comparteride/circles-backend/internal/circles"
	"github.com/comparteride/circles-backend/internal/memberships"
	"github.com/comparteride/circles-backend/internal/users"
	"github.com/comparteride/circles-backend/pkg/config"
	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/comparteride/circles-backend/pkg/enums"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/logger"
	"github.com/comparteride/circles-backend/pkg/metrics"
	"github.com/comparteride/circles-backend/pkg/outbox"
	"github.com/comparteride/circles-backend/pkg/outbox/payloads"
	"github.com/comparteride/circles-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service runs the ride lifecycle: offering, admission and closing.
type Service interface {
	CreateRide(ctx context.Context, offererID, circleID uuid.UUID, input CreateRideInput) (*RideView, error)
	UpdateRide(ctx context.Context, rideID, callerID uuid.UUID, input UpdateRideInput) (*RideView, error)
	JoinRide(ctx context.Context, rideID, passengerID uuid.UUID) (*RideView, error)
	EndRide(ctx context.Context, rideID, callerID uuid.UUID, now time.Time) (*RideView, error)
	CancelRide(ctx context.Context, rideID, callerID uuid.UUID, now time.Time) (*RideView, error)
	SweepExpiredRides(ctx context.Context, now time.Time) (int, error)
	GetRide(ctx context.Context, rideID, callerID uuid.UUID) (*RideView, error)
	ListCircleRides(ctx context.Context, circleID, callerID uuid.UUID, params ListParams) (pagination.Page[*RideView], error)
}

// ServiceParams wires the ride service.
type ServiceParams struct {
	Tx          txRunner
	Repo        *Repository
	Memberships *memberships.Repository
	Circles     *circles.Repository
	Users       *users.Repository
	Outbox      outboxPublisher
	Logger      *logger.Logger
	Metrics     *metrics.RideMetrics
	Config      config.RidesConfig
	Now         func() time.Time
}

type service struct {
	tx          txRunner
	repo        *Repository
	memberships *memberships.Repository
	circles     *circles.Repository
	users       *users.Repository
	outbox      outboxPublisher
	logg        *logger.Logger
	metrics     *metrics.RideMetrics
	cfg         config.RidesConfig
	now         func() time.Time
	sweepBatch  int
}

// NewService builds a ride service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Repo == nil:
		return nil, fmt.Errorf("ride repository required")
	case params.Memberships == nil:
		return nil, fmt.Errorf("memberships repository required")
	case params.Circles == nil:
		return nil, fmt.Errorf("circle repository required")
	case params.Users == nil:
		return nil, fmt.Errorf("user repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	cfg := params.Config
	if cfg.JoinAttempts == 0 {
		cfg.JoinAttempts = 1
	}
	if cfg.MaxSeats == 0 {
		cfg.MaxSeats = 15
	}
	if cfg.MinSeats == 0 {
		cfg.MinSeats = 1
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:          params.Tx,
		repo:        params.Repo,
		memberships: params.Memberships,
		circles:     params.Circles,
		users:       params.Users,
		outbox:      params.Outbox,
		logg:        params.Logger,
		metrics:     params.Metrics,
		cfg:         cfg,
		now:         now,
		sweepBatch:  sweepBatchSize,
	}, nil
}

func (s *service) CreateRide(ctx context.Context, offererID, circleID uuid.UUID, input CreateRideInput) (*RideView, error) {
	now := s.now()
	input.DepartureLocation = strings.TrimSpace(input.DepartureLocation)
	input.ArrivalLocation = strings.TrimSpace(input.ArrivalLocation)
	if input.DepartureLocation == "" || input.ArrivalLocation == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "departure and arrival locations are required")
	}
	if err := s.validateDeparture(now, input.DepartureDate); err != nil {
		return nil, err
	}
	if err := validateArrival(input.DepartureDate, input.ArrivalDate); err != nil {
		return nil, err
	}
	if err := s.validateSeats(input.Seats, 0); err != nil {
		return nil, err
	}

	var view *RideView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.circles.WithTx(tx).FindByID(ctx, circleID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "circle not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load circle")
		}
		membership, err := s.activeMembership(ctx, tx, offererID, circleID)
		if err != nil {
			return err
		}

		ride := &models.Ride{
			OfferedBy:         offererID,
			OfferedIn:         circleID,
			DepartureLocation: input.DepartureLocation,
			DepartureDate:     input.DepartureDate.UTC(),
			ArrivalLocation:   input.ArrivalLocation,
			ArrivalDate:       input.ArrivalDate.UTC(),
			Seats:             input.Seats,
			AvailableSeats:    input.Seats,
			Comments:          strings.TrimSpace(input.Comments),
			IsActive:          true,
		}
		if err := s.repo.WithTx(tx).Create(ctx, ride); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ride")
		}
		if err := s.circles.WithTx(tx).IncrementRidesOffered(ctx, circleID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment circle rides offered")
		}
		if err := s.memberships.WithTx(tx).IncrementRideCounter(ctx, membership.ID, memberships.CounterRidesOffered); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment membership rides offered")
		}
		if err := s.users.WithTx(tx).IncrementProfileCounter(ctx, offererID, users.ProfileRidesOffered); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment profile rides offered")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRideCreated,
			AggregateType: enums.AggregateRide,
			AggregateID:   ride.ID,
			Actor:         actor(offererID, circleID),
			Data: payloads.RideCreatedEvent{
				RideID:        ride.ID,
				CircleID:      circleID,
				OfferedBy:     offererID,
				DepartureDate: ride.DepartureDate,
				Seats:         ride.Seats,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit ride created")
		}
		view = ToView(ride, nil, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// UpdateRide edits a ride that has not departed yet. Seat changes keep every
// admitted passenger.
func (s *service) UpdateRide(ctx context.Context, rideID, callerID uuid.UUID, input UpdateRideInput) (*RideView, error) {
	now := s.now()
	var view *RideView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ride, err := s.lockOwnedRide(ctx, repo, rideID, callerID)
		if err != nil {
			return err
		}
		if PhaseOf(ride, now) != enums.RidePhaseScheduled {
			return pkgerrors.New(pkgerrors.CodeValidation, "ongoing rides cannot be modified")
		}

		passengers, err := repo.ListPassengerIDs(ctx, ride.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list passengers")
		}

		if input.DepartureLocation != nil {
			if ride.DepartureLocation = strings.TrimSpace(*input.DepartureLocation); ride.DepartureLocation == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "departure location is required")
			}
		}
		if input.ArrivalLocation != nil {
			if ride.ArrivalLocation = strings.TrimSpace(*input.ArrivalLocation); ride.ArrivalLocation == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "arrival location is required")
			}
		}
		if input.DepartureDate != nil {
			if err := s.validateDeparture(now, *input.DepartureDate); err != nil {
				return err
			}
			ride.DepartureDate = input.DepartureDate.UTC()
		}
		if input.ArrivalDate != nil {
			ride.ArrivalDate = input.ArrivalDate.UTC()
		}
		if err := validateArrival(ride.DepartureDate, ride.ArrivalDate); err != nil {
			return err
		}
		if input.Seats != nil {
			if err := s.validateSeats(*input.Seats, len(passengers)); err != nil {
				return err
			}
			ride.Seats = *input.Seats
			ride.AvailableSeats = ride.Seats - len(passengers)
		}
		if input.Comments != nil {
			ride.Comments = strings.TrimSpace(*input.Comments)
		}

		if err := repo.UpdateDetails(ctx, ride); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ride")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRideUpdated,
			AggregateType: enums.AggregateRide,
			AggregateID:   ride.ID,
			Actor:         actor(callerID, ride.OfferedIn),
			Data: payloads.RideUpdatedEvent{
				RideID:         ride.ID,
				CircleID:       ride.OfferedIn,
				DepartureDate:  ride.DepartureDate,
				ArrivalDate:    ride.ArrivalDate,
				AvailableSeats: ride.AvailableSeats,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit ride updated")
		}
		view = ToView(ride, passengers, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// EndRide lets the offerer close a ride once it has started. Ending an
// already inactive ride returns it unchanged.
func (s *service) EndRide(ctx context.Context, rideID, callerID uuid.UUID, now time.Time) (*RideView, error) {
	now = now.UTC()
	var view *RideView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ride, err := s.lockOwnedRide(ctx, repo, rideID, callerID)
		if err != nil {
			return err
		}
		passengers, err := repo.ListPassengerIDs(ctx, ride.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list passengers")
		}
		if !ride.IsActive {
			view = ToView(ride, passengers, now)
			return nil
		}
		if !now.After(ride.DepartureDate) {
			return pkgerrors.New(pkgerrors.CodeValidation, "ride has not started yet")
		}

		if _, err := repo.Deactivate(ctx, ride.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "end ride")
		}
		ride.IsActive = false
		ride.EndedAt = &now
		if err := s.emitEnded(ctx, tx, ride, &callerID, false); err != nil {
			return err
		}
		view = ToView(ride, passengers, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// CancelRide withdraws a ride before departure and notifies its passengers.
func (s *service) CancelRide(ctx context.Context, rideID, callerID uuid.UUID, now time.Time) (*RideView, error) {
	now = now.UTC()
	var view *RideView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ride, err := s.lockOwnedRide(ctx, repo, rideID, callerID)
		if err != nil {
			return err
		}
		if !ride.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "ride is no longer active")
		}
		if !now.Before(ride.DepartureDate) {
			return pkgerrors.New(pkgerrors.CodeValidation, "ride has already started")
		}
		passengers, err := repo.ListPassengerIDs(ctx, ride.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list passengers")
		}
		if _, err := repo.Deactivate(ctx, ride.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel ride")
		}
		ride.IsActive = false
		ride.EndedAt = &now

		notify := passengers
		if notify == nil {
			notify = []uuid.UUID{}
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRideCancelled,
			AggregateType: enums.AggregateRide,
			AggregateID:   ride.ID,
			Actor:         actor(callerID, ride.OfferedIn),
			Data: payloads.RideCancelledEvent{
				RideID:       ride.ID,
				CircleID:     ride.OfferedIn,
				PassengerIDs: notify,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit ride cancelled")
		}
		view = ToView(ride, passengers, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// GetRide returns a ride to members of the circle it was offered in.
func (s *service) GetRide(ctx context.Context, rideID, callerID uuid.UUID) (*RideView, error) {
	ride, err := s.repo.FindByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ride")
	}
	if err := s.requireMember(ctx, callerID, ride.OfferedIn); err != nil {
		return nil, err
	}
	passengers, err := s.repo.ListPassengerIDs(ctx, ride.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list passengers")
	}
	return ToView(ride, passengers, s.now()), nil
}

// ListCircleRides pages a circle's rides by departure date for its members.
func (s *service) ListCircleRides(ctx context.Context, circleID, callerID uuid.UUID, params ListParams) (pagination.Page[*RideView], error) {
	if err := s.requireMember(ctx, callerID, circleID); err != nil {
		return pagination.Page[*RideView]{}, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[*RideView]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListCircleRides(ctx, circleID, cursor, pagination.LimitWithBuffer(params.Limit), params.ActiveOnly)
	if err != nil {
		return pagination.Page[*RideView]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rides")
	}
	now := s.now()
	views := make([]*RideView, 0, len(rows))
	for i := range rows {
		passengers, err := s.repo.ListPassengerIDs(ctx, rows[i].ID)
		if err != nil {
			return pagination.Page[*RideView]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list passengers")
		}
		views = append(views, ToView(&rows[i], passengers, now))
	}
	return pagination.Paginate(views, params.Limit, cursorOf), nil
}

func (s *service) lockOwnedRide(ctx context.Context, repo *Repository, rideID, callerID uuid.UUID) (*models.Ride, error) {
	ride, err := repo.LockByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock ride")
	}
	if ride.OfferedBy != callerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the ride offerer can do this")
	}
	return ride, nil
}

func (s *service) activeMembership(ctx context.Context, tx *gorm.DB, userID, circleID uuid.UUID) (*models.Membership, error) {
	membership, err := s.memberships.WithTx(tx).GetMembership(ctx, userID, circleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "not a member of this circle")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if !membership.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "not a member of this circle")
	}
	return membership, nil
}

func (s *service) requireMember(ctx context.Context, userID, circleID uuid.UUID) error {
	ok, err := s.memberships.IsActiveMember(ctx, userID, circleID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check membership")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not a member of this circle")
	}
	return nil
}

func (s *service) emitEnded(ctx context.Context, tx *gorm.DB, ride *models.Ride, by *uuid.UUID, swept bool) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventRideEnded,
		AggregateType: enums.AggregateRide,
		AggregateID:   ride.ID,
		Data: payloads.RideEndedEvent{
			RideID:   ride.ID,
			CircleID: ride.OfferedIn,
			EndedAt:  *ride.EndedAt,
			Swept:    swept,
		},
	}
	if by != nil {
		event.Actor = actor(*by, ride.OfferedIn)
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit ride ended")
	}
	return nil
}

func (s *service) validateDeparture(now, departure time.Time) error {
	if departure.Before(now.Add(s.cfg.MinLeadTime)) {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("departure must be at least %s from now", s.cfg.MinLeadTime))
	}
	return nil
}

func validateArrival(departure, arrival time.Time) error {
	if !arrival.After(departure) {
		return pkgerrors.New(pkgerrors.CodeValidation, "arrival date must be after departure date")
	}
	return nil
}

func (s *service) validateSeats(seats, passengers int) error {
	if seats < s.cfg.MinSeats || seats > s.cfg.MaxSeats {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("seats must be between %d and %d", s.cfg.MinSeats, s.cfg.MaxSeats))
	}
	if seats < passengers {
		return pkgerrors.New(pkgerrors.CodeValidation, "seats cannot drop below the passengers already admitted")
	}
	return nil
}

func actor(userID, circleID uuid.UUID) *outbox.ActorRef {
	id := circleID
	return &outbox.ActorRef{UserID: userID, CircleID: &id}
}
