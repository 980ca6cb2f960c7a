package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/comparteride/circles-backend/api/responses"
	"github.com/comparteride/circles-backend/api/validators"
	"github.com/comparteride/circles-backend/internal/circles"
	"github.com/comparteride/circles-backend/internal/rides"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/logger"
	"github.com/comparteride/circles-backend/pkg/pagination"
)

const maxRideCommentsLength = 255

type createRideRequest struct {
	DepartureLocation string    `json:"departure_location" validate:"required,max=255"`
	DepartureDate     time.Time `json:"departure_date" validate:"required"`
	ArrivalLocation   string    `json:"arrival_location" validate:"required,max=255"`
	ArrivalDate       time.Time `json:"arrival_date" validate:"required"`
	Seats             int       `json:"available_seats"`
	Comments          string    `json:"comments" validate:"max=255"`
}

func (b createRideRequest) toInput() rides.CreateRideInput {
	return rides.CreateRideInput{
		DepartureLocation: b.DepartureLocation,
		DepartureDate:     b.DepartureDate,
		ArrivalLocation:   b.ArrivalLocation,
		ArrivalDate:       b.ArrivalDate,
		Seats:             b.Seats,
		Comments:          validators.SanitizeString(b.Comments, maxRideCommentsLength),
	}
}

type updateRideRequest struct {
	DepartureLocation *string    `json:"departure_location,omitempty" validate:"omitempty,min=1,max=255"`
	DepartureDate     *time.Time `json:"departure_date,omitempty"`
	ArrivalLocation   *string    `json:"arrival_location,omitempty" validate:"omitempty,min=1,max=255"`
	ArrivalDate       *time.Time `json:"arrival_date,omitempty"`
	Seats             *int       `json:"available_seats,omitempty"`
	Comments          *string    `json:"comments,omitempty" validate:"omitempty,max=255"`
}

func (b updateRideRequest) toInput() rides.UpdateRideInput {
	return rides.UpdateRideInput{
		DepartureLocation: b.DepartureLocation,
		DepartureDate:     b.DepartureDate,
		ArrivalLocation:   b.ArrivalLocation,
		ArrivalDate:       b.ArrivalDate,
		Seats:             b.Seats,
		Comments:          b.Comments,
	}
}

// RideCreate offers a ride in the circle named by the path slug.
func RideCreate(circleSvc circles.Service, svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if circleSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ride service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		circle, err := circleFromPath(r, circleSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createRideRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithCircleID(ctx, circle.ID.String())
		}
		ride, err := svc.CreateRide(ctx, userID, circle.ID, body.toInput())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, ride)
	}
}

// RideList pages through a circle's rides, newest departure first. Pass
// active=false to include ended and cancelled rides.
func RideList(circleSvc circles.Service, svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if circleSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ride service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		circle, err := circleFromPath(r, circleSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		activeOnly, err := validators.ParseQueryBool(r, "active", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListCircleRides(r.Context(), circle.ID, userID, rides.ListParams{
			Params: pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			},
			ActiveOnly: activeOnly,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

func RideGet(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return rideAction(svc, logg, func(r *http.Request, ids rideIDs) (*rides.RideView, error) {
		return svc.GetRide(r.Context(), ids.ride, ids.caller)
	})
}

func RideUpdate(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ride service unavailable"))
			return
		}

		ids, err := rideRequestIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateRideRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ride, err := svc.UpdateRide(r.Context(), ids.ride, ids.caller, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, ride)
	}
}

// RideJoin seats the caller as a passenger.
func RideJoin(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return rideAction(svc, logg, func(r *http.Request, ids rideIDs) (*rides.RideView, error) {
		return svc.JoinRide(r.Context(), ids.ride, ids.caller)
	})
}

func RideEnd(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return rideAction(svc, logg, func(r *http.Request, ids rideIDs) (*rides.RideView, error) {
		return svc.EndRide(r.Context(), ids.ride, ids.caller, time.Now().UTC())
	})
}

func RideCancel(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return rideAction(svc, logg, func(r *http.Request, ids rideIDs) (*rides.RideView, error) {
		return svc.CancelRide(r.Context(), ids.ride, ids.caller, time.Now().UTC())
	})
}

type rideIDs struct {
	ride   uuid.UUID
	caller uuid.UUID
}

func rideRequestIDs(r *http.Request) (rideIDs, error) {
	caller, err := callerID(r)
	if err != nil {
		return rideIDs{}, err
	}
	ride, err := pathUUID(r, "rideId")
	if err != nil {
		return rideIDs{}, err
	}
	return rideIDs{ride: ride, caller: caller}, nil
}

// rideAction runs a bodiless ride operation and writes the resulting view.
func rideAction(svc rides.Service, logg *logger.Logger, fn func(r *http.Request, ids rideIDs) (*rides.RideView, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ride service unavailable"))
			return
		}

		ids, err := rideRequestIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			r = r.WithContext(logg.WithRideID(r.Context(), ids.ride.String()))
		}

		ride, err := fn(r, ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, ride)
	}
}
