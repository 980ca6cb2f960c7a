package rides

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/comparteride/circles-backend/pkg/enums"
	"github.com/comparteride/circles-backend/pkg/pagination"
)

// RideView is the read model of a ride with its derived phase.
type RideView struct {
	ID                uuid.UUID           `json:"id"`
	OfferedBy         uuid.UUID           `json:"offered_by"`
	OfferedIn         uuid.UUID           `json:"offered_in"`
	DepartureLocation string              `json:"departure_location"`
	DepartureDate     time.Time           `json:"departure_date"`
	ArrivalLocation   string              `json:"arrival_location"`
	ArrivalDate       time.Time           `json:"arrival_date"`
	Seats             int                 `json:"seats"`
	AvailableSeats    int                 `json:"available_seats"`
	Comments          string              `json:"comments"`
	Rating            decimal.NullDecimal `json:"rating"`
	IsActive          bool                `json:"is_active"`
	EndedAt           *time.Time          `json:"ended_at,omitempty"`
	Phase             enums.RidePhase     `json:"phase"`
	Passengers        []uuid.UUID         `json:"passengers"`
}

// CreateRideInput carries the offerer-supplied ride details.
type CreateRideInput struct {
	DepartureLocation string
	DepartureDate     time.Time
	ArrivalLocation   string
	ArrivalDate       time.Time
	Seats             int
	Comments          string
}

// UpdateRideInput changes only the non-nil fields.
type UpdateRideInput struct {
	DepartureLocation *string
	DepartureDate     *time.Time
	ArrivalLocation   *string
	ArrivalDate       *time.Time
	Seats             *int
	Comments          *string
}

// ListParams filters a circle's ride listing.
type ListParams struct {
	pagination.Params
	ActiveOnly bool
}

// ToView renders a ride with its passengers and the phase at now.
func ToView(ride *models.Ride, passengers []uuid.UUID, now time.Time) *RideView {
	if passengers == nil {
		passengers = []uuid.UUID{}
	}
	return &RideView{
		ID:                ride.ID,
		OfferedBy:         ride.OfferedBy,
		OfferedIn:         ride.OfferedIn,
		DepartureLocation: ride.DepartureLocation,
		DepartureDate:     ride.DepartureDate,
		ArrivalLocation:   ride.ArrivalLocation,
		ArrivalDate:       ride.ArrivalDate,
		Seats:             ride.Seats,
		AvailableSeats:    ride.AvailableSeats,
		Comments:          ride.Comments,
		Rating:            ride.Rating,
		IsActive:          ride.IsActive,
		EndedAt:           ride.EndedAt,
		Phase:             PhaseOf(ride, now),
		Passengers:        passengers,
	}
}

func cursorOf(v *RideView) pagination.Cursor {
	return pagination.Cursor{At: v.DepartureDate, ID: v.ID}
}
