package rides

import (
	"time"

	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/comparteride/circles-backend/pkg/enums"
)

// Phase derives where a ride is in its lifecycle. An inactive ride whose
// ended_at precedes departure was cancelled; any other inactive ride is
// completed.
func Phase(now, departure, arrival time.Time, isActive bool, endedAt *time.Time) enums.RidePhase {
	if !isActive {
		if endedAt != nil && endedAt.Before(departure) {
			return enums.RidePhaseCancelled
		}
		return enums.RidePhaseCompleted
	}
	switch {
	case !now.Before(arrival):
		return enums.RidePhaseCompleted
	case !now.Before(departure):
		return enums.RidePhaseInProgress
	default:
		return enums.RidePhaseScheduled
	}
}

// PhaseOf is Phase applied to a stored ride.
func PhaseOf(ride *models.Ride, now time.Time) enums.RidePhase {
	return Phase(now, ride.DepartureDate, ride.ArrivalDate, ride.IsActive, ride.EndedAt)
}
