package enums

// RidePhase is derived from a ride's timestamps on read and never stored.
type RidePhase string

const (
	RidePhaseScheduled  RidePhase = "scheduled"
	RidePhaseInProgress RidePhase = "in_progress"
	RidePhaseCompleted  RidePhase = "completed"
	RidePhaseCancelled  RidePhase = "cancelled"
)

// String implements fmt.Stringer.
func (p RidePhase) String() string {
	return string(p)
}

// IsFinished reports whether the ride no longer accepts changes.
func (p RidePhase) IsFinished() bool {
	return p == RidePhaseCompleted || p == RidePhaseCancelled
}
