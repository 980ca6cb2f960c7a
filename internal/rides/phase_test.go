package rides

import (
	"testing"
	"time"

	"github.com/comparteride/circles-backend/pkg/enums"
)

func TestPhase(t *testing.T) {
	dep := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	arr := dep.Add(2 * time.Hour)
	before := dep.Add(-time.Hour)
	after := dep.Add(time.Minute)

	tests := []struct {
		name     string
		now      time.Time
		isActive bool
		endedAt  *time.Time
		want     enums.RidePhase
	}{
		{name: "scheduled", now: dep.Add(-time.Minute), isActive: true, want: enums.RidePhaseScheduled},
		{name: "departure instant", now: dep, isActive: true, want: enums.RidePhaseInProgress},
		{name: "in progress", now: dep.Add(time.Hour), isActive: true, want: enums.RidePhaseInProgress},
		{name: "arrival instant", now: arr, isActive: true, want: enums.RidePhaseCompleted},
		{name: "ended by offerer", now: dep.Add(time.Hour), isActive: false, endedAt: &after, want: enums.RidePhaseCompleted},
		{name: "cancelled", now: dep.Add(-30 * time.Minute), isActive: false, endedAt: &before, want: enums.RidePhaseCancelled},
		{name: "cancelled stays cancelled", now: arr.Add(time.Hour), isActive: false, endedAt: &before, want: enums.RidePhaseCancelled},
		{name: "inactive without end", now: dep.Add(-time.Hour), isActive: false, want: enums.RidePhaseCompleted},
	}
	for _, tt := range tests {
		if got := Phase(tt.now, dep, arr, tt.isActive, tt.endedAt); got != tt.want {
			t.Fatalf("%s: expected %s got %s", tt.name, tt.want, got)
		}
	}
}
