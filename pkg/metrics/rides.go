package metrics

import "github.com/prometheus/client_golang/prometheus"

// Join outcomes recorded by RideMetrics.
const (
	OutcomeAdmitted = "admitted"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
)

// RideMetrics tracks seat admission and sweep activity.
type RideMetrics struct {
	joins      *prometheus.CounterVec
	joinRetry  prometheus.Counter
	swept      prometheus.Counter
	redemption *prometheus.CounterVec
}

// NewRideMetrics registers the ride metrics on the provided registerer.
func NewRideMetrics(reg prometheus.Registerer) *RideMetrics {
	if reg == nil {
		return &RideMetrics{}
	}
	joins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ride_join_total",
		Help: "Ride join attempts by outcome.",
	}, []string{"outcome"})
	joinRetry := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ride_join_retries_total",
		Help: "Ride join transactions retried after a transient conflict.",
	})
	swept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ride_swept_total",
		Help: "Rides deactivated by the expiry sweep.",
	})
	redemption := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invitation_redemption_total",
		Help: "Invitation redemptions by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(joins, joinRetry, swept, redemption)
	return &RideMetrics{
		joins:      joins,
		joinRetry:  joinRetry,
		swept:      swept,
		redemption: redemption,
	}
}

// IncJoin counts a finished join attempt.
func (m *RideMetrics) IncJoin(outcome string) {
	if m == nil || m.joins == nil {
		return
	}
	m.joins.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncJoinRetry counts one retried join transaction.
func (m *RideMetrics) IncJoinRetry() {
	if m == nil || m.joinRetry == nil {
		return
	}
	m.joinRetry.Inc()
}

// AddSwept adds the number of rides closed by a sweep run.
func (m *RideMetrics) AddSwept(n int) {
	if m == nil || m.swept == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}

// IncRedemption counts a finished invitation redemption.
func (m *RideMetrics) IncRedemption(outcome string) {
	if m == nil || m.redemption == nil {
		return
	}
	m.redemption.WithLabelValues(normalizeLabel(outcome)).Inc()
}
