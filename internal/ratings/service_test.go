package ratings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/comparteride/circles-backend/internal/rides"
	"github.com/comparteride/circles-backend/internal/users"
	"github.com/comparteride/circles-backend/pkg/db"
	"github.com/comparteride/circles-backend/pkg/db/dbtest"
	"github.com/comparteride/circles-backend/pkg/db/models"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/outbox"
)

var baseNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	conn   *gorm.DB
	svc    Service
	owner  *models.User
	circle *models.Circle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	owner := dbtest.SeedUser(t, conn, "driver")
	circle := dbtest.SeedCircle(t, conn, "tec", owner.ID)
	svc, err := NewService(ServiceParams{
		Tx:     db.FromConn(conn),
		Repo:   NewRepository(conn),
		Rides:  rides.NewRepository(conn),
		Users:  users.NewRepository(conn),
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
		Now:    func() time.Time { return baseNow },
	})
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, owner: owner, circle: circle}
}

// finishedRide seeds a ride that arrived an hour before baseNow carrying
// the given passengers.
func (f *fixture) finishedRide(t *testing.T, passengers ...*models.User) *models.Ride {
	t.Helper()
	ride := dbtest.SeedRide(t, f.conn, f.owner.ID, f.circle.ID, baseNow.Add(-2*time.Hour), 4)
	for _, p := range passengers {
		require.NoError(t, f.conn.Create(&models.RidePassenger{RideID: ride.ID, UserID: p.ID, JoinedAt: ride.DepartureDate}).Error)
	}
	return ride
}

func (f *fixture) reputation(t *testing.T) decimal.Decimal {
	t.Helper()
	profile, err := users.NewRepository(f.conn).FindProfile(context.Background(), f.owner.ID)
	require.NoError(t, err)
	return profile.Reputation
}

func TestRateRideAverages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := dbtest.SeedUser(t, f.conn, "ana")
	bob := dbtest.SeedUser(t, f.conn, "bob")
	ride := f.finishedRide(t, ana, bob)

	view, err := f.svc.RateRide(ctx, ride.ID, ana.ID, 5, "great")
	require.NoError(t, err)
	require.True(t, view.Rating.Valid)
	require.True(t, view.Rating.Decimal.Equal(decimal.NewFromInt(5)))

	view, err = f.svc.RateRide(ctx, ride.ID, bob.ID, 3, "ok")
	require.NoError(t, err)
	require.Equal(t, "4.0", view.Rating.Decimal.StringFixed(1))

	var stored models.Ride
	require.NoError(t, f.conn.First(&stored, "id = ?", ride.ID).Error)
	require.Equal(t, "4.0", stored.Rating.Decimal.StringFixed(1))
	require.Equal(t, "4.0", f.reputation(t).StringFixed(1))

	carl := dbtest.SeedUser(t, f.conn, "carl")
	second := f.finishedRide(t, carl)
	_, err = f.svc.RateRide(ctx, second.ID, carl.ID, 1, "")
	require.NoError(t, err)
	require.Equal(t, "3.0", f.reputation(t).StringFixed(1))

	list, err := f.svc.ListRideRatings(ctx, ride.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestRateRideTwiceLeavesAverageUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := dbtest.SeedUser(t, f.conn, "ana")
	ride := f.finishedRide(t, ana)

	_, err := f.svc.RateRide(ctx, ride.ID, ana.ID, 4, "")
	require.NoError(t, err)

	_, err = f.svc.RateRide(ctx, ride.ID, ana.ID, 1, "changed my mind")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var stored models.Ride
	require.NoError(t, f.conn.First(&stored, "id = ?", ride.ID).Error)
	require.Equal(t, "4.0", stored.Rating.Decimal.StringFixed(1))

	var count int64
	require.NoError(t, f.conn.Model(&models.Rating{}).Where("ride_id = ?", ride.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRateRideRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := dbtest.SeedUser(t, f.conn, "ana")
	stranger := dbtest.SeedUser(t, f.conn, "stranger")
	ride := f.finishedRide(t, ana)

	_, err := f.svc.RateRide(ctx, uuid.New(), ana.ID, 5, "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	for _, score := range []int{0, 6} {
		_, err = f.svc.RateRide(ctx, ride.ID, ana.ID, score, "")
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "score %d", score)
	}

	_, err = f.svc.RateRide(ctx, ride.ID, stranger.ID, 5, "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	upcoming := dbtest.SeedRide(t, f.conn, f.owner.ID, f.circle.ID, baseNow.Add(time.Hour), 2)
	require.NoError(t, f.conn.Create(&models.RidePassenger{RideID: upcoming.ID, UserID: ana.ID, JoinedAt: baseNow}).Error)
	_, err = f.svc.RateRide(ctx, upcoming.ID, ana.ID, 5, "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	cancelledAt := baseNow.Add(-time.Hour)
	cancelled := dbtest.SeedRide(t, f.conn, f.owner.ID, f.circle.ID, baseNow.Add(-30*time.Minute), 2)
	require.NoError(t, f.conn.Model(cancelled).Updates(map[string]any{"is_active": false, "ended_at": cancelledAt}).Error)
	require.NoError(t, f.conn.Create(&models.RidePassenger{RideID: cancelled.ID, UserID: ana.ID, JoinedAt: baseNow}).Error)
	_, err = f.svc.RateRide(ctx, cancelled.ID, ana.ID, 5, "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.True(t, f.reputation(t).Equal(models.DefaultReputation))
}

func TestMeanRoundsHalfUp(t *testing.T) {
	require.Equal(t, "4.3", Mean(13, 3).StringFixed(1))
	require.Equal(t, "4.5", Mean(9, 2).StringFixed(1))
	require.Equal(t, "4.7", Mean(14, 3).StringFixed(1))
	require.Equal(t, "3.9", Mean(35, 9).StringFixed(1))
}
