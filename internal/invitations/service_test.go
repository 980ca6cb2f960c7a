package invitations

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/comparteride/circles-backend/internal/circles"
	"github.com/comparteride/circles-backend/internal/memberships"
	"github.com/comparteride/circles-backend/pkg/config"
	"github.com/comparteride/circles-backend/pkg/db"
	"github.com/comparteride/circles-backend/pkg/db/dbtest"
	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/comparteride/circles-backend/pkg/enums"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/metrics"
	"github.com/comparteride/circles-backend/pkg/outbox"
	"github.com/comparteride/circles-backend/pkg/security"
)

type fixture struct {
	conn    *gorm.DB
	svc     Service
	members *memberships.Repository
	owner   *models.User
	circle  *models.Circle
}

func newFixture(t *testing.T, quota int) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	owner := dbtest.SeedUser(t, conn, "owner")
	circle := dbtest.SeedCircle(t, conn, "tec", owner.ID)
	dbtest.SeedMembership(t, conn, owner.ID, circle.ID, quota)

	members := memberships.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Tx:          db.FromConn(conn),
		Repo:        NewRepository(conn),
		Memberships: members,
		Circles:     circles.NewRepository(conn),
		Outbox:      outbox.NewService(outbox.NewRepository(conn), nil),
		Metrics:     metrics.NewRideMetrics(prometheus.NewRegistry()),
		Config:      config.InvitationsConfig{InitialQuota: 10, CodeLength: 10, MaxAttempts: 50},
	})
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, members: members, owner: owner, circle: circle}
}

func TestIssueAndRedeemEndToEnd(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	codes, err := f.svc.IssueInvitations(ctx, f.circle.ID, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, codes, 10)
	seen := map[string]struct{}{}
	for _, code := range codes {
		require.Len(t, code, 10)
		for _, r := range code {
			require.Contains(t, security.InvitationAlphabet, string(r))
		}
		seen[code] = struct{}{}
	}
	require.Len(t, seen, 10)

	again, err := f.svc.IssueInvitations(ctx, f.circle.ID, f.owner.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, codes, again, "outstanding codes reserve the quota")

	rider := dbtest.SeedUser(t, f.conn, "rider")
	view, err := f.svc.RedeemInvitation(ctx, codes[0], rider.ID)
	require.NoError(t, err)
	require.True(t, view.IsActive)
	require.Equal(t, f.circle.ID, view.CircleID)
	require.NotNil(t, view.InvitedBy)
	require.Equal(t, f.owner.ID, *view.InvitedBy)

	issuer, err := f.members.GetMembership(ctx, f.owner.ID, f.circle.ID)
	require.NoError(t, err)
	require.Equal(t, 9, issuer.RemainingInvitations)
	require.Equal(t, 1, issuer.UsedInvitations)

	active, err := f.members.IsActiveMember(ctx, rider.ID, f.circle.ID)
	require.NoError(t, err)
	require.True(t, active)

	remaining, err := f.svc.IssueInvitations(ctx, f.circle.ID, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 9)
	require.NotContains(t, remaining, codes[0])

	var used models.Invitation
	require.NoError(t, f.conn.Where("code = ?", codes[0]).First(&used).Error)
	require.True(t, used.Used)
	require.NotNil(t, used.UsedBy)
	require.NotNil(t, used.UsedAt)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Order("created_at").Find(&events).Error)
	types := make([]enums.OutboxEventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	require.Equal(t, []enums.OutboxEventType{enums.EventInvitationsIssued, enums.EventInvitationRedeemed}, types)
}

func TestRedeemTwiceYieldsNotFound(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	codes, err := f.svc.IssueInvitations(ctx, f.circle.ID, f.owner.ID)
	require.NoError(t, err)

	first := dbtest.SeedUser(t, f.conn, "first")
	second := dbtest.SeedUser(t, f.conn, "second")

	_, err = f.svc.RedeemInvitation(ctx, codes[0], first.ID)
	require.NoError(t, err)

	_, err = f.svc.RedeemInvitation(ctx, codes[0], second.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = f.svc.RedeemInvitation(ctx, "NOPE000000", second.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	issuer, err := f.members.GetMembership(ctx, f.owner.ID, f.circle.ID)
	require.NoError(t, err)
	require.Equal(t, 1, issuer.UsedInvitations)
	require.Equal(t, 1, issuer.RemainingInvitations)
}

func TestConcurrentRedeemHasOneWinner(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	codes, err := f.svc.IssueInvitations(ctx, f.circle.ID, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, codes, 1)

	const callers = 6
	users := make([]uuid.UUID, callers)
	for i := range users {
		users[i] = dbtest.SeedUser(t, f.conn, "racer"+string(rune('a'+i))).ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		notFound int
	)
	for _, id := range users {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.RedeemInvitation(ctx, codes[0], userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
				notFound++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, callers-1, notFound)

	count, err := f.members.CountActiveMembers(ctx, f.circle.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestRedeemRejectsExistingMemberAndFullCircle(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	codes, err := f.svc.IssueInvitations(ctx, f.circle.ID, f.owner.ID)
	require.NoError(t, err)

	_, err = f.svc.RedeemInvitation(ctx, codes[0], f.owner.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.NoError(t, f.conn.Model(&models.Circle{}).Where("id = ?", f.circle.ID).
		Updates(map[string]any{"is_limited": true, "members_limit": 2}).Error)

	alice := dbtest.SeedUser(t, f.conn, "alice")
	_, err = f.svc.RedeemInvitation(ctx, codes[0], alice.ID)
	require.NoError(t, err)

	bob := dbtest.SeedUser(t, f.conn, "bob")
	_, err = f.svc.RedeemInvitation(ctx, codes[1], bob.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var inv models.Invitation
	require.NoError(t, f.conn.Where("code = ?", codes[1]).First(&inv).Error)
	require.False(t, inv.Used, "rejected redemption leaves the code unused")
}

func TestRedeemReactivatesFormerMember(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	rider := dbtest.SeedUser(t, f.conn, "rider")
	former := dbtest.SeedMembership(t, f.conn, rider.ID, f.circle.ID, 0)
	require.NoError(t, f.members.Deactivate(ctx, former.ID))

	codes, err := f.svc.IssueInvitations(ctx, f.circle.ID, f.owner.ID)
	require.NoError(t, err)

	view, err := f.svc.RedeemInvitation(ctx, codes[0], rider.ID)
	require.NoError(t, err)
	require.Equal(t, former.ID, view.ID)
	require.True(t, view.IsActive)
}

func TestRemovedMemberCodesStopAdmitting(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	alice := dbtest.SeedUser(t, f.conn, "alice")
	aliceMembership := dbtest.SeedMembership(t, f.conn, alice.ID, f.circle.ID, 3)
	aliceCodes, err := f.svc.IssueInvitations(ctx, f.circle.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceCodes, 3)

	require.NoError(t, f.members.Deactivate(ctx, aliceMembership.ID))

	rider := dbtest.SeedUser(t, f.conn, "rider")
	_, err = f.svc.RedeemInvitation(ctx, aliceCodes[0], rider.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	active, err := f.members.IsActiveMember(ctx, rider.ID, f.circle.ID)
	require.NoError(t, err)
	require.False(t, active)

	ownerCodes, err := f.svc.IssueInvitations(ctx, f.circle.ID, f.owner.ID)
	require.NoError(t, err)
	view, err := f.svc.RedeemInvitation(ctx, ownerCodes[0], alice.ID)
	require.NoError(t, err)
	require.Equal(t, aliceMembership.ID, view.ID)

	got, err := f.members.GetMembership(ctx, alice.ID, f.circle.ID)
	require.NoError(t, err)
	require.Zero(t, got.RemainingInvitations)
	require.Zero(t, got.UsedInvitations)

	reissued, err := f.svc.IssueInvitations(ctx, f.circle.ID, alice.ID)
	require.NoError(t, err)
	require.Empty(t, reissued, "live codes never exceed the quota")
}

func TestRedeemRejectsCodeOfInactiveIssuer(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	alice := dbtest.SeedUser(t, f.conn, "alice")
	aliceMembership := dbtest.SeedMembership(t, f.conn, alice.ID, f.circle.ID, 0)
	require.NoError(t, f.conn.Model(&models.Membership{}).
		Where("id = ?", aliceMembership.ID).
		Update("is_active", false).Error)
	require.NoError(t, NewRepository(f.conn).Create(ctx, &models.Invitation{
		Code:     "STALE00000",
		CircleID: f.circle.ID,
		IssuedBy: alice.ID,
	}))

	rider := dbtest.SeedUser(t, f.conn, "rider")
	_, err := f.svc.RedeemInvitation(ctx, "STALE00000", rider.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	var inv models.Invitation
	require.NoError(t, f.conn.Where("code = ?", "STALE00000").First(&inv).Error)
	require.False(t, inv.Used)
}

func TestIssueRequiresActiveMembership(t *testing.T) {
	f := newFixture(t, 5)
	stranger := dbtest.SeedUser(t, f.conn, "stranger")

	_, err := f.svc.IssueInvitations(context.Background(), f.circle.ID, stranger.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.ListInvitations(context.Background(), f.circle.ID, stranger.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestIssueCodesRetriesCollisions(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	circleID, issuerID := uuid.New(), uuid.New()

	require.NoError(t, repo.Create(ctx, &models.Invitation{Code: "TAKEN00000", CircleID: circleID, IssuedBy: issuerID}))

	draws := []string{"TAKEN00000", "TAKEN00000", "FRESH00000"}
	gen := func() (string, error) {
		code := draws[0]
		draws = draws[1:]
		return code, nil
	}

	codes, err := issueCodes(ctx, repo, gen, 5, circleID, issuerID, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"FRESH00000"}, codes)
}

func TestIssueCodesFailsPastMaxAttempts(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Invitation{Code: "SAME000000", CircleID: uuid.New(), IssuedBy: uuid.New()}))
	gen := func() (string, error) { return "SAME000000", nil }

	_, err := issueCodes(ctx, repo, gen, 3, uuid.New(), uuid.New(), 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))

	_, err = issueCodes(ctx, repo, gen, 3, uuid.New(), uuid.New(), -1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	failing := func() (string, error) { return "", errors.New("entropy exhausted") }
	_, err = issueCodes(ctx, repo, failing, 3, uuid.New(), uuid.New(), 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)
	require.Len(t, code, 10)
}
