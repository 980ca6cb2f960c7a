package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/comparteride/circles-backend/pkg/auth"
	"github.com/comparteride/circles-backend/pkg/config"
	"github.com/comparteride/circles-backend/pkg/db"
	"github.com/comparteride/circles-backend/pkg/db/dbtest"
	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/comparteride/circles-backend/pkg/enums"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/outbox"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "cride", ExpirationMinutes: 30, VerificationTTLHours: 72}

// Cheap argon parameters; the clamps keep them valid.
var testPassword = config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 8, ArgonKeyLen: 16}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Tx:             db.FromConn(conn),
		Repo:           NewRepository(conn),
		Outbox:         outbox.NewService(outbox.NewRepository(conn), nil),
		JWTConfig:      testJWT,
		PasswordConfig: testPassword,
	})
	require.NoError(t, err)
	return svc, conn
}

func signUpInput(username string) SignUpInput {
	return SignUpInput{
		Email:                " " + username + "@Example.com ",
		Username:             username,
		Password:             "s3cret-pass",
		PasswordConfirmation: "s3cret-pass",
		FirstName:            "Ana",
		LastName:             "Rider",
	}
}

func TestSignUpVerifyLogin(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, signUpInput("ana"))
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", user.Email)
	require.False(t, user.IsVerified)

	var profile models.Profile
	require.NoError(t, conn.First(&profile, "user_id = ?", user.ID).Error)
	require.True(t, profile.Reputation.Equal(models.DefaultReputation))

	_, err = svc.Login(ctx, "ana@example.com", "s3cret-pass")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "unverified accounts cannot log in")

	var event models.OutboxEvent
	require.NoError(t, conn.Where("event_type = ?", enums.EventUserSignedUp).First(&event).Error)
	require.Equal(t, user.ID, event.AggregateID)

	token, _, err := auth.MintVerificationToken(testJWT, testNow(), user.ID, user.Email)
	require.NoError(t, err)
	verified, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	require.True(t, verified.IsVerified)

	_, err = svc.Verify(ctx, token)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	result, err := svc.Login(ctx, "ANA@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.NotNil(t, result.User.LastLoginAt)

	claims, err := auth.ParseAccessToken(testJWT, result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, "ana", claims.Username)

	_, err = svc.Login(ctx, "ana@example.com", "wrong")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	_, err = svc.Login(ctx, "nobody@example.com", "s3cret-pass")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestSignUpRejectsDuplicatesAndMismatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, signUpInput("ana"))
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, signUpInput("ana"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	other := signUpInput("bob")
	other.Username = "ana"
	_, err = svc.SignUp(ctx, other)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	mismatch := signUpInput("carl")
	mismatch.PasswordConfirmation = "other"
	_, err = svc.SignUp(ctx, mismatch)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestVerifyRejectsAccessTokens(t *testing.T) {
	svc, _ := newTestService(t)
	user, err := svc.SignUp(context.Background(), signUpInput("ana"))
	require.NoError(t, err)

	access, err := auth.MintAccessToken(testJWT, testNow(), auth.AccessTokenPayload{UserID: user.ID})
	require.NoError(t, err)
	_, err = svc.Verify(context.Background(), access)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestProfileRollupsAndUpdate(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn, "dora")

	repo := NewRepository(conn)
	require.NoError(t, repo.IncrementProfileCounter(ctx, user.ID, ProfileRidesOffered))
	require.NoError(t, repo.IncrementProfileCounter(ctx, user.ID, ProfileRidesTaken))
	require.NoError(t, repo.IncrementProfileCounter(ctx, user.ID, ProfileRidesTaken))
	require.Error(t, repo.IncrementProfileCounter(ctx, user.ID, ProfileCounter("reputation")))

	picture := "https://cdn.example.com/dora.png"
	updated, err := svc.UpdateProfile(ctx, user.ID, "  weekend driver ", &picture)
	require.NoError(t, err)
	require.Equal(t, "weekend driver", updated.Biography)

	profile, err := svc.GetProfile(ctx, "dora")
	require.NoError(t, err)
	require.Equal(t, 1, profile.RidesOffered)
	require.Equal(t, 2, profile.RidesTaken)
	require.Equal(t, picture, *profile.Picture)

	_, err = svc.GetProfile(ctx, "ghost")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func testNow() time.Time { return time.Now().UTC() }
