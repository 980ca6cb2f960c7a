package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/comparteride/circles-backend/pkg/db/models"
)

// SeedUser inserts an active, verified user with an empty profile.
func SeedUser(t testing.TB, conn *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "hash",
		FirstName:    username,
		LastName:     "Test",
		IsVerified:   true,
		IsActive:     true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	profile := &models.Profile{UserID: user.ID, Reputation: models.DefaultReputation}
	if err := conn.Create(profile).Error; err != nil {
		t.Fatalf("seed profile %s: %v", username, err)
	}
	return user
}

// SeedCircle inserts a public circle created by owner.
func SeedCircle(t testing.TB, conn *gorm.DB, slug string, owner uuid.UUID) *models.Circle {
	t.Helper()
	circle := &models.Circle{
		SlugName:  slug,
		Name:      slug,
		About:     "test circle",
		IsPublic:  true,
		CreatedBy: owner,
	}
	if err := conn.Create(circle).Error; err != nil {
		t.Fatalf("seed circle %s: %v", slug, err)
	}
	return circle
}

// SeedMembership inserts an active membership with the given invitation quota.
func SeedMembership(t testing.TB, conn *gorm.DB, userID, circleID uuid.UUID, remaining int) *models.Membership {
	t.Helper()
	membership := &models.Membership{
		UserID:               userID,
		CircleID:             circleID,
		IsActive:             true,
		RemainingInvitations: remaining,
		JoinedAt:             time.Now().UTC(),
	}
	if err := conn.Create(membership).Error; err != nil {
		t.Fatalf("seed membership: %v", err)
	}
	return membership
}

// SeedRide inserts an active ride with every seat available.
func SeedRide(t testing.TB, conn *gorm.DB, offeredBy, circleID uuid.UUID, departure time.Time, seats int) *models.Ride {
	t.Helper()
	ride := &models.Ride{
		OfferedBy:         offeredBy,
		OfferedIn:         circleID,
		DepartureLocation: "A",
		DepartureDate:     departure.UTC(),
		ArrivalLocation:   "B",
		ArrivalDate:       departure.Add(time.Hour).UTC(),
		Seats:             seats,
		AvailableSeats:    seats,
		IsActive:          true,
	}
	if err := conn.Create(ride).Error; err != nil {
		t.Fatalf("seed ride: %v", err)
	}
	return ride
}
