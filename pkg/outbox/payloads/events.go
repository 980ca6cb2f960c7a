package payloads

import (
	"time"

	"github.com/google/uuid"
)

// UserSignedUpEvent asks the notification consumer to send the account
// confirmation message carrying VerificationToken.
type UserSignedUpEvent struct {
	UserID            uuid.UUID `json:"user_id"`
	Email             string    `json:"email"`
	Username          string    `json:"username"`
	FirstName         string    `json:"first_name"`
	VerificationToken string    `json:"verification_token"`
	ExpiresAt         time.Time `json:"expires_at"`
}

type UserVerifiedEvent struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

type CircleCreatedEvent struct {
	CircleID  uuid.UUID `json:"circle_id"`
	SlugName  string    `json:"slug_name"`
	CreatedBy uuid.UUID `json:"created_by"`
}

type MemberRemovedEvent struct {
	CircleID  uuid.UUID `json:"circle_id"`
	UserID    uuid.UUID `json:"user_id"`
	RemovedBy uuid.UUID `json:"removed_by"`
}

type InvitationsIssuedEvent struct {
	CircleID uuid.UUID `json:"circle_id"`
	IssuerID uuid.UUID `json:"issuer_id"`
	Issued   int       `json:"issued"`
	Pending  int       `json:"pending"`
}

type InvitationRedeemedEvent struct {
	InvitationID uuid.UUID `json:"invitation_id"`
	CircleID     uuid.UUID `json:"circle_id"`
	IssuerID     uuid.UUID `json:"issuer_id"`
	RedeemerID   uuid.UUID `json:"redeemer_id"`
	MembershipID uuid.UUID `json:"membership_id"`
}

type RideCreatedEvent struct {
	RideID        uuid.UUID `json:"ride_id"`
	CircleID      uuid.UUID `json:"circle_id"`
	OfferedBy     uuid.UUID `json:"offered_by"`
	DepartureDate time.Time `json:"departure_date"`
	Seats         int       `json:"seats"`
}

type RideUpdatedEvent struct {
	RideID         uuid.UUID `json:"ride_id"`
	CircleID       uuid.UUID `json:"circle_id"`
	DepartureDate  time.Time `json:"departure_date"`
	ArrivalDate    time.Time `json:"arrival_date"`
	AvailableSeats int       `json:"available_seats"`
}

type RideJoinedEvent struct {
	RideID         uuid.UUID `json:"ride_id"`
	CircleID       uuid.UUID `json:"circle_id"`
	PassengerID    uuid.UUID `json:"passenger_id"`
	OfferedBy      uuid.UUID `json:"offered_by"`
	AvailableSeats int       `json:"available_seats"`
}

type RideEndedEvent struct {
	RideID   uuid.UUID `json:"ride_id"`
	CircleID uuid.UUID `json:"circle_id"`
	EndedAt  time.Time `json:"ended_at"`
	// Swept is true when the ride was closed by the expiry sweep rather
	// than by its offerer.
	Swept bool `json:"swept"`
}

type RideCancelledEvent struct {
	RideID       uuid.UUID   `json:"ride_id"`
	CircleID     uuid.UUID   `json:"circle_id"`
	PassengerIDs []uuid.UUID `json:"passenger_ids"`
}

type RideRatedEvent struct {
	RideID      uuid.UUID `json:"ride_id"`
	CircleID    uuid.UUID `json:"circle_id"`
	RaterID     uuid.UUID `json:"rater_id"`
	RatedUserID uuid.UUID `json:"rated_user_id"`
	Score       int       `json:"score"`
	RideRating  string    `json:"ride_rating"`
	Reputation  string    `json:"reputation"`
}
