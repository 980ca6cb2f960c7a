package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateUser       OutboxAggregateType = "user"
	AggregateCircle     OutboxAggregateType = "circle"
	AggregateInvitation OutboxAggregateType = "invitation"
	AggregateRide       OutboxAggregateType = "ride"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateUser,
	AggregateCircle,
	AggregateInvitation,
	AggregateRide,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names what happened.
type OutboxEventType string

const (
	EventUserSignedUp       OutboxEventType = "user_signed_up"
	EventUserVerified       OutboxEventType = "user_verified"
	EventCircleCreated      OutboxEventType = "circle_created"
	EventMemberRemoved      OutboxEventType = "member_removed"
	EventInvitationsIssued  OutboxEventType = "invitations_issued"
	EventInvitationRedeemed OutboxEventType = "invitation_redeemed"
	EventRideCreated        OutboxEventType = "ride_created"
	EventRideUpdated        OutboxEventType = "ride_updated"
	EventRideJoined         OutboxEventType = "ride_joined"
	EventRideEnded          OutboxEventType = "ride_ended"
	EventRideCancelled      OutboxEventType = "ride_cancelled"
	EventRideRated          OutboxEventType = "ride_rated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventUserSignedUp,
	EventUserVerified,
	EventCircleCreated,
	EventMemberRemoved,
	EventInvitationsIssued,
	EventInvitationRedeemed,
	EventRideCreated,
	EventRideUpdated,
	EventRideJoined,
	EventRideEnded,
	EventRideCancelled,
	EventRideRated,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// IsNotification reports whether subscribers deliver a message to a person
// for this event. Everything else only feeds the domain topic.
func (e OutboxEventType) IsNotification() bool {
	switch e {
	case EventUserSignedUp, EventUserVerified, EventRideJoined, EventRideCancelled:
		return true
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
