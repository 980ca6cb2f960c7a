package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/comparteride/circles-backend/pkg/config"
	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/comparteride/circles-backend/pkg/enums"
	"github.com/comparteride/circles-backend/pkg/outbox"
	"github.com/comparteride/circles-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
// Events a person should hear about go to the notification topic, the rest
// to the domain topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}
	if cfg.DomainTopic == "" {
		return nil, fmt.Errorf("domain topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventUserSignedUp,
			AggregateType:  enums.AggregateUser,
			PayloadFactory: func() interface{} { return &payloads.UserSignedUpEvent{} },
		},
		{
			EventType:      enums.EventUserVerified,
			AggregateType:  enums.AggregateUser,
			PayloadFactory: func() interface{} { return &payloads.UserVerifiedEvent{} },
		},
		{
			EventType:      enums.EventCircleCreated,
			AggregateType:  enums.AggregateCircle,
			PayloadFactory: func() interface{} { return &payloads.CircleCreatedEvent{} },
		},
		{
			EventType:      enums.EventMemberRemoved,
			AggregateType:  enums.AggregateCircle,
			PayloadFactory: func() interface{} { return &payloads.MemberRemovedEvent{} },
		},
		{
			EventType:      enums.EventInvitationsIssued,
			AggregateType:  enums.AggregateCircle,
			PayloadFactory: func() interface{} { return &payloads.InvitationsIssuedEvent{} },
		},
		{
			EventType:      enums.EventInvitationRedeemed,
			AggregateType:  enums.AggregateInvitation,
			PayloadFactory: func() interface{} { return &payloads.InvitationRedeemedEvent{} },
		},
		{
			EventType:      enums.EventRideCreated,
			AggregateType:  enums.AggregateRide,
			PayloadFactory: func() interface{} { return &payloads.RideCreatedEvent{} },
		},
		{
			EventType:      enums.EventRideUpdated,
			AggregateType:  enums.AggregateRide,
			PayloadFactory: func() interface{} { return &payloads.RideUpdatedEvent{} },
		},
		{
			EventType:      enums.EventRideJoined,
			AggregateType:  enums.AggregateRide,
			PayloadFactory: func() interface{} { return &payloads.RideJoinedEvent{} },
		},
		{
			EventType:      enums.EventRideEnded,
			AggregateType:  enums.AggregateRide,
			PayloadFactory: func() interface{} { return &payloads.RideEndedEvent{} },
		},
		{
			EventType:      enums.EventRideCancelled,
			AggregateType:  enums.AggregateRide,
			PayloadFactory: func() interface{} { return &payloads.RideCancelledEvent{} },
		},
		{
			EventType:      enums.EventRideRated,
			AggregateType:  enums.AggregateRide,
			PayloadFactory: func() interface{} { return &payloads.RideRatedEvent{} },
		},
	} {
		desc.Topic = cfg.DomainTopic
		if desc.EventType.IsNotification() {
			desc.Topic = cfg.NotificationTopic
		}
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
