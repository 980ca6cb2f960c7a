package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/comparteride/circles-backend/pkg/db/dbtest"
	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/comparteride/circles-backend/pkg/enums"
	"github.com/comparteride/circles-backend/pkg/logger"
	"github.com/comparteride/circles-backend/pkg/outbox/payloads"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	return NewService(NewRepository(conn), logg), conn
}

func TestEmitWritesEnvelope(t *testing.T) {
	svc, conn := newTestService(t)
	rideID := uuid.New()
	actor := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventRideJoined,
			AggregateType: enums.AggregateRide,
			AggregateID:   rideID,
			Actor:         &ActorRef{UserID: actor},
			Data:          payloads.RideJoinedEvent{RideID: rideID, PassengerID: actor, AvailableSeats: 1},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventRideJoined, rows[0].EventType)
	assert.Equal(t, rideID, rows[0].AggregateID)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, 1, env.Version)
	assert.NotEmpty(t, env.EventID)
	require.NotNil(t, env.Actor)
	assert.Equal(t, actor, env.Actor.UserID)

	var data payloads.RideJoinedEvent
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 1, data.AvailableSeats)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	svc, conn := newTestService(t)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventRideCreated,
			AggregateType: enums.AggregateRide,
			AggregateID:   uuid.New(),
			Data:          payloads.RideCreatedEvent{},
		}); err != nil {
			return err
		}
		return errors.New("ride insert failed")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRejectsUnknownTypesAndMissingTx(t *testing.T) {
	svc, conn := newTestService(t)

	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.OutboxEventType("order_created"),
			AggregateType: enums.AggregateRide,
			AggregateID:   uuid.New(),
		})
	})
	require.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	_, conn := newTestService(t)
	repo := NewRepository(conn)

	first := models.OutboxEvent{EventType: enums.EventRideCreated, AggregateType: enums.AggregateRide, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventRideJoined, AggregateType: enums.AggregateRide, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), AttemptCount: 3}
	require.NoError(t, repo.Insert(conn, first))
	require.NoError(t, repo.Insert(conn, second))

	var pending []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		pending, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return err
	}))
	require.Len(t, pending, 1, "rows at the attempt ceiling are not fetched")

	require.NoError(t, repo.MarkFailedTx(conn, pending[0].ID, errors.New("unavailable")))
	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", pending[0].ID).Error)
	assert.Equal(t, 1, reloaded.AttemptCount)
	require.NotNil(t, reloaded.LastError)

	require.NoError(t, repo.MarkPublishedTx(conn, pending[0].ID))
	require.NoError(t, conn.First(&reloaded, "id = ?", pending[0].ID).Error)
	require.NotNil(t, reloaded.PublishedAt)

	deleted, err := repo.DeletePublishedBefore(context.Background(), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
