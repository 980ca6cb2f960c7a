package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comparteride/circles-backend/api/middleware"
	"github.com/comparteride/circles-backend/internal/circles"
	"github.com/comparteride/circles-backend/internal/memberships"
	"github.com/comparteride/circles-backend/internal/rides"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/pagination"
)

type stubCircleService struct {
	circle *circles.CircleView
}

func (s stubCircleService) Create(context.Context, uuid.UUID, circles.CreateCircleInput) (*circles.CircleView, error) {
	return s.circle, nil
}

func (s stubCircleService) GetBySlug(_ context.Context, slug string) (*circles.CircleView, error) {
	if s.circle == nil || s.circle.SlugName != slug {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "circle not found")
	}
	return s.circle, nil
}

func (s stubCircleService) ListPublic(context.Context, int) ([]circles.CircleView, error) {
	return nil, nil
}

func (s stubCircleService) Update(context.Context, uuid.UUID, string, circles.UpdateCircleInput) (*circles.CircleView, error) {
	return s.circle, nil
}

func (s stubCircleService) ListMembers(context.Context, uuid.UUID, string) ([]memberships.MemberView, error) {
	return nil, nil
}

func (s stubCircleService) RemoveMember(context.Context, uuid.UUID, string, uuid.UUID) error {
	return nil
}

type stubRidesService struct {
	created    rides.CreateRideInput
	createdIn  uuid.UUID
	listParams rides.ListParams
	joinErr    error
}

func (s *stubRidesService) CreateRide(_ context.Context, _ uuid.UUID, circleID uuid.UUID, input rides.CreateRideInput) (*rides.RideView, error) {
	s.created = input
	s.createdIn = circleID
	return &rides.RideView{ID: uuid.New(), OfferedIn: circleID, Seats: input.Seats, AvailableSeats: input.Seats}, nil
}

func (s *stubRidesService) UpdateRide(context.Context, uuid.UUID, uuid.UUID, rides.UpdateRideInput) (*rides.RideView, error) {
	return &rides.RideView{}, nil
}

func (s *stubRidesService) JoinRide(_ context.Context, rideID, _ uuid.UUID) (*rides.RideView, error) {
	if s.joinErr != nil {
		return nil, s.joinErr
	}
	return &rides.RideView{ID: rideID}, nil
}

func (s *stubRidesService) EndRide(_ context.Context, rideID, _ uuid.UUID, _ time.Time) (*rides.RideView, error) {
	return &rides.RideView{ID: rideID}, nil
}

func (s *stubRidesService) CancelRide(_ context.Context, rideID, _ uuid.UUID, _ time.Time) (*rides.RideView, error) {
	return &rides.RideView{ID: rideID}, nil
}

func (s *stubRidesService) SweepExpiredRides(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *stubRidesService) GetRide(_ context.Context, rideID, _ uuid.UUID) (*rides.RideView, error) {
	return &rides.RideView{ID: rideID}, nil
}

func (s *stubRidesService) ListCircleRides(_ context.Context, _, _ uuid.UUID, params rides.ListParams) (pagination.Page[*rides.RideView], error) {
	s.listParams = params
	return pagination.Page[*rides.RideView]{}, nil
}

func rideRouter(circleSvc circles.Service, svc rides.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/circles/{slug}/rides", RideCreate(circleSvc, svc, nil))
	r.Get("/circles/{slug}/rides", RideList(circleSvc, svc, nil))
	r.Post("/rides/{rideId}/join", RideJoin(svc, nil))
	return r
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
}

func TestRideCreateResolvesCircleSlug(t *testing.T) {
	circle := &circles.CircleView{ID: uuid.New(), SlugName: "uni"}
	svc := &stubRidesService{}
	body := `{"departure_location":"Campus","departure_date":"2026-05-01T13:00:00Z","arrival_location":"Downtown","arrival_date":"2026-05-01T14:00:00Z","available_seats":3,"comments":"  no pets "}`

	rec := httptest.NewRecorder()
	rideRouter(stubCircleService{circle: circle}, svc).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/circles/UNI/rides", strings.NewReader(body))))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, circle.ID, svc.createdIn)
	assert.Equal(t, 3, svc.created.Seats)
	assert.Equal(t, "no pets", svc.created.Comments)
	assert.True(t, svc.created.ArrivalDate.After(svc.created.DepartureDate))
}

func TestRideCreateUnknownCircle(t *testing.T) {
	svc := &stubRidesService{}
	body := `{"departure_location":"A","departure_date":"2026-05-01T13:00:00Z","arrival_location":"B","arrival_date":"2026-05-01T14:00:00Z","available_seats":1}`

	rec := httptest.NewRecorder()
	rideRouter(stubCircleService{}, svc).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/circles/ghost/rides", strings.NewReader(body))))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRideListParsesQuery(t *testing.T) {
	circle := &circles.CircleView{ID: uuid.New(), SlugName: "uni"}
	svc := &stubRidesService{}

	rec := httptest.NewRecorder()
	rideRouter(stubCircleService{circle: circle}, svc).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/circles/uni/rides?limit=5&active=false&cursor=abc", nil)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, svc.listParams.Limit)
	assert.Equal(t, "abc", svc.listParams.Cursor)
	assert.False(t, svc.listParams.ActiveOnly)

	rec = httptest.NewRecorder()
	rideRouter(stubCircleService{circle: circle}, svc).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/circles/uni/rides?active=maybe", nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRideJoinMapsServiceErrors(t *testing.T) {
	cases := map[pkgerrors.Code]int{
		pkgerrors.CodeValidation: http.StatusBadRequest,
		pkgerrors.CodeNotFound:   http.StatusNotFound,
		pkgerrors.CodeConflict:   http.StatusConflict,
	}
	for code, status := range cases {
		svc := &stubRidesService{joinErr: pkgerrors.New(code, "nope")}
		rec := httptest.NewRecorder()
		rideRouter(stubCircleService{}, svc).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/rides/"+uuid.NewString()+"/join", nil)))
		assert.Equal(t, status, rec.Code, string(code))
	}
}
