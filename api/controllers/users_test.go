package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comparteride/circles-backend/api/middleware"
	"github.com/comparteride/circles-backend/internal/users"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
)

type stubUsersService struct {
	signUp   users.SignUpInput
	login    *users.LoginResult
	profile  *users.ProfileDTO
	bio      string
	err      error
	verified string
}

func (s *stubUsersService) SignUp(_ context.Context, input users.SignUpInput) (*users.UserDTO, error) {
	s.signUp = input
	if s.err != nil {
		return nil, s.err
	}
	return &users.UserDTO{ID: uuid.New(), Email: input.Email, Username: input.Username}, nil
}

func (s *stubUsersService) Verify(_ context.Context, token string) (*users.UserDTO, error) {
	s.verified = token
	if s.err != nil {
		return nil, s.err
	}
	return &users.UserDTO{IsVerified: true}, nil
}

func (s *stubUsersService) Login(context.Context, string, string) (*users.LoginResult, error) {
	return s.login, s.err
}

func (s *stubUsersService) GetProfile(context.Context, string) (*users.ProfileDTO, error) {
	return s.profile, s.err
}

func (s *stubUsersService) UpdateProfile(_ context.Context, userID uuid.UUID, biography string, _ *string) (*users.ProfileDTO, error) {
	s.bio = biography
	return &users.ProfileDTO{UserID: userID, Biography: biography}, s.err
}

func TestUserSignUpCreated(t *testing.T) {
	svc := &stubUsersService{}
	body := `{"email":"ana@example.com","username":"ana","password":"secret123","password_confirmation":"secret123","first_name":" Ana ","last_name":"Ruiz"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()

	UserSignUp(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Ana", svc.signUp.FirstName)
	assert.Equal(t, "secret123", svc.signUp.PasswordConfirmation)
}

func TestUserSignUpRejectsInvalidBody(t *testing.T) {
	svc := &stubUsersService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(`{"email":"nope","username":"ana"}`))
	rec := httptest.NewRecorder()

	UserSignUp(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var payload struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	assert.Equal(t, string(pkgerrors.CodeValidation), payload.Error.Code)
	assert.Equal(t, "must be a valid email", payload.Error.Details["email"])
	assert.Empty(t, svc.signUp.Email)
}

func TestUserLoginMapsUnauthorized(t *testing.T) {
	svc := &stubUsersService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"ana@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()

	UserLogin(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserVerifyTrimsToken(t *testing.T) {
	svc := &stubUsersService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/verify", strings.NewReader(`{"token":"  abc.def.ghi "}`))
	rec := httptest.NewRecorder()

	UserVerify(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc.def.ghi", svc.verified)
}

func TestUserProfileNotFound(t *testing.T) {
	svc := &stubUsersService{err: pkgerrors.New(pkgerrors.CodeNotFound, "user not found")}
	r := chi.NewRouter()
	r.Get("/users/{username}", UserProfile(svc, nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/ghost", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserUpdateProfileRequiresCaller(t *testing.T) {
	svc := &stubUsersService{}
	req := httptest.NewRequest(http.MethodPatch, "/users/me/profile", strings.NewReader(`{"biography":"hi"}`))
	rec := httptest.NewRecorder()

	UserUpdateProfile(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserUpdateProfile(t *testing.T) {
	svc := &stubUsersService{}
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/users/me/profile", strings.NewReader(`{"biography":"  weekend driver  "}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	rec := httptest.NewRecorder()

	UserUpdateProfile(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "weekend driver", svc.bio)
}
