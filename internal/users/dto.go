package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comparteride/circles-backend/pkg/db/models"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       *string    `json:"phone,omitempty"`
	IsVerified  bool       `json:"is_verified"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ProfileDTO is the public profile with its ride rollups.
type ProfileDTO struct {
	UserID       uuid.UUID       `json:"user_id"`
	Username     string          `json:"username"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Biography    string          `json:"biography"`
	Picture      *string         `json:"picture,omitempty"`
	RidesTaken   int             `json:"rides_taken"`
	RidesOffered int             `json:"rides_offered"`
	Reputation   decimal.Decimal `json:"reputation"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
}

// SignUpInput is the raw sign-up request.
type SignUpInput struct {
	Email                string
	Username             string
	Password             string
	PasswordConfirmation string
	FirstName            string
	LastName             string
	Phone                *string
}

// LoginResult carries the issued access token.
type LoginResult struct {
	User        *UserDTO `json:"user"`
	AccessToken string   `json:"access_token"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		IsVerified:  u.IsVerified,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func profileFromModels(u *models.User, p *models.Profile) *ProfileDTO {
	return &ProfileDTO{
		UserID:       u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Biography:    p.Biography,
		Picture:      p.Picture,
		RidesTaken:   p.RidesTaken,
		RidesOffered: p.RidesOffered,
		Reputation:   p.Reputation,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Email:        strings.ToLower(strings.TrimSpace(c.Email)),
		Username:     strings.TrimSpace(c.Username),
		PasswordHash: c.PasswordHash,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Phone:        c.Phone,
		IsActive:     true,
	}
}
