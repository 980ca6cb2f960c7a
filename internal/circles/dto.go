package circles

import (
	"time"

	"github.com/google/uuid"

	"github.com/comparteride/circles-backend/pkg/db/models"
)

// CircleView exposes circle data in API responses.
type CircleView struct {
	ID           uuid.UUID `json:"id"`
	SlugName     string    `json:"slug_name"`
	Name         string    `json:"name"`
	About        string    `json:"about"`
	Picture      *string   `json:"picture,omitempty"`
	IsPublic     bool      `json:"is_public"`
	Verified     bool      `json:"verified"`
	IsLimited    bool      `json:"is_limited"`
	MembersLimit int       `json:"members_limit"`
	RidesOffered int       `json:"rides_offered"`
	RidesTaken   int       `json:"rides_taken"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateCircleInput holds creation-time data for a new circle.
type CreateCircleInput struct {
	SlugName     string
	Name         string
	About        string
	Picture      *string
	IsPublic     bool
	IsLimited    bool
	MembersLimit int
}

// UpdateCircleInput captures the fields admins may change. Nil means unchanged.
type UpdateCircleInput struct {
	Name         *string
	About        *string
	Picture      *string
	IsPublic     *bool
	IsLimited    *bool
	MembersLimit *int
}

// FromModel maps the persisted circle into a view.
func FromModel(m *models.Circle) *CircleView {
	if m == nil {
		return nil
	}
	return &CircleView{
		ID:           m.ID,
		SlugName:     m.SlugName,
		Name:         m.Name,
		About:        m.About,
		Picture:      m.Picture,
		IsPublic:     m.IsPublic,
		Verified:     m.Verified,
		IsLimited:    m.IsLimited,
		MembersLimit: m.MembersLimit,
		RidesOffered: m.RidesOffered,
		RidesTaken:   m.RidesTaken,
		CreatedAt:    m.CreatedAt,
	}
}
