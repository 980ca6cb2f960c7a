package ratings

import (
	"time"

	"github.com/google/uuid"

	"github.com/comparteride/circles-backend/pkg/db/models"
)

type RatingView struct {
	ID           uuid.UUID `json:"id"`
	RideID       uuid.UUID `json:"ride_id"`
	RatingUserID uuid.UUID `json:"rating_user_id"`
	RatedUserID  uuid.UUID `json:"rated_user_id"`
	Score        int       `json:"rating"`
	Comments     string    `json:"comments"`
	CreatedAt    time.Time `json:"created_at"`
}

func FromModel(r models.Rating) RatingView {
	return RatingView{
		ID:           r.ID,
		RideID:       r.RideID,
		RatingUserID: r.RatingUserID,
		RatedUserID:  r.RatedUserID,
		Score:        r.Score,
		Comments:     r.Comments,
		CreatedAt:    r.CreatedAt,
	}
}
