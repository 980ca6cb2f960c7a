package controllers

import (
	"net/http"

	"github.com/comparteride/circles-backend/api/responses"
	"github.com/comparteride/circles-backend/api/validators"
	"github.com/comparteride/circles-backend/internal/circles"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/logger"
)

const maxAboutLength = 255

type createCircleRequest struct {
	SlugName     string  `json:"slug_name" validate:"required,min=3,max=40,slug"`
	Name         string  `json:"name" validate:"required,max=140"`
	About        string  `json:"about" validate:"max=255"`
	Picture      *string `json:"picture,omitempty" validate:"omitempty,url"`
	IsPublic     bool    `json:"is_public"`
	IsLimited    bool    `json:"is_limited"`
	MembersLimit int     `json:"members_limit" validate:"min=0"`
}

func (b createCircleRequest) toInput() circles.CreateCircleInput {
	return circles.CreateCircleInput{
		SlugName:     b.SlugName,
		Name:         validators.SanitizeString(b.Name, 140),
		About:        validators.SanitizeString(b.About, maxAboutLength),
		Picture:      b.Picture,
		IsPublic:     b.IsPublic,
		IsLimited:    b.IsLimited,
		MembersLimit: b.MembersLimit,
	}
}

type updateCircleRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1,max=140"`
	About        *string `json:"about,omitempty" validate:"omitempty,max=255"`
	Picture      *string `json:"picture,omitempty" validate:"omitempty,url"`
	IsPublic     *bool   `json:"is_public,omitempty"`
	IsLimited    *bool   `json:"is_limited,omitempty"`
	MembersLimit *int    `json:"members_limit,omitempty" validate:"omitempty,min=0"`
}

func (b updateCircleRequest) toInput() circles.UpdateCircleInput {
	return circles.UpdateCircleInput{
		Name:         b.Name,
		About:        b.About,
		Picture:      b.Picture,
		IsPublic:     b.IsPublic,
		IsLimited:    b.IsLimited,
		MembersLimit: b.MembersLimit,
	}
}

func CircleList(svc circles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "circle service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 25, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListPublic(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// CircleCreate creates a circle owned by the caller, who becomes its first admin.
func CircleCreate(svc circles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "circle service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createCircleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		circle, err := svc.Create(r.Context(), userID, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, circle)
	}
}

func CircleGet(svc circles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "circle service unavailable"))
			return
		}

		slug, err := pathSlug(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		circle, err := svc.GetBySlug(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, circle)
	}
}

func CircleUpdate(svc circles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "circle service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		slug, err := pathSlug(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateCircleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		circle, err := svc.Update(r.Context(), userID, slug, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, circle)
	}
}

func CircleMembers(svc circles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "circle service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		slug, err := pathSlug(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		members, err := svc.ListMembers(r.Context(), userID, slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, members)
	}
}

// CircleRemoveMember deactivates a membership; only circle admins may call it.
func CircleRemoveMember(svc circles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "circle service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		slug, err := pathSlug(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		targetID, err := pathUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveMember(r.Context(), userID, slug, targetID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
