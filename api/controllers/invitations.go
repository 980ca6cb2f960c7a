package controllers

import (
	"net/http"
	"strings"

	"github.com/comparteride/circles-backend/api/responses"
	"github.com/comparteride/circles-backend/api/validators"
	"github.com/comparteride/circles-backend/internal/circles"
	"github.com/comparteride/circles-backend/internal/invitations"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/logger"
)

type redeemInvitationRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type invitationCodesResponse struct {
	Circle string   `json:"circle"`
	Codes  []string `json:"codes"`
}

// InvitationsIssue tops up the caller's invitation codes for the circle in the path.
func InvitationsIssue(circleSvc circles.Service, svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if circleSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invitation service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		circle, err := circleFromPath(r, circleSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		codes, err := svc.IssueInvitations(r.Context(), circle.ID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, invitationCodesResponse{Circle: circle.SlugName, Codes: codes})
	}
}

func InvitationsList(circleSvc circles.Service, svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if circleSvc == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invitation service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		circle, err := circleFromPath(r, circleSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		codes, err := svc.ListInvitations(r.Context(), circle.ID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, invitationCodesResponse{Circle: circle.SlugName, Codes: codes})
	}
}

// InvitationRedeem joins the caller to the circle the code belongs to.
func InvitationRedeem(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invitation service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body redeemInvitationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		membership, err := svc.RedeemInvitation(r.Context(), strings.TrimSpace(body.Code), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, membership)
	}
}

func circleFromPath(r *http.Request, svc circles.Service) (*circles.CircleView, error) {
	slug, err := pathSlug(r)
	if err != nil {
		return nil, err
	}
	return svc.GetBySlug(r.Context(), slug)
}
