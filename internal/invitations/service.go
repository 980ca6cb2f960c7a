package invitations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comparteride/circles-backend/internal/circles"
	"github.com/comparteride/circles-backend/internal/memberships"
	"github.com/comparteride/circles-backend/pkg/config"
	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/comparteride/circles-backend/pkg/enums"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/logger"
	"github.com/comparteride/circles-backend/pkg/metrics"
	"github.com/comparteride/circles-backend/pkg/outbox"
	"github.com/comparteride/circles-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service issues and redeems circle invitation codes.
type Service interface {
	IssueInvitations(ctx context.Context, circleID, issuerID uuid.UUID) ([]string, error)
	RedeemInvitation(ctx context.Context, code string, redeemerID uuid.UUID) (*memberships.MembershipView, error)
	ListInvitations(ctx context.Context, circleID, issuerID uuid.UUID) ([]string, error)
}

// ServiceParams wires the invitation service.
type ServiceParams struct {
	Tx          txRunner
	Repo        *Repository
	Memberships *memberships.Repository
	Circles     *circles.Repository
	Outbox      outboxPublisher
	Logger      *logger.Logger
	Metrics     *metrics.RideMetrics
	Config      config.InvitationsConfig
	Now         func() time.Time
}

type service struct {
	tx          txRunner
	repo        *Repository
	memberships *memberships.Repository
	circles     *circles.Repository
	outbox      outboxPublisher
	logg        *logger.Logger
	metrics     *metrics.RideMetrics
	generate    codeGenerator
	maxAttempts int
	now         func() time.Time
}

// NewService builds an invitation service with the provided collaborators.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Repo == nil:
		return nil, fmt.Errorf("invitation repository required")
	case params.Memberships == nil:
		return nil, fmt.Errorf("memberships repository required")
	case params.Circles == nil:
		return nil, fmt.Errorf("circle repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:          params.Tx,
		repo:        params.Repo,
		memberships: params.Memberships,
		circles:     params.Circles,
		outbox:      params.Outbox,
		logg:        params.Logger,
		metrics:     params.Metrics,
		generate:    newCodeGenerator(params.Config.CodeLength),
		maxAttempts: params.Config.MaxAttempts,
		now:         now,
	}, nil
}

// IssueInvitations tops the issuer's outstanding codes up to their remaining
// quota and returns every unused code they hold. Outstanding codes count
// against the quota, so repeated calls never mint more than it allows.
func (s *service) IssueInvitations(ctx context.Context, circleID, issuerID uuid.UUID) ([]string, error) {
	var codes []string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		membership, err := s.memberships.WithTx(tx).LockMembership(ctx, issuerID, circleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock membership")
		}
		if !membership.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}

		repo := s.repo.WithTx(tx)
		outstanding, err := repo.ListOutstanding(ctx, circleID, issuerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list outstanding invitations")
		}

		missing := membership.RemainingInvitations - len(outstanding)
		if missing < 0 {
			missing = 0
		}
		fresh, err := issueCodes(ctx, repo, s.generate, s.maxAttempts, circleID, issuerID, missing)
		if err != nil {
			return err
		}

		codes = make([]string, 0, len(outstanding)+len(fresh))
		for _, inv := range outstanding {
			codes = append(codes, inv.Code)
		}
		codes = append(codes, fresh...)

		if len(fresh) == 0 {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvitationsIssued,
			AggregateType: enums.AggregateCircle,
			AggregateID:   circleID,
			Actor:         &outbox.ActorRef{UserID: issuerID, CircleID: &circleID},
			Data: payloads.InvitationsIssuedEvent{
				CircleID: circleID,
				IssuerID: issuerID,
				Issued:   len(fresh),
				Pending:  len(codes),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// RedeemInvitation spends a code and admits the redeemer to its circle in
// one transaction. Of two concurrent redeemers of one code exactly one wins;
// the other sees NotFound.
func (s *service) RedeemInvitation(ctx context.Context, code string, redeemerID uuid.UUID) (*memberships.MembershipView, error) {
	var view *memberships.MembershipView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		memberRepo := s.memberships.WithTx(tx)

		invitation, err := repo.LockByCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invitation")
		}
		if invitation.Used {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invitation already used")
		}

		circle, err := s.circles.WithTx(tx).FindByID(ctx, invitation.CircleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "circle not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load circle")
		}

		existing, err := memberRepo.GetMembership(ctx, redeemerID, circle.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if existing != nil && existing.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "already a member of this circle")
		}

		if circle.IsLimited {
			count, err := memberRepo.CountActiveMembers(ctx, circle.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count members")
			}
			if count >= int64(circle.MembersLimit) {
				return pkgerrors.New(pkgerrors.CodeValidation, "circle has reached its member limit")
			}
		}

		issuer := invitation.IssuedBy
		issuerMembership, err := memberRepo.GetMembership(ctx, issuer, circle.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invitation is no longer valid")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load issuer membership")
		}
		if !issuerMembership.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invitation is no longer valid")
		}

		now := s.now()
		won, err := repo.MarkUsed(ctx, invitation.ID, redeemerID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark invitation used")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invitation already used")
		}

		membership, err := s.admit(ctx, memberRepo, existing, redeemerID, circle.ID, issuer, now)
		if err != nil {
			return err
		}

		if err := memberRepo.RecordInvitationUsed(ctx, issuerMembership.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record invitation use")
		}

		view = memberships.ToView(membership)
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvitationRedeemed,
			AggregateType: enums.AggregateInvitation,
			AggregateID:   invitation.ID,
			Actor:         &outbox.ActorRef{UserID: redeemerID, CircleID: &circle.ID},
			Data: payloads.InvitationRedeemedEvent{
				InvitationID: invitation.ID,
				CircleID:     circle.ID,
				IssuerID:     issuer,
				RedeemerID:   redeemerID,
				MembershipID: membership.ID,
			},
		})
	})
	if err != nil {
		s.metrics.IncRedemption(metrics.OutcomeRejected)
		return nil, err
	}
	s.metrics.IncRedemption(metrics.OutcomeAdmitted)
	if s.logg != nil {
		logCtx := s.logg.WithCircleID(ctx, view.CircleID.String())
		s.logg.Info(s.logg.WithField(logCtx, "membership_id", view.ID.String()), "invitation redeemed")
	}
	return view, nil
}

// admit creates the redeemer's membership or reactivates a previous one.
func (s *service) admit(ctx context.Context, repo *memberships.Repository, existing *models.Membership, userID, circleID, issuer uuid.UUID, now time.Time) (*models.Membership, error) {
	if existing != nil {
		if err := repo.Reactivate(ctx, existing.ID, &issuer, 0); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reactivate membership")
		}
		reloaded, err := repo.GetMembership(ctx, userID, circleID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload membership")
		}
		return reloaded, nil
	}

	membership := &models.Membership{
		UserID:    userID,
		CircleID:  circleID,
		InvitedBy: &issuer,
		IsActive:  true,
		JoinedAt:  now,
	}
	if err := repo.CreateMembership(ctx, membership); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create membership")
	}
	return membership, nil
}

// ListInvitations returns the issuer's unused codes without minting new ones.
func (s *service) ListInvitations(ctx context.Context, circleID, issuerID uuid.UUID) ([]string, error) {
	active, err := s.memberships.IsActiveMember(ctx, issuerID, circleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check membership")
	}
	if !active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
	}
	rows, err := s.repo.ListOutstanding(ctx, circleID, issuerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invitations")
	}
	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, row.Code)
	}
	return codes, nil
}
