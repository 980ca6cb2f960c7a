package circles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/comparteride/circles-backend/internal/memberships"
	"github.com/comparteride/circles-backend/pkg/config"
	"github.com/comparteride/circles-backend/pkg/db"
	"github.com/comparteride/circles-backend/pkg/db/models"
	"github.com/comparteride/circles-backend/pkg/enums"
	pkgerrors "github.com/comparteride/circles-backend/pkg/errors"
	"github.com/comparteride/circles-backend/pkg/outbox"
	"github.com/comparteride/circles-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 25
	maxListLimit     = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes circle operations.
type Service interface {
	Create(ctx context.Context, creatorID uuid.UUID, input CreateCircleInput) (*CircleView, error)
	GetBySlug(ctx context.Context, slug string) (*CircleView, error)
	ListPublic(ctx context.Context, limit int) ([]CircleView, error)
	Update(ctx context.Context, callerID uuid.UUID, slug string, input UpdateCircleInput) (*CircleView, error)
	ListMembers(ctx context.Context, callerID uuid.UUID, slug string) ([]memberships.MemberView, error)
	RemoveMember(ctx context.Context, callerID uuid.UUID, slug string, targetUserID uuid.UUID) error
}

type service struct {
	tx          txRunner
	repo        *Repository
	memberships *memberships.Repository
	outbox      outboxPublisher
	cfg         config.InvitationsConfig
}

// NewService builds a circle service with the provided collaborators.
func NewService(tx txRunner, repo *Repository, membershipRepo *memberships.Repository, outbox outboxPublisher, cfg config.InvitationsConfig) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("circle repository required")
	}
	if membershipRepo == nil {
		return nil, fmt.Errorf("memberships repository required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:          tx,
		repo:        repo,
		memberships: membershipRepo,
		outbox:      outbox,
		cfg:         cfg,
	}, nil
}

// Create inserts the circle and makes the creator its first admin with the
// initial invitation quota.
func (s *service) Create(ctx context.Context, creatorID uuid.UUID, input CreateCircleInput) (*CircleView, error) {
	slug := strings.ToLower(strings.TrimSpace(input.SlugName))
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug name is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := validateLimit(input.IsLimited, input.MembersLimit); err != nil {
		return nil, err
	}

	circle := &models.Circle{
		SlugName:     slug,
		Name:         strings.TrimSpace(input.Name),
		About:        input.About,
		Picture:      input.Picture,
		IsPublic:     input.IsPublic,
		IsLimited:    input.IsLimited,
		MembersLimit: input.MembersLimit,
		CreatedBy:    creatorID,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, circle); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeValidation, "slug name already taken").WithDetails(map[string]any{"slug_name": slug})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create circle")
		}

		membership := &models.Membership{
			UserID:               creatorID,
			CircleID:             circle.ID,
			IsAdmin:              true,
			IsActive:             true,
			RemainingInvitations: s.cfg.InitialQuota,
			JoinedAt:             time.Now().UTC(),
		}
		if err := s.memberships.WithTx(tx).CreateMembership(ctx, membership); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create admin membership")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCircleCreated,
			AggregateType: enums.AggregateCircle,
			AggregateID:   circle.ID,
			Actor:         &outbox.ActorRef{UserID: creatorID, CircleID: &circle.ID},
			Data: payloads.CircleCreatedEvent{
				CircleID:  circle.ID,
				SlugName:  circle.SlugName,
				CreatedBy: creatorID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(circle), nil
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*CircleView, error) {
	circle, err := s.loadBySlug(ctx, s.repo, slug)
	if err != nil {
		return nil, err
	}
	return FromModel(circle), nil
}

func (s *service) ListPublic(ctx context.Context, limit int) ([]CircleView, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.repo.ListPublic(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list circles")
	}
	out := make([]CircleView, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

// Update applies admin edits. The slug is immutable.
func (s *service) Update(ctx context.Context, callerID uuid.UUID, slug string, input UpdateCircleInput) (*CircleView, error) {
	var updated *models.Circle
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		circle, err := s.loadBySlug(ctx, repo, slug)
		if err != nil {
			return err
		}
		if err := s.requireAdmin(ctx, s.memberships.WithTx(tx), callerID, circle.ID); err != nil {
			return err
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
			}
			circle.Name = name
		}
		if input.About != nil {
			circle.About = *input.About
		}
		if input.Picture != nil {
			circle.Picture = input.Picture
		}
		if input.IsPublic != nil {
			circle.IsPublic = *input.IsPublic
		}
		if input.IsLimited != nil {
			circle.IsLimited = *input.IsLimited
		}
		if input.MembersLimit != nil {
			circle.MembersLimit = *input.MembersLimit
		}
		if err := validateLimit(circle.IsLimited, circle.MembersLimit); err != nil {
			return err
		}

		if err := repo.Update(ctx, circle); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update circle")
		}
		updated = circle
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

// ListMembers is visible to active members only.
func (s *service) ListMembers(ctx context.Context, callerID uuid.UUID, slug string) ([]memberships.MemberView, error) {
	circle, err := s.loadBySlug(ctx, s.repo, slug)
	if err != nil {
		return nil, err
	}
	active, err := s.memberships.IsActiveMember(ctx, callerID, circle.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check membership")
	}
	if !active {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a member of this circle")
	}
	members, err := s.memberships.ListCircleMembers(ctx, circle.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list members")
	}
	return members, nil
}

// RemoveMember deactivates another member. Admins cannot remove themselves.
func (s *service) RemoveMember(ctx context.Context, callerID uuid.UUID, slug string, targetUserID uuid.UUID) error {
	if callerID == targetUserID {
		return pkgerrors.New(pkgerrors.CodeValidation, "admins cannot remove themselves")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		circle, err := s.loadBySlug(ctx, s.repo.WithTx(tx), slug)
		if err != nil {
			return err
		}
		memberRepo := s.memberships.WithTx(tx)
		if err := s.requireAdmin(ctx, memberRepo, callerID, circle.ID); err != nil {
			return err
		}

		target, err := memberRepo.GetMembership(ctx, targetUserID, circle.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if !target.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}
		if err := memberRepo.Deactivate(ctx, target.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate membership")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMemberRemoved,
			AggregateType: enums.AggregateCircle,
			AggregateID:   circle.ID,
			Actor:         &outbox.ActorRef{UserID: callerID, CircleID: &circle.ID},
			Data: payloads.MemberRemovedEvent{
				CircleID:  circle.ID,
				UserID:    targetUserID,
				RemovedBy: callerID,
			},
		})
	})
}

func (s *service) loadBySlug(ctx context.Context, repo *Repository, slug string) (*models.Circle, error) {
	circle, err := repo.FindBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "circle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load circle")
	}
	return circle, nil
}

func (s *service) requireAdmin(ctx context.Context, repo *memberships.Repository, userID, circleID uuid.UUID) error {
	membership, err := repo.GetMembership(ctx, userID, circleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "circle admin required")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if !membership.IsActive || !membership.IsAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "circle admin required")
	}
	return nil
}

func validateLimit(isLimited bool, limit int) error {
	if isLimited && limit <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "members limit must be positive for limited circles")
	}
	if limit < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "members limit cannot be negative")
	}
	return nil
}
