package referral

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/internal/service/activity"
	"github.com/partaj/referral-api/internal/service/indexer"
	"github.com/partaj/referral-api/internal/service/notification"
	"github.com/partaj/referral-api/internal/service/permission"
	apperrors "github.com/partaj/referral-api/pkg/errors"
	"github.com/partaj/referral-api/pkg/metrics"
)

// Service drives the referral lifecycle: draft CRUD, the guarded state
// transitions, answers and their validation, and the request-side user links.
// Every transition runs inside one transaction together with its activity
// entry, notifications and index-sync event, so a rejected request leaves no
// trace.
type Service struct {
	uow        repository.UnitOfWork
	referrals  repository.ReferralRepository
	users      repository.UserRepository
	units      repository.UnitRepository
	answers    repository.AnswerRepository
	perms      *permission.Service
	notifier   *notification.Service
	activities *activity.Service
	indexer    *indexer.Service
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func NewService(
	uow repository.UnitOfWork,
	repos repository.Repos,
	perms *permission.Service,
	notifier *notification.Service,
	activities *activity.Service,
	idx *indexer.Service,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		uow:        uow,
		referrals:  repos.Referrals,
		users:      repos.Users,
		units:      repos.Units,
		answers:    repos.Answers,
		perms:      perms,
		notifier:   notifier,
		activities: activities,
		indexer:    idx,
		metrics:    m,
		logger:     logger,
	}
}

// CreateDraftParams carries the free-text fields of a new draft.
type CreateDraftParams struct {
	Title          string
	Object         string
	Question       string
	Context        string
	PriorWork      string
	TopicID        *uuid.UUID
	UrgencyLevelID *uuid.UUID
}

// CreateDraft opens a new DRAFT referral with the actor as its requester.
func (s *Service) CreateDraft(ctx context.Context, actorID uuid.UUID, params CreateDraftParams) (*model.Referral, error) {
	referral := &model.Referral{
		Title:          params.Title,
		Object:         params.Object,
		Question:       params.Question,
		Context:        params.Context,
		PriorWork:      params.PriorWork,
		State:          model.ReferralStateDraft,
		TopicID:        params.TopicID,
		UrgencyLevelID: params.UrgencyLevelID,
	}

	err := s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.Create(ctx, referral); err != nil {
			return err
		}
		link := &model.ReferralUserLink{
			ReferralID:    referral.ID,
			UserID:        actorID,
			Role:          model.ReferralRoleRequester,
			Notifications: model.NotificationsAll,
		}
		return r.Referrals.AddUserLink(ctx, link)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}

	return s.referrals.Get(ctx, referral.ID)
}

// UpdateDraft mutates the free-text fields of a referral still in DRAFT.
func (s *Service) UpdateDraft(ctx context.Context, actorID, referralID uuid.UUID, params CreateDraftParams) (*model.Referral, error) {
	referral, err := s.getOwned(ctx, actorID, referralID)
	if err != nil {
		return nil, err
	}
	if referral.State != model.ReferralStateDraft {
		return nil, apperrors.BadRequest("only draft referrals can be edited freely", nil)
	}

	referral.Title = params.Title
	referral.Object = params.Object
	referral.Question = params.Question
	referral.Context = params.Context
	referral.PriorWork = params.PriorWork
	referral.TopicID = params.TopicID
	referral.UrgencyLevelID = params.UrgencyLevelID

	if err := s.referrals.Update(ctx, referral); err != nil {
		return nil, fmt.Errorf("failed to update draft: %w", err)
	}
	return s.referrals.Get(ctx, referralID)
}

// Get returns a referral visible to the actor: a linked user or a member of a
// linked unit.
func (s *Service) Get(ctx context.Context, actorID, referralID uuid.UUID) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}

	if permission.IsLinked(referral, actorID) {
		return referral, nil
	}
	membership, err := s.perms.ResolveMembership(ctx, actorID, referral)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, apperrors.Forbidden("user has no access to this referral")
	}
	return referral, nil
}

// List returns referrals matching the filters.
func (s *Service) List(ctx context.Context, filters *model.ReferralFilters) ([]*model.Referral, error) {
	referrals, err := s.referrals.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return referrals, nil
}

// getOwned loads a referral and checks the actor is one of its requesters.
func (s *Service) getOwned(ctx context.Context, actorID, referralID uuid.UUID) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if !permission.IsRequester(referral, actorID) {
		return nil, apperrors.Forbidden("only a requester may perform this action")
	}
	return referral, nil
}

// guardTransition rejects a transition not allowed from the current state
// with the exact error message clients assert on.
func (s *Service) guardTransition(t model.ReferralTransition, referral *model.Referral) error {
	if !model.CanApply(t, referral.State) {
		s.metrics.TransitionDenied.WithLabelValues(string(t), string(referral.State)).Inc()
		return apperrors.InvalidTransition(string(t), string(referral.State))
	}
	return nil
}

func (s *Service) observeTransition(t model.ReferralTransition) {
	s.metrics.TransitionsTotal.WithLabelValues(string(t)).Inc()
}

// recipientFor wraps one user as a notification recipient, honoring the
// preference carried by their referral link when they have one.
func (s *Service) recipientFor(ctx context.Context, referral *model.Referral, userID uuid.UUID) (notification.Recipient, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return notification.Recipient{}, apperrors.NotFound("user", err)
	}
	pref := model.NotificationsAll
	for _, link := range referral.UserLinks {
		if link.UserID == userID {
			pref = link.Notifications
			break
		}
	}
	return notification.Recipient{
		UserID:     user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		Preference: pref,
	}, nil
}

// requesterRecipients are the referral's requesters and observers, minus the
// actor, with their link preferences.
func (s *Service) requesterRecipients(ctx context.Context, referral *model.Referral, excludeID uuid.UUID) ([]notification.Recipient, error) {
	var ids []uuid.UUID
	prefs := make(map[uuid.UUID]model.ReferralUserLinkNotificationsType)
	for _, link := range referral.UserLinks {
		if link.UserID == excludeID {
			continue
		}
		ids = append(ids, link.UserID)
		prefs[link.UserID] = link.Notifications
	}
	if len(ids) == 0 {
		return nil, nil
	}

	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}
	recipients := make([]notification.Recipient, 0, len(users))
	for _, user := range users {
		recipients = append(recipients, notification.Recipient{
			UserID:     user.ID,
			Email:      user.Email,
			FirstName:  user.FirstName,
			Preference: prefs[user.ID],
		})
	}
	return recipients, nil
}

// assigneeRecipients are the current assignees, minus the actor.
func (s *Service) assigneeRecipients(ctx context.Context, referral *model.Referral, excludeID uuid.UUID) ([]notification.Recipient, error) {
	var ids []uuid.UUID
	for _, assignment := range referral.Assignments {
		if assignment.AssigneeID == excludeID {
			continue
		}
		ids = append(ids, assignment.AssigneeID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}
	recipients := make([]notification.Recipient, 0, len(users))
	for _, user := range users {
		recipients = append(recipients, notification.Recipient{
			UserID:     user.ID,
			Email:      user.Email,
			FirstName:  user.FirstName,
			Preference: model.NotificationsAll,
		})
	}
	return recipients, nil
}
