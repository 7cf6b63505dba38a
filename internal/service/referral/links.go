package referral

import (
	"context"

	"github.com/google/uuid"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/internal/service/permission"
	apperrors "github.com/partaj/referral-api/pkg/errors"
)

// AddRequester links a user to the referral as requester.
func (s *Service) AddRequester(ctx context.Context, actorID, referralID, userID uuid.UUID, notifications model.ReferralUserLinkNotificationsType) (*model.Referral, error) {
	return s.addLink(ctx, actorID, referralID, userID, model.ReferralRoleRequester, notifications)
}

// AddObserver links a user to the referral as observer.
func (s *Service) AddObserver(ctx context.Context, actorID, referralID, userID uuid.UUID, notifications model.ReferralUserLinkNotificationsType) (*model.Referral, error) {
	return s.addLink(ctx, actorID, referralID, userID, model.ReferralRoleObserver, notifications)
}

func (s *Service) addLink(ctx context.Context, actorID, referralID, userID uuid.UUID, role model.ReferralUserLinkRole, notifications model.ReferralUserLinkNotificationsType) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.checkLinkActor(ctx, actorID, referral); err != nil {
		return nil, err
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, apperrors.NotFound("user", err)
	}

	for _, link := range referral.UserLinks {
		if link.UserID == userID && link.Role == role {
			return nil, apperrors.Conflict("user is already linked to this referral in that role")
		}
	}
	if notifications == "" {
		notifications = model.NotificationsAll
	}

	verb := model.ActivityAddedRequester
	if role == model.ReferralRoleObserver {
		verb = model.ActivityAddedObserver
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		link := &model.ReferralUserLink{
			ReferralID:    referralID,
			UserID:        userID,
			Role:          role,
			Notifications: notifications,
		}
		if err := r.Referrals.AddUserLink(ctx, link); err != nil {
			return err
		}
		return s.activities.Record(ctx, r, referralID, actorID, verb, model.ItemRef{}, "")
	})
	if err != nil {
		return nil, err
	}

	return s.referrals.Get(ctx, referralID)
}

// RemoveRequester unlinks a requester. A sent referral keeps at least one.
func (s *Service) RemoveRequester(ctx context.Context, actorID, referralID, userID uuid.UUID) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.checkLinkActor(ctx, actorID, referral); err != nil {
		return nil, err
	}

	requesters := 0
	linked := false
	for _, link := range referral.UserLinks {
		if link.Role != model.ReferralRoleRequester {
			continue
		}
		requesters++
		if link.UserID == userID {
			linked = true
		}
	}
	if !linked {
		return nil, apperrors.NotFound("requester", nil)
	}
	if requesters == 1 && referral.State != model.ReferralStateDraft {
		return nil, apperrors.BadRequest("the last requester cannot be removed from a sent referral", nil)
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.RemoveUserLink(ctx, referralID, userID, model.ReferralRoleRequester); err != nil {
			return err
		}
		return s.activities.Record(ctx, r, referralID, actorID, model.ActivityRemovedRequester, model.ItemRef{}, "")
	})
	if err != nil {
		return nil, err
	}

	return s.referrals.Get(ctx, referralID)
}

// RemoveObserver unlinks an observer.
func (s *Service) RemoveObserver(ctx context.Context, actorID, referralID, userID uuid.UUID) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.checkLinkActor(ctx, actorID, referral); err != nil {
		return nil, err
	}

	linked := false
	for _, link := range referral.UserLinks {
		if link.UserID == userID && link.Role == model.ReferralRoleObserver {
			linked = true
			break
		}
	}
	if !linked {
		return nil, apperrors.NotFound("observer", nil)
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.RemoveUserLink(ctx, referralID, userID, model.ReferralRoleObserver); err != nil {
			return err
		}
		return s.activities.Record(ctx, r, referralID, actorID, model.ActivityRemovedObserver, model.ItemRef{}, "")
	})
	if err != nil {
		return nil, err
	}

	return s.referrals.Get(ctx, referralID)
}

// checkLinkActor allows linked users and members of linked units to manage
// the request-side links.
func (s *Service) checkLinkActor(ctx context.Context, actorID uuid.UUID, referral *model.Referral) error {
	if permission.IsLinked(referral, actorID) {
		return nil
	}
	membership, err := s.perms.ResolveMembership(ctx, actorID, referral)
	if err != nil {
		return err
	}
	if membership == nil {
		return apperrors.Forbidden("user has no access to this referral")
	}
	return nil
}
