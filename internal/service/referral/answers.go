package referral

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/internal/service/notification"
	apperrors "github.com/partaj/referral-api/pkg/errors"
)

// CreateAnswer starts a draft answer. When the referral is still RECEIVED or
// ASSIGNED the author is auto-assigned and the referral moves to PROCESSING,
// keeping "a referral being worked on has at least one assignee" auditable.
func (s *Service) CreateAnswer(ctx context.Context, actorID, referralID uuid.UUID, content string) (*model.ReferralAnswer, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if !referral.IsOpen() {
		return nil, apperrors.BadRequest("referral no longer accepts answers", nil)
	}
	membership, err := s.perms.RequireMembership(ctx, actorID, referral)
	if err != nil {
		return nil, err
	}

	answer := &model.ReferralAnswer{
		ReferralID: referralID,
		AuthorID:   actorID,
		State:      model.AnswerStateDraft,
		Content:    content,
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Answers.Create(ctx, answer); err != nil {
			return err
		}

		if referral.State == model.ReferralStateReceived || referral.State == model.ReferralStateAssigned {
			assigned := false
			for _, assignment := range referral.Assignments {
				if assignment.AssigneeID == actorID {
					assigned = true
					break
				}
			}
			if !assigned {
				assignment := &model.ReferralAssignment{
					ReferralID: referralID,
					AssigneeID: actorID,
					UnitID:     membership.UnitID,
					CreatedBy:  actorID,
				}
				if err := r.Referrals.AddAssignment(ctx, assignment); err != nil {
					return err
				}
			}
			referral.State = model.ReferralStateProcessing
			if err := r.Referrals.Update(ctx, referral); err != nil {
				return err
			}
		}

		if err := s.activities.Record(ctx, r, referralID, actorID, model.ActivityDraftAnswered,
			model.NewItemRef(model.ItemKindAnswer, answer.ID), ""); err != nil {
			return err
		}
		return s.indexer.EnqueueReferralUpserted(ctx, r, referral)
	})
	if err != nil {
		return nil, err
	}

	return answer, nil
}

// UpdateAnswer edits a draft's content, author-only.
func (s *Service) UpdateAnswer(ctx context.Context, actorID, answerID uuid.UUID, content string) (*model.ReferralAnswer, error) {
	answer, err := s.answers.Get(ctx, answerID)
	if err != nil {
		return nil, apperrors.NotFound("answer", err)
	}
	if answer.AuthorID != actorID {
		return nil, apperrors.Forbidden("only the author may edit this answer")
	}
	if answer.State != model.AnswerStateDraft {
		return nil, apperrors.BadRequest("only draft answers can be edited", nil)
	}

	answer.Content = content
	if err := s.answers.Update(ctx, answer); err != nil {
		return nil, fmt.Errorf("failed to update answer: %w", err)
	}
	return answer, nil
}

// RequestAnswerValidation asks one validator to review a draft answer. Asking
// the same validator while their request is still open is a conflict.
func (s *Service) RequestAnswerValidation(ctx context.Context, actorID, referralID, answerID, validatorID uuid.UUID) (*model.ReferralAnswerValidationRequest, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionRequestAnswerValidation, referral); err != nil {
		return nil, err
	}
	if _, err := s.perms.RequireMembership(ctx, actorID, referral); err != nil {
		return nil, err
	}

	answer, err := s.answers.Get(ctx, answerID)
	if err != nil {
		return nil, apperrors.NotFound("answer", err)
	}
	if answer.ReferralID != referralID {
		return nil, apperrors.BadRequest("answer does not belong to this referral", nil)
	}
	if answer.State != model.AnswerStateDraft {
		return nil, apperrors.BadRequest("only draft answers can be sent to validation", nil)
	}

	validator, err := s.users.Get(ctx, validatorID)
	if err != nil {
		return nil, apperrors.NotFound("user", err)
	}

	if _, err := s.answers.GetOpenValidationRequest(ctx, answerID, validatorID); err == nil {
		return nil, apperrors.BadRequest(
			fmt.Sprintf("%s was already requested to validate this answer", validator.FullName()), nil)
	}

	request := &model.ReferralAnswerValidationRequest{
		AnswerID:    answerID,
		ValidatorID: validatorID,
		RequesterID: actorID,
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Answers.CreateValidationRequest(ctx, request); err != nil {
			return err
		}

		if referral.State == model.ReferralStateProcessing {
			referral.State = model.ReferralStateInValidation
			if err := r.Referrals.Update(ctx, referral); err != nil {
				return err
			}
		}

		if err := s.activities.Record(ctx, r, referralID, actorID, model.ActivityValidationRequested,
			model.NewItemRef(model.ItemKindValidationRequest, request.ID), ""); err != nil {
			return err
		}

		recipient, err := s.recipientFor(ctx, referral, validatorID)
		if err != nil {
			return err
		}
		actor, err := s.users.Get(ctx, actorID)
		if err != nil {
			return err
		}
		if err := s.notifier.Dispatch(ctx, r, notification.Batch{
			NotifierID: actorID,
			Referral:   referral,
			Type:       model.NotificationValidationRequested,
			Content:    answer.Content,
			Item:       model.NewItemRef(model.ItemKindValidationRequest, request.ID),
			Recipients: []notification.Recipient{recipient},
			EmailParams: map[string]string{
				"title":          referral.Title,
				"requester_name": actor.FullName(),
			},
		}); err != nil {
			return err
		}

		return s.indexer.EnqueueReferralUpserted(ctx, r, referral)
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionRequestAnswerValidation)
	request.ValidatorFullName = validator.FullName()
	return request, nil
}

// PerformAnswerValidation closes a validation request exactly once with a
// verdict, by the requested validator only.
func (s *Service) PerformAnswerValidation(ctx context.Context, actorID, referralID, requestID uuid.UUID, validated bool, comment string) (*model.ReferralAnswerValidationResponse, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionPerformAnswerValidation, referral); err != nil {
		return nil, err
	}

	request, err := s.answers.GetValidationRequest(ctx, requestID)
	if err != nil {
		return nil, apperrors.NotFound("validation request", err)
	}
	if request.ValidatorID != actorID {
		return nil, apperrors.Forbidden("only the requested validator may respond")
	}
	if _, err := s.answers.GetValidationResponse(ctx, requestID); err == nil {
		return nil, apperrors.Conflict("validation request has already been answered")
	}

	state := model.ValidationNotValidated
	activityVerb := model.ActivityValidationDenied
	if validated {
		state = model.ValidationValidated
		activityVerb = model.ActivityValidated
	}

	response := &model.ReferralAnswerValidationResponse{
		RequestID: requestID,
		State:     state,
		Comment:   comment,
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Answers.CreateValidationResponse(ctx, response); err != nil {
			return err
		}
		if err := s.activities.Record(ctx, r, referralID, actorID, activityVerb,
			model.NewItemRef(model.ItemKindValidationRequest, requestID), comment); err != nil {
			return err
		}

		recipient, err := s.recipientFor(ctx, referral, request.RequesterID)
		if err != nil {
			return err
		}
		actor, err := s.users.Get(ctx, actorID)
		if err != nil {
			return err
		}
		return s.notifier.Dispatch(ctx, r, notification.Batch{
			NotifierID: actorID,
			Referral:   referral,
			Type:       model.NotificationValidationPerformed,
			Content:    comment,
			Item:       model.NewItemRef(model.ItemKindValidationRequest, requestID),
			Recipients: []notification.Recipient{recipient},
			EmailParams: map[string]string{
				"title":          referral.Title,
				"validator_name": actor.FullName(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionPerformAnswerValidation)
	return response, nil
}

// PublishAnswer turns a draft into the published answer: a PUBLISHED copy is
// created, the draft points at it, and the referral is ANSWERED.
func (s *Service) PublishAnswer(ctx context.Context, actorID, referralID, answerID uuid.UUID) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionPublishAnswer, referral); err != nil {
		return nil, err
	}
	if _, err := s.perms.RequireMembership(ctx, actorID, referral); err != nil {
		return nil, err
	}

	draft, err := s.answers.Get(ctx, answerID)
	if err != nil {
		return nil, apperrors.NotFound("answer", err)
	}
	if draft.ReferralID != referralID {
		return nil, apperrors.BadRequest("answer does not belong to this referral", nil)
	}
	if draft.State != model.AnswerStateDraft {
		return nil, apperrors.BadRequest("answer is already published", nil)
	}

	published := &model.ReferralAnswer{
		ReferralID: referralID,
		AuthorID:   draft.AuthorID,
		State:      model.AnswerStatePublished,
		Content:    draft.Content,
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Answers.Create(ctx, published); err != nil {
			return err
		}
		draft.PublishedAnswerID = &published.ID
		if err := r.Answers.Update(ctx, draft); err != nil {
			return err
		}

		referral.State = model.ReferralStateAnswered
		if err := r.Referrals.Update(ctx, referral); err != nil {
			return err
		}

		if err := s.activities.Record(ctx, r, referralID, actorID, model.ActivityAnswered,
			model.NewItemRef(model.ItemKindAnswer, published.ID), ""); err != nil {
			return err
		}

		requesters, err := s.requesterRecipients(ctx, referral, actorID)
		if err != nil {
			return err
		}
		if err := s.notifier.Dispatch(ctx, r, notification.Batch{
			NotifierID: actorID,
			Referral:   referral,
			Type:       model.NotificationReferralAnswered,
			Content:    published.Content,
			Item:       model.NewItemRef(model.ItemKindAnswer, published.ID),
			Recipients: requesters,
			EmailParams: map[string]string{
				"title": referral.Title,
			},
		}); err != nil {
			return err
		}

		return s.indexer.EnqueueReferralUpserted(ctx, r, referral)
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionPublishAnswer)
	return s.referrals.Get(ctx, referralID)
}

// ListAnswers returns the referral's answers, oldest first.
func (s *Service) ListAnswers(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralAnswer, error) {
	answers, err := s.answers.ListByReferral(ctx, referralID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	return answers, nil
}
