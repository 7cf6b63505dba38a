package referral

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/partaj/referral-api/internal/email"
	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/internal/service/notification"
	"github.com/partaj/referral-api/internal/service/permission"
	apperrors "github.com/partaj/referral-api/pkg/errors"
)

// Send validates the draft's required fields and moves it to RECEIVED,
// linking the unit competent for its topic.
func (s *Service) Send(ctx context.Context, actorID, referralID uuid.UUID) (*model.Referral, error) {
	referral, err := s.getOwned(ctx, actorID, referralID)
	if err != nil {
		return nil, err
	}
	if err := s.guardTransition(model.TransitionSend, referral); err != nil {
		return nil, err
	}

	fields := apperrors.NewFieldErrors()
	if referral.Object == "" {
		fields.Add("object", "object is required")
	}
	if referral.Question == "" {
		fields.Add("question", "question is required")
	}
	if referral.Context == "" {
		fields.Add("context", "context is required")
	}
	if referral.TopicID == nil {
		fields.Add("topic", "topic is required")
	}

	var urgency *model.ReferralUrgency
	if referral.UrgencyLevelID == nil {
		fields.Add("urgency_level", "urgency level is required")
	} else {
		urgency, err = s.referrals.GetUrgency(ctx, *referral.UrgencyLevelID)
		if err != nil {
			fields.Add("urgency_level", "urgency level does not exist")
		} else if urgency.RequiresJustification && referral.UrgencyExplanation == "" {
			fields.Add("urgency_explanation", "this urgency level requires a justification")
		}
	}
	if fields.HasErrors() {
		return nil, fields
	}

	topic, err := s.units.GetTopic(ctx, *referral.TopicID)
	if err != nil {
		return nil, apperrors.NotFound("topic", err)
	}

	now := time.Now()
	referral.State = model.ReferralStateReceived
	referral.SentAt = &now
	due := urgency.DueDateFrom(now)
	referral.DueDate = &due

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.Update(ctx, referral); err != nil {
			return err
		}

		linked := false
		for _, unit := range referral.Units {
			if unit.ID == topic.UnitID {
				linked = true
				break
			}
		}
		if !linked {
			link := &model.ReferralUnitLink{ReferralID: referral.ID, UnitID: topic.UnitID}
			if err := r.Referrals.AddUnitLink(ctx, link); err != nil {
				return err
			}
		}

		if err := s.activities.Record(ctx, r, referral.ID, actorID, model.ActivitySent, model.ItemRef{}, ""); err != nil {
			return err
		}
		return s.indexer.EnqueueReferralUpserted(ctx, r, referral)
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionSend)
	s.perms.InvalidateReferral(referral.ID)
	return s.referrals.Get(ctx, referralID)
}

// Assign puts a unit member in charge of the referral. From RECEIVED the
// referral becomes ASSIGNED and, when no answer exists yet, the actor's own
// draft answer and assignment are created alongside.
func (s *Service) Assign(ctx context.Context, actorID, referralID, assigneeID, unitID uuid.UUID) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionAssign, referral); err != nil {
		return nil, err
	}
	if _, err := s.perms.CanManage(ctx, actorID, referral); err != nil {
		return nil, err
	}

	assignee, err := s.users.Get(ctx, assigneeID)
	if err != nil {
		return nil, apperrors.NotFound("user", err)
	}
	for _, assignment := range referral.Assignments {
		if assignment.AssigneeID == assigneeID {
			return nil, apperrors.Conflict("user is already assigned to this referral")
		}
	}

	wasReceived := referral.State == model.ReferralStateReceived

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		assignment := &model.ReferralAssignment{
			ReferralID: referral.ID,
			AssigneeID: assigneeID,
			UnitID:     unitID,
			CreatedBy:  actorID,
		}
		if err := r.Referrals.AddAssignment(ctx, assignment); err != nil {
			return err
		}

		if wasReceived {
			referral.State = model.ReferralStateAssigned
			if err := r.Referrals.Update(ctx, referral); err != nil {
				return err
			}

			answers, err := r.Answers.ListByReferral(ctx, referral.ID)
			if err != nil {
				return err
			}
			if len(answers) == 0 {
				draft := &model.ReferralAnswer{
					ReferralID: referral.ID,
					AuthorID:   actorID,
					State:      model.AnswerStateDraft,
				}
				if err := r.Answers.Create(ctx, draft); err != nil {
					return err
				}
				if actorID != assigneeID {
					own := &model.ReferralAssignment{
						ReferralID: referral.ID,
						AssigneeID: actorID,
						UnitID:     unitID,
						CreatedBy:  actorID,
					}
					if err := r.Referrals.AddAssignment(ctx, own); err != nil {
						return err
					}
				}
			}
		}

		if err := s.activities.Record(ctx, r, referral.ID, actorID, model.ActivityAssigned, model.ItemRef{}, assignee.FullName()); err != nil {
			return err
		}

		recipient, err := s.recipientFor(ctx, referral, assigneeID)
		if err != nil {
			return err
		}
		if err := s.notifier.Dispatch(ctx, r, notification.Batch{
			NotifierID: actorID,
			Referral:   referral,
			Type:       model.NotificationReferralAssigned,
			Content:    referral.Title,
			Item:       model.NewItemRef(model.ItemKindReferral, referral.ID),
			Recipients: []notification.Recipient{recipient},
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

	s.observeTransition(model.TransitionAssign)
	return s.referrals.Get(ctx, referralID)
}

// Unassign removes one assignee. The referral falls back to RECEIVED when the
// last assignee leaves an ASSIGNED referral.
func (s *Service) Unassign(ctx context.Context, actorID, referralID, assigneeID uuid.UUID) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionUnassign, referral); err != nil {
		return nil, err
	}
	if _, err := s.perms.CanManage(ctx, actorID, referral); err != nil {
		return nil, err
	}

	found := false
	remaining := 0
	for _, assignment := range referral.Assignments {
		if assignment.AssigneeID == assigneeID {
			found = true
		} else {
			remaining++
		}
	}
	if !found {
		return nil, apperrors.NotFound("assignment", nil)
	}

	assignee, err := s.users.Get(ctx, assigneeID)
	if err != nil {
		return nil, apperrors.NotFound("user", err)
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.RemoveAssignment(ctx, referralID, assigneeID); err != nil {
			return err
		}
		if remaining == 0 && referral.State == model.ReferralStateAssigned {
			referral.State = model.ReferralStateReceived
			if err := r.Referrals.Update(ctx, referral); err != nil {
				return err
			}
		}
		if err := s.activities.Record(ctx, r, referral.ID, actorID, model.ActivityUnassigned, model.ItemRef{}, assignee.FullName()); err != nil {
			return err
		}
		return s.indexer.EnqueueReferralUpserted(ctx, r, referral)
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionUnassign)
	return s.referrals.Get(ctx, referralID)
}

// AssignUnit links an additional unit to the referral.
func (s *Service) AssignUnit(ctx context.Context, actorID, referralID, unitID uuid.UUID) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionAssignUnit, referral); err != nil {
		return nil, err
	}
	if _, err := s.perms.CanManage(ctx, actorID, referral); err != nil {
		return nil, err
	}

	unit, err := s.units.GetUnit(ctx, unitID)
	if err != nil {
		return nil, apperrors.NotFound("unit", err)
	}
	for _, linked := range referral.Units {
		if linked.ID == unitID {
			return nil, apperrors.Conflict("unit is already linked to this referral")
		}
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		link := &model.ReferralUnitLink{ReferralID: referralID, UnitID: unitID}
		if err := r.Referrals.AddUnitLink(ctx, link); err != nil {
			return err
		}
		if err := s.activities.Record(ctx, r, referral.ID, actorID, model.ActivityAssignedUnit, model.ItemRef{}, unit.Name); err != nil {
			return err
		}
		return s.indexer.EnqueueReferralUpserted(ctx, r, referral)
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionAssignUnit)
	s.perms.InvalidateReferral(referral.ID)
	return s.referrals.Get(ctx, referralID)
}

// UnassignUnit removes a linked unit. The last unit, or a unit with a current
// assignee, cannot be removed.
func (s *Service) UnassignUnit(ctx context.Context, actorID, referralID, unitID uuid.UUID) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionUnassignUnit, referral); err != nil {
		return nil, err
	}
	if _, err := s.perms.CanManage(ctx, actorID, referral); err != nil {
		return nil, err
	}

	linked := false
	for _, unit := range referral.Units {
		if unit.ID == unitID {
			linked = true
			break
		}
	}
	if !linked {
		return nil, apperrors.NotFound("unit", nil)
	}

	if len(referral.Units) == 1 {
		return nil, apperrors.BadRequest("Unit cannot be removed from this referral.", nil)
	}
	for _, assignment := range referral.Assignments {
		if assignment.UnitID == unitID {
			return nil, apperrors.BadRequest("Unit cannot be removed from this referral.", nil)
		}
	}

	unit, err := s.units.GetUnit(ctx, unitID)
	if err != nil {
		return nil, apperrors.NotFound("unit", err)
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.RemoveUnitLink(ctx, referralID, unitID); err != nil {
			return err
		}
		if err := s.activities.Record(ctx, r, referral.ID, actorID, model.ActivityUnassignedUnit, model.ItemRef{}, unit.Name); err != nil {
			return err
		}
		return s.indexer.EnqueueReferralUpserted(ctx, r, referral)
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionUnassignUnit)
	s.perms.InvalidateReferral(referral.ID)
	return s.referrals.Get(ctx, referralID)
}

// Close records a mandatory explanation and closes the referral. Requesters
// and unit management may close.
func (s *Service) Close(ctx context.Context, actorID, referralID uuid.UUID, explanation string) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionClose, referral); err != nil {
		return nil, err
	}
	if explanation == "" {
		return nil, apperrors.BadRequest("close explanation is required", nil)
	}

	if !permission.IsRequester(referral, actorID) {
		if _, err := s.perms.CanManage(ctx, actorID, referral); err != nil {
			return nil, err
		}
	}

	referral.State = model.ReferralStateClosed
	referral.CloseExplanation = explanation

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.Update(ctx, referral); err != nil {
			return err
		}
		if err := s.activities.Record(ctx, r, referral.ID, actorID, model.ActivityClosed, model.ItemRef{}, explanation); err != nil {
			return err
		}

		requesters, err := s.requesterRecipients(ctx, referral, actorID)
		if err != nil {
			return err
		}
		assignees, err := s.assigneeRecipients(ctx, referral, actorID)
		if err != nil {
			return err
		}
		for i := range assignees {
			assignees[i].Template = email.TemplateReferralClosedUnit
		}

		if err := s.notifier.Dispatch(ctx, r, notification.Batch{
			NotifierID: actorID,
			Referral:   referral,
			Type:       model.NotificationReferralClosed,
			Content:    explanation,
			Item:       model.NewItemRef(model.ItemKindReferral, referral.ID),
			Recipients: append(requesters, assignees...),
			EmailParams: map[string]string{
				"title":       referral.Title,
				"explanation": explanation,
			},
		}); err != nil {
			return err
		}

		return s.indexer.EnqueueReferralUpserted(ctx, r, referral)
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionClose)
	return s.referrals.Get(ctx, referralID)
}

// ChangeUrgency switches the urgency policy and recomputes the due date. The
// explanation is mandatory.
func (s *Service) ChangeUrgency(ctx context.Context, actorID, referralID, urgencyID uuid.UUID, explanation string) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionChangeUrgencyLevel, referral); err != nil {
		return nil, err
	}
	if explanation == "" {
		return nil, apperrors.BadRequest("urgency explanation is required", nil)
	}
	if _, err := s.perms.CanManage(ctx, actorID, referral); err != nil {
		return nil, err
	}

	urgency, err := s.referrals.GetUrgency(ctx, urgencyID)
	if err != nil {
		return nil, apperrors.NotFound("urgency level", err)
	}

	referral.UrgencyLevelID = &urgency.ID
	referral.UrgencyExplanation = explanation
	sentAt := time.Now()
	if referral.SentAt != nil {
		sentAt = *referral.SentAt
	}
	due := urgency.DueDateFrom(sentAt)
	referral.DueDate = &due

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.Update(ctx, referral); err != nil {
			return err
		}
		if err := s.activities.Record(ctx, r, referral.ID, actorID, model.ActivityUrgencyChanged, model.ItemRef{}, explanation); err != nil {
			return err
		}
		return s.indexer.EnqueueReferralUpserted(ctx, r, referral)
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionChangeUrgencyLevel)
	return s.referrals.Get(ctx, referralID)
}

// UpdateTitle renames the referral.
func (s *Service) UpdateTitle(ctx context.Context, actorID, referralID uuid.UUID, title string) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionUpdateTitle, referral); err != nil {
		return nil, err
	}
	if title == "" {
		return nil, apperrors.BadRequest("title is required", nil)
	}
	if !permission.IsLinked(referral, actorID) {
		if _, err := s.perms.RequireMembership(ctx, actorID, referral); err != nil {
			return nil, err
		}
	}

	referral.Title = title

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.Update(ctx, referral); err != nil {
			return err
		}
		if err := s.activities.Record(ctx, r, referral.ID, actorID, model.ActivityUpdatedTitle, model.ItemRef{}, title); err != nil {
			return err
		}
		return s.indexer.EnqueueReferralUpserted(ctx, r, referral)
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionUpdateTitle)
	return s.referrals.Get(ctx, referralID)
}

// UpdateTopic recategorizes the referral.
func (s *Service) UpdateTopic(ctx context.Context, actorID, referralID, topicID uuid.UUID) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionUpdateTopic, referral); err != nil {
		return nil, err
	}
	topic, err := s.units.GetTopic(ctx, topicID)
	if err != nil {
		return nil, apperrors.NotFound("topic", err)
	}
	if _, err := s.perms.CanManage(ctx, actorID, referral); err != nil {
		return nil, err
	}

	referral.TopicID = &topic.ID

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.Update(ctx, referral); err != nil {
			return err
		}
		if err := s.activities.Record(ctx, r, referral.ID, actorID, model.ActivityUpdatedTopic, model.ItemRef{}, topic.Name); err != nil {
			return err
		}
		return s.indexer.EnqueueReferralUpserted(ctx, r, referral)
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionUpdateTopic)
	return s.referrals.Get(ctx, referralID)
}

// Split clones the referral into a secondary one held in a splitting state
// until confirmed or cancelled.
func (s *Service) Split(ctx context.Context, actorID, referralID uuid.UUID) (*model.Referral, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionSplit, referral); err != nil {
		return nil, err
	}
	if _, err := s.perms.CanManage(ctx, actorID, referral); err != nil {
		return nil, err
	}

	cloneState := model.ReferralStateReceivedSplitting
	if referral.State == model.ReferralStateAssigned {
		cloneState = model.ReferralStateSplitting
	}

	clone := &model.Referral{
		Title:          referral.Title,
		Object:         referral.Object,
		Question:       referral.Question,
		Context:        referral.Context,
		PriorWork:      referral.PriorWork,
		State:          cloneState,
		TopicID:        referral.TopicID,
		UrgencyLevelID: referral.UrgencyLevelID,
		SentAt:         referral.SentAt,
		DueDate:        referral.DueDate,
		ParentID:       &referral.ID,
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.Create(ctx, clone); err != nil {
			return err
		}
		for _, unit := range referral.Units {
			link := &model.ReferralUnitLink{ReferralID: clone.ID, UnitID: unit.ID}
			if err := r.Referrals.AddUnitLink(ctx, link); err != nil {
				return err
			}
		}
		for _, userLink := range referral.UserLinks {
			link := &model.ReferralUserLink{
				ReferralID:    clone.ID,
				UserID:        userLink.UserID,
				Role:          userLink.Role,
				Notifications: userLink.Notifications,
			}
			if err := r.Referrals.AddUserLink(ctx, link); err != nil {
				return err
			}
		}
		if err := s.activities.Record(ctx, r, referral.ID, actorID, model.ActivitySubreferralCreated,
			model.NewItemRef(model.ItemKindReferral, clone.ID), ""); err != nil {
			return err
		}
		return s.indexer.EnqueueReferralUpserted(ctx, r, clone)
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionSplit)
	return s.referrals.Get(ctx, clone.ID)
}

// ConfirmSplit settles the clone into its working state.
func (s *Service) ConfirmSplit(ctx context.Context, actorID, referralID uuid.UUID) (*model.Referral, error) {
	clone, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionConfirmSplit, clone); err != nil {
		return nil, err
	}
	if _, err := s.perms.CanManage(ctx, actorID, clone); err != nil {
		return nil, err
	}

	if clone.State == model.ReferralStateSplitting {
		clone.State = model.ReferralStateAssigned
	} else {
		clone.State = model.ReferralStateReceived
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.Update(ctx, clone); err != nil {
			return err
		}
		parentID := clone.ID
		if clone.ParentID != nil {
			parentID = *clone.ParentID
		}
		if err := s.activities.Record(ctx, r, parentID, actorID, model.ActivitySubreferralConfirmed,
			model.NewItemRef(model.ItemKindReferral, clone.ID), ""); err != nil {
			return err
		}
		return s.indexer.EnqueueReferralUpserted(ctx, r, clone)
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionConfirmSplit)
	return s.referrals.Get(ctx, referralID)
}

// CancelSplit discards an in-flight clone.
func (s *Service) CancelSplit(ctx context.Context, actorID, referralID uuid.UUID) error {
	clone, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return apperrors.NotFound("referral", err)
	}
	if err := s.guardTransition(model.TransitionCancelSplit, clone); err != nil {
		return err
	}
	if _, err := s.perms.CanManage(ctx, actorID, clone); err != nil {
		return err
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.Delete(ctx, clone.ID); err != nil {
			return err
		}
		if clone.ParentID != nil {
			if err := s.activities.Record(ctx, r, *clone.ParentID, actorID, model.ActivitySubreferralCancelled,
				model.NewItemRef(model.ItemKindReferral, clone.ID), ""); err != nil {
				return err
			}
		}
		return s.indexer.EnqueueReferralDeleted(ctx, r, clone.ID)
	})
	if err != nil {
		return err
	}

	s.observeTransition(model.TransitionCancelSplit)
	return nil
}

// CloseIncomplete retires a stale draft.
func (s *Service) CloseIncomplete(ctx context.Context, actorID, referralID uuid.UUID) (*model.Referral, error) {
	referral, err := s.getOwned(ctx, actorID, referralID)
	if err != nil {
		return nil, err
	}
	if err := s.guardTransition(model.TransitionCloseIncomplete, referral); err != nil {
		return nil, err
	}

	referral.State = model.ReferralStateIncomplete

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Referrals.Update(ctx, referral); err != nil {
			return err
		}
		return s.indexer.EnqueueReferralUpserted(ctx, r, referral)
	})
	if err != nil {
		return nil, err
	}

	s.observeTransition(model.TransitionCloseIncomplete)
	return s.referrals.Get(ctx, referralID)
}
