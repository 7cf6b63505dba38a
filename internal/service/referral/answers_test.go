package referral

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partaj/referral-api/internal/model"
	apperrors "github.com/partaj/referral-api/pkg/errors"
)

func TestCreateAnswerAutoAssignsAuthor(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)

	answer, err := f.svc.CreateAnswer(f.ctx, f.member.ID, referral.ID, "first draft")
	require.NoError(t, err)

	assert.Equal(t, model.AnswerStateDraft, answer.State)
	assert.Equal(t, f.member.ID, answer.AuthorID)

	got := f.get(referral.ID)
	assert.Equal(t, model.ReferralStateProcessing, got.State)
	require.Len(t, got.Assignments, 1)
	assert.Equal(t, f.member.ID, got.Assignments[0].AssigneeID)

	assert.Equal(t, 1, f.activityCount(referral.ID))
}

func TestCreateAnswerKeepsExistingAssignment(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateAssigned)
	f.addAssignment(referral.ID, f.member)

	_, err := f.svc.CreateAnswer(f.ctx, f.member.ID, referral.ID, "draft")
	require.NoError(t, err)

	got := f.get(referral.ID)
	assert.Equal(t, model.ReferralStateProcessing, got.State)
	assert.Len(t, got.Assignments, 1, "an already assigned author is not assigned twice")
}

func TestCreateAnswerClosedReferral(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateClosed)

	_, err := f.svc.CreateAnswer(f.ctx, f.member.ID, referral.ID, "too late")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "referral no longer accepts answers", appErr.Message)
}

func TestCreateAnswerRequiresMembership(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)

	_, err := f.svc.CreateAnswer(f.ctx, f.requester.ID, referral.ID, "draft")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestUpdateAnswerAuthorOnly(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateProcessing)
	answer := f.addDraftAnswer(referral.ID, f.member, "v1")

	_, err := f.svc.UpdateAnswer(f.ctx, f.owner.ID, answer.ID, "hijacked")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)

	got, err := f.svc.UpdateAnswer(f.ctx, f.member.ID, answer.ID, "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
}

func TestRequestAnswerValidation(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateProcessing)
	answer := f.addDraftAnswer(referral.ID, f.member, "draft answer")

	request, err := f.svc.RequestAnswerValidation(f.ctx, f.member.ID, referral.ID, answer.ID, f.owner.ID)
	require.NoError(t, err)

	assert.Equal(t, "Olivia Masson", request.ValidatorFullName)
	assert.Equal(t, model.ReferralStateInValidation, f.get(referral.ID).State)

	rows := f.notificationsFor(f.owner)
	require.Len(t, rows, 1)
	assert.Equal(t, model.NotificationValidationRequested, rows[0].Type)
}

func TestRequestAnswerValidationDuplicate(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateProcessing)
	answer := f.addDraftAnswer(referral.ID, f.member, "draft answer")

	_, err := f.svc.RequestAnswerValidation(f.ctx, f.member.ID, referral.ID, answer.ID, f.owner.ID)
	require.NoError(t, err)

	_, err = f.svc.RequestAnswerValidation(f.ctx, f.member.ID, referral.ID, answer.ID, f.owner.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Olivia Masson was already requested to validate this answer", appErr.Message)

	requests, err := f.repos.Answers.ListValidationRequests(f.ctx, answer.ID)
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}

func TestRequestAnswerValidationAfterResponse(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateProcessing)
	answer := f.addDraftAnswer(referral.ID, f.member, "draft answer")

	request, err := f.svc.RequestAnswerValidation(f.ctx, f.member.ID, referral.ID, answer.ID, f.owner.ID)
	require.NoError(t, err)
	_, err = f.svc.PerformAnswerValidation(f.ctx, f.owner.ID, referral.ID, request.ID, false, "needs work")
	require.NoError(t, err)

	// Once the validator answered, a fresh request to the same validator is
	// legitimate again.
	_, err = f.svc.RequestAnswerValidation(f.ctx, f.member.ID, referral.ID, answer.ID, f.owner.ID)
	require.NoError(t, err)

	requests, err := f.repos.Answers.ListValidationRequests(f.ctx, answer.ID)
	require.NoError(t, err)
	assert.Len(t, requests, 2)
}

func TestPerformAnswerValidation(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateProcessing)
	answer := f.addDraftAnswer(referral.ID, f.member, "draft answer")
	request, err := f.svc.RequestAnswerValidation(f.ctx, f.member.ID, referral.ID, answer.ID, f.owner.ID)
	require.NoError(t, err)

	response, err := f.svc.PerformAnswerValidation(f.ctx, f.owner.ID, referral.ID, request.ID, true, "looks right")
	require.NoError(t, err)

	assert.Equal(t, model.ValidationValidated, response.State)
	assert.Equal(t, "looks right", response.Comment)

	rows := f.notificationsFor(f.member)
	require.Len(t, rows, 1)
	assert.Equal(t, model.NotificationValidationPerformed, rows[0].Type)
}

func TestPerformAnswerValidationWrongValidator(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateProcessing)
	answer := f.addDraftAnswer(referral.ID, f.member, "draft answer")
	request, err := f.svc.RequestAnswerValidation(f.ctx, f.member.ID, referral.ID, answer.ID, f.owner.ID)
	require.NoError(t, err)

	_, err = f.svc.PerformAnswerValidation(f.ctx, f.member.ID, referral.ID, request.ID, true, "")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "only the requested validator may respond", appErr.Message)
}

func TestPerformAnswerValidationTwice(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateProcessing)
	answer := f.addDraftAnswer(referral.ID, f.member, "draft answer")
	request, err := f.svc.RequestAnswerValidation(f.ctx, f.member.ID, referral.ID, answer.ID, f.owner.ID)
	require.NoError(t, err)

	_, err = f.svc.PerformAnswerValidation(f.ctx, f.owner.ID, referral.ID, request.ID, true, "")
	require.NoError(t, err)

	_, err = f.svc.PerformAnswerValidation(f.ctx, f.owner.ID, referral.ID, request.ID, false, "changed my mind")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)
}

func TestPublishAnswer(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateProcessing)
	draft := f.addDraftAnswer(referral.ID, f.member, "final text")

	got, err := f.svc.PublishAnswer(f.ctx, f.member.ID, referral.ID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStateAnswered, got.State)

	answers, err := f.repos.Answers.ListByReferral(f.ctx, referral.ID)
	require.NoError(t, err)
	require.Len(t, answers, 2, "the draft stays alongside its published copy")

	var published *model.ReferralAnswer
	for _, a := range answers {
		if a.State == model.AnswerStatePublished {
			published = a
		}
	}
	require.NotNil(t, published)
	assert.Equal(t, "final text", published.Content)
	assert.Equal(t, f.member.ID, published.AuthorID)

	reloaded, err := f.repos.Answers.Get(f.ctx, draft.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.PublishedAnswerID)
	assert.Equal(t, published.ID, *reloaded.PublishedAnswerID)

	rows := f.notificationsFor(f.requester)
	require.Len(t, rows, 1)
	assert.Equal(t, model.NotificationReferralAnswered, rows[0].Type)
}

func TestPublishAnswerTwice(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateProcessing)
	draft := f.addDraftAnswer(referral.ID, f.member, "final text")

	_, err := f.svc.PublishAnswer(f.ctx, f.member.ID, referral.ID, draft.ID)
	require.NoError(t, err)

	_, err = f.svc.PublishAnswer(f.ctx, f.member.ID, referral.ID, draft.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Transition PUBLISH_ANSWER not allowed from state ANSWERED.", appErr.Message)
}

func TestPublishAnswerForeignAnswer(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateProcessing)
	other := f.seedReferral(model.ReferralStateProcessing)
	draft := f.addDraftAnswer(other.ID, f.member, "wrong case")

	_, err := f.svc.PublishAnswer(f.ctx, f.member.ID, referral.ID, draft.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "answer does not belong to this referral", appErr.Message)
}
