package referral

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partaj/referral-api/internal/model"
	apperrors "github.com/partaj/referral-api/pkg/errors"
)

func TestCreateDraft(t *testing.T) {
	f := newFixture(t)

	referral, err := f.svc.CreateDraft(f.ctx, f.requester.ID, CreateDraftParams{Title: "Fishing rights"})
	require.NoError(t, err)

	assert.Equal(t, model.ReferralStateDraft, referral.State)
	require.Len(t, referral.UserLinks, 1)
	assert.Equal(t, f.requester.ID, referral.UserLinks[0].UserID)
	assert.Equal(t, model.ReferralRoleRequester, referral.UserLinks[0].Role)
	assert.Equal(t, model.NotificationsAll, referral.UserLinks[0].Notifications)
}

func TestUpdateDraftOnlyWhileDraft(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)

	_, err := f.svc.UpdateDraft(f.ctx, f.requester.ID, referral.ID, CreateDraftParams{Title: "New title"})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "only draft referrals can be edited freely", appErr.Message)
}

func TestSendMovesDraftToReceived(t *testing.T) {
	f := newFixture(t)
	draft := f.seedReferral(model.ReferralStateDraft)

	referral, err := f.svc.Send(f.ctx, f.requester.ID, draft.ID)
	require.NoError(t, err)

	assert.Equal(t, model.ReferralStateReceived, referral.State)
	require.NotNil(t, referral.SentAt)
	require.NotNil(t, referral.DueDate)
	assert.True(t, referral.DueDate.Equal(referral.SentAt.AddDate(0, 0, f.urgency.DurationDays)))

	require.Len(t, referral.Units, 1, "the unit competent for the topic is linked")
	assert.Equal(t, f.unit.ID, referral.Units[0].ID)

	assert.Equal(t, 1, f.activityCount(referral.ID))
	assert.Equal(t, 1, f.pendingOutbox())
}

func TestSendValidatesRequiredFields(t *testing.T) {
	f := newFixture(t)
	draft := &model.Referral{Title: "Bare draft", State: model.ReferralStateDraft}
	require.NoError(t, f.repos.Referrals.Create(f.ctx, draft))
	err := f.repos.Referrals.AddUserLink(f.ctx, &model.ReferralUserLink{
		ReferralID: draft.ID, UserID: f.requester.ID, Role: model.ReferralRoleRequester,
		Notifications: model.NotificationsAll,
	})
	require.NoError(t, err)

	_, err = f.svc.Send(f.ctx, f.requester.ID, draft.ID)
	fields, ok := apperrors.AsFieldErrors(err)
	require.True(t, ok)
	for _, field := range []string{"object", "question", "context", "topic", "urgency_level"} {
		assert.Contains(t, fields.Fields, field)
	}

	assert.Equal(t, model.ReferralStateDraft, f.get(draft.ID).State)
	assert.Equal(t, 0, f.activityCount(draft.ID))
}

func TestSendRequiresUrgencyJustification(t *testing.T) {
	f := newFixture(t)
	urgent := &model.ReferralUrgency{Name: "urgent", DurationDays: 3, RequiresJustification: true}
	f.store.CreateUrgency(urgent)

	draft := f.seedReferral(model.ReferralStateDraft)
	draft.UrgencyLevelID = &urgent.ID
	require.NoError(t, f.repos.Referrals.Update(f.ctx, draft))

	_, err := f.svc.Send(f.ctx, f.requester.ID, draft.ID)
	fields, ok := apperrors.AsFieldErrors(err)
	require.True(t, ok)
	assert.Contains(t, fields.Fields, "urgency_explanation")
}

func TestTransitionGuards(t *testing.T) {
	tests := []struct {
		name    string
		state   model.ReferralState
		call    func(f *fixture, referralID uuid.UUID) error
		wantMsg string
	}{
		{
			name:  "send from received",
			state: model.ReferralStateReceived,
			call: func(f *fixture, id uuid.UUID) error {
				_, err := f.svc.Send(f.ctx, f.requester.ID, id)
				return err
			},
			wantMsg: "Transition SEND not allowed from state RECEIVED.",
		},
		{
			name:  "assign from closed",
			state: model.ReferralStateClosed,
			call: func(f *fixture, id uuid.UUID) error {
				_, err := f.svc.Assign(f.ctx, f.owner.ID, id, f.member.ID, f.unit.ID)
				return err
			},
			wantMsg: "Transition ASSIGN not allowed from state CLOSED.",
		},
		{
			name:  "close from draft",
			state: model.ReferralStateDraft,
			call: func(f *fixture, id uuid.UUID) error {
				_, err := f.svc.Close(f.ctx, f.owner.ID, id, "done")
				return err
			},
			wantMsg: "Transition CLOSE not allowed from state DRAFT.",
		},
		{
			name:  "publish answer from received",
			state: model.ReferralStateReceived,
			call: func(f *fixture, id uuid.UUID) error {
				_, err := f.svc.PublishAnswer(f.ctx, f.member.ID, id, uuid.New())
				return err
			},
			wantMsg: "Transition PUBLISH_ANSWER not allowed from state RECEIVED.",
		},
		{
			name:  "perform validation from processing",
			state: model.ReferralStateProcessing,
			call: func(f *fixture, id uuid.UUID) error {
				_, err := f.svc.PerformAnswerValidation(f.ctx, f.owner.ID, id, uuid.New(), true, "")
				return err
			},
			wantMsg: "Transition PERFORM_ANSWER_VALIDATION not allowed from state PROCESSING.",
		},
		{
			name:  "split from processing",
			state: model.ReferralStateProcessing,
			call: func(f *fixture, id uuid.UUID) error {
				_, err := f.svc.Split(f.ctx, f.owner.ID, id)
				return err
			},
			wantMsg: "Transition SPLIT not allowed from state PROCESSING.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			referral := f.seedReferral(tt.state)

			err := tt.call(f, referral.ID)

			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrInvalidTransition, appErr.Code)
			assert.Equal(t, tt.wantMsg, appErr.Message)

			assert.Equal(t, tt.state, f.get(referral.ID).State, "a denied transition leaves the state untouched")
			assert.Equal(t, 0, f.activityCount(referral.ID), "a denied transition records no activity")
		})
	}
}

func TestAssignFromReceived(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)

	got, err := f.svc.Assign(f.ctx, f.owner.ID, referral.ID, f.member.ID, f.unit.ID)
	require.NoError(t, err)

	assert.Equal(t, model.ReferralStateAssigned, got.State)

	// The first assignment also opens the actor's draft answer and assigns
	// the actor alongside the assignee.
	require.Len(t, got.Assignments, 2)
	assignees := []uuid.UUID{got.Assignments[0].AssigneeID, got.Assignments[1].AssigneeID}
	assert.Contains(t, assignees, f.member.ID)
	assert.Contains(t, assignees, f.owner.ID)

	answers, err := f.repos.Answers.ListByReferral(f.ctx, referral.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, model.AnswerStateDraft, answers[0].State)
	assert.Equal(t, f.owner.ID, answers[0].AuthorID)

	rows := f.notificationsFor(f.member)
	require.Len(t, rows, 1)
	assert.Equal(t, model.NotificationReferralAssigned, rows[0].Type)

	assert.Equal(t, 1, f.activityCount(referral.ID))
}

func TestAssignDuplicateAssignee(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateProcessing)
	f.addAssignment(referral.ID, f.member)

	_, err := f.svc.Assign(f.ctx, f.owner.ID, referral.ID, f.member.ID, f.unit.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)
}

func TestAssignRequiresManagementRole(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)

	_, err := f.svc.Assign(f.ctx, f.member.ID, referral.ID, f.member.ID, f.unit.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestUnassignFallsBackToReceived(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateAssigned)
	f.addAssignment(referral.ID, f.member)
	f.addAssignment(referral.ID, f.owner)

	got, err := f.svc.Unassign(f.ctx, f.owner.ID, referral.ID, f.member.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStateAssigned, got.State, "one assignee remains")
	require.Len(t, got.Assignments, 1)

	got, err = f.svc.Unassign(f.ctx, f.owner.ID, referral.ID, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStateReceived, got.State, "last assignee removed")
	assert.Empty(t, got.Assignments)
}

func TestUnassignUnknownAssignment(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateAssigned)
	f.addAssignment(referral.ID, f.member)

	_, err := f.svc.Unassign(f.ctx, f.owner.ID, referral.ID, f.requester.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestAssignUnit(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)
	other := &model.Unit{Name: "SG"}
	require.NoError(t, f.repos.Units.CreateUnit(f.ctx, other))

	got, err := f.svc.AssignUnit(f.ctx, f.owner.ID, referral.ID, other.ID)
	require.NoError(t, err)
	assert.Len(t, got.Units, 2)
	assert.Equal(t, 1, f.activityCount(referral.ID))

	_, err = f.svc.AssignUnit(f.ctx, f.owner.ID, referral.ID, other.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)
}

func TestUnassignUnitGuards(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)

	// The only linked unit can never be removed.
	_, err := f.svc.UnassignUnit(f.ctx, f.owner.ID, referral.ID, f.unit.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Unit cannot be removed from this referral.", appErr.Message)

	other := &model.Unit{Name: "SG"}
	require.NoError(t, f.repos.Units.CreateUnit(f.ctx, other))
	err = f.repos.Referrals.AddUnitLink(f.ctx, &model.ReferralUnitLink{ReferralID: referral.ID, UnitID: other.ID})
	require.NoError(t, err)

	// A unit with a current assignee cannot be removed either.
	f.addAssignment(referral.ID, f.member)
	_, err = f.svc.UnassignUnit(f.ctx, f.owner.ID, referral.ID, f.unit.ID)
	appErr, ok = apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Unit cannot be removed from this referral.", appErr.Message)

	// The other unit carries no assignment and goes away cleanly.
	got, err := f.svc.UnassignUnit(f.ctx, f.owner.ID, referral.ID, other.ID)
	require.NoError(t, err)
	require.Len(t, got.Units, 1)
	assert.Equal(t, f.unit.ID, got.Units[0].ID)
}

func TestCloseRequiresExplanation(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateProcessing)

	_, err := f.svc.Close(f.ctx, f.owner.ID, referral.ID, "")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "close explanation is required", appErr.Message)

	assert.Equal(t, model.ReferralStateProcessing, f.get(referral.ID).State)
	assert.Equal(t, 0, f.activityCount(referral.ID))
	assert.Empty(t, f.emailer.sent)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateProcessing)
	f.addAssignment(referral.ID, f.member)

	got, err := f.svc.Close(f.ctx, f.owner.ID, referral.ID, "resolved out of band")
	require.NoError(t, err)

	assert.Equal(t, model.ReferralStateClosed, got.State)
	assert.Equal(t, "resolved out of band", got.CloseExplanation)
	assert.Equal(t, 1, f.activityCount(referral.ID))

	require.Len(t, f.notificationsFor(f.requester), 1)
	require.Len(t, f.notificationsFor(f.member), 1)

	// Requesters get the requester closure email, unit members the unit one.
	templates := map[string]bool{}
	for _, sent := range f.emailer.sent {
		templates[sent.to] = true
	}
	assert.True(t, templates[f.requester.Email])
	assert.True(t, templates[f.member.Email])
}

func TestCloseByRequester(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)

	got, err := f.svc.Close(f.ctx, f.requester.ID, referral.ID, "no longer needed")
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStateClosed, got.State)
}

func TestChangeUrgency(t *testing.T) {
	f := newFixture(t)
	urgent := &model.ReferralUrgency{Name: "urgent", DurationDays: 7, RequiresJustification: true}
	f.store.CreateUrgency(urgent)
	referral := f.seedReferral(model.ReferralStateReceived)

	_, err := f.svc.ChangeUrgency(f.ctx, f.owner.ID, referral.ID, urgent.ID, "")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "urgency explanation is required", appErr.Message)

	got, err := f.svc.ChangeUrgency(f.ctx, f.owner.ID, referral.ID, urgent.ID, "court hearing moved up")
	require.NoError(t, err)

	require.NotNil(t, got.UrgencyLevelID)
	assert.Equal(t, urgent.ID, *got.UrgencyLevelID)
	assert.Equal(t, "court hearing moved up", got.UrgencyExplanation)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.Equal(got.SentAt.AddDate(0, 0, 7)), "due date recomputed from the send date")
}

func TestUpdateTitle(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)

	_, err := f.svc.UpdateTitle(f.ctx, f.requester.ID, referral.ID, "")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "title is required", appErr.Message)

	got, err := f.svc.UpdateTitle(f.ctx, f.requester.ID, referral.ID, "Coastal fishing rights")
	require.NoError(t, err)
	assert.Equal(t, "Coastal fishing rights", got.Title)
	assert.Equal(t, 1, f.activityCount(referral.ID))
}

func TestUpdateTopic(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)
	other := &model.Topic{Name: "Maritime law", UnitID: f.unit.ID, IsActive: true}
	f.store.CreateTopic(other)

	got, err := f.svc.UpdateTopic(f.ctx, f.owner.ID, referral.ID, other.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TopicID)
	assert.Equal(t, other.ID, *got.TopicID)
}

func TestSplitAndConfirm(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateAssigned)

	clone, err := f.svc.Split(f.ctx, f.owner.ID, referral.ID)
	require.NoError(t, err)

	assert.Equal(t, model.ReferralStateSplitting, clone.State)
	require.NotNil(t, clone.ParentID)
	assert.Equal(t, referral.ID, *clone.ParentID)
	assert.Len(t, clone.Units, 1)
	assert.Len(t, clone.UserLinks, 1)
	assert.Equal(t, 1, f.activityCount(referral.ID))

	confirmed, err := f.svc.ConfirmSplit(f.ctx, f.owner.ID, clone.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStateAssigned, confirmed.State)
	assert.Equal(t, 2, f.activityCount(referral.ID))
}

func TestSplitFromReceived(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)

	clone, err := f.svc.Split(f.ctx, f.owner.ID, referral.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStateReceivedSplitting, clone.State)

	confirmed, err := f.svc.ConfirmSplit(f.ctx, f.owner.ID, clone.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStateReceived, confirmed.State)
}

func TestCancelSplit(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateAssigned)

	clone, err := f.svc.Split(f.ctx, f.owner.ID, referral.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelSplit(f.ctx, f.owner.ID, clone.ID))

	_, err = f.repos.Referrals.Get(f.ctx, clone.ID)
	assert.Error(t, err, "a cancelled clone is gone")
	assert.Equal(t, 2, f.activityCount(referral.ID))
}

func TestCloseIncomplete(t *testing.T) {
	f := newFixture(t)
	draft := f.seedReferral(model.ReferralStateDraft)

	got, err := f.svc.CloseIncomplete(f.ctx, f.requester.ID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStateIncomplete, got.State)
}

func TestGetVisibility(t *testing.T) {
	f := newFixture(t)
	referral := f.seedReferral(model.ReferralStateReceived)
	stranger := f.newUser("Luc", "Henry")

	_, err := f.svc.Get(f.ctx, f.requester.ID, referral.ID)
	assert.NoError(t, err, "a linked requester sees the referral")

	_, err = f.svc.Get(f.ctx, f.member.ID, referral.ID)
	assert.NoError(t, err, "a member of a linked unit sees the referral")

	_, err = f.svc.Get(f.ctx, stranger.ID, referral.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}
