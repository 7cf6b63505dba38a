package referral

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/partaj/referral-api/internal/email"
	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/internal/repository/memory"
	"github.com/partaj/referral-api/internal/service/activity"
	"github.com/partaj/referral-api/internal/service/indexer"
	"github.com/partaj/referral-api/internal/service/notification"
	"github.com/partaj/referral-api/internal/service/permission"
	"github.com/partaj/referral-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("test", "referral")

type capturedEmail struct {
	template email.TemplateID
	to       string
}

type captureEmailer struct {
	sent []capturedEmail
}

func (c *captureEmailer) Send(ctx context.Context, template email.TemplateID, to string, params map[string]string) error {
	c.sent = append(c.sent, capturedEmail{template: template, to: to})
	return nil
}

// fixture wires the referral service against the in-memory store with one
// unit, its topic, a default urgency and three users: a requester with no
// membership, a unit owner and a plain unit member.
type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *memory.Store
	repos   repository.Repos
	svc     *Service
	emailer *captureEmailer

	unit    *model.Unit
	topic   *model.Topic
	urgency *model.ReferralUrgency

	requester *model.User
	owner     *model.User
	member    *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repos()
	zl := zerolog.Nop()

	unit := &model.Unit{Name: "DAJ"}
	require.NoError(t, repos.Units.CreateUnit(ctx, unit))

	topic := &model.Topic{Name: "Fisheries", UnitID: unit.ID, IsActive: true}
	store.CreateTopic(topic)

	urgency := &model.ReferralUrgency{Name: "3 weeks", DurationDays: 21, IsDefault: true}
	store.CreateUrgency(urgency)

	f := &fixture{
		t:       t,
		ctx:     ctx,
		store:   store,
		repos:   repos,
		emailer: &captureEmailer{},
		unit:    unit,
		topic:   topic,
		urgency: urgency,
	}

	f.requester = f.newUser("Rose", "Fontaine")
	f.owner = f.newUser("Olivia", "Masson")
	f.member = f.newUser("Pierre", "Martin")
	f.addMembership(f.owner, unit, model.UnitRoleOwner)
	f.addMembership(f.member, unit, model.UnitRoleMember)

	perms := permission.NewService(repos.Units, permission.PolicyHighest, time.Minute, zl)
	notifier := notification.NewService(repos.Notifications, f.emailer, testMetrics, zl)
	activities := activity.NewService(repos.Activities, zl)
	idx := indexer.NewService(zl)
	f.svc = NewService(store, repos, perms, notifier, activities, idx, testMetrics, zl)

	return f
}

func (f *fixture) newUser(firstName, lastName string) *model.User {
	f.t.Helper()
	user := &model.User{FirstName: firstName, LastName: lastName, Email: firstName + "@example.com"}
	require.NoError(f.t, f.repos.Users.Create(f.ctx, user))
	return user
}

func (f *fixture) addMembership(user *model.User, unit *model.Unit, role model.UnitMembershipRole) {
	f.t.Helper()
	err := f.repos.Units.CreateMembership(f.ctx, &model.UnitMembership{
		UserID: user.ID,
		UnitID: unit.ID,
		Role:   role,
	})
	require.NoError(f.t, err)
}

// seedReferral creates a referral directly in the given state, linked to the
// fixture unit (unless still a draft) with the fixture requester.
func (f *fixture) seedReferral(state model.ReferralState) *model.Referral {
	f.t.Helper()
	referral := &model.Referral{
		Title:          "Breton fishing rights",
		Object:         "Scope of coastal fishing rights",
		Question:       "Which regulation applies?",
		Context:        "Long-running dispute with the regional council",
		State:          state,
		TopicID:        &f.topic.ID,
		UrgencyLevelID: &f.urgency.ID,
	}
	if state != model.ReferralStateDraft {
		sentAt := time.Now().Add(-24 * time.Hour)
		due := f.urgency.DueDateFrom(sentAt)
		referral.SentAt = &sentAt
		referral.DueDate = &due
	}
	require.NoError(f.t, f.repos.Referrals.Create(f.ctx, referral))

	if state != model.ReferralStateDraft {
		err := f.repos.Referrals.AddUnitLink(f.ctx, &model.ReferralUnitLink{ReferralID: referral.ID, UnitID: f.unit.ID})
		require.NoError(f.t, err)
	}
	err := f.repos.Referrals.AddUserLink(f.ctx, &model.ReferralUserLink{
		ReferralID:    referral.ID,
		UserID:        f.requester.ID,
		Role:          model.ReferralRoleRequester,
		Notifications: model.NotificationsAll,
	})
	require.NoError(f.t, err)

	return f.get(referral.ID)
}

func (f *fixture) get(id uuid.UUID) *model.Referral {
	f.t.Helper()
	referral, err := f.repos.Referrals.Get(f.ctx, id)
	require.NoError(f.t, err)
	return referral
}

func (f *fixture) addAssignment(referralID uuid.UUID, user *model.User) {
	f.t.Helper()
	err := f.repos.Referrals.AddAssignment(f.ctx, &model.ReferralAssignment{
		ReferralID: referralID,
		AssigneeID: user.ID,
		UnitID:     f.unit.ID,
		CreatedBy:  f.owner.ID,
	})
	require.NoError(f.t, err)
}

func (f *fixture) addDraftAnswer(referralID uuid.UUID, author *model.User, content string) *model.ReferralAnswer {
	f.t.Helper()
	answer := &model.ReferralAnswer{
		ReferralID: referralID,
		AuthorID:   author.ID,
		State:      model.AnswerStateDraft,
		Content:    content,
	}
	require.NoError(f.t, f.repos.Answers.Create(f.ctx, answer))
	return answer
}

func (f *fixture) activityCount(referralID uuid.UUID) int {
	f.t.Helper()
	count, err := f.repos.Activities.CountByReferral(f.ctx, referralID)
	require.NoError(f.t, err)
	return count
}

func (f *fixture) notificationsFor(user *model.User) []*model.Notification {
	f.t.Helper()
	rows, err := f.repos.Notifications.ListForUser(f.ctx, user.ID, false)
	require.NoError(f.t, err)
	return rows
}

func (f *fixture) pendingOutbox() int {
	f.t.Helper()
	count, err := f.repos.Outbox.CountPending(f.ctx)
	require.NoError(f.t, err)
	return count
}
