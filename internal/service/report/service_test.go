package report

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partaj/referral-api/internal/email"
	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/internal/repository/memory"
	"github.com/partaj/referral-api/internal/scanner"
	"github.com/partaj/referral-api/internal/service/activity"
	"github.com/partaj/referral-api/internal/service/notification"
	"github.com/partaj/referral-api/internal/service/permission"
	"github.com/partaj/referral-api/internal/service/validation"
	apperrors "github.com/partaj/referral-api/pkg/errors"
	"github.com/partaj/referral-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("test", "report")

type noopEmailer struct{}

func (noopEmailer) Send(ctx context.Context, template email.TemplateID, to string, params map[string]string) error {
	return nil
}

type fakeScanner struct {
	status model.ScanStatus
}

func (s fakeScanner) Scan(ctx context.Context, filename string) (model.ScanStatus, error) {
	return s.status, nil
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	repos repository.Repos
	svc   *Service

	unit     *model.Unit
	referral *model.Referral

	requester *model.User
	owner     *model.User
	member    *model.User
}

func newFixture(t *testing.T, scan scanner.Client) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repos()
	zl := zerolog.Nop()

	unit := &model.Unit{Name: "DAJ"}
	require.NoError(t, repos.Units.CreateUnit(ctx, unit))

	f := &fixture{t: t, ctx: ctx, repos: repos, unit: unit}
	f.requester = f.newUser("Rose", "Fontaine")
	f.owner = f.newUser("Olivia", "Masson")
	f.member = f.newUser("Pierre", "Martin")
	f.addMembership(f.owner, model.UnitRoleOwner)
	f.addMembership(f.member, model.UnitRoleMember)

	referral := &model.Referral{Title: "Breton fishing rights", State: model.ReferralStateProcessing}
	require.NoError(t, repos.Referrals.Create(ctx, referral))
	require.NoError(t, repos.Referrals.AddUnitLink(ctx, &model.ReferralUnitLink{ReferralID: referral.ID, UnitID: unit.ID}))
	require.NoError(t, repos.Referrals.AddUserLink(ctx, &model.ReferralUserLink{
		ReferralID:    referral.ID,
		UserID:        f.requester.ID,
		Role:          model.ReferralRoleRequester,
		Notifications: model.NotificationsAll,
	}))
	loaded, err := repos.Referrals.Get(ctx, referral.ID)
	require.NoError(t, err)
	f.referral = loaded

	perms := permission.NewService(repos.Units, permission.PolicyHighest, time.Minute, zl)
	tree := validation.NewService(repos.Units, perms)
	notifier := notification.NewService(repos.Notifications, noopEmailer{}, testMetrics, zl)
	activities := activity.NewService(repos.Activities, zl)
	f.svc = NewService(store, repos, perms, tree, notifier, activities, scan, testMetrics, zl)

	return f
}

func (f *fixture) newUser(firstName, lastName string) *model.User {
	f.t.Helper()
	user := &model.User{FirstName: firstName, LastName: lastName, Email: firstName + "@example.com"}
	require.NoError(f.t, f.repos.Users.Create(f.ctx, user))
	return user
}

func (f *fixture) addMembership(user *model.User, role model.UnitMembershipRole) {
	f.t.Helper()
	err := f.repos.Units.CreateMembership(f.ctx, &model.UnitMembership{
		UserID: user.ID,
		UnitID: f.unit.ID,
		Role:   role,
	})
	require.NoError(f.t, err)
}

func (f *fixture) addVersion(author *model.User, documentName string) *model.ReportVersion {
	f.t.Helper()
	version, err := f.svc.AddVersion(f.ctx, author.ID, f.referral.ID, documentName)
	require.NoError(f.t, err)
	return version
}

func (f *fixture) activeEvents(item model.ItemRef, verb model.ReportEventVerb) []*model.ReportEvent {
	f.t.Helper()
	events, err := f.repos.Events.ListActive(f.ctx, item, verb)
	require.NoError(f.t, err)
	return events
}

func versionRef(version *model.ReportVersion) model.ItemRef {
	return model.NewItemRef(model.ItemKindReportVersion, version.ID)
}

func TestAddVersionCreatesReportAndNumbersVersions(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})

	v1 := f.addVersion(f.member, "memo-v1.docx")
	assert.Equal(t, 1, v1.VersionNumber)
	assert.Equal(t, model.ScanStatusClean, v1.ScanStatus)

	report, err := f.svc.GetByReferral(f.ctx, f.referral.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.ReportID, report.ID)

	v2 := f.addVersion(f.member, "memo-v2.docx")
	assert.Equal(t, 2, v2.VersionNumber)
	assert.Equal(t, report.ID, v2.ReportID)

	events, err := f.svc.ListEvents(f.ctx, report.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventVersionAdded, events[0].Verb)
	assert.Equal(t, model.EventVersionAdded, events[1].Verb)
}

func TestAddVersionScanRejected(t *testing.T) {
	f := newFixture(t, fakeScanner{status: model.ScanStatusFound})

	_, err := f.svc.AddVersion(f.ctx, f.member.ID, f.referral.ID, "trojan.docx")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrScanRejected, appErr.Code)
	assert.Equal(t, "file trojan.docx rejected by malware scan", appErr.Message)

	_, err = f.svc.GetByReferral(f.ctx, f.referral.ID)
	assert.Error(t, err, "a rejected first version creates no report")
}

func TestAddVersionClosedReferral(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	f.referral.State = model.ReferralStateAnswered
	require.NoError(t, f.repos.Referrals.Update(f.ctx, f.referral))

	_, err := f.svc.AddVersion(f.ctx, f.member.ID, f.referral.ID, "late.docx")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestRequestValidationKeepsOneActivePerReceiver(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	version := f.addVersion(f.member, "memo-v1.docx")
	item := versionRef(version)

	first, err := f.svc.RequestValidation(f.ctx, f.member.ID, item, model.UnitRoleOwner, "DAJ", "please review")
	require.NoError(t, err)
	assert.Equal(t, model.EventStateActive, first.State)
	assert.Equal(t, model.UnitRoleMember, first.Metadata.SenderRole)
	assert.Equal(t, model.UnitRoleOwner, first.Metadata.ReceiverRole)

	second, err := f.svc.RequestValidation(f.ctx, f.member.ID, item, model.UnitRoleOwner, "DAJ", "ping")
	require.NoError(t, err)

	active := f.activeEvents(item, model.EventRequestValidation)
	require.Len(t, active, 1, "a repeat request supersedes the previous one")
	assert.Equal(t, second.ID, active[0].ID)

	superseded, err := f.repos.Events.Get(f.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventStateInactive, superseded.State, "superseded events stay in the log")

	rows, err := f.repos.Notifications.ListForUser(f.ctx, f.owner.ID, false)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, model.NotificationValidationRequested, rows[0].Type)
}

func TestRequestValidationDistinctReceiversStayActive(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	version := f.addVersion(f.member, "memo-v1.docx")
	item := versionRef(version)

	_, err := f.svc.RequestValidation(f.ctx, f.member.ID, item, model.UnitRoleOwner, "DAJ", "owners")
	require.NoError(t, err)
	_, err = f.svc.RequestValidation(f.ctx, f.member.ID, item, model.UnitRoleAdmin, "DAJ", "admins")
	require.NoError(t, err)

	assert.Len(t, f.activeEvents(item, model.EventRequestValidation), 2)
}

func TestRequestValidationUnknownUnit(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	version := f.addVersion(f.member, "memo-v1.docx")

	_, err := f.svc.RequestValidation(f.ctx, f.member.ID, versionRef(version), model.UnitRoleOwner, "SG", "")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "unit SG is not linked to this referral", appErr.Message)
}

func TestValidateClosesOutRequest(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	version := f.addVersion(f.member, "memo-v1.docx")
	item := versionRef(version)

	_, err := f.svc.RequestValidation(f.ctx, f.member.ID, item, model.UnitRoleOwner, "DAJ", "please review")
	require.NoError(t, err)

	verdict, err := f.svc.Validate(f.ctx, f.owner.ID, item, "approved")
	require.NoError(t, err)
	assert.Equal(t, model.EventValidated, verdict.Verb)
	assert.Equal(t, model.UnitRoleOwner, verdict.Metadata.SenderRole)

	assert.Empty(t, f.activeEvents(item, model.EventRequestValidation), "the answered request is closed out")
	assert.Len(t, f.activeEvents(item, model.EventValidated), 1)

	rows, err := f.repos.Notifications.ListForUser(f.ctx, f.member.ID, false)
	require.NoError(t, err)
	require.Len(t, rows, 1, "author and requester collapse into one notification")
	assert.Equal(t, model.NotificationValidated, rows[0].Type)
}

func TestRequestChangeSupersedesOwnVerdict(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	version := f.addVersion(f.member, "memo-v1.docx")
	item := versionRef(version)

	_, err := f.svc.Validate(f.ctx, f.owner.ID, item, "fine at first")
	require.NoError(t, err)

	_, err = f.svc.RequestValidation(f.ctx, f.member.ID, item, model.UnitRoleOwner, "DAJ", "second round")
	require.NoError(t, err)

	change, err := f.svc.RequestChange(f.ctx, f.owner.ID, item, "tighten section 2")
	require.NoError(t, err)
	assert.Equal(t, model.EventRequestChange, change.Verb)

	assert.Empty(t, f.activeEvents(item, model.EventValidated), "the validator's earlier approval is withdrawn")
	assert.Empty(t, f.activeEvents(item, model.EventRequestValidation))
	assert.Len(t, f.activeEvents(item, model.EventRequestChange), 1)

	rows, err := f.repos.Notifications.ListForUser(f.ctx, f.member.ID, false)
	require.NoError(t, err)
	var changeRows int
	for _, row := range rows {
		if row.Type == model.NotificationRequestChange {
			changeRows++
		}
	}
	assert.Equal(t, 1, changeRows)
}

func TestValidateRequiresManagementRole(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	version := f.addVersion(f.member, "memo-v1.docx")

	_, err := f.svc.Validate(f.ctx, f.member.ID, versionRef(version), "self approval")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestAddMessage(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	version := f.addVersion(f.member, "memo-v1.docx")

	_, err := f.svc.AddMessage(f.ctx, f.member.ID, version.ReportID, "")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "message content is required", appErr.Message)

	event, err := f.svc.AddMessage(f.ctx, f.member.ID, version.ReportID, "first pass attached")
	require.NoError(t, err)
	assert.Equal(t, model.EventMessage, event.Verb)
	assert.Equal(t, model.UnitRoleMember, event.Metadata.SenderRole)

	rows, err := f.repos.Notifications.ListForUser(f.ctx, f.requester.ID, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.NotificationReportMessage, rows[0].Type)
	assert.Equal(t, "first pass attached", rows[0].Preview)
}

func TestAddMessageStranger(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	version := f.addVersion(f.member, "memo-v1.docx")
	stranger := f.newUser("Luc", "Henry")

	_, err := f.svc.AddMessage(f.ctx, stranger.ID, version.ReportID, "let me in")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestUpdateVersionRules(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	v1 := f.addVersion(f.member, "memo-v1.docx")
	v2 := f.addVersion(f.member, "memo-v2.docx")

	_, err := f.svc.UpdateVersion(f.ctx, f.owner.ID, v2.ID, "takeover.docx")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "only the author may update this version", appErr.Message)

	_, err = f.svc.UpdateVersion(f.ctx, f.member.ID, v1.ID, "stale.docx")
	appErr, ok = apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "only the latest version may be updated", appErr.Message)

	updated, err := f.svc.UpdateVersion(f.ctx, f.member.ID, v2.ID, "memo-v2-fixed.docx")
	require.NoError(t, err)
	assert.Equal(t, "memo-v2-fixed.docx", updated.DocumentName)

	events, err := f.svc.ListEvents(f.ctx, v2.ReportID)
	require.NoError(t, err)
	assert.Equal(t, model.EventVersionUpdated, events[len(events)-1].Verb)
}

func TestUpdateVersionAnsweredReferral(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	version := f.addVersion(f.member, "memo-v1.docx")

	f.referral.State = model.ReferralStateAnswered
	require.NoError(t, f.repos.Referrals.Update(f.ctx, f.referral))

	_, err := f.svc.UpdateVersion(f.ctx, f.member.ID, version.ID, "late.docx")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "referral has already been answered", appErr.Message)
}

func TestAppendixFlow(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	version := f.addVersion(f.member, "memo-v1.docx")
	reportID := version.ReportID

	first, err := f.svc.AddAppendix(f.ctx, f.member.ID, reportID, "annex-1.pdf")
	require.NoError(t, err)
	second, err := f.svc.AddAppendix(f.ctx, f.member.ID, reportID, "annex-2.pdf")
	require.NoError(t, err)

	_, err = f.svc.UpdateAppendix(f.ctx, f.member.ID, first.ID, "annex-1b.pdf")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "only the latest appendix may be updated", appErr.Message)

	_, err = f.svc.UpdateAppendix(f.ctx, f.owner.ID, second.ID, "hijack.pdf")
	appErr, ok = apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "only the author may update this appendix", appErr.Message)

	updated, err := f.svc.UpdateAppendix(f.ctx, f.member.ID, second.ID, "annex-2b.pdf")
	require.NoError(t, err)
	assert.Equal(t, "annex-2b.pdf", updated.DocumentName)

	events, err := f.svc.ListEvents(f.ctx, reportID)
	require.NoError(t, err)
	assert.Equal(t, model.EventAppendixUpdated, events[len(events)-1].Verb)
}

func TestPublishReport(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	version := f.addVersion(f.member, "memo-final.docx")

	report, err := f.svc.PublishReport(f.ctx, f.owner.ID, version.ReportID, version.ID)
	require.NoError(t, err)
	require.NotNil(t, report.PublishedAt)
	require.NotNil(t, report.FinalVersionID)
	assert.Equal(t, version.ID, *report.FinalVersionID)

	_, err = f.svc.PublishReport(f.ctx, f.owner.ID, version.ReportID, uuid.New())
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestGetValidators(t *testing.T) {
	f := newFixture(t, scanner.NoopClient{})
	version := f.addVersion(f.member, "memo-v1.docx")

	tree, err := f.svc.GetValidators(f.ctx, f.member.ID, versionRef(version))
	require.NoError(t, err)
	assert.Equal(t, []string{"Olivia Masson"}, tree[model.UnitRoleOwner]["DAJ"])
}
