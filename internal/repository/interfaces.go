package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/partaj/referral-api/internal/model"
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.User, error)
	}

	UnitRepository interface {
		CreateUnit(ctx context.Context, unit *model.Unit) error
		GetUnit(ctx context.Context, id uuid.UUID) (*model.Unit, error)
		CreateMembership(ctx context.Context, membership *model.UnitMembership) error
		// ListUserMemberships returns the memberships the user holds across
		// the given units, with unit names joined in.
		ListUserMemberships(ctx context.Context, userID uuid.UUID, unitIDs []uuid.UUID) ([]*model.UnitMembership, error)
		// ListMembershipsByRoles returns every membership across the given
		// units whose role is in roles, with unit and user names joined in.
		ListMembershipsByRoles(ctx context.Context, unitIDs []uuid.UUID, roles []model.UnitMembershipRole) ([]*model.UnitMembership, error)
		GetTopic(ctx context.Context, id uuid.UUID) (*model.Topic, error)
	}

	ReferralRepository interface {
		Create(ctx context.Context, referral *model.Referral) error
		Get(ctx context.Context, id uuid.UUID) (*model.Referral, error)
		Update(ctx context.Context, referral *model.Referral) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.ReferralFilters) ([]*model.Referral, error)

		AddUserLink(ctx context.Context, link *model.ReferralUserLink) error
		GetUserLink(ctx context.Context, referralID, userID uuid.UUID) (*model.ReferralUserLink, error)
		ListUserLinks(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralUserLink, error)
		RemoveUserLink(ctx context.Context, referralID, userID uuid.UUID, role model.ReferralUserLinkRole) error

		AddUnitLink(ctx context.Context, link *model.ReferralUnitLink) error
		ListUnits(ctx context.Context, referralID uuid.UUID) ([]*model.Unit, error)
		RemoveUnitLink(ctx context.Context, referralID, unitID uuid.UUID) error

		AddAssignment(ctx context.Context, assignment *model.ReferralAssignment) error
		ListAssignments(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralAssignment, error)
		RemoveAssignment(ctx context.Context, referralID, assigneeID uuid.UUID) error

		GetUrgency(ctx context.Context, id uuid.UUID) (*model.ReferralUrgency, error)
		GetDefaultUrgency(ctx context.Context) (*model.ReferralUrgency, error)
	}

	AnswerRepository interface {
		Create(ctx context.Context, answer *model.ReferralAnswer) error
		Get(ctx context.Context, id uuid.UUID) (*model.ReferralAnswer, error)
		Update(ctx context.Context, answer *model.ReferralAnswer) error
		ListByReferral(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralAnswer, error)

		CreateValidationRequest(ctx context.Context, request *model.ReferralAnswerValidationRequest) error
		GetValidationRequest(ctx context.Context, id uuid.UUID) (*model.ReferralAnswerValidationRequest, error)
		// GetOpenValidationRequest returns the request for (answer, validator)
		// that has no response yet, or a not-found error.
		GetOpenValidationRequest(ctx context.Context, answerID, validatorID uuid.UUID) (*model.ReferralAnswerValidationRequest, error)
		ListValidationRequests(ctx context.Context, answerID uuid.UUID) ([]*model.ReferralAnswerValidationRequest, error)
		CreateValidationResponse(ctx context.Context, response *model.ReferralAnswerValidationResponse) error
		GetValidationResponse(ctx context.Context, requestID uuid.UUID) (*model.ReferralAnswerValidationResponse, error)
	}

	ReportRepository interface {
		Create(ctx context.Context, report *model.ReferralReport) error
		Get(ctx context.Context, id uuid.UUID) (*model.ReferralReport, error)
		GetByReferral(ctx context.Context, referralID uuid.UUID) (*model.ReferralReport, error)
		Update(ctx context.Context, report *model.ReferralReport) error

		CreateVersion(ctx context.Context, version *model.ReportVersion) error
		GetVersion(ctx context.Context, id uuid.UUID) (*model.ReportVersion, error)
		UpdateVersion(ctx context.Context, version *model.ReportVersion) error
		ListVersions(ctx context.Context, reportID uuid.UUID) ([]*model.ReportVersion, error)
		GetLatestVersion(ctx context.Context, reportID uuid.UUID) (*model.ReportVersion, error)

		CreateAppendix(ctx context.Context, appendix *model.ReportAppendix) error
		GetAppendix(ctx context.Context, id uuid.UUID) (*model.ReportAppendix, error)
		UpdateAppendix(ctx context.Context, appendix *model.ReportAppendix) error
		ListAppendixes(ctx context.Context, reportID uuid.UUID) ([]*model.ReportAppendix, error)
		GetLatestAppendix(ctx context.Context, reportID uuid.UUID) (*model.ReportAppendix, error)
	}

	EventRepository interface {
		Create(ctx context.Context, event *model.ReportEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.ReportEvent, error)
		ListByReport(ctx context.Context, reportID uuid.UUID) ([]*model.ReportEvent, error)
		// ListActive returns the ACTIVE events with the given verb on the item.
		ListActive(ctx context.Context, item model.ItemRef, verb model.ReportEventVerb) ([]*model.ReportEvent, error)
		Deactivate(ctx context.Context, id uuid.UUID) error
	}

	ActivityRepository interface {
		Create(ctx context.Context, activity *model.ReferralActivity) error
		ListByReferral(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralActivity, error)
		CountByReferral(ctx context.Context, referralID uuid.UUID) (int, error)
	}

	NotificationRepository interface {
		CreateBatch(ctx context.Context, notifications []*model.Notification) error
		ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*model.Notification, error)
		MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error
		CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string, processedAt *time.Time) error
		IncrementRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error
		DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
		CountPending(ctx context.Context) (int, error)
	}
)

// Repos bundles the repositories that take part in transactional flows.
type Repos struct {
	Users         UserRepository
	Units         UnitRepository
	Referrals     ReferralRepository
	Answers       AnswerRepository
	Reports       ReportRepository
	Events        EventRepository
	Activities    ActivityRepository
	Notifications NotificationRepository
	Outbox        OutboxRepository
}

// UnitOfWork runs a function against transaction-bound repositories: every
// write inside fn commits or rolls back as one.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}
