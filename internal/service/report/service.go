package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/internal/scanner"
	"github.com/partaj/referral-api/internal/service/activity"
	"github.com/partaj/referral-api/internal/service/notification"
	"github.com/partaj/referral-api/internal/service/permission"
	"github.com/partaj/referral-api/internal/service/validation"
	apperrors "github.com/partaj/referral-api/pkg/errors"
	"github.com/partaj/referral-api/pkg/metrics"
)

// Service owns referral reports, their versions and appendixes, and the
// append-only event log layered on top. Events are never deleted: a newer
// event deactivates the ones it supersedes, inside the same transaction that
// inserts it.
type Service struct {
	uow        repository.UnitOfWork
	referrals  repository.ReferralRepository
	reports    repository.ReportRepository
	events     repository.EventRepository
	users      repository.UserRepository
	units      repository.UnitRepository
	perms      *permission.Service
	tree       *validation.Service
	notifier   *notification.Service
	activities *activity.Service
	scanner    scanner.Client
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func NewService(
	uow repository.UnitOfWork,
	repos repository.Repos,
	perms *permission.Service,
	tree *validation.Service,
	notifier *notification.Service,
	activities *activity.Service,
	scan scanner.Client,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		uow:        uow,
		referrals:  repos.Referrals,
		reports:    repos.Reports,
		events:     repos.Events,
		users:      repos.Users,
		units:      repos.Units,
		perms:      perms,
		tree:       tree,
		notifier:   notifier,
		activities: activities,
		scanner:    scan,
		metrics:    m,
		logger:     logger,
	}
}

// target bundles what an item reference points at.
type target struct {
	report   *model.ReferralReport
	referral *model.Referral
	authorID uuid.UUID
}

func (s *Service) resolveTarget(ctx context.Context, item model.ItemRef) (*target, error) {
	var reportID, authorID uuid.UUID

	switch item.Kind {
	case model.ItemKindReportVersion:
		version, err := s.reports.GetVersion(ctx, item.ID)
		if err != nil {
			return nil, apperrors.NotFound("report version", err)
		}
		reportID, authorID = version.ReportID, version.AuthorID
	case model.ItemKindReportAppendix:
		appendix, err := s.reports.GetAppendix(ctx, item.ID)
		if err != nil {
			return nil, apperrors.NotFound("report appendix", err)
		}
		reportID, authorID = appendix.ReportID, appendix.AuthorID
	default:
		return nil, apperrors.BadRequest(fmt.Sprintf("item kind %s cannot carry validation events", item.Kind), nil)
	}

	rep, err := s.reports.Get(ctx, reportID)
	if err != nil {
		return nil, apperrors.NotFound("report", err)
	}
	referral, err := s.referrals.Get(ctx, rep.ReferralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}

	return &target{report: rep, referral: referral, authorID: authorID}, nil
}

// RequestValidation records a validation request on a version or appendix,
// addressed to every holder of receiverRole in the unit named
// receiverUnitName. A previous active request for the same (item, role, unit)
// is deactivated so at most one stays active.
func (s *Service) RequestValidation(ctx context.Context, actorID uuid.UUID, item model.ItemRef, receiverRole model.UnitMembershipRole, receiverUnitName, comment string) (*model.ReportEvent, error) {
	tgt, err := s.resolveTarget(ctx, item)
	if err != nil {
		return nil, err
	}

	membership, err := s.perms.CanRequestValidation(ctx, actorID, tgt.referral)
	if err != nil {
		return nil, err
	}

	recipients, err := s.validatorRecipients(ctx, tgt.referral, receiverRole, receiverUnitName)
	if err != nil {
		return nil, err
	}

	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		return nil, apperrors.NotFound("user", err)
	}

	event := &model.ReportEvent{
		ReportID: tgt.report.ID,
		Verb:     model.EventRequestValidation,
		State:    model.EventStateActive,
		AuthorID: actorID,
		Content:  comment,
		Item:     item,
		Metadata: model.EventMetadata{
			SenderRole:       membership.Role,
			SenderUnitName:   membership.UnitName,
			ReceiverRole:     receiverRole,
			ReceiverUnitName: receiverUnitName,
		},
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		active, err := r.Events.ListActive(ctx, item, model.EventRequestValidation)
		if err != nil {
			return err
		}
		for _, prior := range active {
			if prior.Metadata.ReceiverRole != receiverRole || prior.Metadata.ReceiverUnitName != receiverUnitName {
				continue
			}
			if err := r.Events.Deactivate(ctx, prior.ID); err != nil {
				return err
			}
			s.metrics.ReportEventsDeactivated.Inc()
		}

		if err := r.Events.Create(ctx, event); err != nil {
			return err
		}

		if err := s.activities.Record(ctx, r, tgt.referral.ID, actorID, model.ActivityValidationRequested,
			model.NewItemRef(model.ItemKindReportEvent, event.ID), ""); err != nil {
			return err
		}

		return s.notifier.Dispatch(ctx, r, notification.Batch{
			NotifierID: actorID,
			Referral:   tgt.referral,
			Type:       model.NotificationValidationRequested,
			Content:    comment,
			Item:       model.NewItemRef(model.ItemKindReportEvent, event.ID),
			Recipients: recipients,
			EmailParams: map[string]string{
				"title":          tgt.referral.Title,
				"requester_name": actor.FullName(),
			},
		})
	})
	if err != nil {
		return nil, s.guard(err)
	}

	s.metrics.ReportEventsTotal.WithLabelValues(string(model.EventRequestValidation)).Inc()
	return event, nil
}

// RequestChange records a change request by a validator. It closes out the
// validation request it answers and supersedes the validator's own previous
// verdicts on the item.
func (s *Service) RequestChange(ctx context.Context, actorID uuid.UUID, item model.ItemRef, comment string) (*model.ReportEvent, error) {
	return s.respond(ctx, actorID, item, model.EventRequestChange, comment)
}

// Validate records an approval by a validator, with the same supersession
// rules as RequestChange.
func (s *Service) Validate(ctx context.Context, actorID uuid.UUID, item model.ItemRef, comment string) (*model.ReportEvent, error) {
	return s.respond(ctx, actorID, item, model.EventValidated, comment)
}

func (s *Service) respond(ctx context.Context, actorID uuid.UUID, item model.ItemRef, verb model.ReportEventVerb, comment string) (*model.ReportEvent, error) {
	tgt, err := s.resolveTarget(ctx, item)
	if err != nil {
		return nil, err
	}

	membership, err := s.perms.CanValidate(ctx, actorID, tgt.referral)
	if err != nil {
		return nil, err
	}

	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		return nil, apperrors.NotFound("user", err)
	}

	event := &model.ReportEvent{
		ReportID: tgt.report.ID,
		Verb:     verb,
		State:    model.EventStateActive,
		AuthorID: actorID,
		Content:  comment,
		Item:     item,
		Metadata: model.EventMetadata{
			SenderRole:     membership.Role,
			SenderUnitName: membership.UnitName,
		},
	}

	activityVerb := model.ActivityValidated
	notificationType := model.NotificationValidated
	if verb == model.EventRequestChange {
		activityVerb = model.ActivityValidationDenied
		notificationType = model.NotificationRequestChange
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		// The validator's own previous verdicts on this item are superseded.
		for _, priorVerb := range []model.ReportEventVerb{model.EventRequestChange, model.EventValidated} {
			active, err := r.Events.ListActive(ctx, item, priorVerb)
			if err != nil {
				return err
			}
			for _, prior := range active {
				if prior.Metadata.SenderRole != membership.Role || prior.Metadata.SenderUnitName != membership.UnitName {
					continue
				}
				if err := r.Events.Deactivate(ctx, prior.ID); err != nil {
					return err
				}
				s.metrics.ReportEventsDeactivated.Inc()
			}
		}

		// The validation request this verdict answers is closed out; its
		// authors get notified of the outcome.
		notifiedIDs := []uuid.UUID{tgt.authorID}
		requests, err := r.Events.ListActive(ctx, item, model.EventRequestValidation)
		if err != nil {
			return err
		}
		for _, request := range requests {
			if request.Metadata.ReceiverRole != membership.Role {
				continue
			}
			if err := r.Events.Deactivate(ctx, request.ID); err != nil {
				return err
			}
			s.metrics.ReportEventsDeactivated.Inc()
			notifiedIDs = append(notifiedIDs, request.AuthorID)
		}

		if err := r.Events.Create(ctx, event); err != nil {
			return err
		}

		if err := s.activities.Record(ctx, r, tgt.referral.ID, actorID, activityVerb,
			model.NewItemRef(model.ItemKindReportEvent, event.ID), ""); err != nil {
			return err
		}

		recipients, err := s.userRecipients(ctx, notifiedIDs)
		if err != nil {
			return err
		}

		return s.notifier.Dispatch(ctx, r, notification.Batch{
			NotifierID: actorID,
			Referral:   tgt.referral,
			Type:       notificationType,
			Content:    comment,
			Item:       model.NewItemRef(model.ItemKindReportEvent, event.ID),
			Recipients: recipients,
			EmailParams: map[string]string{
				"title":       tgt.referral.Title,
				"sender_name": actor.FullName(),
			},
		})
	})
	if err != nil {
		return nil, s.guard(err)
	}

	s.metrics.ReportEventsTotal.WithLabelValues(string(verb)).Inc()
	return event, nil
}

// AddMessage appends a free-text message to the report and notifies everyone
// attached to the referral except the author.
func (s *Service) AddMessage(ctx context.Context, actorID, reportID uuid.UUID, content string) (*model.ReportEvent, error) {
	if content == "" {
		return nil, apperrors.BadRequest("message content is required", nil)
	}

	rep, err := s.reports.Get(ctx, reportID)
	if err != nil {
		return nil, apperrors.NotFound("report", err)
	}
	referral, err := s.referrals.Get(ctx, rep.ReferralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}

	membership, err := s.perms.ResolveMembership(ctx, actorID, referral)
	if err != nil {
		return nil, err
	}
	if membership == nil && !permission.IsLinked(referral, actorID) {
		return nil, apperrors.Forbidden("user is not attached to this referral")
	}

	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		return nil, apperrors.NotFound("user", err)
	}

	event := &model.ReportEvent{
		ReportID: reportID,
		Verb:     model.EventMessage,
		State:    model.EventStateActive,
		AuthorID: actorID,
		Content:  content,
	}
	if membership != nil {
		event.Metadata = model.EventMetadata{
			SenderRole:     membership.Role,
			SenderUnitName: membership.UnitName,
		}
	}

	recipients, err := s.referralAudience(ctx, referral, actorID)
	if err != nil {
		return nil, err
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Events.Create(ctx, event); err != nil {
			return err
		}
		return s.notifier.Dispatch(ctx, r, notification.Batch{
			NotifierID: actorID,
			Referral:   referral,
			Type:       model.NotificationReportMessage,
			Content:    content,
			Item:       model.NewItemRef(model.ItemKindReportEvent, event.ID),
			Recipients: recipients,
			EmailParams: map[string]string{
				"title":       referral.Title,
				"sender_name": actor.FullName(),
			},
		})
	})
	if err != nil {
		return nil, s.guard(err)
	}

	s.metrics.ReportEventsTotal.WithLabelValues(string(model.EventMessage)).Inc()
	return event, nil
}

// ListEvents returns the full event log of a report, oldest first.
func (s *Service) ListEvents(ctx context.Context, reportID uuid.UUID) ([]*model.ReportEvent, error) {
	if _, err := s.reports.Get(ctx, reportID); err != nil {
		return nil, apperrors.NotFound("report", err)
	}
	return s.events.ListByReport(ctx, reportID)
}

// GetValidators builds the validator tree for the referral owning the item.
func (s *Service) GetValidators(ctx context.Context, actorID uuid.UUID, item model.ItemRef) (validation.Tree, error) {
	tgt, err := s.resolveTarget(ctx, item)
	if err != nil {
		return nil, err
	}
	return s.tree.BuildTree(ctx, actorID, tgt.referral)
}

// GetByReferral returns the report attached to a referral.
func (s *Service) GetByReferral(ctx context.Context, referralID uuid.UUID) (*model.ReferralReport, error) {
	rep, err := s.reports.GetByReferral(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("report", err)
	}
	return rep, nil
}

// AddVersion scans and records a new report version. The first version also
// creates the report itself.
func (s *Service) AddVersion(ctx context.Context, actorID, referralID uuid.UUID, documentName string) (*model.ReportVersion, error) {
	referral, err := s.referrals.Get(ctx, referralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if !referral.IsOpen() {
		return nil, apperrors.Forbidden("referral no longer accepts report versions")
	}
	membership, err := s.perms.RequireMembership(ctx, actorID, referral)
	if err != nil {
		return nil, err
	}

	status, err := s.scanner.Scan(ctx, documentName)
	if err != nil {
		return nil, err
	}
	if err := scanner.CheckVerdict(status, documentName); err != nil {
		return nil, err
	}

	version := &model.ReportVersion{
		AuthorID:     actorID,
		DocumentName: documentName,
		ScanStatus:   status,
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		rep, err := r.Reports.GetByReferral(ctx, referralID)
		if err != nil {
			rep = &model.ReferralReport{ReferralID: referralID}
			if err := r.Reports.Create(ctx, rep); err != nil {
				return err
			}
		}
		version.ReportID = rep.ID

		latest, err := r.Reports.GetLatestVersion(ctx, rep.ID)
		if err == nil {
			version.VersionNumber = latest.VersionNumber + 1
		} else {
			version.VersionNumber = 1
		}

		if err := r.Reports.CreateVersion(ctx, version); err != nil {
			return err
		}

		event := &model.ReportEvent{
			ReportID: rep.ID,
			Verb:     model.EventVersionAdded,
			State:    model.EventStateActive,
			AuthorID: actorID,
			Item:     model.NewItemRef(model.ItemKindReportVersion, version.ID),
			Metadata: model.EventMetadata{
				SenderRole:     membership.Role,
				SenderUnitName: membership.UnitName,
			},
		}
		return r.Events.Create(ctx, event)
	})
	if err != nil {
		return nil, s.guard(err)
	}

	s.metrics.ReportEventsTotal.WithLabelValues(string(model.EventVersionAdded)).Inc()
	return version, nil
}

// UpdateVersion replaces the document of the latest version. Only its author
// may update it, and only while the referral is unanswered.
func (s *Service) UpdateVersion(ctx context.Context, actorID, versionID uuid.UUID, documentName string) (*model.ReportVersion, error) {
	version, err := s.reports.GetVersion(ctx, versionID)
	if err != nil {
		return nil, apperrors.NotFound("report version", err)
	}
	rep, err := s.reports.Get(ctx, version.ReportID)
	if err != nil {
		return nil, apperrors.NotFound("report", err)
	}
	referral, err := s.referrals.Get(ctx, rep.ReferralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}

	if version.AuthorID != actorID {
		return nil, apperrors.Forbidden("only the author may update this version")
	}
	latest, err := s.reports.GetLatestVersion(ctx, rep.ID)
	if err != nil || latest.ID != version.ID {
		return nil, apperrors.Forbidden("only the latest version may be updated")
	}
	if referral.State == model.ReferralStateAnswered {
		return nil, apperrors.Forbidden("referral has already been answered")
	}

	status, err := s.scanner.Scan(ctx, documentName)
	if err != nil {
		return nil, err
	}
	if err := scanner.CheckVerdict(status, documentName); err != nil {
		return nil, err
	}

	version.DocumentName = documentName
	version.ScanStatus = status

	membership, err := s.perms.RequireMembership(ctx, actorID, referral)
	if err != nil {
		return nil, err
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Reports.UpdateVersion(ctx, version); err != nil {
			return err
		}
		event := &model.ReportEvent{
			ReportID: rep.ID,
			Verb:     model.EventVersionUpdated,
			State:    model.EventStateActive,
			AuthorID: actorID,
			Item:     model.NewItemRef(model.ItemKindReportVersion, version.ID),
			Metadata: model.EventMetadata{
				SenderRole:     membership.Role,
				SenderUnitName: membership.UnitName,
			},
		}
		return r.Events.Create(ctx, event)
	})
	if err != nil {
		return nil, s.guard(err)
	}

	s.metrics.ReportEventsTotal.WithLabelValues(string(model.EventVersionUpdated)).Inc()
	return version, nil
}

// AddAppendix scans and records a new appendix on the report.
func (s *Service) AddAppendix(ctx context.Context, actorID, reportID uuid.UUID, documentName string) (*model.ReportAppendix, error) {
	rep, err := s.reports.Get(ctx, reportID)
	if err != nil {
		return nil, apperrors.NotFound("report", err)
	}
	referral, err := s.referrals.Get(ctx, rep.ReferralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	membership, err := s.perms.RequireMembership(ctx, actorID, referral)
	if err != nil {
		return nil, err
	}

	status, err := s.scanner.Scan(ctx, documentName)
	if err != nil {
		return nil, err
	}
	if err := scanner.CheckVerdict(status, documentName); err != nil {
		return nil, err
	}

	appendix := &model.ReportAppendix{
		ReportID:     reportID,
		AuthorID:     actorID,
		DocumentName: documentName,
		ScanStatus:   status,
	}

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Reports.CreateAppendix(ctx, appendix); err != nil {
			return err
		}
		event := &model.ReportEvent{
			ReportID: reportID,
			Verb:     model.EventAppendixAdded,
			State:    model.EventStateActive,
			AuthorID: actorID,
			Item:     model.NewItemRef(model.ItemKindReportAppendix, appendix.ID),
			Metadata: model.EventMetadata{
				SenderRole:     membership.Role,
				SenderUnitName: membership.UnitName,
			},
		}
		return r.Events.Create(ctx, event)
	})
	if err != nil {
		return nil, s.guard(err)
	}

	s.metrics.ReportEventsTotal.WithLabelValues(string(model.EventAppendixAdded)).Inc()
	return appendix, nil
}

// UpdateAppendix replaces the document of the latest appendix, author-only.
func (s *Service) UpdateAppendix(ctx context.Context, actorID, appendixID uuid.UUID, documentName string) (*model.ReportAppendix, error) {
	appendix, err := s.reports.GetAppendix(ctx, appendixID)
	if err != nil {
		return nil, apperrors.NotFound("report appendix", err)
	}
	rep, err := s.reports.Get(ctx, appendix.ReportID)
	if err != nil {
		return nil, apperrors.NotFound("report", err)
	}
	referral, err := s.referrals.Get(ctx, rep.ReferralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}

	latest, _ := s.reports.GetLatestAppendix(ctx, rep.ID)
	if err := s.perms.CanUpdateAppendix(actorID, referral, appendix, latest); err != nil {
		return nil, err
	}
	membership, err := s.perms.RequireMembership(ctx, actorID, referral)
	if err != nil {
		return nil, err
	}

	status, err := s.scanner.Scan(ctx, documentName)
	if err != nil {
		return nil, err
	}
	if err := scanner.CheckVerdict(status, documentName); err != nil {
		return nil, err
	}

	appendix.DocumentName = documentName
	appendix.ScanStatus = status

	err = s.uow.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Reports.UpdateAppendix(ctx, appendix); err != nil {
			return err
		}
		event := &model.ReportEvent{
			ReportID: rep.ID,
			Verb:     model.EventAppendixUpdated,
			State:    model.EventStateActive,
			AuthorID: actorID,
			Item:     model.NewItemRef(model.ItemKindReportAppendix, appendix.ID),
			Metadata: model.EventMetadata{
				SenderRole:     membership.Role,
				SenderUnitName: membership.UnitName,
			},
		}
		return r.Events.Create(ctx, event)
	})
	if err != nil {
		return nil, s.guard(err)
	}

	s.metrics.ReportEventsTotal.WithLabelValues(string(model.EventAppendixUpdated)).Inc()
	return appendix, nil
}

// PublishReport stamps the report published with its final version.
func (s *Service) PublishReport(ctx context.Context, actorID, reportID, versionID uuid.UUID) (*model.ReferralReport, error) {
	rep, err := s.reports.Get(ctx, reportID)
	if err != nil {
		return nil, apperrors.NotFound("report", err)
	}
	referral, err := s.referrals.Get(ctx, rep.ReferralID)
	if err != nil {
		return nil, apperrors.NotFound("referral", err)
	}
	if _, err := s.perms.CanManage(ctx, actorID, referral); err != nil {
		return nil, err
	}

	version, err := s.reports.GetVersion(ctx, versionID)
	if err != nil {
		return nil, apperrors.NotFound("report version", err)
	}
	if version.ReportID != rep.ID {
		return nil, apperrors.BadRequest("version does not belong to this report", nil)
	}

	now := time.Now()
	rep.PublishedAt = &now
	rep.FinalVersionID = &version.ID
	if err := s.reports.Update(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to publish report: %w", err)
	}
	return rep, nil
}

// validatorRecipients resolves the members holding receiverRole in the linked
// unit named receiverUnitName.
func (s *Service) validatorRecipients(ctx context.Context, referral *model.Referral, receiverRole model.UnitMembershipRole, receiverUnitName string) ([]notification.Recipient, error) {
	var unitIDs []uuid.UUID
	for _, unit := range referral.Units {
		if unit.Name == receiverUnitName {
			unitIDs = append(unitIDs, unit.ID)
		}
	}
	if len(unitIDs) == 0 {
		return nil, apperrors.BadRequest(fmt.Sprintf("unit %s is not linked to this referral", receiverUnitName), nil)
	}

	memberships, err := s.units.ListMembershipsByRoles(ctx, unitIDs, []model.UnitMembershipRole{receiverRole})
	if err != nil {
		return nil, fmt.Errorf("failed to list validator memberships: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.UserID)
	}
	return s.userRecipients(ctx, ids)
}

// userRecipients loads users and wraps them as recipients with the default
// ALL preference, which unit members always have.
func (s *Service) userRecipients(ctx context.Context, ids []uuid.UUID) ([]notification.Recipient, error) {
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

// referralAudience is everyone attached to the referral except the actor:
// requesters and observers with their link preference, plus assignees.
func (s *Service) referralAudience(ctx context.Context, referral *model.Referral, actorID uuid.UUID) ([]notification.Recipient, error) {
	prefs := make(map[uuid.UUID]model.ReferralUserLinkNotificationsType)
	var ids []uuid.UUID
	for _, link := range referral.UserLinks {
		if link.UserID == actorID {
			continue
		}
		prefs[link.UserID] = link.Notifications
		ids = append(ids, link.UserID)
	}
	for _, assignment := range referral.Assignments {
		if assignment.AssigneeID == actorID {
			continue
		}
		if _, seen := prefs[assignment.AssigneeID]; seen {
			continue
		}
		prefs[assignment.AssigneeID] = model.NotificationsAll
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
			Preference: prefs[user.ID],
		})
	}
	return recipients, nil
}

// guard keeps unexpected faults inside guarded flows from leaking as 500s:
// they are logged and surfaced as a safe 400 body.
func (s *Service) guard(err error) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	if _, ok := apperrors.AsFieldErrors(err); ok {
		return err
	}
	s.logger.Error().Err(err).Msg("report flow failed")
	return apperrors.BadRequest("could not perform this action", err)
}
