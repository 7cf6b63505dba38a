// Package memory provides an in-memory implementation of the repository
// interfaces. It backs the service test suites, where a relational database
// would only slow the feedback loop down.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
)

// ErrNotFound is returned whenever a lookup misses.
var ErrNotFound = errors.New("not found")

// Store holds every record behind a single lock. It implements
// repository.UnitOfWork; transactional semantics collapse to sequential
// execution, which is enough for the invariants the services enforce.
type Store struct {
	mu sync.Mutex

	users       map[uuid.UUID]*model.User
	units       map[uuid.UUID]*model.Unit
	topics      map[uuid.UUID]*model.Topic
	memberships []*model.UnitMembership

	referrals   map[uuid.UUID]*model.Referral
	userLinks   []*model.ReferralUserLink
	unitLinks   []*model.ReferralUnitLink
	assignments []*model.ReferralAssignment
	urgencies   map[uuid.UUID]*model.ReferralUrgency

	answers             map[uuid.UUID]*model.ReferralAnswer
	validationRequests  map[uuid.UUID]*model.ReferralAnswerValidationRequest
	validationResponses []*model.ReferralAnswerValidationResponse

	reports    map[uuid.UUID]*model.ReferralReport
	versions   map[uuid.UUID]*model.ReportVersion
	appendixes map[uuid.UUID]*model.ReportAppendix
	events     map[uuid.UUID]*model.ReportEvent
	eventOrder []uuid.UUID

	activities    []*model.ReferralActivity
	notifications []*model.Notification
	outbox        []*model.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		users:              make(map[uuid.UUID]*model.User),
		units:              make(map[uuid.UUID]*model.Unit),
		topics:             make(map[uuid.UUID]*model.Topic),
		referrals:          make(map[uuid.UUID]*model.Referral),
		urgencies:          make(map[uuid.UUID]*model.ReferralUrgency),
		answers:            make(map[uuid.UUID]*model.ReferralAnswer),
		validationRequests: make(map[uuid.UUID]*model.ReferralAnswerValidationRequest),
		reports:            make(map[uuid.UUID]*model.ReferralReport),
		versions:           make(map[uuid.UUID]*model.ReportVersion),
		appendixes:         make(map[uuid.UUID]*model.ReportAppendix),
		events:             make(map[uuid.UUID]*model.ReportEvent),
	}
}

// Repos returns the repository bundle backed by this store.
func (s *Store) Repos() repository.Repos {
	return repository.Repos{
		Users:         &userRepo{s},
		Units:         &unitRepo{s},
		Referrals:     &referralRepo{s},
		Answers:       &answerRepo{s},
		Reports:       &reportRepo{s},
		Events:        &eventRepo{s},
		Activities:    &activityRepo{s},
		Notifications: &notificationRepo{s},
		Outbox:        &outboxRepo{s},
	}
}

// WithinTx runs fn against the store. Writes are not rolled back on failure.
func (s *Store) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	return fn(s.Repos())
}

func stamp(b *model.Base) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&user.Base)
	copied := *user
	r.s.users[user.ID] = &copied
	return nil
}

func (r *userRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	copied := *user
	return &copied, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user: %w", ErrNotFound)
}

func (r *userRepo) GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := r.s.users[id]; ok {
			copied := *user
			users = append(users, &copied)
		}
	}
	return users, nil
}

type unitRepo struct{ s *Store }

func (r *unitRepo) CreateUnit(ctx context.Context, unit *model.Unit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&unit.Base)
	copied := *unit
	r.s.units[unit.ID] = &copied
	return nil
}

func (r *unitRepo) GetUnit(ctx context.Context, id uuid.UUID) (*model.Unit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	unit, ok := r.s.units[id]
	if !ok {
		return nil, fmt.Errorf("unit: %w", ErrNotFound)
	}
	copied := *unit
	return &copied, nil
}

func (r *unitRepo) CreateMembership(ctx context.Context, membership *model.UnitMembership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&membership.Base)
	copied := *membership
	r.s.memberships = append(r.s.memberships, &copied)
	return nil
}

func (r *unitRepo) ListUserMemberships(ctx context.Context, userID uuid.UUID, unitIDs []uuid.UUID) ([]*model.UnitMembership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(unitIDs))
	for _, id := range unitIDs {
		wanted[id] = true
	}

	var out []*model.UnitMembership
	for _, m := range r.s.memberships {
		if m.UserID != userID || !wanted[m.UnitID] {
			continue
		}
		out = append(out, r.joined(m))
	}
	return out, nil
}

func (r *unitRepo) ListMembershipsByRoles(ctx context.Context, unitIDs []uuid.UUID, roles []model.UnitMembershipRole) ([]*model.UnitMembership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(unitIDs))
	for _, id := range unitIDs {
		wanted[id] = true
	}
	wantedRoles := make(map[model.UnitMembershipRole]bool, len(roles))
	for _, role := range roles {
		wantedRoles[role] = true
	}

	var out []*model.UnitMembership
	for _, m := range r.s.memberships {
		if !wanted[m.UnitID] || !wantedRoles[m.Role] {
			continue
		}
		out = append(out, r.joined(m))
	}
	return out, nil
}

// joined mirrors the SQL joins that populate display columns.
func (r *unitRepo) joined(m *model.UnitMembership) *model.UnitMembership {
	copied := *m
	if unit, ok := r.s.units[m.UnitID]; ok {
		copied.UnitName = unit.Name
	}
	if user, ok := r.s.users[m.UserID]; ok {
		copied.UserFullName = user.FullName()
	}
	return &copied
}

func (r *unitRepo) GetTopic(ctx context.Context, id uuid.UUID) (*model.Topic, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	topic, ok := r.s.topics[id]
	if !ok {
		return nil, fmt.Errorf("topic: %w", ErrNotFound)
	}
	copied := *topic
	return &copied, nil
}

// CreateTopic and CreateUrgency are seeding helpers for tests; the SQL layer
// treats these tables as reference data.
func (s *Store) CreateTopic(topic *model.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&topic.Base)
	copied := *topic
	s.topics[topic.ID] = &copied
}

func (s *Store) CreateUrgency(urgency *model.ReferralUrgency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&urgency.Base)
	copied := *urgency
	s.urgencies[urgency.ID] = &copied
}

type referralRepo struct{ s *Store }

func (r *referralRepo) Create(ctx context.Context, referral *model.Referral) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&referral.Base)
	copied := *referral
	copied.Units = nil
	copied.UserLinks = nil
	copied.Assignments = nil
	r.s.referrals[referral.ID] = &copied
	return nil
}

func (r *referralRepo) Get(ctx context.Context, id uuid.UUID) (*model.Referral, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	referral, ok := r.s.referrals[id]
	if !ok || referral.DeletedAt != nil {
		return nil, fmt.Errorf("referral: %w", ErrNotFound)
	}

	copied := *referral
	copied.Units = r.listUnits(id)
	copied.UserLinks = r.listUserLinks(id)
	copied.Assignments = r.listAssignments(id)
	return &copied, nil
}

func (r *referralRepo) Update(ctx context.Context, referral *model.Referral) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.referrals[referral.ID]
	if !ok || stored.DeletedAt != nil {
		return fmt.Errorf("referral: %w", ErrNotFound)
	}
	referral.UpdatedAt = time.Now()
	copied := *referral
	copied.Units = nil
	copied.UserLinks = nil
	copied.Assignments = nil
	copied.CreatedAt = stored.CreatedAt
	r.s.referrals[referral.ID] = &copied
	return nil
}

func (r *referralRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.referrals[id]
	if !ok {
		return fmt.Errorf("referral: %w", ErrNotFound)
	}
	now := time.Now()
	stored.DeletedAt = &now
	return nil
}

func (r *referralRepo) List(ctx context.Context, filters *model.ReferralFilters) ([]*model.Referral, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Referral
	for _, referral := range r.s.referrals {
		if referral.DeletedAt != nil {
			continue
		}
		if filters != nil {
			if filters.State != "" && referral.State != filters.State {
				continue
			}
			if filters.TopicID != nil && (referral.TopicID == nil || *referral.TopicID != *filters.TopicID) {
				continue
			}
		}
		copied := *referral
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *referralRepo) AddUserLink(ctx context.Context, link *model.ReferralUserLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&link.Base)
	copied := *link
	r.s.userLinks = append(r.s.userLinks, &copied)
	return nil
}

func (r *referralRepo) GetUserLink(ctx context.Context, referralID, userID uuid.UUID) (*model.ReferralUserLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, link := range r.s.userLinks {
		if link.ReferralID == referralID && link.UserID == userID {
			copied := *link
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user link: %w", ErrNotFound)
}

func (r *referralRepo) ListUserLinks(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralUserLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.listUserLinks(referralID), nil
}

func (r *referralRepo) RemoveUserLink(ctx context.Context, referralID, userID uuid.UUID, role model.ReferralUserLinkRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, link := range r.s.userLinks {
		if link.ReferralID == referralID && link.UserID == userID && link.Role == role {
			r.s.userLinks = append(r.s.userLinks[:i], r.s.userLinks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("user link: %w", ErrNotFound)
}

func (r *referralRepo) AddUnitLink(ctx context.Context, link *model.ReferralUnitLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&link.Base)
	copied := *link
	r.s.unitLinks = append(r.s.unitLinks, &copied)
	return nil
}

func (r *referralRepo) ListUnits(ctx context.Context, referralID uuid.UUID) ([]*model.Unit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.listUnits(referralID), nil
}

func (r *referralRepo) RemoveUnitLink(ctx context.Context, referralID, unitID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, link := range r.s.unitLinks {
		if link.ReferralID == referralID && link.UnitID == unitID {
			r.s.unitLinks = append(r.s.unitLinks[:i], r.s.unitLinks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("unit link: %w", ErrNotFound)
}

func (r *referralRepo) AddAssignment(ctx context.Context, assignment *model.ReferralAssignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&assignment.Base)
	copied := *assignment
	r.s.assignments = append(r.s.assignments, &copied)
	return nil
}

func (r *referralRepo) ListAssignments(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.listAssignments(referralID), nil
}

func (r *referralRepo) RemoveAssignment(ctx context.Context, referralID, assigneeID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, a := range r.s.assignments {
		if a.ReferralID == referralID && a.AssigneeID == assigneeID {
			r.s.assignments = append(r.s.assignments[:i], r.s.assignments[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("assignment: %w", ErrNotFound)
}

func (r *referralRepo) GetUrgency(ctx context.Context, id uuid.UUID) (*model.ReferralUrgency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	urgency, ok := r.s.urgencies[id]
	if !ok {
		return nil, fmt.Errorf("urgency level: %w", ErrNotFound)
	}
	copied := *urgency
	return &copied, nil
}

func (r *referralRepo) GetDefaultUrgency(ctx context.Context) (*model.ReferralUrgency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, urgency := range r.s.urgencies {
		if urgency.IsDefault {
			copied := *urgency
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("urgency level: %w", ErrNotFound)
}

func (r *referralRepo) listUnits(referralID uuid.UUID) []*model.Unit {
	var out []*model.Unit
	for _, link := range r.s.unitLinks {
		if link.ReferralID != referralID {
			continue
		}
		if unit, ok := r.s.units[link.UnitID]; ok {
			copied := *unit
			out = append(out, &copied)
		}
	}
	return out
}

func (r *referralRepo) listUserLinks(referralID uuid.UUID) []*model.ReferralUserLink {
	var out []*model.ReferralUserLink
	for _, link := range r.s.userLinks {
		if link.ReferralID == referralID {
			copied := *link
			out = append(out, &copied)
		}
	}
	return out
}

func (r *referralRepo) listAssignments(referralID uuid.UUID) []*model.ReferralAssignment {
	var out []*model.ReferralAssignment
	for _, a := range r.s.assignments {
		if a.ReferralID == referralID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out
}

type answerRepo struct{ s *Store }

func (r *answerRepo) Create(ctx context.Context, answer *model.ReferralAnswer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&answer.Base)
	copied := *answer
	r.s.answers[answer.ID] = &copied
	return nil
}

func (r *answerRepo) Get(ctx context.Context, id uuid.UUID) (*model.ReferralAnswer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	answer, ok := r.s.answers[id]
	if !ok {
		return nil, fmt.Errorf("answer: %w", ErrNotFound)
	}
	copied := *answer
	return &copied, nil
}

func (r *answerRepo) Update(ctx context.Context, answer *model.ReferralAnswer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.answers[answer.ID]; !ok {
		return fmt.Errorf("answer: %w", ErrNotFound)
	}
	answer.UpdatedAt = time.Now()
	copied := *answer
	r.s.answers[answer.ID] = &copied
	return nil
}

func (r *answerRepo) ListByReferral(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralAnswer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ReferralAnswer
	for _, answer := range r.s.answers {
		if answer.ReferralID == referralID {
			copied := *answer
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *answerRepo) CreateValidationRequest(ctx context.Context, request *model.ReferralAnswerValidationRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&request.Base)
	copied := *request
	r.s.validationRequests[request.ID] = &copied
	return nil
}

func (r *answerRepo) GetValidationRequest(ctx context.Context, id uuid.UUID) (*model.ReferralAnswerValidationRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	request, ok := r.s.validationRequests[id]
	if !ok {
		return nil, fmt.Errorf("validation request: %w", ErrNotFound)
	}
	copied := *request
	return &copied, nil
}

func (r *answerRepo) GetOpenValidationRequest(ctx context.Context, answerID, validatorID uuid.UUID) (*model.ReferralAnswerValidationRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, request := range r.s.validationRequests {
		if request.AnswerID != answerID || request.ValidatorID != validatorID {
			continue
		}
		if !r.hasResponse(request.ID) {
			copied := *request
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("validation request: %w", ErrNotFound)
}

func (r *answerRepo) ListValidationRequests(ctx context.Context, answerID uuid.UUID) ([]*model.ReferralAnswerValidationRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ReferralAnswerValidationRequest
	for _, request := range r.s.validationRequests {
		if request.AnswerID == answerID {
			copied := *request
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *answerRepo) CreateValidationResponse(ctx context.Context, response *model.ReferralAnswerValidationResponse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&response.Base)
	copied := *response
	r.s.validationResponses = append(r.s.validationResponses, &copied)
	return nil
}

func (r *answerRepo) GetValidationResponse(ctx context.Context, requestID uuid.UUID) (*model.ReferralAnswerValidationResponse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, response := range r.s.validationResponses {
		if response.RequestID == requestID {
			copied := *response
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("validation response: %w", ErrNotFound)
}

func (r *answerRepo) hasResponse(requestID uuid.UUID) bool {
	for _, response := range r.s.validationResponses {
		if response.RequestID == requestID {
			return true
		}
	}
	return false
}

type reportRepo struct{ s *Store }

func (r *reportRepo) Create(ctx context.Context, report *model.ReferralReport) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&report.Base)
	copied := *report
	r.s.reports[report.ID] = &copied
	return nil
}

func (r *reportRepo) Get(ctx context.Context, id uuid.UUID) (*model.ReferralReport, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	report, ok := r.s.reports[id]
	if !ok {
		return nil, fmt.Errorf("report: %w", ErrNotFound)
	}
	copied := *report
	return &copied, nil
}

func (r *reportRepo) GetByReferral(ctx context.Context, referralID uuid.UUID) (*model.ReferralReport, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, report := range r.s.reports {
		if report.ReferralID == referralID {
			copied := *report
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("report: %w", ErrNotFound)
}

func (r *reportRepo) Update(ctx context.Context, report *model.ReferralReport) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.reports[report.ID]; !ok {
		return fmt.Errorf("report: %w", ErrNotFound)
	}
	report.UpdatedAt = time.Now()
	copied := *report
	r.s.reports[report.ID] = &copied
	return nil
}

func (r *reportRepo) CreateVersion(ctx context.Context, version *model.ReportVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&version.Base)
	copied := *version
	r.s.versions[version.ID] = &copied
	return nil
}

func (r *reportRepo) GetVersion(ctx context.Context, id uuid.UUID) (*model.ReportVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	version, ok := r.s.versions[id]
	if !ok {
		return nil, fmt.Errorf("report version: %w", ErrNotFound)
	}
	copied := *version
	return &copied, nil
}

func (r *reportRepo) UpdateVersion(ctx context.Context, version *model.ReportVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.versions[version.ID]; !ok {
		return fmt.Errorf("report version: %w", ErrNotFound)
	}
	version.UpdatedAt = time.Now()
	copied := *version
	r.s.versions[version.ID] = &copied
	return nil
}

func (r *reportRepo) ListVersions(ctx context.Context, reportID uuid.UUID) ([]*model.ReportVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ReportVersion
	for _, version := range r.s.versions {
		if version.ReportID == reportID {
			copied := *version
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out, nil
}

func (r *reportRepo) GetLatestVersion(ctx context.Context, reportID uuid.UUID) (*model.ReportVersion, error) {
	versions, _ := r.ListVersions(ctx, reportID)
	if len(versions) == 0 {
		return nil, fmt.Errorf("report version: %w", ErrNotFound)
	}
	return versions[len(versions)-1], nil
}

func (r *reportRepo) CreateAppendix(ctx context.Context, appendix *model.ReportAppendix) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&appendix.Base)
	copied := *appendix
	r.s.appendixes[appendix.ID] = &copied
	return nil
}

func (r *reportRepo) GetAppendix(ctx context.Context, id uuid.UUID) (*model.ReportAppendix, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	appendix, ok := r.s.appendixes[id]
	if !ok {
		return nil, fmt.Errorf("report appendix: %w", ErrNotFound)
	}
	copied := *appendix
	return &copied, nil
}

func (r *reportRepo) UpdateAppendix(ctx context.Context, appendix *model.ReportAppendix) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.appendixes[appendix.ID]; !ok {
		return fmt.Errorf("report appendix: %w", ErrNotFound)
	}
	appendix.UpdatedAt = time.Now()
	copied := *appendix
	r.s.appendixes[appendix.ID] = &copied
	return nil
}

func (r *reportRepo) ListAppendixes(ctx context.Context, reportID uuid.UUID) ([]*model.ReportAppendix, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ReportAppendix
	for _, appendix := range r.s.appendixes {
		if appendix.ReportID == reportID {
			copied := *appendix
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *reportRepo) GetLatestAppendix(ctx context.Context, reportID uuid.UUID) (*model.ReportAppendix, error) {
	appendixes, _ := r.ListAppendixes(ctx, reportID)
	if len(appendixes) == 0 {
		return nil, fmt.Errorf("report appendix: %w", ErrNotFound)
	}
	return appendixes[len(appendixes)-1], nil
}

type eventRepo struct{ s *Store }

func (r *eventRepo) Create(ctx context.Context, event *model.ReportEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&event.Base)
	copied := *event
	r.s.events[event.ID] = &copied
	r.s.eventOrder = append(r.s.eventOrder, event.ID)
	return nil
}

func (r *eventRepo) Get(ctx context.Context, id uuid.UUID) (*model.ReportEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	event, ok := r.s.events[id]
	if !ok {
		return nil, fmt.Errorf("report event: %w", ErrNotFound)
	}
	copied := *event
	return &copied, nil
}

func (r *eventRepo) ListByReport(ctx context.Context, reportID uuid.UUID) ([]*model.ReportEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ReportEvent
	for _, id := range r.s.eventOrder {
		event := r.s.events[id]
		if event.ReportID == reportID {
			copied := *event
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *eventRepo) ListActive(ctx context.Context, item model.ItemRef, verb model.ReportEventVerb) ([]*model.ReportEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ReportEvent
	for _, id := range r.s.eventOrder {
		event := r.s.events[id]
		if event.Item == item && event.Verb == verb && event.State == model.EventStateActive {
			copied := *event
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *eventRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	event, ok := r.s.events[id]
	if !ok {
		return fmt.Errorf("report event: %w", ErrNotFound)
	}
	event.State = model.EventStateInactive
	event.UpdatedAt = time.Now()
	return nil
}

type activityRepo struct{ s *Store }

func (r *activityRepo) Create(ctx context.Context, activity *model.ReferralActivity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&activity.Base)
	copied := *activity
	r.s.activities = append(r.s.activities, &copied)
	return nil
}

func (r *activityRepo) ListByReferral(ctx context.Context, referralID uuid.UUID) ([]*model.ReferralActivity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ReferralActivity
	for _, activity := range r.s.activities {
		if activity.ReferralID == referralID {
			copied := *activity
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *activityRepo) CountByReferral(ctx context.Context, referralID uuid.UUID) (int, error) {
	activities, _ := r.ListByReferral(ctx, referralID)
	return len(activities), nil
}

type notificationRepo struct{ s *Store }

func (r *notificationRepo) CreateBatch(ctx context.Context, notifications []*model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, notification := range notifications {
		stamp(&notification.Base)
		copied := *notification
		r.s.notifications = append(r.s.notifications, &copied)
	}
	return nil
}

func (r *notificationRepo) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Notification
	for _, notification := range r.s.notifications {
		if notification.NotifiedID != userID {
			continue
		}
		if unreadOnly && notification.ReadAt != nil {
			continue
		}
		copied := *notification
		out = append(out, &copied)
	}
	return out, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, notification := range r.s.notifications {
		if notification.ID == id && notification.NotifiedID == userID {
			notification.ReadAt = &at
			return nil
		}
	}
	return fmt.Errorf("notification: %w", ErrNotFound)
}

func (r *notificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	notifications, _ := r.ListForUser(ctx, userID, true)
	return len(notifications), nil
}

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	if event.Status == "" {
		event.Status = string(model.OutboxStatusPending)
	}
	copied := *event
	r.s.outbox = append(r.s.outbox, &copied)
	return nil
}

func (r *outboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	var out []*model.OutboxEvent
	for _, event := range r.s.outbox {
		if event.Status != string(model.OutboxStatusPending) {
			continue
		}
		if event.RetryAt != nil && event.RetryAt.After(now) {
			continue
		}
		copied := *event
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *outboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string, processedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, event := range r.s.outbox {
		if event.ID == id {
			event.Status = status
			event.ErrorMessage = errorMessage
			event.ProcessedAt = processedAt
			event.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("outbox event: %w", ErrNotFound)
}

func (r *outboxRepo) IncrementRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, event := range r.s.outbox {
		if event.ID == id {
			event.RetryCount++
			event.ErrorMessage = &errorMessage
			event.RetryAt = &retryAt
			event.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("outbox event: %w", ErrNotFound)
}

func (r *outboxRepo) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var kept []*model.OutboxEvent
	var deleted int64
	for _, event := range r.s.outbox {
		if event.Status == string(model.OutboxStatusProcessed) && event.ProcessedAt != nil && event.ProcessedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, event)
	}
	r.s.outbox = kept
	return deleted, nil
}

func (r *outboxRepo) CountPending(ctx context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, event := range r.s.outbox {
		if event.Status == string(model.OutboxStatusPending) {
			count++
		}
	}
	return count, nil
}
