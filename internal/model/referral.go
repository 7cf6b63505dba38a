package model

import (
	"time"

	"github.com/google/uuid"
)

// ReferralState enumerates the lifecycle states of a referral.
type ReferralState string

const (
	ReferralStateDraft             ReferralState = "DRAFT"
	ReferralStateReceived          ReferralState = "RECEIVED"
	ReferralStateAssigned          ReferralState = "ASSIGNED"
	ReferralStateProcessing        ReferralState = "PROCESSING"
	ReferralStateInValidation      ReferralState = "IN_VALIDATION"
	ReferralStateAnswered          ReferralState = "ANSWERED"
	ReferralStateClosed            ReferralState = "CLOSED"
	ReferralStateSplitting         ReferralState = "SPLITTING"
	ReferralStateReceivedSplitting ReferralState = "RECEIVED_SPLITTING"
	ReferralStateIncomplete        ReferralState = "INCOMPLETE"
)

// ReferralTransition names a guarded mutation of the referral state machine.
type ReferralTransition string

const (
	TransitionSend                    ReferralTransition = "SEND"
	TransitionAssign                  ReferralTransition = "ASSIGN"
	TransitionUnassign                ReferralTransition = "UNASSIGN"
	TransitionAssignUnit              ReferralTransition = "ASSIGN_UNIT"
	TransitionUnassignUnit            ReferralTransition = "UNASSIGN_UNIT"
	TransitionRequestAnswerValidation ReferralTransition = "REQUEST_ANSWER_VALIDATION"
	TransitionPerformAnswerValidation ReferralTransition = "PERFORM_ANSWER_VALIDATION"
	TransitionPublishAnswer           ReferralTransition = "PUBLISH_ANSWER"
	TransitionClose                   ReferralTransition = "CLOSE"
	TransitionChangeUrgencyLevel      ReferralTransition = "CHANGE_URGENCY_LEVEL"
	TransitionUpdateTitle             ReferralTransition = "UPDATE_TITLE"
	TransitionUpdateTopic             ReferralTransition = "UPDATE_TOPIC"
	TransitionSplit                   ReferralTransition = "SPLIT"
	TransitionConfirmSplit            ReferralTransition = "CONFIRM_SPLIT"
	TransitionCancelSplit             ReferralTransition = "CANCEL_SPLIT"
	TransitionCloseIncomplete         ReferralTransition = "CLOSE_INCOMPLETE"
)

// openStates are the states a sent referral can still be worked in.
var openStates = []ReferralState{
	ReferralStateReceived,
	ReferralStateAssigned,
	ReferralStateProcessing,
	ReferralStateInValidation,
}

// transitionGuards maps every transition to the states it is allowed from.
var transitionGuards = map[ReferralTransition][]ReferralState{
	TransitionSend:                    {ReferralStateDraft},
	TransitionAssign:                  openStates,
	TransitionUnassign:                {ReferralStateAssigned, ReferralStateProcessing, ReferralStateInValidation},
	TransitionAssignUnit:              openStates,
	TransitionUnassignUnit:            openStates,
	TransitionRequestAnswerValidation: {ReferralStateProcessing, ReferralStateInValidation},
	TransitionPerformAnswerValidation: {ReferralStateInValidation},
	TransitionPublishAnswer:           {ReferralStateProcessing, ReferralStateInValidation},
	TransitionClose:                   openStates,
	TransitionChangeUrgencyLevel:      openStates,
	TransitionUpdateTitle: {
		ReferralStateDraft, ReferralStateReceived, ReferralStateAssigned,
		ReferralStateProcessing, ReferralStateInValidation,
		ReferralStateSplitting, ReferralStateReceivedSplitting, ReferralStateIncomplete,
	},
	TransitionUpdateTopic: {
		ReferralStateDraft, ReferralStateReceived, ReferralStateAssigned,
		ReferralStateProcessing, ReferralStateInValidation,
		ReferralStateSplitting, ReferralStateReceivedSplitting, ReferralStateIncomplete,
	},
	TransitionSplit:           {ReferralStateReceived, ReferralStateAssigned},
	TransitionConfirmSplit:    {ReferralStateSplitting, ReferralStateReceivedSplitting},
	TransitionCancelSplit:     {ReferralStateSplitting, ReferralStateReceivedSplitting},
	TransitionCloseIncomplete: {ReferralStateDraft},
}

// AllowedStates returns the states transition t may be applied from.
func AllowedStates(t ReferralTransition) []ReferralState {
	return transitionGuards[t]
}

// CanApply reports whether transition t is legal from state s.
func CanApply(t ReferralTransition, s ReferralState) bool {
	for _, allowed := range transitionGuards[t] {
		if allowed == s {
			return true
		}
	}
	return false
}

// Referral is the central case record.
type Referral struct {
	Base
	Title     string        `db:"title" json:"title"`
	Object    string        `db:"object" json:"object"`
	Question  string        `db:"question" json:"question"`
	Context   string        `db:"context" json:"context"`
	PriorWork string        `db:"prior_work" json:"prior_work"`
	State     ReferralState `db:"state" json:"state"`

	TopicID        *uuid.UUID `db:"topic_id" json:"topic_id,omitempty"`
	UrgencyLevelID *uuid.UUID `db:"urgency_level_id" json:"urgency_level_id,omitempty"`

	SentAt  *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	DueDate *time.Time `db:"due_date" json:"due_date,omitempty"`

	CloseExplanation   string `db:"close_explanation" json:"close_explanation,omitempty"`
	UrgencyExplanation string `db:"urgency_explanation" json:"urgency_explanation,omitempty"`

	// ParentID links a split-off secondary referral to its main referral.
	ParentID *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`

	// Loaded relations.
	Units       []*Unit               `db:"-" json:"units,omitempty"`
	UserLinks   []*ReferralUserLink   `db:"-" json:"user_links,omitempty"`
	Assignments []*ReferralAssignment `db:"-" json:"assignments,omitempty"`
}

// IsOpen reports whether the referral still accepts work-side transitions.
func (r *Referral) IsOpen() bool {
	for _, s := range openStates {
		if r.State == s {
			return true
		}
	}
	return false
}

// ReferralUserLinkRole distinguishes the request-side roles. This axis is
// disjoint from unit membership: a requester needs no membership at all.
type ReferralUserLinkRole string

const (
	ReferralRoleRequester ReferralUserLinkRole = "REQUESTER"
	ReferralRoleObserver  ReferralUserLinkRole = "OBSERVER"
)

// ReferralUserLinkNotificationsType is the notification preference carried by
// a user link. NONE still records in-app notifications but suppresses email.
type ReferralUserLinkNotificationsType string

const (
	NotificationsAll        ReferralUserLinkNotificationsType = "ALL"
	NotificationsRestricted ReferralUserLinkNotificationsType = "RESTRICTED"
	NotificationsNone       ReferralUserLinkNotificationsType = "NONE"
)

// ReferralUserLink ties a user to a referral as requester or observer.
type ReferralUserLink struct {
	Base
	ReferralID    uuid.UUID                         `db:"referral_id" json:"referral_id"`
	UserID        uuid.UUID                         `db:"user_id" json:"user_id"`
	Role          ReferralUserLinkRole              `db:"role" json:"role"`
	Notifications ReferralUserLinkNotificationsType `db:"notifications" json:"notifications"`
}

// ReferralUnitLink ties a candidate or handling unit to a referral.
type ReferralUnitLink struct {
	Base
	ReferralID uuid.UUID `db:"referral_id" json:"referral_id"`
	UnitID     uuid.UUID `db:"unit_id" json:"unit_id"`
}

// ReferralAssignment records a unit member put in charge of the referral.
type ReferralAssignment struct {
	Base
	ReferralID uuid.UUID `db:"referral_id" json:"referral_id"`
	AssigneeID uuid.UUID `db:"assignee_id" json:"assignee_id"`
	UnitID     uuid.UUID `db:"unit_id" json:"unit_id"`
	CreatedBy  uuid.UUID `db:"created_by" json:"created_by"`
}

// ReferralUrgency is the urgency policy a referral is filed under.
type ReferralUrgency struct {
	Base
	Name                  string `db:"name" json:"name"`
	DurationDays          int    `db:"duration_days" json:"duration_days"`
	RequiresJustification bool   `db:"requires_justification" json:"requires_justification"`
	IsDefault             bool   `db:"is_default" json:"is_default"`
}

// DueDateFrom computes the answer due date for a referral sent at t.
func (u *ReferralUrgency) DueDateFrom(t time.Time) time.Time {
	return t.AddDate(0, 0, u.DurationDays)
}
