package model

import (
	"github.com/google/uuid"
)

// ReferralActivityVerb names an entry of the referral activity trail.
type ReferralActivityVerb string

const (
	ActivityAssigned             ReferralActivityVerb = "ASSIGNED"
	ActivityUnassigned           ReferralActivityVerb = "UNASSIGNED"
	ActivityAssignedUnit         ReferralActivityVerb = "ASSIGNED_UNIT"
	ActivityUnassignedUnit       ReferralActivityVerb = "UNASSIGNED_UNIT"
	ActivityClosed               ReferralActivityVerb = "CLOSED"
	ActivityAnswered             ReferralActivityVerb = "ANSWERED"
	ActivityDraftAnswered        ReferralActivityVerb = "DRAFT_ANSWERED"
	ActivityValidationRequested  ReferralActivityVerb = "VALIDATION_REQUESTED"
	ActivityValidated            ReferralActivityVerb = "VALIDATED"
	ActivityValidationDenied     ReferralActivityVerb = "VALIDATION_DENIED"
	ActivityUrgencyChanged       ReferralActivityVerb = "URGENCYLEVEL_CHANGED"
	ActivityUpdatedTitle         ReferralActivityVerb = "UPDATED_TITLE"
	ActivityUpdatedTopic         ReferralActivityVerb = "TOPIC_UPDATED"
	ActivityAddedRequester       ReferralActivityVerb = "ADDED_REQUESTER"
	ActivityRemovedRequester     ReferralActivityVerb = "REMOVED_REQUESTER"
	ActivityAddedObserver        ReferralActivityVerb = "ADDED_OBSERVER"
	ActivityRemovedObserver      ReferralActivityVerb = "REMOVED_OBSERVER"
	ActivitySubreferralCreated   ReferralActivityVerb = "SUBREFERRAL_CREATED"
	ActivitySubreferralConfirmed ReferralActivityVerb = "SUBREFERRAL_CONFIRMED"
	ActivitySubreferralCancelled ReferralActivityVerb = "SUBREFERRAL_CANCELLED"
	ActivitySent                 ReferralActivityVerb = "SENT"
)

// ReferralActivity records who did what on a referral.
type ReferralActivity struct {
	Base
	ReferralID uuid.UUID            `db:"referral_id" json:"referral_id"`
	ActorID    uuid.UUID            `db:"actor_id" json:"actor_id"`
	Verb       ReferralActivityVerb `db:"verb" json:"verb"`
	Item       ItemRef              `db:"item" json:"item"`
	Message    string               `db:"message" json:"message,omitempty"`
}
