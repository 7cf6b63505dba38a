package model

import (
	"github.com/google/uuid"
)

// ReportEventVerb enumerates the actions recorded in the report event log.
type ReportEventVerb string

const (
	EventRequestValidation ReportEventVerb = "REQUEST_VALIDATION"
	EventRequestChange     ReportEventVerb = "REQUEST_CHANGE"
	EventValidated         ReportEventVerb = "VALIDATED"
	EventMessage           ReportEventVerb = "MESSAGE"
	EventVersionAdded      ReportEventVerb = "VERSION_ADDED"
	EventVersionUpdated    ReportEventVerb = "VERSION_UPDATED"
	EventAppendixAdded     ReportEventVerb = "APPENDIX_ADDED"
	EventAppendixUpdated   ReportEventVerb = "APPENDIX_UPDATED"
)

// ReportEventState marks an event as current or superseded. Stale events are
// deactivated, never deleted, so the audit trail stays complete.
type ReportEventState string

const (
	EventStateActive   ReportEventState = "ACTIVE"
	EventStateInactive ReportEventState = "INACTIVE"
)

// EventMetadata carries the role/unit coordinates used to compute who must
// act next. Request-validation events are keyed by receiver, request-change
// and validated events by sender.
type EventMetadata struct {
	SenderRole       UnitMembershipRole `db:"sender_role" json:"sender_role,omitempty"`
	SenderUnitName   string             `db:"sender_unit_name" json:"sender_unit_name,omitempty"`
	ReceiverRole     UnitMembershipRole `db:"receiver_role" json:"receiver_role,omitempty"`
	ReceiverUnitName string             `db:"receiver_unit_name" json:"receiver_unit_name,omitempty"`
}

// ReportEvent is an append-only record of an action on a report or one of its
// versions or appendixes.
type ReportEvent struct {
	Base
	ReportID uuid.UUID        `db:"report_id" json:"report_id"`
	Verb     ReportEventVerb  `db:"verb" json:"verb"`
	State    ReportEventState `db:"state" json:"state"`
	AuthorID uuid.UUID        `db:"author_id" json:"author_id"`
	Content  string           `db:"content" json:"content"`

	// Item points at the version or appendix the event concerns; zero for
	// report-level events such as messages.
	Item ItemRef `db:"item" json:"item"`

	Metadata EventMetadata `db:"metadata" json:"metadata"`
}
