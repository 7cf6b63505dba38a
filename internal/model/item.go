package model

import (
	"github.com/google/uuid"
)

// ItemKind is the closed set of objects an event, activity or notification
// may point at. A tagged (kind, id) pair replaces the open-ended polymorphic
// reference: every referenceable type is enumerated here.
type ItemKind string

const (
	ItemKindReferral          ItemKind = "REFERRAL"
	ItemKindAnswer            ItemKind = "ANSWER"
	ItemKindReportVersion     ItemKind = "REPORT_VERSION"
	ItemKindReportAppendix    ItemKind = "REPORT_APPENDIX"
	ItemKindValidationRequest ItemKind = "VALIDATION_REQUEST"
	ItemKindReportEvent       ItemKind = "REPORT_EVENT"
)

// ItemRef is a strongly typed reference to one of the referenceable kinds.
type ItemRef struct {
	Kind ItemKind  `db:"item_kind" json:"item_kind"`
	ID   uuid.UUID `db:"item_id" json:"item_id"`
}

func NewItemRef(kind ItemKind, id uuid.UUID) ItemRef {
	return ItemRef{Kind: kind, ID: id}
}

// IsZero reports whether the reference points at nothing.
func (r ItemRef) IsZero() bool {
	return r.ID == uuid.Nil
}
