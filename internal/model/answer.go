package model

import (
	"time"

	"github.com/google/uuid"
)

// ReferralAnswerState distinguishes working drafts from the published answer.
type ReferralAnswerState string

const (
	AnswerStateDraft     ReferralAnswerState = "DRAFT"
	AnswerStatePublished ReferralAnswerState = "PUBLISHED"
)

// ReferralAnswer is a draft or published work product for a referral.
type ReferralAnswer struct {
	Base
	ReferralID uuid.UUID           `db:"referral_id" json:"referral_id"`
	AuthorID   uuid.UUID           `db:"author_id" json:"author_id"`
	State      ReferralAnswerState `db:"state" json:"state"`
	Content    string              `db:"content" json:"content"`

	// PublishedAnswerID points from a draft to the published copy made of it.
	PublishedAnswerID *uuid.UUID `db:"published_answer_id" json:"published_answer_id,omitempty"`
}

// ReferralAnswerValidationRequest asks one validator to approve an answer.
type ReferralAnswerValidationRequest struct {
	Base
	AnswerID    uuid.UUID `db:"answer_id" json:"answer_id"`
	ValidatorID uuid.UUID `db:"validator_id" json:"validator_id"`
	RequesterID uuid.UUID `db:"requester_id" json:"requester_id"`

	// Joined for display.
	ValidatorFullName string `db:"validator_full_name" json:"validator_full_name,omitempty"`
}

// ValidationResponseState is the outcome of a validation request.
type ValidationResponseState string

const (
	ValidationValidated    ValidationResponseState = "VALIDATED"
	ValidationNotValidated ValidationResponseState = "NOT_VALIDATED"
)

// ReferralAnswerValidationResponse closes a validation request exactly once.
type ReferralAnswerValidationResponse struct {
	Base
	RequestID uuid.UUID               `db:"request_id" json:"request_id"`
	State     ValidationResponseState `db:"state" json:"state"`
	Comment   string                  `db:"comment" json:"comment"`

	RespondedAt time.Time `db:"responded_at" json:"responded_at"`
}
