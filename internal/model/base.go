package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// ReferralFilters narrows referral list queries.
type ReferralFilters struct {
	UnitID      *uuid.UUID    `json:"unit_id" form:"unit_id"`
	UserID      *uuid.UUID    `json:"user_id" form:"user_id"`
	State       ReferralState `json:"state" form:"state"`
	TopicID     *uuid.UUID    `json:"topic_id" form:"topic_id"`
	DueBefore   *time.Time    `json:"due_before" form:"due_before"`
	SearchTerm  string        `json:"search_term" form:"search_term"`
	Pagination  Pagination    `json:"pagination"`
}
