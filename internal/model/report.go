package model

import (
	"time"

	"github.com/google/uuid"
)

// ScanStatus is the verdict of the external attachment scanner.
type ScanStatus string

const (
	ScanStatusClean   ScanStatus = "CLEAN"
	ScanStatusFound   ScanStatus = "FOUND"
	ScanStatusUnknown ScanStatus = "UNKNOWN"
)

// ReferralReport accumulates versions and appendixes for a sent referral,
// one report per referral.
type ReferralReport struct {
	Base
	ReferralID     uuid.UUID  `db:"referral_id" json:"referral_id"`
	PublishedAt    *time.Time `db:"published_at" json:"published_at,omitempty"`
	FinalVersionID *uuid.UUID `db:"final_version_id" json:"final_version_id,omitempty"`
}

// ReportVersion is one successive draft of the report work product.
type ReportVersion struct {
	Base
	ReportID      uuid.UUID  `db:"report_id" json:"report_id"`
	AuthorID      uuid.UUID  `db:"author_id" json:"author_id"`
	VersionNumber int        `db:"version_number" json:"version_number"`
	DocumentName  string     `db:"document_name" json:"document_name"`
	ScanStatus    ScanStatus `db:"scan_status" json:"scan_status"`
}

// ReportAppendix is a supporting document attached to a report, carried
// through its own validation flow.
type ReportAppendix struct {
	Base
	ReportID     uuid.UUID  `db:"report_id" json:"report_id"`
	AuthorID     uuid.UUID  `db:"author_id" json:"author_id"`
	DocumentName string     `db:"document_name" json:"document_name"`
	ScanStatus   ScanStatus `db:"scan_status" json:"scan_status"`
}
