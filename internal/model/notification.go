package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType names the kinds of in-app notifications fanned out to
// recipients. Each kind maps to an email template id in the email service.
type NotificationType string

const (
	NotificationReferralAssigned    NotificationType = "REFERRAL_ASSIGNED"
	NotificationReferralClosed      NotificationType = "REFERRAL_CLOSED"
	NotificationReferralAnswered    NotificationType = "REFERRAL_ANSWERED"
	NotificationValidationRequested NotificationType = "VALIDATION_REQUESTED"
	NotificationValidationPerformed NotificationType = "VALIDATION_PERFORMED"
	NotificationRequestChange       NotificationType = "REQUEST_CHANGE"
	NotificationValidated           NotificationType = "VALIDATED"
	NotificationReportMessage       NotificationType = "REPORT_MESSAGE"
)

// Notification links a notifier, a notified user and the triggering object.
type Notification struct {
	Base
	NotifierID uuid.UUID        `db:"notifier_id" json:"notifier_id"`
	NotifiedID uuid.UUID        `db:"notified_id" json:"notified_id"`
	Type       NotificationType `db:"type" json:"type"`
	Preview    string           `db:"preview" json:"preview"`
	ReferralID uuid.UUID        `db:"referral_id" json:"referral_id"`
	Item       ItemRef          `db:"item" json:"item"`
	ReadAt     *time.Time       `db:"read_at" json:"read_at,omitempty"`
}

// IsRead reports whether the notified user has seen the notification.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
