package email

import (
	"github.com/partaj/referral-api/internal/model"
)

// TemplateID selects a transactional-email template at the provider. The
// numeric ids mirror the provider-side template catalogue.
type TemplateID int

const (
	TemplateReferralAssigned       TemplateID = 107212
	TemplateReferralClosedRequester TemplateID = 1096404
	TemplateReferralClosedUnit     TemplateID = 1096405
	TemplateReferralAnswered       TemplateID = 1072518
	TemplateValidationRequested    TemplateID = 1071243
	TemplateValidationPerformed    TemplateID = 1089776
	TemplateRequestChange          TemplateID = 2075987
	TemplateValidated              TemplateID = 2075993
	TemplateReportMessage          TemplateID = 1698216
)

type template struct {
	subject string
	body    string
}

// templates holds the local subject/body fallbacks rendered through SMTP.
// Bodies are plain text with {param} placeholders substituted at send time.
var templates = map[TemplateID]template{
	TemplateReferralAssigned: {
		subject: "Referral #{case_number} has been assigned to you",
		body:    "Hello {first_name},\n\nThe referral \"{title}\" has been assigned to you.\n\n{link}",
	},
	TemplateReferralClosedRequester: {
		subject: "Your referral #{case_number} has been closed",
		body:    "Hello {first_name},\n\nYour referral \"{title}\" has been closed.\n\nReason: {explanation}\n\n{link}",
	},
	TemplateReferralClosedUnit: {
		subject: "Referral #{case_number} has been closed",
		body:    "Hello {first_name},\n\nThe referral \"{title}\" handled by your unit has been closed.\n\nReason: {explanation}\n\n{link}",
	},
	TemplateReferralAnswered: {
		subject: "Your referral #{case_number} has been answered",
		body:    "Hello {first_name},\n\nAn answer to your referral \"{title}\" has been published.\n\n{link}",
	},
	TemplateValidationRequested: {
		subject: "Validation requested on referral #{case_number}",
		body:    "Hello {first_name},\n\n{requester_name} asked you to validate an answer to \"{title}\".\n\n{link}",
	},
	TemplateValidationPerformed: {
		subject: "Validation performed on referral #{case_number}",
		body:    "Hello {first_name},\n\n{validator_name} has reviewed the answer to \"{title}\".\n\n{link}",
	},
	TemplateRequestChange: {
		subject: "Changes requested on referral #{case_number}",
		body:    "Hello {first_name},\n\n{sender_name} requested changes on the report for \"{title}\".\n\n{link}",
	},
	TemplateValidated: {
		subject: "Report validated on referral #{case_number}",
		body:    "Hello {first_name},\n\n{sender_name} validated the report for \"{title}\".\n\n{link}",
	},
	TemplateReportMessage: {
		subject: "New message on referral #{case_number}",
		body:    "Hello {first_name},\n\n{sender_name} wrote on the report for \"{title}\":\n\n{preview}\n\n{link}",
	},
}

// notificationTemplates maps an in-app notification kind to its template.
var notificationTemplates = map[model.NotificationType]TemplateID{
	model.NotificationReferralAssigned:    TemplateReferralAssigned,
	model.NotificationReferralClosed:      TemplateReferralClosedRequester,
	model.NotificationReferralAnswered:    TemplateReferralAnswered,
	model.NotificationValidationRequested: TemplateValidationRequested,
	model.NotificationValidationPerformed: TemplateValidationPerformed,
	model.NotificationRequestChange:       TemplateRequestChange,
	model.NotificationValidated:           TemplateValidated,
	model.NotificationReportMessage:       TemplateReportMessage,
}

// TemplateFor returns the template id for a notification kind. For closure
// notifications sent to unit members rather than requesters, callers should
// use TemplateReferralClosedUnit directly.
func TemplateFor(kind model.NotificationType) (TemplateID, bool) {
	id, ok := notificationTemplates[kind]
	return id, ok
}
