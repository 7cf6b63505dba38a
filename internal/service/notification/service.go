package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/partaj/referral-api/internal/email"
	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/pkg/metrics"
)

const previewLength = 100

// Recipient is one target of a fan-out, with everything needed to decide on
// and address the optional email.
type Recipient struct {
	UserID     uuid.UUID
	Email      string
	FirstName  string
	Preference model.ReferralUserLinkNotificationsType

	// Template overrides the kind's default email template when set, e.g.
	// unit members get the unit variant of the closure email.
	Template email.TemplateID
}

// Batch describes one fan-out: who acted, on which referral, what kind of
// notification each recipient gets and the email parameters shared by all.
type Batch struct {
	NotifierID  uuid.UUID
	Referral    *model.Referral
	Type        model.NotificationType
	Content     string
	Item        model.ItemRef
	Recipients  []Recipient
	EmailParams map[string]string
}

// Service fans a report event or referral action out to its recipients: one
// Notification row each, plus a best-effort email gated by the recipient's
// notification preference.
type Service struct {
	notifications repository.NotificationRepository
	emailer       email.Service
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

func NewService(notifications repository.NotificationRepository, emailer email.Service, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		notifications: notifications,
		emailer:       emailer,
		metrics:       m,
		logger:        logger,
	}
}

// Dispatch creates the notification rows through the caller's transactional
// repositories and sends the emails. Recipients are deduplicated by user id;
// a failed email send never fails the dispatch.
func (s *Service) Dispatch(ctx context.Context, repos repository.Repos, batch Batch) error {
	recipients := dedupe(batch.Recipients)
	if len(recipients) == 0 {
		return nil
	}

	rows := make([]*model.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		rows = append(rows, &model.Notification{
			NotifierID: batch.NotifierID,
			NotifiedID: recipient.UserID,
			Type:       batch.Type,
			Preview:    Preview(batch.Content),
			ReferralID: batch.Referral.ID,
			Item:       batch.Item,
		})
	}

	if err := repos.Notifications.CreateBatch(ctx, rows); err != nil {
		return fmt.Errorf("failed to create notifications: %w", err)
	}
	s.metrics.NotificationsCreated.WithLabelValues(string(batch.Type)).Add(float64(len(rows)))

	for _, recipient := range recipients {
		if !shouldEmail(batch.Type, recipient.Preference) {
			continue
		}
		templateID := recipient.Template
		if templateID == 0 {
			var ok bool
			templateID, ok = email.TemplateFor(batch.Type)
			if !ok {
				continue
			}
		}

		params := map[string]string{"first_name": recipient.FirstName, "preview": Preview(batch.Content)}
		for key, value := range batch.EmailParams {
			params[key] = value
		}

		if err := s.emailer.Send(ctx, templateID, recipient.Email, params); err != nil {
			s.logger.Error().Err(err).
				Str("referral_id", batch.Referral.ID.String()).
				Str("type", string(batch.Type)).
				Str("to", recipient.Email).
				Msg("email send failed")
		}
	}

	return nil
}

// ListForUser returns the user's notifications, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*model.Notification, error) {
	notifications, err := s.notifications.ListForUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead stamps a notification as read by its owner.
func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.notifications.MarkRead(ctx, id, userID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// CountUnread returns the user's unread notification count.
func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// Preview truncates content for display in notification lists.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "…"
}

// shouldEmail applies the recipient's preference. NONE never emails; ALL
// always does; RESTRICTED only for closure and answer outcomes.
func shouldEmail(kind model.NotificationType, pref model.ReferralUserLinkNotificationsType) bool {
	switch pref {
	case model.NotificationsNone:
		return false
	case model.NotificationsRestricted:
		return kind == model.NotificationReferralClosed || kind == model.NotificationReferralAnswered
	default:
		return true
	}
}

func dedupe(recipients []Recipient) []Recipient {
	seen := make(map[uuid.UUID]struct{}, len(recipients))
	out := make([]Recipient, 0, len(recipients))
	for _, r := range recipients {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r)
	}
	return out
}
