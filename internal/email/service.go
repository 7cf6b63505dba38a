package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"

	"github.com/partaj/referral-api/config"
	"github.com/partaj/referral-api/pkg/metrics"
)

// Service sends transactional emails identified by a template id and a flat
// parameter map. Delivery is best-effort: callers log failures but never roll
// back on them.
type Service interface {
	Send(ctx context.Context, template TemplateID, to string, params map[string]string) error
}

type smtpService struct {
	dialer  *gomail.Dialer
	cfg     config.SMTPConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewSMTPService(cfg config.SMTPConfig, m *metrics.Metrics, logger zerolog.Logger) Service {
	return &smtpService{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

func (s *smtpService) Send(ctx context.Context, templateID TemplateID, to string, params map[string]string) error {
	if !s.cfg.Enabled {
		s.logger.Debug().Int("template", int(templateID)).Str("to", to).Msg("email disabled, skipping send")
		return nil
	}

	tpl, ok := templates[templateID]
	if !ok {
		return fmt.Errorf("unknown email template %d", templateID)
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.cfg.FromAddress, s.cfg.FromName)
	msg.SetHeader("To", to)
	if s.cfg.ReplyTo != "" {
		msg.SetHeader("Reply-To", s.cfg.ReplyTo)
	}
	msg.SetHeader("Subject", render(tpl.subject, params))
	msg.SetBody("text/plain", render(tpl.body, params))

	if err := s.dialer.DialAndSend(msg); err != nil {
		s.metrics.EmailsFailed.Inc()
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.metrics.EmailsSent.Inc()
	return nil
}

func render(text string, params map[string]string) string {
	for key, value := range params {
		text = strings.ReplaceAll(text, "{"+key+"}", value)
	}
	return text
}

// NoopService drops every email. Used when SMTP is not configured and in
// tests.
type NoopService struct{}

func (NoopService) Send(ctx context.Context, template TemplateID, to string, params map[string]string) error {
	return nil
}
