// -----------------------------------------------------------------------
// Mailer Service - delivers the rendered brief over SMTP
// -----------------------------------------------------------------------

package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/common"
	"github.com/ternarybob/marketbrief/internal/interfaces"
	"github.com/ternarybob/marketbrief/internal/models"
)

// ErrNotConfigured is returned when SMTP host, sender or recipients are missing.
var ErrNotConfigured = errors.New("email delivery not configured")

// Service sends reports as one email to all configured recipients.
// There is no retry: a failed send is returned to the caller.
type Service struct {
	smtp      common.SMTPConfig
	email     common.EmailConfig
	transport *transport
	logger    arbor.ILogger
	now       func() time.Time
}

// Compile-time assertion
var _ interfaces.Notifier = (*Service)(nil)

// NewService creates a new mailer service
func NewService(smtpConfig common.SMTPConfig, emailConfig common.EmailConfig, logger arbor.ILogger) *Service {
	return &Service{
		smtp:      smtpConfig,
		email:     emailConfig,
		transport: newTransport(smtpConfig, logger),
		logger:    logger,
		now:       time.Now,
	}
}

// IsConfigured checks if SMTP is configured with minimum required settings
func (s *Service) IsConfigured() bool {
	return s.smtp.Host != "" && s.smtp.From != "" && len(s.email.Recipients) > 0
}

// Send delivers report. One call is one outbound message.
func (s *Service) Send(ctx context.Context, report *models.Report) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if !s.IsConfigured() {
		return ErrNotConfigured
	}

	env, err := s.envelope()
	if err != nil {
		return err
	}

	msg, err := buildMessage(env, report)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	recipients := make([]string, len(env.Recipients))
	for i, r := range env.Recipients {
		recipients[i] = r.Address
	}

	start := time.Now()
	if err := s.transport.send(ctx, env.From.Address, recipients, msg); err != nil {
		s.logger.Error().
			Err(err).
			Str("host", s.smtp.Host).
			Int("port", s.smtp.Port).
			Int("recipients", len(recipients)).
			Msg("Failed to send brief")
		return err
	}

	s.logger.Info().
		Str("subject", report.Subject).
		Strs("to", recipients).
		Int("size", len(msg)).
		Bool("pdf", len(report.PDF) > 0).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("Brief sent")

	return nil
}

func (s *Service) envelope() (envelope, error) {
	from, err := mail.ParseAddress(s.smtp.From)
	if err != nil {
		return envelope{}, fmt.Errorf("invalid from address %q: %w", s.smtp.From, err)
	}
	if s.smtp.FromName != "" {
		from.Name = s.smtp.FromName
	}

	env := envelope{From: from, Date: s.now()}
	for _, r := range s.email.Recipients {
		addr, err := mail.ParseAddress(r)
		if err != nil {
			return envelope{}, fmt.Errorf("invalid recipient %q: %w", r, err)
		}
		env.Recipients = append(env.Recipients, addr)
	}
	return env, nil
}
