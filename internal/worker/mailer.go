package worker

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/atlas-collective/portal-backend/config"
	"github.com/atlas-collective/portal-backend/pkg/queue"
)

// Mailer delivers queued notification emails over SMTP. With no SMTP host
// configured it logs the email instead of sending, which is how development
// environments run.
type Mailer struct {
	cfg    config.EmailConfig
	logger *zap.Logger
}

// NewMailer creates the SMTP mailer.
func NewMailer(cfg config.EmailConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, logger: logger}
}

// Send delivers one email.
func (m *Mailer) Send(payload queue.EmailPayload) error {
	if m.cfg.SMTPHost == "" {
		m.logger.Info("smtp not configured, logging email instead",
			zap.String("to", payload.RecipientEmail),
			zap.String("subject", payload.Subject),
			zap.String("type", payload.EmailType))
		return nil
	}

	from := m.cfg.FromAddress
	msg := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", m.cfg.FromName, from),
		"To: " + payload.RecipientEmail,
		"Subject: " + payload.Subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		payload.BodyText,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, from, []string{payload.RecipientEmail}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	m.logger.Info("email sent",
		zap.String("to", payload.RecipientEmail),
		zap.String("type", payload.EmailType))
	return nil
}
