package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agora-platform/agora-api/internal/config"
)

// GroupInviteMail is everything the invite email needs; built inside the
// invite transaction, sent after it commits.
type GroupInviteMail struct {
	InviteID     string
	GroupID      string
	GroupName    string
	InviterName  string
	InviteeEmail string
	Message      string
}

// InviteMailer delivers group invitation emails. Delivery happens post-commit
// and is fire-and-forget: failures are logged by the caller, never surfaced.
type InviteMailer interface {
	SendGroupInviteCreated(invites []GroupInviteMail) error
}

// SMTPInviteMailer sends invite emails through a plain SMTP server.
type SMTPInviteMailer struct {
	host   string
	port   int
	auth   smtp.Auth
	from   string
	urlTpl string
	logger zerolog.Logger
}

func NewSMTPInviteMailer(cfg config.EmailConfig, logger zerolog.Logger) (*SMTPInviteMailer, error) {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return nil, fmt.Errorf("smtp_host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("email from address is required")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}

	var auth smtp.Auth
	if strings.TrimSpace(cfg.Username) != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost)
	}

	return &SMTPInviteMailer{
		host:   cfg.SMTPHost,
		port:   port,
		auth:   auth,
		from:   cfg.From,
		urlTpl: cfg.InviteURLTemplate,
		logger: logger.With().Str("component", "invite_mailer").Logger(),
	}, nil
}

// SendGroupInviteCreated mails every invitee in the batch. One failed
// recipient does not stop the rest.
func (m *SMTPInviteMailer) SendGroupInviteCreated(invites []GroupInviteMail) error {
	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var firstErr error
	for _, invite := range invites {
		if invite.InviteeEmail == "" {
			continue
		}
		message := m.compose(invite)
		if err := smtp.SendMail(addr, m.auth, m.from, []string{invite.InviteeEmail}, message); err != nil {
			m.logger.Warn().Err(err).
				Str("invite_id", invite.InviteID).
				Str("group_id", invite.GroupID).
				Msg("failed to send invite email")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *SMTPInviteMailer) compose(invite GroupInviteMail) []byte {
	subject := fmt.Sprintf("You have been invited to join %s", invite.GroupName)
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n",
		m.from, invite.InviteeEmail, subject)

	body := strings.Builder{}
	body.WriteString("Hello,\n\n")
	body.WriteString(fmt.Sprintf("%s invited you to join the group %q.\n", invite.InviterName, invite.GroupName))
	if invite.Message != "" {
		body.WriteString("\nPersonal message from the inviter:\n")
		body.WriteString(invite.Message + "\n")
	}
	body.WriteString("\nOpen the link below to view and accept the invitation:\n\n")
	body.WriteString(fmt.Sprintf(m.urlTpl, invite.GroupID, invite.InviteID) + "\n\n")
	body.WriteString("If you did not expect this email, you can ignore it.\n")

	return []byte(headers + body.String())
}
