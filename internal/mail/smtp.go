package mail

import (
	"context"
	"fmt"
	"strings"

	gomail "github.com/wneessen/go-mail"

	"github.com/threadwell/conversation-service/internal/config"
)

// SMTPTransport delivers mail over SMTP using the configured relay.
type SMTPTransport struct {
	cfg config.MailConfig
}

// NewSMTPTransport builds the transport.
func NewSMTPTransport(cfg config.MailConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg}
}

// Send composes and delivers the message, returning the assigned message-id.
func (t *SMTPTransport) Send(ctx context.Context, msg *OutboundMessage) (string, error) {
	m, messageID, err := t.compose(msg)
	if err != nil {
		return "", err
	}

	client, err := gomail.NewClient(t.cfg.Host,
		gomail.WithPort(t.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(t.cfg.Username),
		gomail.WithPassword(t.cfg.Password),
	)
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return messageID, nil
}

func (t *SMTPTransport) compose(msg *OutboundMessage) (*gomail.Msg, string, error) {
	m := gomail.NewMsg()
	fromName := msg.FromName
	if fromName == "" {
		fromName = t.cfg.FromName
	}
	if err := m.FromFormat(fromName, t.cfg.FromEmail); err != nil {
		return nil, "", fmt.Errorf("set sender: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, "", fmt.Errorf("set recipients: %w", err)
	}
	if len(msg.Cc) > 0 {
		if err := m.Cc(msg.Cc...); err != nil {
			return nil, "", fmt.Errorf("set cc: %w", err)
		}
	}
	m.Subject(msg.Subject)

	messageID := generateMessageID(hostFromAddress(t.cfg.FromEmail))
	m.SetMessageIDWithValue(strings.Trim(messageID, "<>"))
	if msg.InReplyTo != "" {
		m.SetGenHeader(gomail.HeaderInReplyTo, msg.InReplyTo)
	}
	if len(msg.References) > 0 {
		// go-mail v0.4.1 has no constant for the References header.
		m.SetGenHeader(gomail.Header("References"), strings.Join(msg.References, " "))
	}

	body := msg.HTMLBody
	if msg.TrackingToken != "" {
		body += fmt.Sprintf(`<img src="%s/t/%s.png" width="1" height="1" alt="">`,
			strings.TrimRight(t.cfg.TrackingBaseURL, "/"), msg.TrackingToken)
	}
	m.SetBodyString(gomail.TypeTextHTML, body)
	if msg.TextBody != "" {
		m.AddAlternativeString(gomail.TypeTextPlain, msg.TextBody)
	}

	for _, att := range msg.Attachments {
		m.AttachFile(att.StoragePath, gomail.WithFileName(att.Filename))
	}

	return m, messageID, nil
}

func hostFromAddress(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
