package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/threadwell/conversation-service/internal/domain"
)

// OutboundMessage is the narrow contract with the mail transport.
type OutboundMessage struct {
	To          []string
	Cc          []string
	Subject     string
	HTMLBody    string
	TextBody    string
	FromName    string
	Attachments []domain.Attachment
	// TrackingToken, when set, has a read-receipt pixel appended to the body.
	TrackingToken string
	InReplyTo     string
	References    []string
}

// Transport delivers an outbound email and returns the transport-assigned
// message-id for threading.
type Transport interface {
	Send(ctx context.Context, msg *OutboundMessage) (string, error)
}

// LogTransport is the fallback when no SMTP host is configured. It assigns a
// message-id without delivering anything, so development environments behave
// like production minus the wire.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport builds the log-only transport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

// Send logs the message and returns a generated message-id.
func (t *LogTransport) Send(ctx context.Context, msg *OutboundMessage) (string, error) {
	id := generateMessageID("localhost")
	t.logger.Info("mail transport disabled; message not delivered",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("message_id", id))
	return id, nil
}
