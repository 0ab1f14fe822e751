package events

import (
	"time"
	"unicode/utf8"

	"github.com/threadwell/conversation-service/internal/domain"
)

// EventType enumerates supported event identifiers. The names match the
// wire-level SSE event types verbatim.
type EventType string

const (
	EventNewTicket      EventType = "new-ticket"
	EventTicketUpdate   EventType = "ticket-update"
	EventNewMessage     EventType = "new-message"
	EventMessageDeleted EventType = "message-deleted"
	EventViewerJoined   EventType = "viewer-joined"
	EventViewerLeft     EventType = "viewer-left"
	EventUserComposing  EventType = "user-composing"
)

// MessageOrigin tags which side of the conversation produced a message.
type MessageOrigin string

const (
	OriginCustomer MessageOrigin = "customer"
	OriginAgent    MessageOrigin = "agent"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewTicketPayload payload.
type NewTicketPayload struct {
	TicketID      int64                 `json:"ticket_id"`
	Subject       string                `json:"subject"`
	CustomerEmail string                `json:"customer_email"`
	Status        domain.TicketStatus   `json:"status"`
	Priority      domain.TicketPriority `json:"priority"`
}

// TicketUpdatePayload payload. Changes maps field name to its new value.
type TicketUpdatePayload struct {
	TicketID int64              `json:"ticket_id"`
	Changes  map[string]*string `json:"changes"`
}

// NewMessagePayload payload.
type NewMessagePayload struct {
	TicketID    int64              `json:"ticket_id"`
	MessageID   int64              `json:"message_id"`
	MessageType domain.MessageType `json:"message_type"`
	Origin      MessageOrigin      `json:"origin"`
	FromEmail   string             `json:"from_email"`
	BodyPreview string             `json:"body_preview"`
}

// MessageDeletedPayload payload.
type MessageDeletedPayload struct {
	TicketID  int64 `json:"ticket_id"`
	MessageID int64 `json:"message_id"`
}

// PresencePayload payload for viewer-joined, viewer-left and user-composing.
type PresencePayload struct {
	TicketID  int64  `json:"ticket_id"`
	AgentID   int64  `json:"agent_id"`
	AgentName string `json:"agent_name,omitempty"`
}

// Preview truncates a message body for event payloads, never splitting a
// multi-byte rune.
func Preview(body string) string {
	const max = 140
	if len(body) <= max {
		return body
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}
