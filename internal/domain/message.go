package domain

import "time"

// MessageType differentiates conversation content.
type MessageType string

const (
	MessageTypeEmail  MessageType = "email"
	MessageTypeNote   MessageType = "note"
	MessageTypeSMS    MessageType = "sms"
	MessageTypeChat   MessageType = "chat"
	MessageTypePhone  MessageType = "phone"
	MessageTypeSystem MessageType = "system"
)

// Valid reports whether the type is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeEmail, MessageTypeNote, MessageTypeSMS, MessageTypeChat, MessageTypePhone, MessageTypeSystem:
		return true
	}
	return false
}

// Message is one unit of conversation content within a ticket.
//
// AuthorID is nil for customer- and system-originated messages. MessageID is
// the email message-id when the message crossed the mail boundary; it is
// unique when present and drives threading and deduplication. RefIDs carries
// the References header chain as received, used when reconstructing reply
// headers. A message is pending iff ScheduledAt is set and SentAt is nil;
// once SentAt is set the message is immutable and cannot be cancelled.
type Message struct {
	ID            int64
	TicketID      int64
	Type          MessageType
	AuthorID      *int64
	FromEmail     string
	FromName      *string
	ToEmails      []string
	CcEmails      []string
	Body          string
	BodyHTML      *string
	MessageID     *string
	RefIDs        []string
	TrackingToken *string
	ScheduledAt   *time.Time
	SentAt        *time.Time
	CreatedAt     time.Time

	Attachments []Attachment
}

// Pending reports whether the message awaits scheduled delivery.
func (m *Message) Pending() bool {
	return m.ScheduledAt != nil && m.SentAt == nil
}

// CustomerOriginated reports whether the message came from the customer side
// of the conversation.
func (m *Message) CustomerOriginated() bool {
	return m.AuthorID == nil && m.Type == MessageTypeEmail
}

// Attachment stores metadata for a file attached to a message. StoragePath is
// opaque to this service; the blob store owns its meaning.
type Attachment struct {
	ID          int64
	MessageID   int64
	Filename    string
	StoragePath string
	SizeBytes   int64
	MimeType    string
	CreatedAt   time.Time
}

// EmailOpen is an append-only read receipt keyed by a per-message tracking
// token. Multiple opens per message are expected; first open is the earliest.
type EmailOpen struct {
	ID            int64
	TrackingToken string
	OpenedAt      time.Time
}
