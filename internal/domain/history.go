package domain

import "time"

// ChangeSource tags what triggered a ticket field change.
type ChangeSource string

const (
	ChangeSourceManual     ChangeSource = "manual"
	ChangeSourceAutomation ChangeSource = "automation"
	ChangeSourceAPI        ChangeSource = "api"
	ChangeSourceEmailReply ChangeSource = "email_reply"
)

// HistoryEntry is an immutable audit record of one field-level ticket change.
// Entries are append-only; the full audit trail for a ticket is the
// time-ordered union of its entries.
type HistoryEntry struct {
	ID           int64
	TicketID     int64
	FieldName    string
	OldValue     *string
	NewValue     *string
	ChangedBy    *int64
	ChangeSource ChangeSource
	ChangedAt    time.Time
}
