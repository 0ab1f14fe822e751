package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew              TicketStatus = "new"
	TicketStatusOpen             TicketStatus = "open"
	TicketStatusAwaitingCustomer TicketStatus = "awaiting_customer"
	TicketStatusResolved         TicketStatus = "resolved"
)

// Valid reports whether the status is a known lifecycle state.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusOpen, TicketStatusAwaitingCustomer, TicketStatusResolved:
		return true
	}
	return false
}

// ReopensOnCustomerMessage reports whether an inbound customer email moves
// the ticket back to open.
func (s TicketStatus) ReopensOnCustomerMessage() bool {
	return s == TicketStatusAwaitingCustomer || s == TicketStatusResolved
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether the priority is a known value.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for a customer conversation thread. MessageID holds
// the email message-id of the originating message and anchors the thread root.
type Ticket struct {
	ID            int64
	Subject       string
	CustomerEmail string
	CustomerName  *string
	ReplyTo       *string
	Status        TicketStatus
	Priority      TicketPriority
	AssigneeID    *int64
	FollowUpAt    *time.Time
	MessageID     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Rollups populated by list and search queries.
	LastActivityAt  time.Time
	MessageCount    int
	AttachmentCount int
	Tags            []Tag
}

// Agent is a support agent who can be assigned tickets and author replies.
type Agent struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}
