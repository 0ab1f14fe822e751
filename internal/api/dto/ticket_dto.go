package dto

import (
	"time"

	"github.com/threadwell/conversation-service/internal/domain"
)

// TicketSummary response shape for list and search pages.
type TicketSummary struct {
	ID              int64                 `json:"id"`
	Subject         string                `json:"subject"`
	CustomerEmail   string                `json:"customer_email"`
	CustomerName    *string               `json:"customer_name"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	AssigneeID      *int64                `json:"assignee_id"`
	FollowUpAt      *time.Time            `json:"follow_up_at"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	LastActivityAt  time.Time             `json:"last_activity_at"`
	MessageCount    int                   `json:"message_count"`
	AttachmentCount int                   `json:"attachment_count"`
	Tags            []TagResponse         `json:"tags"`
}

// TicketListResponse is one page plus its pagination block.
type TicketListResponse struct {
	Tickets    []TicketSummary    `json:"tickets"`
	Pagination PaginationResponse `json:"pagination"`
}

// PaginationResponse carries offset-paging cursors for list endpoints.
type PaginationResponse struct {
	HasMore    bool `json:"hasMore"`
	NextOffset int  `json:"nextOffset"`
	Total      int  `json:"total"`
}

// TicketDetailResponse provides full ticket info with the merged timeline.
type TicketDetailResponse struct {
	TicketSummary
	Timeline []TimelineItemResponse `json:"timeline"`
}

// TimelineItemResponse is one feed entry; exactly one of message and history
// is present, per kind.
type TimelineItemResponse struct {
	Kind    string           `json:"kind"`
	At      time.Time        `json:"at"`
	Message *MessageResponse `json:"message,omitempty"`
	History *HistoryResponse `json:"history,omitempty"`
}

// MessageResponse represents one conversation message.
type MessageResponse struct {
	ID          int64                `json:"id"`
	TicketID    int64                `json:"ticket_id"`
	Type        domain.MessageType   `json:"type"`
	AuthorID    *int64               `json:"author_id"`
	FromEmail   string               `json:"from_email"`
	FromName    *string              `json:"from_name"`
	To          []string             `json:"to"`
	Cc          []string             `json:"cc"`
	Body        string               `json:"body"`
	BodyHTML    *string              `json:"body_html"`
	ScheduledAt *time.Time           `json:"scheduled_at"`
	SentAt      *time.Time           `json:"sent_at"`
	CreatedAt   time.Time            `json:"created_at"`
	Attachments []AttachmentResponse `json:"attachments"`
}

// HistoryResponse represents one audit entry.
type HistoryResponse struct {
	ID           int64               `json:"id"`
	FieldName    string              `json:"field_name"`
	OldValue     *string             `json:"old_value"`
	NewValue     *string             `json:"new_value"`
	ChangedBy    *int64              `json:"changed_by"`
	ChangeSource domain.ChangeSource `json:"change_source"`
	ChangedAt    time.Time           `json:"changed_at"`
}

// AttachmentResponse represents stored attachment metadata.
type AttachmentResponse struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
}

// TagResponse represents a tag.
type TagResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UpdateTicketRequest is a partial update; raw JSON distinguishes absent from
// null for the nullable fields, decoded by the handler.
type UpdateTicketRequest struct {
	Status        *domain.TicketStatus   `json:"status"`
	Priority      *domain.TicketPriority `json:"priority"`
	CustomerEmail *string                `json:"customer_email"`
}

// ReplyRequest payload for agent replies and notes.
type ReplyRequest struct {
	Type             domain.MessageType `json:"type"`
	Body             string             `json:"body"`
	BodyHTML         *string            `json:"body_html"`
	To               []string           `json:"to"`
	Cc               []string           `json:"cc"`
	ScheduledAt      *time.Time         `json:"scheduled_at"`
	ReplyToMessageID *int64             `json:"reply_to_message_id"`
}

// BulkDeleteRequest payload.
type BulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

// AddTagRequest payload.
type AddTagRequest struct {
	Name string `json:"name"`
}

// PresenceRequest payload for viewer presence and composing signals.
type PresenceRequest struct {
	TicketID int64  `json:"ticket_id"`
	Action   string `json:"action"`
}

// FromTicket maps a domain ticket to its summary shape.
func FromTicket(t *domain.Ticket) TicketSummary {
	tags := make([]TagResponse, 0, len(t.Tags))
	for _, tag := range t.Tags {
		tags = append(tags, TagResponse{ID: tag.ID, Name: tag.Name})
	}
	return TicketSummary{
		ID:              t.ID,
		Subject:         t.Subject,
		CustomerEmail:   t.CustomerEmail,
		CustomerName:    t.CustomerName,
		Status:          t.Status,
		Priority:        t.Priority,
		AssigneeID:      t.AssigneeID,
		FollowUpAt:      t.FollowUpAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		LastActivityAt:  t.LastActivityAt,
		MessageCount:    t.MessageCount,
		AttachmentCount: t.AttachmentCount,
		Tags:            tags,
	}
}

// FromMessage maps a domain message to its response shape.
func FromMessage(m *domain.Message) MessageResponse {
	atts := make([]AttachmentResponse, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		atts = append(atts, AttachmentResponse{
			ID:        a.ID,
			Filename:  a.Filename,
			SizeBytes: a.SizeBytes,
			MimeType:  a.MimeType,
		})
	}
	return MessageResponse{
		ID:          m.ID,
		TicketID:    m.TicketID,
		Type:        m.Type,
		AuthorID:    m.AuthorID,
		FromEmail:   m.FromEmail,
		FromName:    m.FromName,
		To:          m.ToEmails,
		Cc:          m.CcEmails,
		Body:        m.Body,
		BodyHTML:    m.BodyHTML,
		ScheduledAt: m.ScheduledAt,
		SentAt:      m.SentAt,
		CreatedAt:   m.CreatedAt,
		Attachments: atts,
	}
}

// FromHistory maps a domain history entry to its response shape.
func FromHistory(h *domain.HistoryEntry) HistoryResponse {
	return HistoryResponse{
		ID:           h.ID,
		FieldName:    h.FieldName,
		OldValue:     h.OldValue,
		NewValue:     h.NewValue,
		ChangedBy:    h.ChangedBy,
		ChangeSource: h.ChangeSource,
		ChangedAt:    h.ChangedAt,
	}
}

// FromTimeline maps a merged timeline to the response shape.
func FromTimeline(items []domain.TimelineItem) []TimelineItemResponse {
	out := make([]TimelineItemResponse, 0, len(items))
	for _, item := range items {
		resp := TimelineItemResponse{Kind: string(item.Kind), At: item.At}
		if item.Message != nil {
			msg := FromMessage(item.Message)
			resp.Message = &msg
		}
		if item.History != nil {
			h := FromHistory(item.History)
			resp.History = &h
		}
		out = append(out, resp)
	}
	return out
}
