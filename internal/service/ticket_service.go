package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/threadwell/conversation-service/internal/domain"
	"github.com/threadwell/conversation-service/internal/events"
	"github.com/threadwell/conversation-service/internal/mail"
	"github.com/threadwell/conversation-service/internal/observability"
	"github.com/threadwell/conversation-service/internal/repository"
	apperrors "github.com/threadwell/conversation-service/pkg/util"
)

// TicketService coordinates ticket workflows: audit-logged mutation, agent
// replies, scheduled delivery, search and retrieval.
type TicketService struct {
	tickets     repository.TicketRepository
	messages    repository.MessageRepository
	history     repository.HistoryRepository
	attachments repository.AttachmentRepository
	tags        repository.TagRepository
	emailOpens  repository.EmailOpenRepository
	transport   mail.Transport
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	MessageRepo    repository.MessageRepository
	HistoryRepo    repository.HistoryRepository
	AttachmentRepo repository.AttachmentRepository
	TagRepo        repository.TagRepository
	EmailOpenRepo  repository.EmailOpenRepository
	Transport      mail.Transport
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Metrics        *observability.Metrics
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		messages:    deps.MessageRepo,
		history:     deps.HistoryRepo,
		attachments: deps.AttachmentRepo,
		tags:        deps.TagRepo,
		emailOpens:  deps.EmailOpenRepo,
		transport:   deps.Transport,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		now:         time.Now,
	}
}

// NullableInt64 distinguishes "absent" from "explicitly null".
type NullableInt64 struct {
	Set   bool
	Value *int64
}

// NullableString distinguishes "absent" from "explicitly null".
type NullableString struct {
	Set   bool
	Value *string
}

// NullableTime distinguishes "absent" from "explicitly null".
type NullableTime struct {
	Set   bool
	Value *time.Time
}

// TicketUpdateInput is a partial update; absent fields are left untouched.
type TicketUpdateInput struct {
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	AssigneeID    NullableInt64
	CustomerEmail *string
	CustomerName  NullableString
	FollowUpAt    NullableTime
}

type fieldChange struct {
	name     string
	oldValue *string
	newValue *string
}

// UpdateTicket applies a partial update and writes one history entry per
// field whose value actually changed. No-op fields are silently skipped so
// they never pollute the audit trail. History write failures are logged and
// swallowed; the state mutation must never be rolled back by an audit
// problem.
func (s *TicketService) UpdateTicket(ctx context.Context, ticketID int64, changedBy *int64, source domain.ChangeSource, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	var changes []fieldChange

	if input.Status != nil && *input.Status != ticket.Status {
		if !input.Status.Valid() {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
		}
		changes = append(changes, fieldChange{"status", ptr(string(ticket.Status)), ptr(string(*input.Status))})
		ticket.Status = *input.Status
	}
	if input.Priority != nil && *input.Priority != ticket.Priority {
		if !input.Priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
		}
		changes = append(changes, fieldChange{"priority", ptr(string(ticket.Priority)), ptr(string(*input.Priority))})
		ticket.Priority = *input.Priority
	}
	if input.AssigneeID.Set && !int64PtrEqual(input.AssigneeID.Value, ticket.AssigneeID) {
		changes = append(changes, fieldChange{"assignee", int64PtrString(ticket.AssigneeID), int64PtrString(input.AssigneeID.Value)})
		ticket.AssigneeID = input.AssigneeID.Value
	}
	if input.CustomerEmail != nil && *input.CustomerEmail != ticket.CustomerEmail {
		if *input.CustomerEmail == "" {
			return nil, apperrors.NewValidationError("customer_email must not be empty", nil)
		}
		changes = append(changes, fieldChange{"customer_email", ptr(ticket.CustomerEmail), input.CustomerEmail})
		ticket.CustomerEmail = *input.CustomerEmail
	}
	if input.CustomerName.Set && !strPtrEqual(input.CustomerName.Value, ticket.CustomerName) {
		changes = append(changes, fieldChange{"customer_name", ticket.CustomerName, input.CustomerName.Value})
		ticket.CustomerName = input.CustomerName.Value
	}
	if input.FollowUpAt.Set && !timePtrEqual(input.FollowUpAt.Value, ticket.FollowUpAt) {
		changes = append(changes, fieldChange{"follow_up_at", timePtrString(ticket.FollowUpAt), timePtrString(input.FollowUpAt.Value)})
		ticket.FollowUpAt = input.FollowUpAt.Value
	}

	if len(changes) == 0 {
		return ticket, nil
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	s.recordChanges(ctx, ticket.ID, changedBy, source, changes)

	payload := events.TicketUpdatePayload{TicketID: ticket.ID, Changes: map[string]*string{}}
	for _, ch := range changes {
		payload.Changes[ch.name] = ch.newValue
	}
	s.publish(ctx, events.Event{Type: events.EventTicketUpdate, TicketID: ticket.ID, Payload: payload})

	return ticket, nil
}

func (s *TicketService) recordChanges(ctx context.Context, ticketID int64, changedBy *int64, source domain.ChangeSource, changes []fieldChange) {
	for _, ch := range changes {
		entry := &domain.HistoryEntry{
			TicketID:     ticketID,
			FieldName:    ch.name,
			OldValue:     ch.oldValue,
			NewValue:     ch.newValue,
			ChangedBy:    changedBy,
			ChangeSource: source,
		}
		if err := s.history.Create(ctx, entry); err != nil {
			s.logger.Error("history write failed",
				zap.Int64("ticket_id", ticketID),
				zap.String("field", ch.name),
				zap.Error(err))
		}
	}
}

// ReplyInput describes an agent-composed reply or note.
type ReplyInput struct {
	Type             domain.MessageType
	Body             string
	BodyHTML         *string
	To               []string
	Cc               []string
	ScheduledAt      *time.Time
	ReplyToMessageID *int64
}

// ReplyToTicket persists an agent reply and, unless it is a note or a
// deferred send, delivers it immediately: quotes up to five prior messages,
// reconstructs threading headers, sends, and forces the ticket to resolved
// on send success. Deferred replies are persisted pending; the scheduled
// delivery worker owns their eventual send.
func (s *TicketService) ReplyToTicket(ctx context.Context, agent *domain.Agent, ticketID int64, input ReplyInput) (*domain.Message, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	msgType := input.Type
	if msgType == "" {
		msgType = domain.MessageTypeEmail
	}
	if !msgType.Valid() {
		return nil, apperrors.NewValidationError("invalid message type", map[string]any{"type": msgType})
	}
	isNote := msgType == domain.MessageTypeNote
	deferred := input.ScheduledAt != nil && input.ScheduledAt.After(s.now())
	if isNote && input.ScheduledAt != nil {
		return nil, apperrors.NewValidationError("notes cannot be scheduled", nil)
	}

	if ticket.AssigneeID == nil && !deferred {
		ticket.AssigneeID = &agent.ID
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, err
		}
		s.recordChanges(ctx, ticket.ID, &agent.ID, domain.ChangeSourceEmailReply, []fieldChange{
			{"assignee", nil, int64PtrString(&agent.ID)},
		})
	}

	msg := &domain.Message{
		TicketID:  ticket.ID,
		Type:      msgType,
		AuthorID:  &agent.ID,
		FromEmail: agent.Email,
		FromName:  &agent.Name,
		Body:      input.Body,
		BodyHTML:  input.BodyHTML,
	}
	if !isNote {
		msg.ToEmails = input.To
		if len(msg.ToEmails) == 0 {
			msg.ToEmails = []string{recipientAddress(ticket)}
		}
		msg.CcEmails = input.Cc
	}

	immediate := !isNote && !deferred && msgType == domain.MessageTypeEmail
	if deferred {
		msg.ScheduledAt = input.ScheduledAt
	}
	if !isNote {
		// Assigned before Create so the token is stored with the row;
		// open receipts from deferred sends correlate by it too.
		token := uuid.NewString()
		msg.TrackingToken = &token
	}

	var prior []domain.Message
	var quoted []domain.Message
	if immediate {
		prior, err = s.messages.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		quoted, err = s.selectQuoted(ctx, ticket.ID, input.ReplyToMessageID)
		if err != nil {
			return nil, err
		}
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if immediate {
		if err := s.sendReply(ctx, ticket, msg, prior, quoted); err != nil {
			return nil, err
		}
		if _, err := s.UpdateTicket(ctx, ticket.ID, &agent.ID, domain.ChangeSourceEmailReply, TicketUpdateInput{
			Status: ptr(domain.TicketStatusResolved),
		}); err != nil {
			s.logger.Error("resolve after send failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	s.publish(ctx, events.Event{
		Type:     events.EventNewMessage,
		TicketID: ticket.ID,
		Payload: events.NewMessagePayload{
			TicketID:    ticket.ID,
			MessageID:   msg.ID,
			MessageType: msg.Type,
			Origin:      events.OriginAgent,
			FromEmail:   msg.FromEmail,
			BodyPreview: events.Preview(msg.Body),
		},
	})

	return msg, nil
}

// selectQuoted picks the messages to quote below a reply: the single message
// explicitly replied to, or the five most recent non-note messages.
func (s *TicketService) selectQuoted(ctx context.Context, ticketID int64, replyToMessageID *int64) ([]domain.Message, error) {
	if replyToMessageID != nil {
		quoted, err := s.messages.GetByID(ctx, *replyToMessageID)
		if err != nil {
			return nil, err
		}
		if quoted.TicketID != ticketID {
			return nil, apperrors.NewNotFound("message", map[string]any{"message_id": *replyToMessageID})
		}
		return []domain.Message{*quoted}, nil
	}
	return s.messages.ListRecentEmails(ctx, ticketID, mail.MaxQuotedMessages)
}

func (s *TicketService) sendReply(ctx context.Context, ticket *domain.Ticket, msg *domain.Message, prior, quoted []domain.Message) error {
	inReplyTo, references := mail.BuildReplyHeaders(prior)

	body := ""
	if msg.BodyHTML != nil && *msg.BodyHTML != "" {
		body = *msg.BodyHTML
	} else {
		body = mail.TextToHTML(msg.Body)
	}
	body = mail.RenderQuotedThread(body, quoted)

	out := &mail.OutboundMessage{
		To:         msg.ToEmails,
		Cc:         msg.CcEmails,
		Subject:    replySubject(ticket.Subject),
		HTMLBody:   body,
		TextBody:   msg.Body,
		FromName:   fromName(msg),
		InReplyTo:  inReplyTo,
		References: references,
	}
	if msg.TrackingToken != nil {
		out.TrackingToken = *msg.TrackingToken
	}
	atts, err := s.attachments.ListByMessage(ctx, msg.ID)
	if err == nil {
		out.Attachments = atts
	}

	transportID, err := s.transport.Send(ctx, out)
	if err != nil {
		return err
	}

	sentAt := s.now()
	if err := s.messages.MarkSent(ctx, msg.ID, transportID, sentAt); err != nil {
		s.logger.Error("mark sent failed", zap.Int64("message_id", msg.ID), zap.Error(err))
		return nil
	}
	msg.MessageID = &transportID
	msg.SentAt = &sentAt
	return nil
}

// DueScheduledMessages returns the pending messages whose send time has
// arrived, ascending by scheduled time.
func (s *TicketService) DueScheduledMessages(ctx context.Context) ([]domain.Message, error) {
	return s.messages.ListDueScheduled(ctx, s.now())
}

// DeliverScheduled sends one due scheduled message. On success the message is
// marked sent with the transport's message-id and the owning ticket is forced
// to resolved, mirroring the immediate-send path. On failure the message
// stays pending and is retried on the next poll.
func (s *TicketService) DeliverScheduled(ctx context.Context, msg *domain.Message) error {
	ticket, err := s.tickets.GetByID(ctx, msg.TicketID)
	if err != nil {
		return err
	}

	prior, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	quoted, err := s.messages.ListRecentEmails(ctx, ticket.ID, mail.MaxQuotedMessages)
	if err != nil {
		return err
	}

	if err := s.sendReply(ctx, ticket, msg, prior, quoted); err != nil {
		s.metrics.RecordScheduledSend(false)
		return err
	}
	s.metrics.RecordScheduledSend(true)

	if _, err := s.UpdateTicket(ctx, ticket.ID, msg.AuthorID, domain.ChangeSourceAutomation, TicketUpdateInput{
		Status: ptr(domain.TicketStatusResolved),
	}); err != nil {
		s.logger.Error("resolve after scheduled send failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}
	return nil
}

// DeleteMessage cancels a pending scheduled message or removes a note. Sent
// messages are immutable: cancelling one fails with a conflict, guarded at
// the database so a message mid-send cannot be pulled out from under the
// worker.
func (s *TicketService) DeleteMessage(ctx context.Context, ticketID, messageID int64) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.TicketID != ticketID {
		return apperrors.NewNotFound("message", map[string]any{"message_id": messageID})
	}

	switch {
	case msg.Type == domain.MessageTypeNote:
		deleted, err := s.messages.DeleteNote(ctx, ticketID, messageID)
		if err != nil {
			return err
		}
		if !deleted {
			return apperrors.NewNotFound("message", map[string]any{"message_id": messageID})
		}
	case msg.ScheduledAt != nil:
		cancelled, err := s.messages.CancelScheduled(ctx, ticketID, messageID)
		if err != nil {
			return err
		}
		if !cancelled {
			return apperrors.NewConflict("message already sent", map[string]any{"message_id": messageID})
		}
	default:
		return apperrors.NewConflict("sent messages cannot be deleted", map[string]any{"message_id": messageID})
	}

	s.publish(ctx, events.Event{
		Type:     events.EventMessageDeleted,
		TicketID: ticketID,
		Payload:  events.MessageDeletedPayload{TicketID: ticketID, MessageID: messageID},
	})
	return nil
}

// Pagination is the page descriptor computed from the single total count.
type Pagination struct {
	HasMore    bool `json:"hasMore"`
	NextOffset int  `json:"nextOffset"`
	Total      int  `json:"total"`
}

// TicketListResult is one page of tickets plus pagination.
type TicketListResult struct {
	Tickets    []domain.Ticket
	Pagination Pagination
}

// ListTickets serves filtered, paginated listing ordered by most recent
// activity.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) (*TicketListResult, error) {
	normalize(&filter)
	page, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.buildResult(ctx, page, filter)
}

// SearchTickets serves ranked search. Rank decided which rows made the page;
// within the page the activity sort key governs display order.
func (s *TicketService) SearchTickets(ctx context.Context, term string, filter repository.TicketFilter) (*TicketListResult, error) {
	normalize(&filter)
	page, err := s.tickets.Search(ctx, term, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(page.Tickets, func(i, j int) bool {
		if filter.SortAsc {
			return page.Tickets[i].LastActivityAt.Before(page.Tickets[j].LastActivityAt)
		}
		return page.Tickets[i].LastActivityAt.After(page.Tickets[j].LastActivityAt)
	})
	return s.buildResult(ctx, page, filter)
}

func (s *TicketService) buildResult(ctx context.Context, page *repository.TicketPage, filter repository.TicketFilter) (*TicketListResult, error) {
	ids := make([]int64, 0, len(page.Tickets))
	for i := range page.Tickets {
		ids = append(ids, page.Tickets[i].ID)
	}
	tagsByTicket, err := s.tags.ListByTicketIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range page.Tickets {
		page.Tickets[i].Tags = tagsByTicket[page.Tickets[i].ID]
	}

	hasMore := filter.Offset+len(page.Tickets) < page.Total
	nextOffset := page.Total
	if hasMore {
		nextOffset = filter.Offset + filter.Limit
	}
	return &TicketListResult{
		Tickets: page.Tickets,
		Pagination: Pagination{
			HasMore:    hasMore,
			NextOffset: nextOffset,
			Total:      page.Total,
		},
	}, nil
}

func normalize(filter *repository.TicketFilter) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
}

// TicketDetail is a ticket plus its merged chronological feed.
type TicketDetail struct {
	Ticket   *domain.Ticket
	Timeline []domain.TimelineItem
	Tags     []domain.Tag
}

// GetTicketDetail loads a ticket with messages, attachments, history and
// tags, merged into one timeline.
func (s *TicketService) GetTicketDetail(ctx context.Context, ticketID int64) (*TicketDetail, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	atts, err := s.attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	byMessage := make(map[int64][]domain.Attachment)
	for _, att := range atts {
		byMessage[att.MessageID] = append(byMessage[att.MessageID], att)
	}
	for i := range messages {
		messages[i].Attachments = byMessage[messages[i].ID]
	}
	historyEntries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	tags, err := s.tags.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	return &TicketDetail{
		Ticket:   ticket,
		Timeline: domain.MergeTimeline(messages, historyEntries),
		Tags:     tags,
	}, nil
}

// AddTag associates a tag (created on first use) with a ticket. Attaching an
// already-attached tag is a no-op.
func (s *TicketService) AddTag(ctx context.Context, ticketID int64, name string) (*domain.Tag, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	tag, err := s.tags.GetOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.tags.Attach(ctx, ticketID, tag.ID); err != nil {
		return nil, err
	}
	return tag, nil
}

// RemoveTag detaches a tag from a ticket.
func (s *TicketService) RemoveTag(ctx context.Context, ticketID, tagID int64) error {
	detached, err := s.tags.Detach(ctx, ticketID, tagID)
	if err != nil {
		return err
	}
	if !detached {
		return apperrors.NewNotFound("tag association", map[string]any{"tag_id": tagID})
	}
	return nil
}

// BulkDeleteTickets removes tickets and everything they own.
func (s *TicketService) BulkDeleteTickets(ctx context.Context, ids []int64) (int64, error) {
	return s.tickets.BulkDelete(ctx, ids)
}

// RecordEmailOpen appends a read receipt for the tracking token.
func (s *TicketService) RecordEmailOpen(ctx context.Context, token string) error {
	open := &domain.EmailOpen{TrackingToken: token}
	return s.emailOpens.Create(ctx, open)
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func recipientAddress(ticket *domain.Ticket) string {
	if ticket.ReplyTo != nil && *ticket.ReplyTo != "" {
		return *ticket.ReplyTo
	}
	return ticket.CustomerEmail
}

func replySubject(subject string) string {
	if len(subject) >= 3 && (subject[:3] == "Re:" || subject[:3] == "RE:") {
		return subject
	}
	return "Re: " + subject
}

func fromName(msg *domain.Message) string {
	if msg.FromName != nil {
		return *msg.FromName
	}
	return ""
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func int64PtrString(v *int64) *string {
	if v == nil {
		return nil
	}
	return ptr(strconv.FormatInt(*v, 10))
}

func timePtrString(v *time.Time) *string {
	if v == nil {
		return nil
	}
	return ptr(v.UTC().Format(time.RFC3339))
}
