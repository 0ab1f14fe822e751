package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/threadwell/conversation-service/internal/domain"
	"github.com/threadwell/conversation-service/internal/events"
	"github.com/threadwell/conversation-service/internal/mail"
	"github.com/threadwell/conversation-service/internal/repository"
)

type fakeTicketRepo struct {
	nextID    int64
	tickets   map[int64]*domain.Ticket
	updates   int
	createErr error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[int64]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	ticket.ID = r.nextID
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	cp := *ticket
	r.tickets[ticket.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.updates++
	cp := *ticket
	r.tickets[ticket.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *ticket
	return &cp, nil
}

func (r *fakeTicketRepo) FindByRootMessageID(ctx context.Context, messageID string) (*domain.Ticket, error) {
	for _, ticket := range r.tickets {
		if ticket.MessageID != nil && *ticket.MessageID == messageID {
			cp := *ticket
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) List(ctx context.Context, filter repository.TicketFilter) (*repository.TicketPage, error) {
	var all []domain.Ticket
	for _, ticket := range r.tickets {
		all = append(all, *ticket)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if filter.Offset < len(all) {
		all = all[filter.Offset:]
	} else {
		all = nil
	}
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return &repository.TicketPage{Tickets: all, Total: total}, nil
}

func (r *fakeTicketRepo) Search(ctx context.Context, term string, filter repository.TicketFilter) (*repository.TicketPage, error) {
	return r.List(ctx, filter)
}

func (r *fakeTicketRepo) BulkDelete(ctx context.Context, ids []int64) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if _, ok := r.tickets[id]; ok {
			delete(r.tickets, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeMessageRepo struct {
	nextID   int64
	messages map[int64]*domain.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[int64]*domain.Message)}
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.nextID++
	msg.ID = r.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	cp := *msg
	r.messages[msg.ID] = &cp
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	msg, ok := r.messages[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *msg
	return &cp, nil
}

func (r *fakeMessageRepo) GetByMessageID(ctx context.Context, messageID string) (*domain.Message, error) {
	for _, msg := range r.messages {
		if msg.MessageID != nil && *msg.MessageID == messageID {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeMessageRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error) {
	var out []domain.Message
	for _, msg := range r.messages {
		if msg.TicketID == ticketID {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeMessageRepo) ListRecentEmails(ctx context.Context, ticketID int64, limit int) ([]domain.Message, error) {
	all, _ := r.ListByTicket(ctx, ticketID)
	var out []domain.Message
	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		if m.Type == domain.MessageTypeNote || m.Pending() {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkSent(ctx context.Context, id int64, transportMessageID string, sentAt time.Time) error {
	msg, ok := r.messages[id]
	if !ok || msg.SentAt != nil {
		return pgx.ErrNoRows
	}
	msg.MessageID = &transportMessageID
	msg.SentAt = &sentAt
	return nil
}

func (r *fakeMessageRepo) ListDueScheduled(ctx context.Context, now time.Time) ([]domain.Message, error) {
	var out []domain.Message
	for _, msg := range r.messages {
		if msg.Pending() && !msg.ScheduledAt.After(now) {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(*out[j].ScheduledAt) })
	return out, nil
}

func (r *fakeMessageRepo) CancelScheduled(ctx context.Context, ticketID, messageID int64) (bool, error) {
	msg, ok := r.messages[messageID]
	if !ok || msg.TicketID != ticketID || !msg.Pending() {
		return false, nil
	}
	delete(r.messages, messageID)
	return true, nil
}

func (r *fakeMessageRepo) DeleteNote(ctx context.Context, ticketID, messageID int64) (bool, error) {
	msg, ok := r.messages[messageID]
	if !ok || msg.TicketID != ticketID || msg.Type != domain.MessageTypeNote {
		return false, nil
	}
	delete(r.messages, messageID)
	return true, nil
}

type fakeHistoryRepo struct {
	entries []domain.HistoryEntry
	failErr error
}

func (r *fakeHistoryRepo) Create(ctx context.Context, entry *domain.HistoryEntry) error {
	if r.failErr != nil {
		return r.failErr
	}
	entry.ID = int64(len(r.entries) + 1)
	entry.ChangedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	for _, e := range r.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeAttachmentRepo struct {
	atts    []domain.Attachment
	failErr error
}

func (r *fakeAttachmentRepo) Create(ctx context.Context, att *domain.Attachment) error {
	if r.failErr != nil {
		return r.failErr
	}
	att.ID = int64(len(r.atts) + 1)
	r.atts = append(r.atts, *att)
	return nil
}

func (r *fakeAttachmentRepo) ListByMessage(ctx context.Context, messageID int64) ([]domain.Attachment, error) {
	var out []domain.Attachment
	for _, a := range r.atts {
		if a.MessageID == messageID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAttachmentRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	return r.atts, nil
}

type fakeTagRepo struct {
	nextID      int64
	tags        map[string]*domain.Tag
	attachments map[int64][]int64
}

func newFakeTagRepo() *fakeTagRepo {
	return &fakeTagRepo{tags: make(map[string]*domain.Tag), attachments: make(map[int64][]int64)}
}

func (r *fakeTagRepo) GetOrCreate(ctx context.Context, name string) (*domain.Tag, error) {
	if tag, ok := r.tags[name]; ok {
		cp := *tag
		return &cp, nil
	}
	r.nextID++
	tag := &domain.Tag{ID: r.nextID, Name: name}
	r.tags[name] = tag
	cp := *tag
	return &cp, nil
}

func (r *fakeTagRepo) GetByID(ctx context.Context, id int64) (*domain.Tag, error) {
	for _, tag := range r.tags {
		if tag.ID == id {
			cp := *tag
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTagRepo) Attach(ctx context.Context, ticketID, tagID int64) error {
	for _, existing := range r.attachments[ticketID] {
		if existing == tagID {
			return nil
		}
	}
	r.attachments[ticketID] = append(r.attachments[ticketID], tagID)
	return nil
}

func (r *fakeTagRepo) Detach(ctx context.Context, ticketID, tagID int64) (bool, error) {
	ids := r.attachments[ticketID]
	for i, existing := range ids {
		if existing == tagID {
			r.attachments[ticketID] = append(ids[:i], ids[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTagRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Tag, error) {
	var out []domain.Tag
	for _, id := range r.attachments[ticketID] {
		if tag, err := r.GetByID(ctx, id); err == nil {
			out = append(out, *tag)
		}
	}
	return out, nil
}

func (r *fakeTagRepo) ListByTicketIDs(ctx context.Context, ticketIDs []int64) (map[int64][]domain.Tag, error) {
	out := make(map[int64][]domain.Tag)
	for _, id := range ticketIDs {
		tags, _ := r.ListByTicket(ctx, id)
		out[id] = tags
	}
	return out, nil
}

type fakeEmailOpenRepo struct {
	opens []domain.EmailOpen
}

func (r *fakeEmailOpenRepo) Create(ctx context.Context, open *domain.EmailOpen) error {
	open.ID = int64(len(r.opens) + 1)
	open.OpenedAt = time.Now()
	r.opens = append(r.opens, *open)
	return nil
}

func (r *fakeEmailOpenRepo) ListByToken(ctx context.Context, token string) ([]domain.EmailOpen, error) {
	var out []domain.EmailOpen
	for _, o := range r.opens {
		if o.TrackingToken == token {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeEmailOpenRepo) FirstOpen(ctx context.Context, token string) (time.Time, error) {
	opens, _ := r.ListByToken(ctx, token)
	if len(opens) == 0 {
		return time.Time{}, pgx.ErrNoRows
	}
	return opens[0].OpenedAt, nil
}

type fakeDedup struct {
	seen    map[string]bool
	failErr error
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{seen: make(map[string]bool)}
}

func (d *fakeDedup) MarkSeen(ctx context.Context, messageID string) (bool, error) {
	if d.failErr != nil {
		return false, d.failErr
	}
	if d.seen[messageID] {
		return true, nil
	}
	d.seen[messageID] = true
	return false, nil
}

func (d *fakeDedup) Forget(ctx context.Context, messageID string) error {
	delete(d.seen, messageID)
	return nil
}

type fakeBlobStore struct {
	stored  map[string][]byte
	failErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{stored: make(map[string][]byte)}
}

func (s *fakeBlobStore) Put(ctx context.Context, filename string, data []byte) (string, error) {
	if s.failErr != nil {
		return "", s.failErr
	}
	path := fmt.Sprintf("blobs/%s", filename)
	s.stored[path] = data
	return path, nil
}

type fakeTransport struct {
	sent    []*mail.OutboundMessage
	failErr error
	nextID  int
}

func (t *fakeTransport) Send(ctx context.Context, msg *mail.OutboundMessage) (string, error) {
	if t.failErr != nil {
		return "", t.failErr
	}
	t.sent = append(t.sent, msg)
	t.nextID++
	return fmt.Sprintf("<sent-%d@test>", t.nextID), nil
}

// captureDispatcher records published events synchronously.
type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *captureDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (d *captureDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
