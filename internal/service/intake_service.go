package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/threadwell/conversation-service/internal/domain"
	"github.com/threadwell/conversation-service/internal/events"
	"github.com/threadwell/conversation-service/internal/imaging"
	"github.com/threadwell/conversation-service/internal/repository"
	"github.com/threadwell/conversation-service/internal/storage"
)

// DedupCache is the advisory fast path for inbound message-id dedup. Errors
// from it never fail ingestion; the database uniqueness check is
// authoritative.
type DedupCache interface {
	MarkSeen(ctx context.Context, messageID string) (bool, error)
	Forget(ctx context.Context, messageID string) error
}

// IntakeService resolves inbound email to the right ticket, exactly once.
type IntakeService struct {
	tickets     repository.TicketRepository
	messages    repository.MessageRepository
	attachments repository.AttachmentRepository
	dedup       DedupCache
	blobs       storage.BlobStore
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// IntakeDependencies bundles collaborators for the intake service.
type IntakeDependencies struct {
	TicketRepo     repository.TicketRepository
	MessageRepo    repository.MessageRepository
	AttachmentRepo repository.AttachmentRepository
	Dedup          DedupCache
	Blobs          storage.BlobStore
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	return &IntakeService{
		tickets:     deps.TicketRepo,
		messages:    deps.MessageRepo,
		attachments: deps.AttachmentRepo,
		dedup:       deps.Dedup,
		blobs:       deps.Blobs,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// ProcessInboundEmail deduplicates, threads and persists one parsed inbound
// email. It returns (nil, nil) when the email is a retransmission that was
// already processed. Lookup failures are fatal to the whole ingestion; the
// upstream poller is expected to redeliver.
func (s *IntakeService) ProcessInboundEmail(ctx context.Context, email *domain.InboundEmail) (*domain.Message, error) {
	marked := false
	if email.MessageID != "" {
		if seen, err := s.dedup.MarkSeen(ctx, email.MessageID); err != nil {
			s.logger.Warn("dedup cache unavailable", zap.Error(err))
		} else if seen {
			s.logger.Debug("duplicate email suppressed by cache", zap.String("message_id", email.MessageID))
			return nil, nil
		} else {
			marked = true
		}
	}

	msg, err := s.ingest(ctx, email)
	if err != nil && marked {
		// The email was never stored; release the id so a redelivery is
		// not swallowed by the cache fast path.
		if ferr := s.dedup.Forget(ctx, email.MessageID); ferr != nil {
			s.logger.Warn("release dedup key", zap.String("message_id", email.MessageID), zap.Error(ferr))
		}
	}
	return msg, err
}

func (s *IntakeService) ingest(ctx context.Context, email *domain.InboundEmail) (*domain.Message, error) {
	if email.MessageID != "" {
		_, err := s.messages.GetByMessageID(ctx, email.MessageID)
		if err == nil {
			s.logger.Info("duplicate email discarded", zap.String("message_id", email.MessageID))
			return nil, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	ticket, err := s.resolveTicket(ctx, email)
	if err != nil {
		return nil, err
	}

	isNew := ticket == nil
	if isNew {
		ticket, err = s.createTicket(ctx, email)
		if err != nil {
			return nil, err
		}
	}

	msg := &domain.Message{
		TicketID:  ticket.ID,
		Type:      domain.MessageTypeEmail,
		FromEmail: email.From,
		ToEmails:  email.To,
		CcEmails:  email.Cc,
		Body:      email.Body,
		RefIDs:    email.References,
	}
	if email.FromName != "" {
		msg.FromName = &email.FromName
	}
	if email.BodyHTML != "" {
		msg.BodyHTML = &email.BodyHTML
	}
	if email.MessageID != "" {
		msg.MessageID = &email.MessageID
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.storeAttachments(ctx, msg, email.Attachments)

	if !isNew && ticket.Status.ReopensOnCustomerMessage() {
		// The transition itself is not audited; only explicit field updates
		// write history entries.
		ticket.Status = domain.TicketStatusOpen
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, err
		}
		s.publish(ctx, events.Event{
			Type:     events.EventTicketUpdate,
			TicketID: ticket.ID,
			Payload: events.TicketUpdatePayload{
				TicketID: ticket.ID,
				Changes:  map[string]*string{"status": ptr(string(domain.TicketStatusOpen))},
			},
		})
	}

	if isNew {
		s.publish(ctx, events.Event{
			Type:     events.EventNewTicket,
			TicketID: ticket.ID,
			Payload: events.NewTicketPayload{
				TicketID:      ticket.ID,
				Subject:       ticket.Subject,
				CustomerEmail: ticket.CustomerEmail,
				Status:        ticket.Status,
				Priority:      ticket.Priority,
			},
		})
	}
	s.publish(ctx, events.Event{
		Type:     events.EventNewMessage,
		TicketID: ticket.ID,
		Payload: events.NewMessagePayload{
			TicketID:    ticket.ID,
			MessageID:   msg.ID,
			MessageType: msg.Type,
			Origin:      events.OriginCustomer,
			FromEmail:   msg.FromEmail,
			BodyPreview: events.Preview(msg.Body),
		},
	})

	return msg, nil
}

// resolveTicket walks In-Reply-To then each References id in header order,
// checking ticket roots before individual messages. First match wins; no
// match means a new ticket.
func (s *IntakeService) resolveTicket(ctx context.Context, email *domain.InboundEmail) (*domain.Ticket, error) {
	candidates := make([]string, 0, len(email.References)+1)
	if email.InReplyTo != "" {
		candidates = append(candidates, email.InReplyTo)
	}
	candidates = append(candidates, email.References...)

	for _, id := range candidates {
		ticket, err := s.tickets.FindByRootMessageID(ctx, id)
		if err == nil {
			return ticket, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		msg, err := s.messages.GetByMessageID(ctx, id)
		if err == nil {
			return s.tickets.GetByID(ctx, msg.TicketID)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}
	return nil, nil
}

func (s *IntakeService) createTicket(ctx context.Context, email *domain.InboundEmail) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		Subject:       email.Subject,
		CustomerEmail: email.SenderIdentity(),
		Status:        domain.TicketStatusNew,
		Priority:      domain.TicketPriorityNormal,
	}
	if email.FromName != "" {
		ticket.CustomerName = &email.FromName
	}
	if email.ReplyTo != "" {
		ticket.ReplyTo = &email.ReplyTo
	}
	if email.MessageID != "" {
		ticket.MessageID = &email.MessageID
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// storeAttachments persists attachments best-effort. HEIC images are
// transcoded to JPEG for universal viewability; on conversion failure the
// original bytes are kept under the original type.
func (s *IntakeService) storeAttachments(ctx context.Context, msg *domain.Message, atts []domain.InboundAttachment) {
	for _, in := range atts {
		content := in.Content
		filename := in.Filename
		mimeType := in.MimeType

		if imaging.IsHEIC(mimeType, content) {
			converted, err := imaging.ConvertToJPEG(content)
			if err != nil {
				s.logger.Warn("heic conversion failed; storing original",
					zap.String("filename", filename), zap.Error(err))
			} else {
				content = converted
				filename = imaging.JPEGFilename(filename)
				mimeType = "image/jpeg"
			}
		}

		path, err := s.blobs.Put(ctx, filename, content)
		if err != nil {
			s.logger.Error("store attachment blob",
				zap.String("filename", filename), zap.Error(err))
			continue
		}
		att := &domain.Attachment{
			MessageID:   msg.ID,
			Filename:    filename,
			StoragePath: path,
			SizeBytes:   int64(len(content)),
			MimeType:    mimeType,
		}
		if err := s.attachments.Create(ctx, att); err != nil {
			s.logger.Error("store attachment record",
				zap.String("filename", filename), zap.Error(err))
			continue
		}
		msg.Attachments = append(msg.Attachments, *att)
	}
}

func (s *IntakeService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func ptr[T any](v T) *T {
	return &v
}
