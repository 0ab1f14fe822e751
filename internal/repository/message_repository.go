package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadwell/conversation-service/internal/domain"
)

// MessageRepository manages conversation messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id int64) (*domain.Message, error)
	GetByMessageID(ctx context.Context, messageID string) (*domain.Message, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error)
	// ListRecentEmails returns the most recent non-note messages in reverse
	// chronological order, for reply quoting.
	ListRecentEmails(ctx context.Context, ticketID int64, limit int) ([]domain.Message, error)
	MarkSent(ctx context.Context, id int64, transportMessageID string, sentAt time.Time) error
	// ListDueScheduled returns pending messages whose send time has arrived,
	// in ascending scheduled_at order.
	ListDueScheduled(ctx context.Context, now time.Time) ([]domain.Message, error)
	// CancelScheduled conditionally deletes a still-pending scheduled message.
	// It reports false when no row matched, i.e. the message was already sent
	// or was never scheduled.
	CancelScheduled(ctx context.Context, ticketID, messageID int64) (bool, error)
	// DeleteNote removes an internal note.
	DeleteNote(ctx context.Context, ticketID, messageID int64) (bool, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

const messageColumns = `id, ticket_id, type, author_id, from_email, from_name, to_emails, cc_emails,
               body, body_html, message_id, ref_ids, tracking_token, scheduled_at, sent_at, created_at`

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, type, author_id, from_email, from_name, to_emails, cc_emails,
            body, body_html, message_id, ref_ids, tracking_token, scheduled_at, sent_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.Type,
		msg.AuthorID,
		msg.FromEmail,
		msg.FromName,
		msg.ToEmails,
		msg.CcEmails,
		msg.Body,
		msg.BodyHTML,
		msg.MessageID,
		msg.RefIDs,
		msg.TrackingToken,
		msg.ScheduledAt,
		msg.SentAt,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *messageRepository) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM ticket_messages WHERE id=$1`, messageColumns)
	return r.fetchSingle(ctx, query, id)
}

// GetByMessageID resolves a message by its email message-id, the dedup and
// threading key.
func (r *messageRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM ticket_messages WHERE message_id=$1`, messageColumns)
	return r.fetchSingle(ctx, query, messageID)
}

func (r *messageRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Message, error) {
	var msg domain.Message
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&msg.ID,
		&msg.TicketID,
		&msg.Type,
		&msg.AuthorID,
		&msg.FromEmail,
		&msg.FromName,
		&msg.ToEmails,
		&msg.CcEmails,
		&msg.Body,
		&msg.BodyHTML,
		&msg.MessageID,
		&msg.RefIDs,
		&msg.TrackingToken,
		&msg.ScheduledAt,
		&msg.SentAt,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC`, messageColumns)
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *messageRepository) ListRecentEmails(ctx context.Context, ticketID int64, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 5
	}
	// Pending scheduled messages have not gone out yet and must not be quoted.
	query := fmt.Sprintf(`SELECT %s FROM ticket_messages
        WHERE ticket_id=$1 AND type <> 'note' AND (scheduled_at IS NULL OR sent_at IS NOT NULL)
        ORDER BY created_at DESC LIMIT %d`, messageColumns, limit)
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *messageRepository) MarkSent(ctx context.Context, id int64, transportMessageID string, sentAt time.Time) error {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE ticket_messages SET sent_at=$1, message_id=$2 WHERE id=$3 AND sent_at IS NULL`,
		sentAt, transportMessageID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *messageRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]domain.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM ticket_messages
        WHERE scheduled_at IS NOT NULL AND scheduled_at <= $1 AND sent_at IS NULL
        ORDER BY scheduled_at ASC`, messageColumns)
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *messageRepository) CancelScheduled(ctx context.Context, ticketID, messageID int64) (bool, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
        DELETE FROM ticket_messages
        WHERE id=$1 AND ticket_id=$2 AND scheduled_at IS NOT NULL AND sent_at IS NULL
        RETURNING id`, messageID, ticketID).Scan(&id)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *messageRepository) DeleteNote(ctx context.Context, ticketID, messageID int64) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `
        DELETE FROM ticket_messages WHERE id=$1 AND ticket_id=$2 AND type='note'`,
		messageID, ticketID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.Type,
			&msg.AuthorID,
			&msg.FromEmail,
			&msg.FromName,
			&msg.ToEmails,
			&msg.CcEmails,
			&msg.Body,
			&msg.BodyHTML,
			&msg.MessageID,
			&msg.RefIDs,
			&msg.TrackingToken,
			&msg.ScheduledAt,
			&msg.SentAt,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
