package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadwell/conversation-service/internal/domain"
)

// AttachmentRepository stores attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, att *domain.Attachment) error
	ListByMessage(ctx context.Context, messageID int64) ([]domain.Attachment, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository builds repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) Create(ctx context.Context, att *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (message_id, filename, storage_path, size_bytes, mime_type)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		att.MessageID,
		att.Filename,
		att.StoragePath,
		att.SizeBytes,
		att.MimeType,
	).Scan(&att.ID, &att.CreatedAt)
}

func (r *attachmentRepository) ListByMessage(ctx context.Context, messageID int64) ([]domain.Attachment, error) {
	const query = `
        SELECT id, message_id, filename, storage_path, size_bytes, mime_type, created_at
        FROM attachments WHERE message_id=$1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttachments(rows)
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	const query = `
        SELECT a.id, a.message_id, a.filename, a.storage_path, a.size_bytes, a.mime_type, a.created_at
        FROM attachments a
        JOIN ticket_messages m ON m.id = a.message_id
        WHERE m.ticket_id=$1 ORDER BY a.id`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttachments(rows)
}

func scanAttachments(rows pgx.Rows) ([]domain.Attachment, error) {
	var result []domain.Attachment
	for rows.Next() {
		var att domain.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.MessageID,
			&att.Filename,
			&att.StoragePath,
			&att.SizeBytes,
			&att.MimeType,
			&att.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	return result, rows.Err()
}
