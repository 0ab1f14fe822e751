package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadwell/conversation-service/internal/domain"
)

// EmailOpenRepository records read receipts. Opens are append-only; a message
// opened several times yields several rows.
type EmailOpenRepository interface {
	Create(ctx context.Context, open *domain.EmailOpen) error
	ListByToken(ctx context.Context, token string) ([]domain.EmailOpen, error)
	// FirstOpen returns the earliest open for the token, or pgx.ErrNoRows.
	FirstOpen(ctx context.Context, token string) (time.Time, error)
}

type emailOpenRepository struct {
	pool *pgxpool.Pool
}

// NewEmailOpenRepository builds repository.
func NewEmailOpenRepository(pool *pgxpool.Pool) EmailOpenRepository {
	return &emailOpenRepository{pool: pool}
}

func (r *emailOpenRepository) Create(ctx context.Context, open *domain.EmailOpen) error {
	return r.pool.QueryRow(ctx, `
        INSERT INTO email_opens (tracking_token) VALUES ($1)
        RETURNING id, opened_at`, open.TrackingToken).Scan(&open.ID, &open.OpenedAt)
}

func (r *emailOpenRepository) ListByToken(ctx context.Context, token string) ([]domain.EmailOpen, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, tracking_token, opened_at FROM email_opens
        WHERE tracking_token=$1 ORDER BY opened_at ASC`, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EmailOpen
	for rows.Next() {
		var open domain.EmailOpen
		if err := rows.Scan(&open.ID, &open.TrackingToken, &open.OpenedAt); err != nil {
			return nil, err
		}
		result = append(result, open)
	}
	return result, rows.Err()
}

func (r *emailOpenRepository) FirstOpen(ctx context.Context, token string) (time.Time, error) {
	var first *time.Time
	err := r.pool.QueryRow(ctx, `
        SELECT MIN(opened_at) FROM email_opens WHERE tracking_token=$1`, token).Scan(&first)
	if err != nil {
		return time.Time{}, err
	}
	if first == nil {
		return time.Time{}, pgx.ErrNoRows
	}
	return *first, nil
}
