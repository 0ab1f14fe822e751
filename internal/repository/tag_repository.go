package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadwell/conversation-service/internal/domain"
)

// TagRepository manages tags and their ticket associations.
type TagRepository interface {
	GetOrCreate(ctx context.Context, name string) (*domain.Tag, error)
	GetByID(ctx context.Context, id int64) (*domain.Tag, error)
	// Attach associates a tag with a ticket; attaching twice is a no-op.
	Attach(ctx context.Context, ticketID, tagID int64) error
	Detach(ctx context.Context, ticketID, tagID int64) (bool, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Tag, error)
	ListByTicketIDs(ctx context.Context, ticketIDs []int64) (map[int64][]domain.Tag, error)
}

type tagRepository struct {
	pool *pgxpool.Pool
}

// NewTagRepository builds repository.
func NewTagRepository(pool *pgxpool.Pool) TagRepository {
	return &tagRepository{pool: pool}
}

// GetOrCreate upserts a tag by its case-sensitive unique name.
func (r *tagRepository) GetOrCreate(ctx context.Context, name string) (*domain.Tag, error) {
	var tag domain.Tag
	err := r.pool.QueryRow(ctx, `
        INSERT INTO tags (name) VALUES ($1)
        ON CONFLICT (name) DO UPDATE SET name=EXCLUDED.name
        RETURNING id, name`, name).Scan(&tag.ID, &tag.Name)
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) GetByID(ctx context.Context, id int64) (*domain.Tag, error) {
	var tag domain.Tag
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM tags WHERE id=$1`, id).Scan(&tag.ID, &tag.Name)
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) Attach(ctx context.Context, ticketID, tagID int64) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO ticket_tags (ticket_id, tag_id) VALUES ($1,$2)
        ON CONFLICT DO NOTHING`, ticketID, tagID)
	return err
}

func (r *tagRepository) Detach(ctx context.Context, ticketID, tagID int64) (bool, error) {
	cmd, err := r.pool.Exec(ctx,
		`DELETE FROM ticket_tags WHERE ticket_id=$1 AND tag_id=$2`, ticketID, tagID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *tagRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Tag, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT g.id, g.name FROM tags g
        JOIN ticket_tags tt ON tt.tag_id = g.id
        WHERE tt.ticket_id=$1 ORDER BY g.name`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		result = append(result, tag)
	}
	return result, rows.Err()
}

func (r *tagRepository) ListByTicketIDs(ctx context.Context, ticketIDs []int64) (map[int64][]domain.Tag, error) {
	result := make(map[int64][]domain.Tag, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return result, nil
	}
	rows, err := r.pool.Query(ctx, `
        SELECT tt.ticket_id, g.id, g.name FROM tags g
        JOIN ticket_tags tt ON tt.tag_id = g.id
        WHERE tt.ticket_id = ANY($1) ORDER BY g.name`, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ticketID int64
		var tag domain.Tag
		if err := rows.Scan(&ticketID, &tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		result[ticketID] = append(result[ticketID], tag)
	}
	return result, rows.Err()
}
