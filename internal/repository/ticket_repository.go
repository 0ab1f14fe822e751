package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadwell/conversation-service/internal/domain"
)

// TicketFilter captures listing filters. All dimensions are optional and
// compose with AND semantics.
type TicketFilter struct {
	Statuses      []domain.TicketStatus
	AssigneeID    *int64
	Unassigned    bool
	CustomerEmail *string
	TagID         *int64
	Limit         int
	Offset        int
	SortAsc       bool
}

// TicketPage is one page of tickets plus the total row count computed in the
// same query as the page.
type TicketPage struct {
	Tickets []domain.Ticket
	Total   int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	FindByRootMessageID(ctx context.Context, messageID string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) (*TicketPage, error)
	Search(ctx context.Context, term string, filter TicketFilter) (*TicketPage, error)
	BulkDelete(ctx context.Context, ids []int64) (int64, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (subject, customer_email, customer_name, reply_to, status, priority, assignee_id, follow_up_at, message_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.CustomerEmail,
		ticket.CustomerName,
		ticket.ReplyTo,
		ticket.Status,
		ticket.Priority,
		ticket.AssigneeID,
		ticket.FollowUpAt,
		ticket.MessageID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET subject=$1, customer_email=$2, customer_name=$3, reply_to=$4,
            status=$5, priority=$6, assignee_id=$7, follow_up_at=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.CustomerEmail,
		ticket.CustomerName,
		ticket.ReplyTo,
		ticket.Status,
		ticket.Priority,
		ticket.AssigneeID,
		ticket.FollowUpAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

const ticketColumns = `id, subject, customer_email, customer_name, reply_to, status, priority,
               assignee_id, follow_up_at, message_id, created_at, updated_at`

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

// FindByRootMessageID matches a ticket whose originating email carried the
// given message-id.
func (r *ticketRepository) FindByRootMessageID(ctx context.Context, messageID string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE message_id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, messageID)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.CustomerEmail,
		&ticket.CustomerName,
		&ticket.ReplyTo,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AssigneeID,
		&ticket.FollowUpAt,
		&ticket.MessageID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// pageColumns adds activity and rollup columns plus the single-query total.
const pageColumns = `t.id, t.subject, t.customer_email, t.customer_name, t.reply_to, t.status, t.priority,
               t.assignee_id, t.follow_up_at, t.message_id, t.created_at, t.updated_at,
               COALESCE(act.last_activity, t.updated_at) AS last_activity,
               COALESCE(mc.message_count, 0) AS message_count,
               COALESCE(ac.attachment_count, 0) AS attachment_count,
               COUNT(*) OVER() AS total`

const pageJoins = `
        LEFT JOIN LATERAL (
            SELECT MAX(m.created_at) AS last_activity FROM ticket_messages m WHERE m.ticket_id = t.id
        ) act ON TRUE
        LEFT JOIN LATERAL (
            SELECT COUNT(*) AS message_count FROM ticket_messages m WHERE m.ticket_id = t.id
        ) mc ON TRUE
        LEFT JOIN LATERAL (
            SELECT COUNT(*) AS attachment_count
            FROM attachments a JOIN ticket_messages m ON a.message_id = m.id
            WHERE m.ticket_id = t.id
        ) ac ON TRUE`

func buildFilterClauses(filter TicketFilter, args *[]any) []string {
	clauses := []string{"1=1"}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			*args = append(*args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(*args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Unassigned {
		clauses = append(clauses, "t.assignee_id IS NULL")
	} else if filter.AssigneeID != nil {
		*args = append(*args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("t.assignee_id=$%d", len(*args)))
	}
	if filter.CustomerEmail != nil {
		*args = append(*args, *filter.CustomerEmail)
		clauses = append(clauses, fmt.Sprintf("t.customer_email=$%d", len(*args)))
	}
	if filter.TagID != nil {
		*args = append(*args, *filter.TagID)
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM ticket_tags tt WHERE tt.ticket_id=t.id AND tt.tag_id=$%d)", len(*args)))
	}
	return clauses
}

func sortDirection(asc bool) string {
	if asc {
		return "ASC"
	}
	return "DESC"
}

func normalizePage(filter *TicketFilter) {
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

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) (*TicketPage, error) {
	normalizePage(&filter)

	args := []any{}
	clauses := buildFilterClauses(filter, &args)

	query := fmt.Sprintf(`SELECT %s FROM tickets t %s WHERE %s
        ORDER BY last_activity %s LIMIT %d OFFSET %d`,
		pageColumns, pageJoins, strings.Join(clauses, " AND "),
		sortDirection(filter.SortAsc), filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTicketPage(rows)
}

func scanTicketPage(rows pgx.Rows) (*TicketPage, error) {
	page := &TicketPage{}
	for rows.Next() {
		var ticket domain.Ticket
		var total int
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Subject,
			&ticket.CustomerEmail,
			&ticket.CustomerName,
			&ticket.ReplyTo,
			&ticket.Status,
			&ticket.Priority,
			&ticket.AssigneeID,
			&ticket.FollowUpAt,
			&ticket.MessageID,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.LastActivityAt,
			&ticket.MessageCount,
			&ticket.AttachmentCount,
			&total,
		); err != nil {
			return nil, err
		}
		page.Total = total
		page.Tickets = append(page.Tickets, ticket)
	}
	return page, rows.Err()
}

// BulkDelete removes tickets and, via the schema's cascades, all owned
// messages, attachments, history entries and tag associations.
func (r *ticketRepository) BulkDelete(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
