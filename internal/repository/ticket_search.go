package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/threadwell/conversation-service/internal/domain"
)

// Search runs the ranked multi-strategy search. Candidate sets are scored
// independently, unioned, and deduplicated per ticket keeping the maximum
// score. The bands are fixed and their relative order is load-bearing: an
// exact numeric id match (100) outranks full-text relevance (90 scaled by
// ts_rank), which outranks the pattern strategies (70 customer email, 65
// subject, 60 message-id, 50 message sender/body/tag). Rank decides which
// rows make the page; the caller reorders the page by activity for display.
func (r *ticketRepository) Search(ctx context.Context, term string, filter TicketFilter) (*TicketPage, error) {
	query, args := buildSearchQuery(term, filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &TicketPage{}
	for rows.Next() {
		var t struct {
			ticket domain.Ticket
			total  int
			score  float64
		}
		if err := rows.Scan(
			&t.ticket.ID,
			&t.ticket.Subject,
			&t.ticket.CustomerEmail,
			&t.ticket.CustomerName,
			&t.ticket.ReplyTo,
			&t.ticket.Status,
			&t.ticket.Priority,
			&t.ticket.AssigneeID,
			&t.ticket.FollowUpAt,
			&t.ticket.MessageID,
			&t.ticket.CreatedAt,
			&t.ticket.UpdatedAt,
			&t.ticket.LastActivityAt,
			&t.ticket.MessageCount,
			&t.ticket.AttachmentCount,
			&t.total,
			&t.score,
		); err != nil {
			return nil, err
		}
		page.Total = t.total
		page.Tickets = append(page.Tickets, t.ticket)
	}
	return page, rows.Err()
}

// buildSearchQuery assembles the ranked candidates CTE plus the paged outer
// select, and returns the query with its positional arguments.
func buildSearchQuery(term string, filter TicketFilter) (string, []any) {
	normalizePage(&filter)
	term = strings.TrimSpace(term)

	args := []any{}

	var idClause string
	// A numeric string is also a candidate ticket id, while still being
	// evaluated as a text query.
	if id, err := strconv.ParseInt(term, 10, 64); err == nil {
		args = append(args, id)
		idClause = fmt.Sprintf(`
            SELECT t.id, 100::float8 AS score FROM tickets t WHERE t.id=$%d
            UNION ALL`, len(args))
	}

	args = append(args, term)
	queryArg := len(args)
	args = append(args, "%"+escapeLike(term)+"%")
	patternArg := len(args)

	candidates := fmt.Sprintf(`%s
            SELECT t.id, 90 * ts_rank(to_tsvector('english', t.subject), plainto_tsquery('english', $%[2]d)) AS score
            FROM tickets t
            WHERE to_tsvector('english', t.subject) @@ plainto_tsquery('english', $%[2]d)
            UNION ALL
            SELECT m.ticket_id, 90 * ts_rank(to_tsvector('english', m.body), plainto_tsquery('english', $%[2]d)) AS score
            FROM ticket_messages m
            WHERE to_tsvector('english', m.body) @@ plainto_tsquery('english', $%[2]d)
            UNION ALL
            SELECT t.id, 70::float8 FROM tickets t WHERE t.customer_email ILIKE $%[3]d
            UNION ALL
            SELECT t.id, 65::float8 FROM tickets t WHERE t.subject ILIKE $%[3]d
            UNION ALL
            SELECT m.ticket_id, 60::float8 FROM ticket_messages m WHERE m.message_id ILIKE $%[3]d
            UNION ALL
            SELECT m.ticket_id, 50::float8 FROM ticket_messages m
            WHERE m.from_email ILIKE $%[3]d OR m.body ILIKE $%[3]d
            UNION ALL
            SELECT tt.ticket_id, 50::float8 FROM ticket_tags tt
            JOIN tags g ON g.id = tt.tag_id
            WHERE g.name ILIKE $%[3]d`,
		idClause, queryArg, patternArg)

	clauses := buildFilterClauses(filter, &args)

	query := fmt.Sprintf(`
        WITH candidates AS (%s),
        ranked AS (
            SELECT id, MAX(score) AS score FROM candidates GROUP BY id
        )
        SELECT %s, ranked.score
        FROM ranked
        JOIN tickets t ON t.id = ranked.id
        %s
        WHERE %s
        ORDER BY ranked.score DESC, last_activity DESC
        LIMIT %d OFFSET %d`,
		candidates, pageColumns, pageJoins, strings.Join(clauses, " AND "),
		filter.Limit, filter.Offset)

	return query, args
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
