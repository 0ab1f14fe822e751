package repository

import (
	"strings"
	"testing"

	"github.com/threadwell/conversation-service/internal/domain"
)

func TestBuildSearchQueryNumericTerm(t *testing.T) {
	query, args := buildSearchQuery("42", TicketFilter{})

	if !strings.Contains(query, "100::float8 AS score FROM tickets t WHERE t.id=$1") {
		t.Error("numeric term missing the exact-id candidate strategy")
	}
	if len(args) < 3 {
		t.Fatalf("args = %d, want at least 3 (id, query, pattern)", len(args))
	}
	if id, ok := args[0].(int64); !ok || id != 42 {
		t.Errorf("args[0] = %v, want int64 42", args[0])
	}
	if args[1] != "42" {
		t.Errorf("args[1] = %v, want the raw term", args[1])
	}
	if args[2] != "%42%" {
		t.Errorf("args[2] = %v, want the wildcard pattern", args[2])
	}
}

func TestBuildSearchQueryTextTerm(t *testing.T) {
	query, args := buildSearchQuery("login failure", TicketFilter{})

	if strings.Contains(query, "100::float8") {
		t.Error("text term must not produce the exact-id strategy")
	}
	// Each strategy band appears with its fixed score; their relative
	// order decides which matches win the page.
	for _, band := range []string{
		"90 * ts_rank",
		"70::float8 FROM tickets t WHERE t.customer_email ILIKE",
		"65::float8 FROM tickets t WHERE t.subject ILIKE",
		"60::float8 FROM ticket_messages m WHERE m.message_id ILIKE",
		"50::float8 FROM ticket_messages m",
		"50::float8 FROM ticket_tags tt",
	} {
		if !strings.Contains(query, band) {
			t.Errorf("query missing strategy %q", band)
		}
	}
	if !strings.Contains(query, "SELECT id, MAX(score) AS score FROM candidates GROUP BY id") {
		t.Error("query does not deduplicate candidates by max score")
	}
	if !strings.Contains(query, "ORDER BY ranked.score DESC, last_activity DESC") {
		t.Error("query does not order by rank before activity")
	}
	if args[0] != "login failure" || args[1] != "%login failure%" {
		t.Errorf("args = %v, want term then pattern", args)
	}
}

func TestBuildSearchQueryEscapesPattern(t *testing.T) {
	_, args := buildSearchQuery("50%_off", TicketFilter{})
	if args[1] != `%50\%\_off%` {
		t.Errorf("pattern arg = %v, want escaped wildcards", args[1])
	}
}

func TestBuildSearchQueryAppliesFilters(t *testing.T) {
	query, args := buildSearchQuery("refund", TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusOpen},
		Limit:    10,
		Offset:   20,
	})
	if !strings.Contains(query, "LIMIT 10 OFFSET 20") {
		t.Error("query does not carry the requested page window")
	}
	if len(args) != 3 {
		t.Errorf("args = %d, want 3 (term, pattern, statuses)", len(args))
	}
}
