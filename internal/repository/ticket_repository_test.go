package repository

import (
	"strings"
	"testing"

	"github.com/threadwell/conversation-service/internal/domain"
)

func TestBuildFilterClauses(t *testing.T) {
	assignee := int64(4)
	email := "c@example.com"
	tagID := int64(9)

	tests := []struct {
		name     string
		filter   TicketFilter
		wantArgs int
		contains []string
	}{
		{
			name:     "empty filter",
			filter:   TicketFilter{},
			wantArgs: 0,
			contains: []string{"1=1"},
		},
		{
			name: "statuses expand to placeholders",
			filter: TicketFilter{
				Statuses: []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusNew},
			},
			wantArgs: 2,
			contains: []string{"t.status IN ($1,$2)"},
		},
		{
			name:     "assignee id",
			filter:   TicketFilter{AssigneeID: &assignee},
			wantArgs: 1,
			contains: []string{"t.assignee_id=$1"},
		},
		{
			name:     "unassigned wins over assignee id",
			filter:   TicketFilter{Unassigned: true, AssigneeID: &assignee},
			wantArgs: 0,
			contains: []string{"t.assignee_id IS NULL"},
		},
		{
			name:     "customer email and tag",
			filter:   TicketFilter{CustomerEmail: &email, TagID: &tagID},
			wantArgs: 2,
			contains: []string{"t.customer_email=$1", "tt.tag_id=$2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []any{}
			clauses := buildFilterClauses(tt.filter, &args)
			if len(args) != tt.wantArgs {
				t.Errorf("args = %d, want %d", len(args), tt.wantArgs)
			}
			joined := strings.Join(clauses, " AND ")
			for _, want := range tt.contains {
				if !strings.Contains(joined, want) {
					t.Errorf("clauses %q missing %q", joined, want)
				}
			}
		})
	}
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{"defaults", 0, 0, 50, 0},
		{"negative values", -5, -1, 50, 0},
		{"cap at 100", 500, 10, 100, 10},
		{"in range untouched", 25, 75, 25, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := TicketFilter{Limit: tt.limit, Offset: tt.offset}
			normalizePage(&f)
			if f.Limit != tt.wantLimit || f.Offset != tt.wantOffset {
				t.Errorf("normalized to limit=%d offset=%d, want limit=%d offset=%d",
					f.Limit, f.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"50%", `50\%`},
		{"under_score", `under\_score`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSortDirection(t *testing.T) {
	if sortDirection(true) != "ASC" || sortDirection(false) != "DESC" {
		t.Error("sortDirection mapping wrong")
	}
}
