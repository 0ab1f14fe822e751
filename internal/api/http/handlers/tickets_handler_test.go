package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/threadwell/conversation-service/internal/domain"
	"github.com/threadwell/conversation-service/internal/repository"
)

func TestBuildUpdateInput(t *testing.T) {
	parse := func(t *testing.T, body string) map[string]json.RawMessage {
		t.Helper()
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(body), &fields); err != nil {
			t.Fatalf("bad test body: %v", err)
		}
		return fields
	}

	t.Run("explicit null clears nullable fields", func(t *testing.T) {
		input, err := buildUpdateInput(parse(t, `{"assignee_id":null,"customer_name":null,"follow_up_at":null}`))
		if err != nil {
			t.Fatalf("buildUpdateInput() error = %v", err)
		}
		if !input.AssigneeID.Set || input.AssigneeID.Value != nil {
			t.Errorf("assignee = %+v, want set-to-null", input.AssigneeID)
		}
		if !input.CustomerName.Set || input.CustomerName.Value != nil {
			t.Errorf("customer_name = %+v, want set-to-null", input.CustomerName)
		}
		if !input.FollowUpAt.Set || input.FollowUpAt.Value != nil {
			t.Errorf("follow_up_at = %+v, want set-to-null", input.FollowUpAt)
		}
	})

	t.Run("absent fields stay unset", func(t *testing.T) {
		input, err := buildUpdateInput(parse(t, `{"status":"open"}`))
		if err != nil {
			t.Fatalf("buildUpdateInput() error = %v", err)
		}
		if input.AssigneeID.Set || input.CustomerName.Set || input.FollowUpAt.Set {
			t.Error("absent nullable fields were marked set")
		}
		if input.Status == nil || *input.Status != domain.TicketStatusOpen {
			t.Errorf("status = %v, want open", input.Status)
		}
	})

	t.Run("values decode", func(t *testing.T) {
		input, err := buildUpdateInput(parse(t,
			`{"priority":"urgent","assignee_id":4,"customer_email":"x@y.z","follow_up_at":"2026-03-01T09:00:00Z"}`))
		if err != nil {
			t.Fatalf("buildUpdateInput() error = %v", err)
		}
		if input.Priority == nil || *input.Priority != domain.TicketPriorityUrgent {
			t.Errorf("priority = %v", input.Priority)
		}
		if input.AssigneeID.Value == nil || *input.AssigneeID.Value != 4 {
			t.Errorf("assignee = %+v", input.AssigneeID)
		}
		if input.CustomerEmail == nil || *input.CustomerEmail != "x@y.z" {
			t.Errorf("customer_email = %v", input.CustomerEmail)
		}
		if input.FollowUpAt.Value == nil {
			t.Error("follow_up_at not decoded")
		}
	})

	t.Run("null status rejected", func(t *testing.T) {
		if _, err := buildUpdateInput(parse(t, `{"status":null}`)); err == nil {
			t.Error("null status accepted")
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		if _, err := buildUpdateInput(parse(t, `{"subject":"nope"}`)); err == nil {
			t.Error("unknown field accepted")
		}
	})
}

func TestParseTicketFilter(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    func(t *testing.T, f repository.TicketFilter)
		wantErr bool
	}{
		{
			name:  "defaults",
			query: "",
			want: func(t *testing.T, f repository.TicketFilter) {
				if f.Limit != 50 || f.Offset != 0 || f.SortAsc {
					t.Errorf("defaults wrong: %+v", f)
				}
			},
		},
		{
			name:  "status csv",
			query: "status=open,awaiting_customer",
			want: func(t *testing.T, f repository.TicketFilter) {
				if len(f.Statuses) != 2 ||
					f.Statuses[0] != domain.TicketStatusOpen ||
					f.Statuses[1] != domain.TicketStatusAwaitingCustomer {
					t.Errorf("statuses = %v", f.Statuses)
				}
			},
		},
		{
			name:    "invalid status",
			query:   "status=closed",
			wantErr: true,
		},
		{
			name:  "assignee id",
			query: "assignee_id=12",
			want: func(t *testing.T, f repository.TicketFilter) {
				if f.AssigneeID == nil || *f.AssigneeID != 12 || f.Unassigned {
					t.Errorf("assignee = %+v", f)
				}
			},
		},
		{
			name:  "assignee null literal",
			query: "assignee_id=null",
			want: func(t *testing.T, f repository.TicketFilter) {
				if !f.Unassigned || f.AssigneeID != nil {
					t.Errorf("unassigned filter not set: %+v", f)
				}
			},
		},
		{
			name:  "assignee unassigned literal",
			query: "assignee_id=unassigned",
			want: func(t *testing.T, f repository.TicketFilter) {
				if !f.Unassigned {
					t.Error("unassigned filter not set")
				}
			},
		},
		{
			name:    "assignee garbage",
			query:   "assignee_id=abc",
			wantErr: true,
		},
		{
			name:  "paging and sort",
			query: "limit=10&offset=20&sort_order=asc&tag_id=3&customer_email=a%40b.c",
			want: func(t *testing.T, f repository.TicketFilter) {
				if f.Limit != 10 || f.Offset != 20 || !f.SortAsc {
					t.Errorf("paging wrong: %+v", f)
				}
				if f.TagID == nil || *f.TagID != 3 {
					t.Errorf("tag_id = %v", f.TagID)
				}
				if f.CustomerEmail == nil || *f.CustomerEmail != "a@b.c" {
					t.Errorf("customer_email = %v", f.CustomerEmail)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			var got repository.TicketFilter
			var gotErr error
			app.Get("/probe", func(c *fiber.Ctx) error {
				got, gotErr = parseTicketFilter(c)
				return nil
			})

			req := httptest.NewRequest("GET", "/probe?"+tt.query, nil)
			if _, err := app.Test(req); err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}

			if tt.wantErr {
				if gotErr == nil {
					t.Fatalf("parseTicketFilter(%q) accepted bad input", tt.query)
				}
				return
			}
			if gotErr != nil {
				t.Fatalf("parseTicketFilter(%q) error = %v", tt.query, gotErr)
			}
			tt.want(t, got)
		})
	}
}
