package dto

import (
	"encoding/json"
	"testing"

	"github.com/threadwell/conversation-service/internal/domain"
)

func TestTicketListResponseShape(t *testing.T) {
	resp := TicketListResponse{
		Tickets: []TicketSummary{
			{ID: 7, Subject: "Cannot log in", Status: domain.TicketStatusOpen},
		},
		Pagination: PaginationResponse{HasMore: true, NextOffset: 50, Total: 120},
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["tickets"]; !ok {
		t.Error("response missing tickets key")
	}
	pagRaw, ok := decoded["pagination"]
	if !ok {
		t.Fatal("response missing pagination block")
	}
	var pag map[string]json.RawMessage
	if err := json.Unmarshal(pagRaw, &pag); err != nil {
		t.Fatalf("unmarshal pagination: %v", err)
	}
	for _, key := range []string{"hasMore", "nextOffset", "total"} {
		if _, ok := pag[key]; !ok {
			t.Errorf("pagination missing %q", key)
		}
	}
	for _, key := range []string{"hasMore", "nextOffset", "total"} {
		if _, ok := decoded[key]; ok {
			t.Errorf("paging field %q leaked to the top level", key)
		}
	}
}
