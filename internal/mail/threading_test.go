package mail

import (
	"reflect"
	"testing"

	"github.com/threadwell/conversation-service/internal/domain"
)

func strp(s string) *string { return &s }

func intp(v int64) *int64 { return &v }

func TestBuildReplyHeaders(t *testing.T) {
	tests := []struct {
		name           string
		prior          []domain.Message
		wantInReplyTo  string
		wantReferences []string
	}{
		{
			name:           "no prior messages",
			prior:          nil,
			wantInReplyTo:  "",
			wantReferences: nil,
		},
		{
			name: "single customer message",
			prior: []domain.Message{
				{Type: domain.MessageTypeEmail, MessageID: strp("<root@x>")},
			},
			wantInReplyTo:  "<root@x>",
			wantReferences: []string{"<root@x>"},
		},
		{
			name: "chain from most recent customer message",
			prior: []domain.Message{
				{Type: domain.MessageTypeEmail, MessageID: strp("<root@x>")},
				{Type: domain.MessageTypeEmail, AuthorID: intp(1), MessageID: strp("<agent1@x>")},
				{
					Type:      domain.MessageTypeEmail,
					MessageID: strp("<cust2@x>"),
					RefIDs:    []string{"<root@x>", "<agent1@x>"},
				},
			},
			wantInReplyTo:  "<cust2@x>",
			wantReferences: []string{"<root@x>", "<agent1@x>", "<cust2@x>"},
		},
		{
			name: "in-reply-to is latest message even when agent sent it",
			prior: []domain.Message{
				{Type: domain.MessageTypeEmail, MessageID: strp("<root@x>")},
				{Type: domain.MessageTypeEmail, AuthorID: intp(1), MessageID: strp("<agent1@x>")},
			},
			wantInReplyTo:  "<agent1@x>",
			wantReferences: []string{"<root@x>", "<agent1@x>"},
		},
		{
			name: "fallback chain when no customer message carries ids",
			prior: []domain.Message{
				{Type: domain.MessageTypeEmail, AuthorID: intp(1), MessageID: strp("<a@x>")},
				{Type: domain.MessageTypeEmail, AuthorID: intp(1), MessageID: strp("<b@x>")},
			},
			wantInReplyTo:  "<b@x>",
			wantReferences: []string{"<a@x>", "<b@x>"},
		},
		{
			name: "messages without ids are skipped",
			prior: []domain.Message{
				{Type: domain.MessageTypeNote},
				{Type: domain.MessageTypeEmail, MessageID: strp("<root@x>")},
				{Type: domain.MessageTypeNote},
			},
			wantInReplyTo:  "<root@x>",
			wantReferences: []string{"<root@x>"},
		},
		{
			name: "duplicates removed preserving order",
			prior: []domain.Message{
				{
					Type:      domain.MessageTypeEmail,
					MessageID: strp("<cust@x>"),
					RefIDs:    []string{"<root@x>", "<cust@x>", "<root@x>"},
				},
			},
			wantInReplyTo:  "<cust@x>",
			wantReferences: []string{"<root@x>", "<cust@x>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inReplyTo, references := BuildReplyHeaders(tt.prior)
			if inReplyTo != tt.wantInReplyTo {
				t.Errorf("inReplyTo = %q, want %q", inReplyTo, tt.wantInReplyTo)
			}
			if !reflect.DeepEqual(references, tt.wantReferences) {
				t.Errorf("references = %v, want %v", references, tt.wantReferences)
			}
		})
	}
}

func TestGenerateMessageID(t *testing.T) {
	a := generateMessageID("example.com")
	b := generateMessageID("example.com")
	if a == b {
		t.Error("generated message-ids are not unique")
	}
	if a[0] != '<' || a[len(a)-1] != '>' {
		t.Errorf("message-id %q not angle-bracketed", a)
	}
}
