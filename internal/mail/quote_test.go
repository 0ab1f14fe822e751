package mail

import (
	"strings"
	"testing"
	"time"

	"github.com/threadwell/conversation-service/internal/domain"
)

func quotedMessage(from, body string, at time.Time) domain.Message {
	return domain.Message{
		Type:      domain.MessageTypeEmail,
		FromEmail: from,
		Body:      body,
		CreatedAt: at,
	}
}

func TestRenderQuotedThread(t *testing.T) {
	at := time.Date(2026, time.March, 14, 15, 4, 0, 0, time.UTC)

	t.Run("no quotes returns body unchanged", func(t *testing.T) {
		got := RenderQuotedThread("<p>hi</p>", nil)
		if got != "<p>hi</p>" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("renders attribution line", func(t *testing.T) {
		got := RenderQuotedThread("reply", []domain.Message{
			quotedMessage("customer@example.com", "original", at),
		})
		if !strings.Contains(got, "On Mar 14, 2026 at 3:04 PM, customer@example.com wrote:") {
			t.Errorf("missing attribution line in %q", got)
		}
		if !strings.Contains(got, "<blockquote>original</blockquote>") {
			t.Errorf("missing quoted body in %q", got)
		}
	})

	t.Run("uses display name when present", func(t *testing.T) {
		msg := quotedMessage("pat@example.com", "hello", at)
		name := "Pat Customer"
		msg.FromName = &name
		got := RenderQuotedThread("reply", []domain.Message{msg})
		if !strings.Contains(got, "Pat Customer &lt;pat@example.com&gt; wrote:") {
			t.Errorf("missing named attribution in %q", got)
		}
	})

	t.Run("escapes plain text bodies", func(t *testing.T) {
		got := RenderQuotedThread("reply", []domain.Message{
			quotedMessage("c@example.com", "a < b\nsecond line", at),
		})
		if !strings.Contains(got, "a &lt; b<br>second line") {
			t.Errorf("body not escaped in %q", got)
		}
	})

	t.Run("prefers html body verbatim", func(t *testing.T) {
		msg := quotedMessage("c@example.com", "plain", at)
		html := "<b>rich</b>"
		msg.BodyHTML = &html
		got := RenderQuotedThread("reply", []domain.Message{msg})
		if !strings.Contains(got, "<blockquote><b>rich</b></blockquote>") {
			t.Errorf("html body not used in %q", got)
		}
	})

	t.Run("caps quoted messages", func(t *testing.T) {
		var quoted []domain.Message
		for i := 0; i < MaxQuotedMessages+3; i++ {
			quoted = append(quoted, quotedMessage("c@example.com", "msg", at))
		}
		got := RenderQuotedThread("reply", quoted)
		if n := strings.Count(got, "<blockquote>"); n != MaxQuotedMessages {
			t.Errorf("quoted %d messages, want %d", n, MaxQuotedMessages)
		}
	})
}

func TestTextToHTML(t *testing.T) {
	got := TextToHTML("a < b\n& more")
	want := "a &lt; b<br>&amp; more"
	if got != want {
		t.Errorf("TextToHTML() = %q, want %q", got, want)
	}
}
