package mail

import (
	"fmt"
	"html"
	"strings"

	"github.com/threadwell/conversation-service/internal/domain"
)

// MaxQuotedMessages caps how many prior messages a reply quotes.
const MaxQuotedMessages = 5

// RenderQuotedThread appends an "On <date>, <sender> wrote:" block for each
// quoted message below the reply body. Quoted messages arrive most recent
// first and are rendered in that order, mirroring conventional mail clients.
func RenderQuotedThread(body string, quoted []domain.Message) string {
	if len(quoted) == 0 {
		return body
	}
	if len(quoted) > MaxQuotedMessages {
		quoted = quoted[:MaxQuotedMessages]
	}

	var b strings.Builder
	b.WriteString(body)
	for _, m := range quoted {
		b.WriteString("\n<br><br>")
		b.WriteString(fmt.Sprintf(`<div class="quote-header">On %s, %s wrote:</div>`,
			m.CreatedAt.Format("Jan 2, 2006 at 3:04 PM"), html.EscapeString(quoteSender(&m))))
		b.WriteString("<blockquote>")
		b.WriteString(quoteBody(&m))
		b.WriteString("</blockquote>")
	}
	return b.String()
}

func quoteSender(m *domain.Message) string {
	if m.FromName != nil && *m.FromName != "" {
		return fmt.Sprintf("%s <%s>", *m.FromName, m.FromEmail)
	}
	return m.FromEmail
}

func quoteBody(m *domain.Message) string {
	if m.BodyHTML != nil && *m.BodyHTML != "" {
		return *m.BodyHTML
	}
	return TextToHTML(m.Body)
}

// TextToHTML converts a plain-text body into minimal HTML.
func TextToHTML(s string) string {
	escaped := html.EscapeString(s)
	return strings.ReplaceAll(escaped, "\n", "<br>")
}
