package mail

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/threadwell/conversation-service/internal/domain"
)

// BuildReplyHeaders reconstructs In-Reply-To and References for an outgoing
// reply from the ticket's prior messages (chronological order).
//
// The References chain is taken from the most recent customer-originated
// prior message when one exists, since that chain reflects what the
// customer's client actually saw. Otherwise it falls back to every known
// prior message-id in order. The most recent message-id is appended and the
// result deduplicated preserving order.
func BuildReplyHeaders(prior []domain.Message) (inReplyTo string, references []string) {
	for i := len(prior) - 1; i >= 0; i-- {
		if prior[i].MessageID != nil {
			inReplyTo = *prior[i].MessageID
			break
		}
	}

	var chain []string
	for i := len(prior) - 1; i >= 0; i-- {
		m := prior[i]
		if !m.CustomerOriginated() {
			continue
		}
		if len(m.RefIDs) == 0 && m.MessageID == nil {
			continue
		}
		chain = append(chain, m.RefIDs...)
		if m.MessageID != nil {
			chain = append(chain, *m.MessageID)
		}
		break
	}
	if chain == nil {
		for _, m := range prior {
			if m.MessageID != nil {
				chain = append(chain, *m.MessageID)
			}
		}
	}
	if inReplyTo != "" {
		chain = append(chain, inReplyTo)
	}
	return inReplyTo, dedupePreserveOrder(chain)
}

func dedupePreserveOrder(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func generateMessageID(host string) string {
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), host)
}
