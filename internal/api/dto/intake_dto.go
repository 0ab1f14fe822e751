package dto

import "github.com/threadwell/conversation-service/internal/domain"

// InboundEmailRequest is the payload posted by the mail-polling collaborator.
// Attachment content arrives base64-encoded per standard JSON byte handling.
type InboundEmailRequest struct {
	From        string                     `json:"from"`
	FromName    string                     `json:"from_name"`
	ReplyTo     string                     `json:"reply_to"`
	To          []string                   `json:"to"`
	Cc          []string                   `json:"cc"`
	Bcc         []string                   `json:"bcc"`
	Subject     string                     `json:"subject"`
	Body        string                     `json:"body"`
	BodyHTML    string                     `json:"body_html"`
	MessageID   string                     `json:"message_id"`
	InReplyTo   string                     `json:"in_reply_to"`
	References  []string                   `json:"references"`
	Attachments []InboundAttachmentPayload `json:"attachments"`
}

// InboundAttachmentPayload is one parsed attachment.
type InboundAttachmentPayload struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
	MimeType string `json:"mime_type"`
}

// ToDomain converts the request into the domain shape.
func (r *InboundEmailRequest) ToDomain() *domain.InboundEmail {
	atts := make([]domain.InboundAttachment, 0, len(r.Attachments))
	for _, a := range r.Attachments {
		atts = append(atts, domain.InboundAttachment{
			Filename: a.Filename,
			Content:  a.Content,
			MimeType: a.MimeType,
			Size:     int64(len(a.Content)),
		})
	}
	return &domain.InboundEmail{
		From:        r.From,
		FromName:    r.FromName,
		ReplyTo:     r.ReplyTo,
		To:          r.To,
		Cc:          r.Cc,
		Bcc:         r.Bcc,
		Subject:     r.Subject,
		Body:        r.Body,
		BodyHTML:    r.BodyHTML,
		MessageID:   r.MessageID,
		InReplyTo:   r.InReplyTo,
		References:  r.References,
		Attachments: atts,
	}
}
