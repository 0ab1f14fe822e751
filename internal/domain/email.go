package domain

// InboundEmail is the parsed-email shape handed over by the mail-polling
// collaborator. Parsing and IMAP mechanics live upstream; this service only
// consumes the result.
type InboundEmail struct {
	From        string
	FromName    string
	ReplyTo     string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	BodyHTML    string
	MessageID   string
	InReplyTo   string
	References  []string
	Attachments []InboundAttachment
}

// SenderIdentity returns the address new tickets should be keyed to: the
// Reply-To header when present, so automated senders can redirect replies,
// else the From address.
func (e *InboundEmail) SenderIdentity() string {
	if e.ReplyTo != "" {
		return e.ReplyTo
	}
	return e.From
}

// InboundAttachment carries the raw bytes of one parsed attachment.
type InboundAttachment struct {
	Filename string
	Content  []byte
	MimeType string
	Size     int64
}
