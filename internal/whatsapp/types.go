package whatsapp

// Webhook payload shapes for the WhatsApp Cloud API. Only the fields the
// bridge reads are declared; everything else in Meta's envelope is ignored.

// WebhookPayload is the top-level envelope Meta posts to the webhook.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries the actual notification. Messages is set for inbound user
// messages; status updates and other notifications leave it empty.
type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Messages         []Message `json:"messages"`
}

// Message is a single inbound message from a user.
type Message struct {
	ID   string `json:"id"`
	From string `json:"from"` // sender's phone number
	Type string `json:"type"` // "audio", "text", "image", ...

	Text  *TextBody  `json:"text,omitempty"`
	Audio *AudioBody `json:"audio,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

type AudioBody struct {
	ID       string `json:"id"` // media ID, resolved to a URL via the Graph API
	MimeType string `json:"mime_type"`
	Voice    bool   `json:"voice"`
}

// FirstChangeValue returns the change value from the first entry, or nil
// if the payload has no entries or changes at all. A non-nil value with an
// empty Messages slice is a status update (delivery/read receipts), which
// is a well-formed notification the webhook must still acknowledge.
func (p *WebhookPayload) FirstChangeValue() *Value {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return nil
	}
	return &p.Entry[0].Changes[0].Value
}

// FirstMessage returns the first inbound message in the payload, or nil if
// it carries none.
func (p *WebhookPayload) FirstMessage() *Message {
	v := p.FirstChangeValue()
	if v == nil || len(v.Messages) == 0 {
		return nil
	}
	return &v.Messages[0]
}
