package chat

import (
	"io"
	"time"

	"github.com/aquilax/truncate"
)

// MessageType tags which payload variant a Message carries.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// Image is a content-addressed reference to an uploaded attachment.
type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// Message is a single chat message. Immutable once created; only the
// seen transition mutates it.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	Sender         string      `json:"sender"`
	Text           string      `json:"text,omitempty"`
	Image          *Image      `json:"image,omitempty"`
	Type           MessageType `json:"messageType"`
	Seen           bool        `json:"seen"`
	SeenAt         *time.Time  `json:"seenAt,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

const previewLimit = 48

// PreviewText returns the short text shown for this message in the
// conversation roster.
func (m Message) PreviewText() string {
	if m.Type == MessageImage {
		return "📷 image"
	}
	return truncate.Truncate(m.Text, previewLimit, "…", truncate.PositionEnd)
}

// ImageUpload is an attachment read from Reader and sent alongside (or
// instead of) message text.
type ImageUpload struct {
	Filename string
	Reader   io.Reader
}
