package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message is one direct chat message between two peers. Either Content or
// Attachment must be non-empty; Attachment carries an image as a data URL.
type Message struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Content    string `json:"content,omitempty"`
	Attachment string `json:"attachment,omitempty"`
	Timestamp  int64  `json:"timestamp"` // unix millis
}

func NewMessage(from, to, content, attachment string) *Message {
	return &Message{
		ID:         uuid.NewString(),
		From:       from,
		To:         to,
		Content:    content,
		Attachment: attachment,
		Timestamp:  time.Now().UnixMilli(),
	}
}
