package types

import (
	"time"
)

// User is the identity attached to a live connection. It is resolved once
// at handshake time and never persisted.
type User struct {
	Id           int    `json:"id"`
	EmailAddress string `json:"email_address,omitempty"`
	IsAdmin      bool   `json:"is_admin"`
}

type Attachment struct {
	Url  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Message is a chat message scoped to an order. IsAdmin records which side
// of the conversation the message originated from, not the sender's
// privilege bit.
type Message struct {
	Id          int          `json:"id"`
	OrderId     string       `json:"order_id"`
	SenderId    int          `json:"sender_id"`
	IsAdmin     bool         `json:"is_admin"`
	MessageText string       `json:"message_text,omitempty"`
	Attachments []Attachment `json:"attachments"`
	ReadByUser  bool         `json:"read_by_user"`
	ReadByAdmin bool         `json:"read_by_admin"`
	CreatedAt   time.Time    `json:"created_at"`
}
