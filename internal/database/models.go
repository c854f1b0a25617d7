package database

import (
	"time"

	"github.com/filingline/chat-relay/internal/types"
)

type Account struct {
	Id           int
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Order struct {
	Id         int
	ExternalId string
	AccountId  int
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Message struct {
	Id          int
	OrderId     int
	SenderId    int
	IsAdmin     bool
	MessageText string
	Attachments []types.Attachment
	ReadByUser  bool
	ReadByAdmin bool
	CreatedAt   time.Time
}

type CreateMessageParams struct {
	OrderId     int
	SenderId    int
	IsAdmin     bool
	MessageText string
	Attachments []types.Attachment
}
