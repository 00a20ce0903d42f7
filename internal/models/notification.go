package models

import (
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSystem   Channel = "system"
	ChannelSMS      Channel = "sms"
	ChannelTelegram Channel = "telegram"
)

// AllChannels lists channels in dispatch order.
var AllChannels = []Channel{ChannelSystem, ChannelEmail, ChannelSMS, ChannelTelegram}

// Message is the payload handed to a channel sender.
type Message struct {
	Channel   Channel     `json:"channel"`
	Recipient string      `json:"recipient"`
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
	EventIDs  []uuid.UUID `json:"event_ids"`
	Digest    bool        `json:"digest"`
	CreatedAt time.Time   `json:"created_at"`
}

const (
	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
)

// Notification is the record of one delivery attempt.
type Notification struct {
	ID        uuid.UUID   `json:"id"`
	Channel   Channel     `json:"channel"`
	Recipient string      `json:"recipient"`
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
	EventIDs  []uuid.UUID `json:"event_ids"`
	Digest    bool        `json:"digest"`
	Status    string      `json:"status"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type NotificationFilter struct {
	Channel Channel
	Status  string
	Limit   int
}
