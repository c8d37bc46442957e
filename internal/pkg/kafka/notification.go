package kafka

import "time"

// NotificationEvent 离线推送记录, 按接收者分区
type NotificationEvent struct {
	RecipientID    uint64    `json:"recipientId"`
	SenderID       uint64    `json:"senderId"`
	ConversationID uint64    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"createdAt"`
}
