package dto

import "time"

// 以下为实时通道下行事件的负载

type MessageSentPayload struct {
	TempID  string      `json:"tempId"`
	Message *MessageDTO `json:"message"`
}

type MessageDeliveredPayload struct {
	MessageID   string    `json:"messageId"`
	UserID      uint64    `json:"userId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

type MessageReadPayload struct {
	MessageID string    `json:"messageId"`
	UserID    uint64    `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

type ConversationReadPayload struct {
	ConversationID uint64    `json:"conversationId"`
	UserID         uint64    `json:"userId"`
	ReadAt         time.Time `json:"readAt"`
}

type MessageDeletedPayload struct {
	MessageID   string `json:"messageId"`
	ForEveryone bool   `json:"forEveryone"`
	DeletedBy   uint64 `json:"deletedBy"`
}

type TypingPayload struct {
	UserID         uint64 `json:"userId"`
	ConversationID uint64 `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type UserOnlinePayload struct {
	UserID    uint64    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

type UserOfflinePayload struct {
	UserID   uint64    `json:"userId"`
	LastSeen time.Time `json:"lastSeen"`
}

// ErrorPayload 只发给出错的连接, Event 为触发错误的上行事件
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
