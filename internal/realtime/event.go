package realtime

import (
	"strconv"

	"github.com/goccy/go-json"
)

// 服务端下行事件
const (
	EventMessageNew       = "message:new"
	EventMessageSent      = "message:sent"
	EventMessageDelivered = "message:delivered"
	EventMessageRead      = "message:read"
	EventMessagesRead     = "messages:read"
	EventMessageEdited    = "message:edited"
	EventMessageDeleted   = "message:deleted"
	EventTypingUser       = "typing:user"
	EventUserOnline       = "user:online"
	EventUserOffline      = "user:offline"
	EventError            = "error"
)

// 客户端上行意图
const (
	IntentMessageSend       = "message:send"
	IntentMessageDelivered  = "message:delivered"
	IntentMessageRead       = "message:read"
	IntentMessageEdit       = "message:edit"
	IntentMessageDelete     = "message:delete"
	IntentTypingStart       = "typing:start"
	IntentTypingStop        = "typing:stop"
	IntentConversationJoin  = "conversation:join"
	IntentConversationLeave = "conversation:leave"
)

const roomPrefix = "conversation:"

// Event 下行帧 {"event": ..., "data": ...}
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

func NewEvent(name string, data any) Event {
	return Event{Name: name, Data: data}
}

func (e Event) encode() ([]byte, error) {
	return json.Marshal(e)
}

// RoomName 会话对应的房间名
func RoomName(conversationID uint64) string {
	return roomPrefix + strconv.FormatUint(conversationID, 10)
}
