package realtime

import (
	"Parley/internal/api/dto"
	"Parley/internal/pkg/util"
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownIntent  = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Intent 上行意图, 每个事件名对应一个固定字段集的结构体
type Intent interface {
	Name() string
}

type SendMessage struct {
	dto.SendMessageDTO
}

type MarkDelivered struct {
	MessageID string `json:"messageId" validate:"required,max=64"`
}

// MarkRead messageId 与 conversationId 二选一
type MarkRead struct {
	MessageID      string `json:"messageId" validate:"required_without=ConversationID,max=64"`
	ConversationID uint64 `json:"conversationId" validate:"required_without=MessageID"`
}

type EditMessage struct {
	MessageID string `json:"messageId" validate:"required,max=64"`
	Content   string `json:"content" validate:"required,max=5000"`
}

type DeleteMessage struct {
	MessageID   string `json:"messageId" validate:"required,max=64"`
	ForEveryone bool   `json:"forEveryone"`
}

type Typing struct {
	ConversationID uint64 `json:"conversationId" validate:"required"`
	IsTyping       bool   `json:"-"`
}

type JoinConversation struct {
	ConversationID uint64 `json:"conversationId" validate:"required"`
}

type LeaveConversation struct {
	ConversationID uint64 `json:"conversationId" validate:"required"`
}

func (*SendMessage) Name() string       { return IntentMessageSend }
func (*MarkDelivered) Name() string     { return IntentMessageDelivered }
func (*MarkRead) Name() string          { return IntentMessageRead }
func (*EditMessage) Name() string       { return IntentMessageEdit }
func (*DeleteMessage) Name() string     { return IntentMessageDelete }
func (*JoinConversation) Name() string  { return IntentConversationJoin }
func (*LeaveConversation) Name() string { return IntentConversationLeave }

func (t *Typing) Name() string {
	if t.IsTyping {
		return IntentTypingStart
	}
	return IntentTypingStop
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode 解析上行帧; 未知事件、多余字段、类型不符或校验失败一律拒绝
func Decode(frame []byte) (Intent, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var intent Intent
	switch env.Event {
	case IntentMessageSend:
		intent = &SendMessage{}
	case IntentMessageDelivered:
		intent = &MarkDelivered{}
	case IntentMessageRead:
		intent = &MarkRead{}
	case IntentMessageEdit:
		intent = &EditMessage{}
	case IntentMessageDelete:
		intent = &DeleteMessage{}
	case IntentTypingStart:
		intent = &Typing{IsTyping: true}
	case IntentTypingStop:
		intent = &Typing{}
	case IntentConversationJoin:
		intent = &JoinConversation{}
	case IntentConversationLeave:
		intent = &LeaveConversation{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, env.Event)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("%w: %s requires data", ErrInvalidPayload, env.Event)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(intent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := util.ValidateDTO(intent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return intent, nil
}
