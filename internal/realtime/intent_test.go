package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeSendMessage(t *testing.T) {
	intent, err := Decode([]byte(`{"event":"message:send","data":{"conversationId":5,"content":"hi","type":"text","tempId":"t-1"}}`))
	require.NoError(t, err)

	send, ok := intent.(*SendMessage)
	require.True(t, ok)
	require.Equal(t, uint64(5), send.ConversationID)
	require.Equal(t, "hi", send.Content)
	require.Equal(t, "t-1", send.TempID)
	require.Equal(t, IntentMessageSend, send.Name())
}

func TestDecodeTypingVariants(t *testing.T) {
	start, err := Decode([]byte(`{"event":"typing:start","data":{"conversationId":3}}`))
	require.NoError(t, err)
	require.True(t, start.(*Typing).IsTyping)

	stop, err := Decode([]byte(`{"event":"typing:stop","data":{"conversationId":3}}`))
	require.NoError(t, err)
	require.False(t, stop.(*Typing).IsTyping)
	require.Equal(t, IntentTypingStop, stop.Name())
}

func TestDecodeMarkReadAcceptsEitherTarget(t *testing.T) {
	byMessage, err := Decode([]byte(`{"event":"message:read","data":{"messageId":"abc"}}`))
	require.NoError(t, err)
	require.Equal(t, "abc", byMessage.(*MarkRead).MessageID)

	byConversation, err := Decode([]byte(`{"event":"message:read","data":{"conversationId":9}}`))
	require.NoError(t, err)
	require.Equal(t, uint64(9), byConversation.(*MarkRead).ConversationID)

	_, err = Decode([]byte(`{"event":"message:read","data":{}}`))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	cases := map[string]struct {
		frame string
		want  error
	}{
		"not json":         {`hello`, ErrMalformedFrame},
		"unknown event":    {`{"event":"message:explode","data":{}}`, ErrUnknownIntent},
		"missing data":     {`{"event":"conversation:join"}`, ErrInvalidPayload},
		"wrong type":       {`{"event":"conversation:join","data":{"conversationId":"seven"}}`, ErrInvalidPayload},
		"unknown field":    {`{"event":"message:delivered","data":{"messageId":"a","extra":1}}`, ErrInvalidPayload},
		"missing field":    {`{"event":"message:edit","data":{"messageId":"a"}}`, ErrInvalidPayload},
		"bad message type": {`{"event":"message:send","data":{"conversationId":1,"content":"x","type":"sticker"}}`, ErrInvalidPayload},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(tc.frame))
			require.ErrorIs(t, err, tc.want)
		})
	}
}
