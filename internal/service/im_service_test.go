package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/realtime"
	"Parley/internal/testutil"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type imFixture struct {
	users *testutil.UserRepo
	convs *testutil.ConversationRepo
	msgs  *testutil.MessageRepo
	rec   *testutil.Recorder
	svc   IMService
}

func newIMFixture(notifier Notifier) *imFixture {
	f := &imFixture{
		users: testutil.NewUserRepo(),
		convs: testutil.NewConversationRepo(),
		msgs:  testutil.NewMessageRepo(),
		rec:   testutil.NewRecorder(),
	}
	f.svc = NewIMService(f.users, f.convs, f.msgs, f.rec, nil, notifier)
	return f
}

func (f *imFixture) send(t *testing.T, sender, convID uint64, content string) *dto.MessageDTO {
	t.Helper()
	out, err := f.svc.SendMessage(context.Background(), sender, &dto.SendMessageDTO{ConversationID: convID, Content: content}, "")
	require.NoError(t, err)
	return out
}

func TestSendMessagePersistsAndBroadcasts(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob := f.users.Add("Alice"), f.users.Add("Bob")
	conv := f.convs.AddDirect(alice.ID, bob.ID)

	out, err := f.svc.SendMessage(context.Background(), alice.ID, &dto.SendMessageDTO{
		ConversationID: conv.ID,
		Content:        "hi",
		TempID:         "tmp-1",
	}, realtime.ConnID("c1"))
	require.NoError(t, err)

	require.Equal(t, "text", out.Type)
	require.True(t, out.Status.Sent)
	require.False(t, out.Status.Delivered)
	require.False(t, out.Status.Read)
	require.Equal(t, "Alice", out.Sender.Name)

	stored := f.msgs.Get(out.ID)
	require.NotNil(t, stored)
	require.Equal(t, "hi", stored.Content)

	require.Equal(t, uint64(1), f.convs.Unread(conv.ID, bob.ID))
	require.Equal(t, uint64(0), f.convs.Unread(conv.ID, alice.ID))
	updated, _ := f.convs.GetConversation(context.Background(), conv.ID)
	require.Equal(t, out.ID, updated.LastMessageID)

	events := f.rec.Events()
	require.Len(t, events, 2)
	require.Equal(t, realtime.EventMessageNew, events[0].Event.Name)
	require.Equal(t, "room", events[0].Scope)
	require.Equal(t, realtime.RoomName(conv.ID), events[0].Target)
	require.Equal(t, realtime.EventMessageSent, events[1].Event.Name)
	require.Equal(t, "conn", events[1].Scope)
	require.Equal(t, "c1", events[1].Target)
	ack := events[1].Event.Data.(*dto.MessageSentPayload)
	require.Equal(t, "tmp-1", ack.TempID)
	require.Equal(t, out.ID, ack.Message.ID)
}

func TestSendMessageOverHTTPSkipsAck(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob := f.users.Add("Alice"), f.users.Add("Bob")
	conv := f.convs.AddDirect(alice.ID, bob.ID)

	f.send(t, alice.ID, conv.ID, "hello")
	require.Len(t, f.rec.Named(realtime.EventMessageNew), 1)
	require.Empty(t, f.rec.Named(realtime.EventMessageSent))
}

func TestSendMessageRejectsNonMember(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob, eve := f.users.Add("Alice"), f.users.Add("Bob"), f.users.Add("Eve")
	conv := f.convs.AddDirect(alice.ID, bob.ID)

	_, err := f.svc.SendMessage(context.Background(), eve.ID, &dto.SendMessageDTO{ConversationID: conv.ID, Content: "x"}, "")
	require.ErrorIs(t, err, ErrConversationNotFound)

	_, err = f.svc.SendMessage(context.Background(), alice.ID, &dto.SendMessageDTO{ConversationID: 999, Content: "x"}, "")
	require.ErrorIs(t, err, ErrConversationNotFound)

	f.convs.Deactivate(conv.ID)
	_, err = f.svc.SendMessage(context.Background(), alice.ID, &dto.SendMessageDTO{ConversationID: conv.ID, Content: "x"}, "")
	require.ErrorIs(t, err, ErrConversationNotFound)

	require.Empty(t, f.msgs.All())
	require.Empty(t, f.rec.Events())
}

func TestSendMessageValidatesPayload(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob := f.users.Add("Alice"), f.users.Add("Bob")
	conv := f.convs.AddDirect(alice.ID, bob.ID)

	cases := []*dto.SendMessageDTO{
		{ConversationID: conv.ID, Content: "   "},
		{ConversationID: conv.ID, Content: strings.Repeat("a", 5001)},
		{ConversationID: conv.ID, Type: "image"},
	}
	for _, req := range cases {
		_, err := f.svc.SendMessage(context.Background(), alice.ID, req, "")
		require.ErrorIs(t, err, ErrParamInvalid)
	}

	out, err := f.svc.SendMessage(context.Background(), alice.ID, &dto.SendMessageDTO{
		ConversationID: conv.ID,
		Type:           "image",
		Media:          &dto.MediaDTO{URL: "https://cdn.example.com/a.png", MimeType: "image/png", Size: 10},
	}, "")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/a.png", out.Media.URL)
}

func TestSendMessageReplyIsBestEffort(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob, carol := f.users.Add("Alice"), f.users.Add("Bob"), f.users.Add("Carol")
	conv := f.convs.AddDirect(alice.ID, bob.ID)
	other := f.convs.AddDirect(alice.ID, carol.ID)

	first := f.send(t, alice.ID, conv.ID, "first")
	elsewhere := f.send(t, alice.ID, other.ID, "elsewhere")

	reply, err := f.svc.SendMessage(context.Background(), bob.ID, &dto.SendMessageDTO{ConversationID: conv.ID, Content: "re", ReplyTo: first.ID}, "")
	require.NoError(t, err)
	require.Equal(t, first.ID, reply.ReplyTo)

	for _, ref := range []string{elsewhere.ID, "65f000000000000000000000", "garbage"} {
		out, err := f.svc.SendMessage(context.Background(), bob.ID, &dto.SendMessageDTO{ConversationID: conv.ID, Content: "re", ReplyTo: ref}, "")
		require.NoError(t, err)
		require.Empty(t, out.ReplyTo)
	}
}

func TestSendMessageSurvivesAggregateFailure(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob := f.users.Add("Alice"), f.users.Add("Bob")
	conv := f.convs.AddDirect(alice.ID, bob.ID)
	f.convs.RecordFail = true

	out := f.send(t, alice.ID, conv.ID, "still delivered")
	require.NotNil(t, f.msgs.Get(out.ID))
	require.Len(t, f.rec.Named(realtime.EventMessageNew), 1)
}

func TestSendMessageStoreFailure(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob := f.users.Add("Alice"), f.users.Add("Bob")
	conv := f.convs.AddDirect(alice.ID, bob.ID)
	f.msgs.Fail = true

	_, err := f.svc.SendMessage(context.Background(), alice.ID, &dto.SendMessageDTO{ConversationID: conv.ID, Content: "x"}, "")
	require.ErrorIs(t, err, testutil.ErrStoreDown)
	known, code, _ := Classify(err)
	require.Equal(t, UnExpectedError, known)
	require.Equal(t, InternalServerError, code)
	require.Empty(t, f.rec.Events())
}

type notifierFunc func(ctx context.Context, msg *dto.MessageDTO, recipients []uint64)

func (f notifierFunc) NotifyNewMessage(ctx context.Context, msg *dto.MessageDTO, recipients []uint64) {
	f(ctx, msg, recipients)
}

func TestSendMessageNotifiesOtherParticipants(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	var got []uint64
	f := newIMFixture(notifierFunc(func(_ context.Context, _ *dto.MessageDTO, recipients []uint64) {
		got = recipients
		wg.Done()
	}))
	alice, bob := f.users.Add("Alice"), f.users.Add("Bob")
	conv := f.convs.AddDirect(alice.ID, bob.ID)

	f.send(t, alice.ID, conv.ID, "ping")
	wg.Wait()
	require.Equal(t, []uint64{bob.ID}, got)
}

func TestEditMessage(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob := f.users.Add("Alice"), f.users.Add("Bob")
	conv := f.convs.AddDirect(alice.ID, bob.ID)
	msg := f.send(t, alice.ID, conv.ID, "helo")

	_, err := f.svc.EditMessage(context.Background(), bob.ID, msg.ID, "hijack")
	require.ErrorIs(t, err, ErrMessageNotFound)

	_, err = f.svc.EditMessage(context.Background(), alice.ID, "65f000000000000000000000", "x")
	require.ErrorIs(t, err, ErrMessageNotFound)

	out, err := f.svc.EditMessage(context.Background(), alice.ID, msg.ID, "hello")
	require.NoError(t, err)
	require.Equal(t, "hello", out.Content)
	require.True(t, out.IsEdited)
	require.NotNil(t, out.EditedAt)

	edited := f.rec.Named(realtime.EventMessageEdited)
	require.Len(t, edited, 1)
	require.Equal(t, realtime.RoomName(conv.ID), edited[0].Target)

	require.NoError(t, f.svc.DeleteMessage(context.Background(), alice.ID, msg.ID, true))
	_, err = f.svc.EditMessage(context.Background(), alice.ID, msg.ID, "again")
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestDeleteMessageForEveryone(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob := f.users.Add("Alice"), f.users.Add("Bob")
	conv := f.convs.AddDirect(alice.ID, bob.ID)
	msg := f.send(t, alice.ID, conv.ID, "oops")

	err := f.svc.DeleteMessage(context.Background(), bob.ID, msg.ID, true)
	require.ErrorIs(t, err, ErrForbidden)
	require.False(t, f.msgs.Get(msg.ID).IsDeleted)

	require.NoError(t, f.svc.DeleteMessage(context.Background(), alice.ID, msg.ID, true))
	stored := f.msgs.Get(msg.ID)
	require.True(t, stored.IsDeleted)
	require.NotNil(t, stored.DeletedAt)
	require.Equal(t, "oops", stored.Content)

	deleted := f.rec.Named(realtime.EventMessageDeleted)
	require.Len(t, deleted, 1)
	payload := deleted[0].Event.Data.(*dto.MessageDeletedPayload)
	require.Equal(t, msg.ID, payload.MessageID)
	require.True(t, payload.ForEveryone)
	require.Equal(t, alice.ID, payload.DeletedBy)

	history, err := f.svc.GetMessages(context.Background(), bob.ID, conv.ID, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.True(t, history[0].IsDeleted)
	require.Empty(t, history[0].Content)
}

func TestDeleteMessageForSelf(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob, eve := f.users.Add("Alice"), f.users.Add("Bob"), f.users.Add("Eve")
	conv := f.convs.AddDirect(alice.ID, bob.ID)
	msg := f.send(t, bob.ID, conv.ID, "secret")

	require.ErrorIs(t, f.svc.DeleteMessage(context.Background(), eve.ID, msg.ID, false), ErrMessageNotFound)
	require.ErrorIs(t, f.svc.DeleteMessage(context.Background(), alice.ID, "nope", false), ErrMessageNotFound)

	require.NoError(t, f.svc.DeleteMessage(context.Background(), alice.ID, msg.ID, false))
	require.NoError(t, f.svc.DeleteMessage(context.Background(), alice.ID, msg.ID, false))
	require.Equal(t, []uint64{alice.ID}, f.msgs.Get(msg.ID).DeletedFor)

	mine, err := f.svc.GetMessages(context.Background(), alice.ID, conv.ID, time.Time{}, 0)
	require.NoError(t, err)
	require.Empty(t, mine)

	theirs, err := f.svc.GetMessages(context.Background(), bob.ID, conv.ID, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	require.Equal(t, "secret", theirs[0].Content)
}

func TestGetOrCreateConversationIsIdempotent(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob := f.users.Add("Alice"), f.users.Add("Bob")

	first, err := f.svc.GetOrCreateConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	second, err := f.svc.GetOrCreateConversation(context.Background(), bob.ID, alice.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, f.convs.Count())
	require.Len(t, first.Participants, 2)

	room := realtime.RoomName(first.ID)
	require.Contains(t, f.rec.UserRooms[alice.ID], room)
	require.Contains(t, f.rec.UserRooms[bob.ID], room)

	_, err = f.svc.GetOrCreateConversation(context.Background(), alice.ID, alice.ID)
	require.ErrorIs(t, err, ErrTargetUserInvalid)
	_, err = f.svc.GetOrCreateConversation(context.Background(), alice.ID, 404)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetOrCreateConversationResolvesCreateRace(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob := f.users.Add("Alice"), f.users.Add("Bob")
	f.convs.RaceOnCreate = true

	conv, err := f.svc.GetOrCreateConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	require.NotZero(t, conv.ID)
	require.Equal(t, 1, f.convs.Count())
}

func TestListConversationsCarriesUnreadAndLastMessage(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob, carol := f.users.Add("Alice"), f.users.Add("Bob"), f.users.Add("Carol")
	withBob := f.convs.AddDirect(alice.ID, bob.ID)
	withCarol := f.convs.AddDirect(alice.ID, carol.ID)

	f.send(t, bob.ID, withBob.ID, "one")
	f.send(t, bob.ID, withBob.ID, "two")
	time.Sleep(time.Millisecond)
	f.send(t, carol.ID, withCarol.ID, "latest")

	list, err := f.svc.ListConversations(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, withCarol.ID, list[0].ID)
	require.Equal(t, "latest", list[0].LastMessage.Content)
	require.Equal(t, uint64(1), list[0].UnreadCount)
	require.Equal(t, uint64(2), list[1].UnreadCount)
	require.Equal(t, "two", list[1].LastMessage.Content)

	_, err = f.svc.GetConversation(context.Background(), carol.ID, withBob.ID)
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestGetMessagesPagination(t *testing.T) {
	f := newIMFixture(nil)
	alice, bob := f.users.Add("Alice"), f.users.Add("Bob")
	conv := f.convs.AddDirect(alice.ID, bob.ID)
	for _, c := range []string{"1", "2", "3", "4"} {
		f.send(t, alice.ID, conv.ID, c)
		time.Sleep(time.Millisecond)
	}

	page, err := f.svc.GetMessages(context.Background(), bob.ID, conv.ID, time.Time{}, 2)
	require.NoError(t, err)
	require.Equal(t, "3", page[0].Content)
	require.Equal(t, "4", page[1].Content)

	older, err := f.svc.GetMessages(context.Background(), bob.ID, conv.ID, page[0].CreatedAt, 2)
	require.NoError(t, err)
	require.Equal(t, "1", older[0].Content)
	require.Equal(t, "2", older[1].Content)

	_, err = f.svc.GetMessages(context.Background(), 999, conv.ID, time.Time{}, 2)
	require.ErrorIs(t, err, ErrConversationNotFound)
}
