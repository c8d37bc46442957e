package service

import (
	"Parley/internal/realtime"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinRevalidatesMembership(t *testing.T) {
	f := newPresenceFixture()
	alice, bob, eve := f.users.Add("Alice"), f.users.Add("Bob"), f.users.Add("Eve")
	conv := f.convs.AddDirect(alice.ID, bob.ID)
	rooms := NewRoomService(f.convs, f.hub)
	room := realtime.RoomName(conv.ID)

	intruder := f.connect(t, eve.ID)
	require.ErrorIs(t, rooms.Join(context.Background(), eve.ID, intruder.ID(), conv.ID), ErrConversationNotFound)
	require.False(t, f.hub.InRoom(intruder.ID(), room))

	c := f.connect(t, alice.ID)
	rooms.Leave(c.ID(), conv.ID)
	require.False(t, f.hub.InRoom(c.ID(), room))
	rooms.Leave(c.ID(), conv.ID)

	require.NoError(t, rooms.Join(context.Background(), alice.ID, c.ID(), conv.ID))
	require.NoError(t, rooms.Join(context.Background(), alice.ID, c.ID(), conv.ID))
	require.True(t, f.hub.InRoom(c.ID(), room))
}
