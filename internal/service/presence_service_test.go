package service

import (
	"Parley/internal/realtime"
	"Parley/internal/testutil"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func drainFrames(t *testing.T, c *realtime.Client) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case raw := <-c.Outbound():
			var f frame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func eventNames(frames []frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Event)
	}
	return out
}

type presenceFixture struct {
	hub      *realtime.Hub
	users    *testutil.UserRepo
	convs    *testutil.ConversationRepo
	cache    *testutil.PresenceCache
	presence PresenceService
}

func newPresenceFixture() *presenceFixture {
	f := &presenceFixture{
		hub:   realtime.NewHub(),
		users: testutil.NewUserRepo(),
		convs: testutil.NewConversationRepo(),
		cache: &testutil.PresenceCache{},
	}
	f.presence = NewPresenceService(f.hub, NewRoomService(f.convs, f.hub), f.users, f.cache)
	return f
}

func (f *presenceFixture) connect(t *testing.T, userID uint64) *realtime.Client {
	t.Helper()
	c := realtime.NewClient(userID, nil, realtime.DefaultClientConfig())
	require.NoError(t, f.presence.Connect(context.Background(), c))
	return c
}

// waitPresence 持久化异步执行, 等待记录追上
func (f *presenceFixture) waitPresence(t *testing.T, userID uint64, want []bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return slices.Equal(want, f.users.PresenceLog(userID))
	}, time.Second, 5*time.Millisecond)
}

func TestConnectJoinsConversationRooms(t *testing.T) {
	f := newPresenceFixture()
	alice, bob, carol := f.users.Add("Alice"), f.users.Add("Bob"), f.users.Add("Carol")
	withBob := f.convs.AddDirect(alice.ID, bob.ID)
	withCarol := f.convs.AddDirect(alice.ID, carol.ID)
	inactive := f.convs.AddDirect(bob.ID, carol.ID)
	f.convs.Deactivate(inactive.ID)

	c := f.connect(t, alice.ID)
	require.ElementsMatch(t, []string{realtime.RoomName(withBob.ID), realtime.RoomName(withCarol.ID)}, f.hub.Rooms(c.ID()))

	b := f.connect(t, bob.ID)
	require.Equal(t, []string{realtime.RoomName(withBob.ID)}, f.hub.Rooms(b.ID()))
}

func TestPresenceEdgesAreBroadcastGlobally(t *testing.T) {
	f := newPresenceFixture()
	alice, bob, stranger := f.users.Add("Alice"), f.users.Add("Bob"), f.users.Add("Stranger")
	f.convs.AddDirect(alice.ID, bob.ID)

	watcher := f.connect(t, stranger.ID)
	a1 := f.connect(t, alice.ID)
	require.Equal(t, []string{realtime.EventUserOnline}, eventNames(drainFrames(t, watcher)), "presence reaches non-room peers")
	require.Empty(t, drainFrames(t, a1), "origin connection is excluded")

	a2 := f.connect(t, alice.ID)
	require.Empty(t, drainFrames(t, watcher), "second connection is not an edge")
	f.waitPresence(t, alice.ID, []bool{true, true})

	f.presence.Disconnect(context.Background(), a1)
	require.Empty(t, drainFrames(t, watcher), "user still has a live connection")
	require.True(t, f.hub.IsOnline(alice.ID))

	f.presence.Disconnect(context.Background(), a2)
	frames := drainFrames(t, watcher)
	require.Equal(t, []string{realtime.EventUserOffline}, eventNames(frames))
	var payload struct {
		UserID uint64 `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	require.Equal(t, alice.ID, payload.UserID)

	require.False(t, f.hub.IsOnline(alice.ID))
	f.waitPresence(t, alice.ID, []bool{true, true, false})
	require.False(t, f.users.Get(alice.ID).IsOnline)
	require.Eventually(t, func() bool {
		return slices.Contains(f.cache.Writes(), "1:offline")
	}, time.Second, 5*time.Millisecond)
}

func TestConcurrentConnectsProduceSingleEdge(t *testing.T) {
	f := newPresenceFixture()
	alice, stranger := f.users.Add("Alice"), f.users.Add("Stranger")
	watcher := f.connect(t, stranger.ID)

	var wg sync.WaitGroup
	clients := make([]*realtime.Client, 8)
	for i := range clients {
		clients[i] = realtime.NewClient(alice.ID, nil, realtime.DefaultClientConfig())
		wg.Add(1)
		go func(c *realtime.Client) {
			defer wg.Done()
			if err := f.presence.Connect(context.Background(), c); err != nil {
				t.Error(err)
			}
		}(clients[i])
	}
	wg.Wait()
	require.Equal(t, []string{realtime.EventUserOnline}, eventNames(drainFrames(t, watcher)))

	for _, c := range clients {
		wg.Add(1)
		go func(c *realtime.Client) {
			defer wg.Done()
			f.presence.Disconnect(context.Background(), c)
		}(c)
	}
	wg.Wait()
	require.Equal(t, []string{realtime.EventUserOffline}, eventNames(drainFrames(t, watcher)))
	require.Eventually(t, func() bool {
		log := f.users.PresenceLog(alice.ID)
		return len(log) == len(clients)+1 && !f.users.Get(alice.ID).IsOnline
	}, time.Second, 5*time.Millisecond)
}

// roomsThen 在房间查询返回后执行 after, 模拟查询与注册之间的并发建会话
type roomsThen struct {
	RoomService
	after func()
}

func (r *roomsThen) RoomsFor(ctx context.Context, userID uint64) ([]string, error) {
	rooms, err := r.RoomService.RoomsFor(ctx, userID)
	if r.after != nil {
		r.after()
	}
	return rooms, err
}

func TestConnectSeesConversationCreatedDuringRoomQuery(t *testing.T) {
	f := newPresenceFixture()
	alice, bob := f.users.Add("Alice"), f.users.Add("Bob")
	im := NewIMService(f.users, f.convs, testutil.NewMessageRepo(), f.hub, nil, nil)

	var created uint64
	rooms := &roomsThen{RoomService: NewRoomService(f.convs, f.hub), after: func() {
		conv, err := im.GetOrCreateConversation(context.Background(), bob.ID, alice.ID)
		require.NoError(t, err)
		created = conv.ID
	}}
	f.presence = NewPresenceService(f.hub, rooms, f.users, f.cache)

	c := f.connect(t, alice.ID)
	require.NotZero(t, created)
	require.Contains(t, f.hub.Rooms(c.ID()), realtime.RoomName(created))
}

type failingRooms struct {
	RoomService
}

func (failingRooms) RoomsFor(context.Context, uint64) ([]string, error) {
	return nil, testutil.ErrStoreDown
}

func TestConnectRollsBackWhenRoomQueryFails(t *testing.T) {
	f := newPresenceFixture()
	alice, stranger := f.users.Add("Alice"), f.users.Add("Stranger")
	watcher := f.connect(t, stranger.ID)
	f.presence = NewPresenceService(f.hub, failingRooms{}, f.users, f.cache)

	c := realtime.NewClient(alice.ID, nil, realtime.DefaultClientConfig())
	err := f.presence.Connect(context.Background(), c)
	require.True(t, errors.Is(err, testutil.ErrStoreDown))
	require.False(t, f.hub.IsOnline(alice.ID))
	require.Empty(t, drainFrames(t, watcher))
	require.Empty(t, f.users.PresenceLog(alice.ID))
}

func TestSlowPersistenceDoesNotBlockEdges(t *testing.T) {
	f := newPresenceFixture()
	f.cache.Block = make(chan struct{})
	alice := f.users.Add("Alice")
	neighbour := alice.ID + presenceStripes

	done := make(chan struct{})
	go func() {
		defer close(done)
		a := realtime.NewClient(alice.ID, nil, realtime.DefaultClientConfig())
		n := realtime.NewClient(neighbour, nil, realtime.DefaultClientConfig())
		if err := f.presence.Connect(context.Background(), a); err != nil {
			t.Error(err)
			return
		}
		if err := f.presence.Connect(context.Background(), n); err != nil {
			t.Error(err)
			return
		}
		f.presence.Disconnect(context.Background(), a)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("connect blocked behind the presence store")
	}
	require.False(t, f.hub.IsOnline(alice.ID))
	require.True(t, f.hub.IsOnline(neighbour))

	close(f.cache.Block)
	f.waitPresence(t, alice.ID, []bool{true, false})
	require.Eventually(t, func() bool {
		return slices.Equal([]string{
			fmt.Sprintf("%d:online", alice.ID),
			fmt.Sprintf("%d:online", neighbour),
			fmt.Sprintf("%d:offline", alice.ID),
		}, f.cache.Writes())
	}, time.Second, 5*time.Millisecond)
}
