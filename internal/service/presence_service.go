package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/realtime"
	"Parley/internal/repository"
	"context"
	log "log/slog"
	"sync"
	"time"
)

const (
	presenceStripes   = 64
	presenceQueueSize = 128
)

// PresenceCache 在线状态的 Redis 副本
type PresenceCache interface {
	SetOnline(ctx context.Context, userID uint64, at time.Time) error
	SetOffline(ctx context.Context, userID uint64, lastSeen time.Time) error
}

// PresenceService 连接接入/断开与在线状态广播
type PresenceService interface {
	Connect(ctx context.Context, c *realtime.Client) error
	Disconnect(ctx context.Context, c *realtime.Client)
}

type presenceWrite struct {
	ctx    context.Context
	userID uint64
	online bool
	at     time.Time
}

// presenceStripe mu 串行化同一用户的上下线边沿; writes 按边沿顺序落库
type presenceStripe struct {
	mu     sync.Mutex
	writes chan presenceWrite
}

type presenceServiceImpl struct {
	registry realtime.Registry
	rooms    RoomService
	userRepo repository.UserRepo
	cache    PresenceCache
	stripes  [presenceStripes]presenceStripe
}

// NewPresenceService cache 可以为 nil
func NewPresenceService(registry realtime.Registry, rooms RoomService, userRepo repository.UserRepo, cache PresenceCache) PresenceService {
	s := &presenceServiceImpl{
		registry: registry,
		rooms:    rooms,
		userRepo: userRepo,
		cache:    cache,
	}
	for i := range s.stripes {
		s.stripes[i].writes = make(chan presenceWrite, presenceQueueSize)
		go s.drain(s.stripes[i].writes)
	}
	return s
}

func (s *presenceServiceImpl) stripe(userID uint64) *presenceStripe {
	return &s.stripes[userID%presenceStripes]
}

// Connect 注册连接并加入全部会话房间, 首个连接时广播上线
func (s *presenceServiceImpl) Connect(ctx context.Context, c *realtime.Client) error {
	st := s.stripe(c.UserID())
	st.mu.Lock()
	defer st.mu.Unlock()

	// 先注册再查房间: 并发新建会话的 JoinUser 要么命中此连接, 要么会话已在查询结果中
	first := s.registry.Register(c)
	rooms, err := s.rooms.RoomsFor(ctx, c.UserID())
	if err != nil {
		s.registry.Unregister(c.ID())
		return err
	}
	for _, room := range rooms {
		s.registry.Join(c.ID(), room)
	}

	now := time.Now()
	s.enqueue(ctx, st, c.UserID(), true, now)
	if first {
		s.registry.ToAll(realtime.NewEvent(realtime.EventUserOnline, &dto.UserOnlinePayload{
			UserID:    c.UserID(),
			Timestamp: now,
		}), c.ID())
	}
	log.InfoContext(ctx, "connection registered", "rooms", len(rooms), "first", first)
	return nil
}

// Disconnect 最后一个连接断开时持久化离线并广播
func (s *presenceServiceImpl) Disconnect(ctx context.Context, c *realtime.Client) {
	st := s.stripe(c.UserID())
	st.mu.Lock()
	defer st.mu.Unlock()

	last := s.registry.Unregister(c.ID())
	if !last {
		log.InfoContext(ctx, "connection unregistered")
		return
	}

	now := time.Now()
	s.enqueue(ctx, st, c.UserID(), false, now)
	s.registry.ToAll(realtime.NewEvent(realtime.EventUserOffline, &dto.UserOfflinePayload{
		UserID:   c.UserID(),
		LastSeen: now,
	}), "")
	log.InfoContext(ctx, "user went offline")
}

// enqueue 调用方持有 stripe 锁, 入队顺序即边沿顺序
func (s *presenceServiceImpl) enqueue(ctx context.Context, st *presenceStripe, userID uint64, online bool, at time.Time) {
	st.writes <- presenceWrite{
		ctx:    context.WithoutCancel(ctx),
		userID: userID,
		online: online,
		at:     at,
	}
}

func (s *presenceServiceImpl) drain(writes <-chan presenceWrite) {
	for w := range writes {
		s.persist(w.ctx, w.userID, w.online, w.at)
	}
}

// persist 持久化失败不影响连接本身
func (s *presenceServiceImpl) persist(ctx context.Context, userID uint64, online bool, at time.Time) {
	if err := s.userRepo.UpdatePresence(ctx, userID, online, at); err != nil {
		log.ErrorContext(ctx, "failed to persist presence", "online", online, "err", err)
	}
	if s.cache == nil {
		return
	}
	var err error
	if online {
		err = s.cache.SetOnline(ctx, userID, at)
	} else {
		err = s.cache.SetOffline(ctx, userID, at)
	}
	if err != nil {
		log.WarnContext(ctx, "failed to cache presence", "online", online, "err", err)
	}
}
