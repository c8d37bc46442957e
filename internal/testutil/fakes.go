// Package testutil 内存版仓储与事件记录器, 供服务层和 handler 测试使用
package testutil

import (
	"Parley/internal/model"
	"Parley/internal/pkg/mongo"
	"Parley/internal/realtime"
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrStoreDown 模拟存储不可用
var ErrStoreDown = errors.New("store unavailable")

// UserRepo 内存用户表
type UserRepo struct {
	mu       sync.Mutex
	nextID   uint64
	users    map[uint64]*model.User
	presence map[uint64][]bool
	Fail     bool
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[uint64]*model.User), presence: make(map[uint64][]bool)}
}

// Add 直接写入一个用户并返回副本
func (r *UserRepo) Add(name string) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u := &model.User{
		ID:            r.nextID,
		Email:         strings.ToLower(name) + "@example.com",
		Name:          name,
		LastSeen:      time.Now(),
		Notifications: true,
		Sound:         true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	r.users[u.ID] = u
	cp := *u
	return &cp
}

// PresenceLog 每次在线状态持久化的记录
func (r *UserRepo) PresenceLog(id uint64) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.presence[id])
}

func (r *UserRepo) Get(id uint64) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	cp := *u
	cp.Blocks = slices.Clone(u.Blocks)
	return &cp
}

func (r *UserRepo) GetUserById(_ context.Context, id uint64) (*model.User, error) {
	if r.Fail {
		return nil, ErrStoreDown
	}
	return r.Get(id), nil
}

func (r *UserRepo) GetUserByIds(_ context.Context, ids []uint64) ([]*model.User, error) {
	if r.Fail {
		return nil, ErrStoreDown
	}
	var out []*model.User
	for _, id := range ids {
		if u := r.Get(id); u != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *UserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) CreateUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *UserRepo) UpdateUser(_ context.Context, id uint64, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "name":
			u.Name = v.(string)
		case "status":
			u.Status = v.(string)
		case "avatar":
			u.Avatar = v.(string)
		case "notifications":
			u.Notifications = v.(bool)
		case "sound":
			u.Sound = v.(bool)
		}
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (r *UserRepo) UpdatePresence(_ context.Context, id uint64, online bool, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence[id] = append(r.presence[id], online)
	if u, ok := r.users[id]; ok {
		u.IsOnline = online
		u.LastSeen = lastSeen
	}
	return nil
}

func (r *UserRepo) SearchUsers(_ context.Context, keyword string, excludeID uint64, offset, limit int) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, u := range r.users {
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Name), strings.ToLower(keyword)) ||
			strings.Contains(u.Email, strings.ToLower(keyword)) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(len(out), offset+limit)], nil
}

func (r *UserRepo) ToggleBlock(_ context.Context, userID, targetID uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[userID]
	for i, b := range u.Blocks {
		if b.BlockedID == targetID {
			u.Blocks = slices.Delete(u.Blocks, i, i+1)
			return false, nil
		}
	}
	u.Blocks = append(u.Blocks, model.UserBlock{UserID: userID, BlockedID: targetID, CreatedAt: time.Now()})
	return true, nil
}

// ConversationRepo 内存会话表
type ConversationRepo struct {
	mu     sync.Mutex
	nextID uint64
	convs  map[uint64]*model.Conversation
	// RaceOnCreate 模拟并发创建: 先插入一个同 peer_key 的会话再返回唯一键冲突
	RaceOnCreate bool
	RecordFail   bool
}

func NewConversationRepo() *ConversationRepo {
	return &ConversationRepo{convs: make(map[uint64]*model.Conversation)}
}

// AddDirect 直接创建一对用户的会话
func (r *ConversationRepo) AddDirect(a, b uint64) *model.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(fmt.Sprintf("%d_%d", min(a, b), max(a, b)), []uint64{a, b})
}

func (r *ConversationRepo) insert(peerKey string, users []uint64) *model.Conversation {
	r.nextID++
	now := time.Now()
	conv := &model.Conversation{
		ID:            r.nextID,
		Type:          1,
		PeerKey:       peerKey,
		LastMessageAt: now,
		IsActive:      true,
		CreatedAt:     now,
	}
	for _, u := range users {
		conv.Members = append(conv.Members, model.ConversationMember{ConversationID: conv.ID, UserID: u, JoinedAt: now})
	}
	r.convs[conv.ID] = conv
	return clone(conv)
}

func clone(c *model.Conversation) *model.Conversation {
	cp := *c
	cp.Members = slices.Clone(c.Members)
	return &cp
}

func (r *ConversationRepo) Deactivate(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[id].IsActive = false
}

func (r *ConversationRepo) Unread(convID, userID uint64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.convs[convID].Members {
		if m.UserID == userID {
			return m.UnreadCount
		}
	}
	return 0
}

func (r *ConversationRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.convs)
}

func (r *ConversationRepo) CreateConversation(_ context.Context, conv *model.Conversation, members []*model.ConversationMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]uint64, 0, len(members))
	for _, m := range members {
		users = append(users, m.UserID)
	}
	if r.RaceOnCreate {
		r.RaceOnCreate = false
		r.insert(conv.PeerKey, users)
		return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	}
	for _, c := range r.convs {
		if c.PeerKey == conv.PeerKey {
			return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
		}
	}
	*conv = *r.insert(conv.PeerKey, users)
	return nil
}

func (r *ConversationRepo) GetConversation(_ context.Context, convID uint64) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[convID]
	if !ok {
		return nil, nil
	}
	return clone(c), nil
}

func (r *ConversationRepo) GetConversationByPeerKey(_ context.Context, peerKey string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.PeerKey == peerKey {
			return clone(c), nil
		}
	}
	return nil, nil
}

func (r *ConversationRepo) IsMember(_ context.Context, convID uint64, userID uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[convID]
	return ok && c.IsActive && c.HasMember(userID), nil
}

func (r *ConversationRepo) GetUserConversationIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	convs, _ := r.GetUserConversations(ctx, userID)
	ids := make([]uint64, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (r *ConversationRepo) GetUserConversations(_ context.Context, userID uint64) ([]*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Conversation
	for _, c := range r.convs {
		if c.IsActive && c.HasMember(userID) {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

func (r *ConversationRepo) RecordMessage(_ context.Context, convID, senderID uint64, messageID string, at time.Time) error {
	if r.RecordFail {
		return ErrStoreDown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.convs[convID]
	if !c.LastMessageAt.After(at) {
		c.LastMessageID = messageID
		c.LastMessageAt = at
	}
	for i := range c.Members {
		if c.Members[i].UserID != senderID {
			c.Members[i].UnreadCount++
		}
	}
	return nil
}

func (r *ConversationRepo) ResetUnread(_ context.Context, convID, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.convs[convID]
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			c.Members[i].UnreadCount = 0
		}
	}
	return nil
}

// MessageRepo 内存消息集合, 回执按条件写入的语义与 Mongo 实现一致
type MessageRepo struct {
	mu   sync.Mutex
	msgs map[primitive.ObjectID]*mongo.Message
	Fail bool
}

func NewMessageRepo() *MessageRepo {
	return &MessageRepo{msgs: make(map[primitive.ObjectID]*mongo.Message)}
}

func cloneMessage(m *mongo.Message) *mongo.Message {
	cp := *m
	cp.DeliveredTo = slices.Clone(m.DeliveredTo)
	cp.ReadBy = slices.Clone(m.ReadBy)
	cp.DeletedFor = slices.Clone(m.DeletedFor)
	if m.Media != nil {
		media := *m.Media
		cp.Media = &media
	}
	return &cp
}

// Get 按 hex id 读取, 不存在返回 nil
func (r *MessageRepo) Get(id string) *mongo.Message {
	m, _ := r.GetMessage(context.Background(), id)
	return m
}

func (r *MessageRepo) All() []*mongo.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*mongo.Message, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, cloneMessage(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *MessageRepo) SaveMessage(_ context.Context, msg *mongo.Message) error {
	if r.Fail {
		return ErrStoreDown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[msg.ID] = cloneMessage(msg)
	return nil
}

func (r *MessageRepo) GetMessage(_ context.Context, id string) (*mongo.Message, error) {
	if r.Fail {
		return nil, ErrStoreDown
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[oid]
	if !ok {
		return nil, nil
	}
	return cloneMessage(m), nil
}

func (r *MessageRepo) GetMessagesByIDs(ctx context.Context, ids []string) (map[string]*mongo.Message, error) {
	out := make(map[string]*mongo.Message)
	for _, id := range ids {
		if m, _ := r.GetMessage(ctx, id); m != nil {
			out[id] = m
		}
	}
	return out, nil
}

func (r *MessageRepo) GetHistory(_ context.Context, convID, viewerID uint64, before time.Time, limit int) ([]*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*mongo.Message
	for _, m := range r.msgs {
		if m.ConversationID != convID || m.HiddenFor(viewerID) {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, cloneMessage(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MessageRepo) UpdateContent(_ context.Context, id primitive.ObjectID, content string, at time.Time) (*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok || m.IsDeleted {
		return nil, nil
	}
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &at
	return cloneMessage(m), nil
}

func (r *MessageRepo) MarkDeleted(_ context.Context, id primitive.ObjectID, at time.Time) (*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return nil, nil
	}
	m.IsDeleted = true
	m.DeletedAt = &at
	return cloneMessage(m), nil
}

func (r *MessageRepo) HideFor(_ context.Context, id primitive.ObjectID, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.msgs[id]; ok && !slices.Contains(m.DeletedFor, userID) {
		m.DeletedFor = append(m.DeletedFor, userID)
	}
	return nil
}

func (r *MessageRepo) AddDelivered(_ context.Context, id primitive.ObjectID, userID uint64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok || hasReceipt(m.DeliveredTo, userID) {
		return false, nil
	}
	m.DeliveredTo = append(m.DeliveredTo, mongo.Receipt{UserID: userID, At: at})
	m.Status.Delivered = true
	return true, nil
}

func (r *MessageRepo) AddRead(_ context.Context, id primitive.ObjectID, userID uint64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok || hasReceipt(m.ReadBy, userID) {
		return false, nil
	}
	m.ReadBy = append(m.ReadBy, mongo.Receipt{UserID: userID, At: at})
	m.Status.Read = true
	return true, nil
}

func (r *MessageRepo) MarkConversationRead(_ context.Context, convID, userID uint64, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.msgs {
		if m.ConversationID != convID || m.SenderID == userID || hasReceipt(m.ReadBy, userID) {
			continue
		}
		m.ReadBy = append(m.ReadBy, mongo.Receipt{UserID: userID, At: at})
		m.Status.Read = true
		n++
	}
	return n, nil
}

func (r *MessageRepo) FindExpiredMedia(_ context.Context, before time.Time, limit int) ([]*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*mongo.Message
	for _, m := range r.msgs {
		if m.Media != nil && !m.Media.Purged && m.CreatedAt.Before(before) {
			out = append(out, cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MessageRepo) MarkMediaPurged(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.msgs[id]; ok && m.Media != nil {
		m.Media.Purged = true
	}
	return nil
}

func hasReceipt(receipts []mongo.Receipt, userID uint64) bool {
	for _, r := range receipts {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// Emitted 一次事件发布的记录
type Emitted struct {
	Scope  string // room / all / conn
	Target string
	Except realtime.ConnID
	Event  realtime.Event
}

// Recorder 记录发布的事件, 房间成员与在线用户由测试预置
type Recorder struct {
	mu        sync.Mutex
	events    []Emitted
	joined    map[realtime.ConnID]map[string]bool
	online    map[uint64]bool
	UserRooms map[uint64][]string
}

func NewRecorder() *Recorder {
	return &Recorder{
		joined:    make(map[realtime.ConnID]map[string]bool),
		online:    make(map[uint64]bool),
		UserRooms: make(map[uint64][]string),
	}
}

func (r *Recorder) SetInRoom(id realtime.ConnID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.joined[id] == nil {
		r.joined[id] = make(map[string]bool)
	}
	r.joined[id][room] = true
}

func (r *Recorder) SetOnline(userID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online[userID] = true
}

func (r *Recorder) record(e Emitted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) ToRoom(room string, evt realtime.Event, except realtime.ConnID) {
	r.record(Emitted{Scope: "room", Target: room, Except: except, Event: evt})
}

func (r *Recorder) ToAll(evt realtime.Event, except realtime.ConnID) {
	r.record(Emitted{Scope: "all", Except: except, Event: evt})
}

func (r *Recorder) ToConn(id realtime.ConnID, evt realtime.Event) {
	r.record(Emitted{Scope: "conn", Target: string(id), Event: evt})
}

func (r *Recorder) JoinUser(userID uint64, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UserRooms[userID] = append(r.UserRooms[userID], room)
}

func (r *Recorder) InRoom(id realtime.ConnID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joined[id][room]
}

func (r *Recorder) IsOnline(userID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online[userID]
}

// Events 返回已发布事件的副本
func (r *Recorder) Events() []Emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Named 按事件名过滤
func (r *Recorder) Named(name string) []Emitted {
	var out []Emitted
	for _, e := range r.Events() {
		if e.Event.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// TokenStore 内存黑名单
type TokenStore struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func NewTokenStore() *TokenStore {
	return &TokenStore{revoked: make(map[string]time.Duration)}
}

func (s *TokenStore) Revoke(_ context.Context, signature string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[signature] = ttl
	return nil
}

func (s *TokenStore) IsRevoked(_ context.Context, signature string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[signature]
	return ok, nil
}

// PresenceCache 记录每次在线状态写入
type PresenceCache struct {
	mu     sync.Mutex
	writes []string
	// Block 非 nil 时写入阻塞到通道关闭
	Block chan struct{}
}

// Writes 按写入顺序返回 "id:online" / "id:offline"
func (c *PresenceCache) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.writes)
}

func (c *PresenceCache) wait() {
	if c.Block != nil {
		<-c.Block
	}
}

func (c *PresenceCache) SetOnline(_ context.Context, userID uint64, _ time.Time) error {
	c.wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, fmt.Sprintf("%d:online", userID))
	return nil
}

func (c *PresenceCache) SetOffline(_ context.Context, userID uint64, _ time.Time) error {
	c.wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, fmt.Sprintf("%d:offline", userID))
	return nil
}
