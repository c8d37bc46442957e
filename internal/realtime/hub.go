package realtime

import (
	log "log/slog"
	"sync"
)

// Broadcaster 业务引擎只通过它发布事件, 不接触传输层
type Broadcaster interface {
	ToRoom(room string, evt Event, except ConnID)
	ToAll(evt Event, except ConnID)
	ToConn(id ConnID, evt Event)
	JoinUser(userID uint64, room string)
	InRoom(id ConnID, room string) bool
	IsOnline(userID uint64) bool
}

// Registry 连接生命周期 + 房间成员管理
type Registry interface {
	Broadcaster
	Register(c *Client) bool
	Unregister(id ConnID) bool
	Join(id ConnID, room string) bool
	Leave(id ConnID, room string) bool
}

// Hub 进程内唯一的连接注册表, 由 main 构造并注入各个服务
type Hub struct {
	mu      sync.RWMutex
	clients map[ConnID]*Client
	users   map[uint64]map[ConnID]*Client
	rooms   map[string]map[ConnID]*Client
	joined  map[ConnID]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[ConnID]*Client),
		users:   make(map[uint64]map[ConnID]*Client),
		rooms:   make(map[string]map[ConnID]*Client),
		joined:  make(map[ConnID]map[string]struct{}),
	}
}

// Register 返回 true 表示该用户从离线变为在线
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; ok {
		return false
	}
	h.clients[c.id] = c
	h.joined[c.id] = make(map[string]struct{})

	conns, ok := h.users[c.userID]
	if !ok {
		conns = make(map[ConnID]*Client)
		h.users[c.userID] = conns
	}
	conns[c.id] = c
	return len(conns) == 1
}

// Unregister 移除连接及其房间成员关系, 返回 true 表示该用户最后一条连接已断开
func (h *Hub) Unregister(id ConnID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return false
	}
	delete(h.clients, id)

	for room := range h.joined[id] {
		h.removeFromRoom(id, room)
	}
	delete(h.joined, id)

	conns := h.users[c.userID]
	delete(conns, id)
	if len(conns) == 0 {
		delete(h.users, c.userID)
		return true
	}
	return false
}

// Join 幂等, 返回是否发生变化
func (h *Hub) Join(id ConnID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.join(id, room)
}

// Leave 幂等, 返回是否发生变化
func (h *Hub) Leave(id ConnID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.joined[id]
	if !ok {
		return false
	}
	if _, in := rooms[room]; !in {
		return false
	}
	delete(rooms, room)
	h.removeFromRoom(id, room)
	return true
}

// JoinUser 将用户当前所有连接加入房间, 用于新建会话
func (h *Hub) JoinUser(userID uint64, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.users[userID] {
		h.join(id, room)
	}
}

func (h *Hub) InRoom(id ConnID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][id]
	return ok
}

func (h *Hub) IsOnline(userID uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// Rooms 连接当前加入的房间
func (h *Hub) Rooms(id ConnID) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(h.joined[id]))
	for room := range h.joined[id] {
		rooms = append(rooms, room)
	}
	return rooms
}

// ConnectionCount 当前连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ToRoom 投递给房间内除 except 外的所有连接
func (h *Hub) ToRoom(room string, evt Event, except ConnID) {
	frame, ok := h.encode(evt)
	if !ok {
		return
	}
	h.mu.RLock()
	slow := h.fanOut(h.rooms[room], frame, except)
	h.mu.RUnlock()
	h.kick(slow, evt.Name)
}

// ToAll 全局广播
func (h *Hub) ToAll(evt Event, except ConnID) {
	frame, ok := h.encode(evt)
	if !ok {
		return
	}
	h.mu.RLock()
	slow := h.fanOut(h.clients, frame, except)
	h.mu.RUnlock()
	h.kick(slow, evt.Name)
}

// ToConn 只发给单个连接
func (h *Hub) ToConn(id ConnID, evt Event) {
	frame, ok := h.encode(evt)
	if !ok {
		return
	}
	h.mu.RLock()
	c, exists := h.clients[id]
	h.mu.RUnlock()
	if !exists {
		return
	}
	if !c.enqueue(frame) {
		h.kick([]*Client{c}, evt.Name)
	}
}

// Shutdown 关闭所有连接, 各会话随后自行注销
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
	log.Info("Realtime hub shut down", "connections", len(clients))
}

func (h *Hub) join(id ConnID, room string) bool {
	rooms, ok := h.joined[id]
	if !ok {
		return false
	}
	if _, in := rooms[room]; in {
		return false
	}
	rooms[room] = struct{}{}

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[ConnID]*Client)
		h.rooms[room] = members
	}
	members[id] = h.clients[id]
	return true
}

func (h *Hub) removeFromRoom(id ConnID, room string) {
	members := h.rooms[room]
	delete(members, id)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// fanOut 调用方持有读锁; 入队失败的连接返回给调用方处理
func (h *Hub) fanOut(targets map[ConnID]*Client, frame []byte, except ConnID) []*Client {
	var slow []*Client
	for id, c := range targets {
		if id == except {
			continue
		}
		if !c.enqueue(frame) {
			slow = append(slow, c)
		}
	}
	return slow
}

// kick 队列溢出的连接直接断开, 不丢弃单个事件
func (h *Hub) kick(slow []*Client, event string) {
	for _, c := range slow {
		select {
		case <-c.done:
			continue
		default:
		}
		log.Warn("Outbound queue overflow, closing connection",
			"conn_id", c.id, "user_id", c.userID, "event", event)
		c.Close()
	}
}

func (h *Hub) encode(evt Event) ([]byte, bool) {
	frame, err := evt.encode()
	if err != nil {
		log.Error("Failed to encode realtime event", "event", evt.Name, "err", err)
		return nil, false
	}
	return frame, true
}
