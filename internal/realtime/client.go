package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ConnID 进程内唯一的连接标识
type ConnID string

type ClientConfig struct {
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
	ReadLimit  int64
	SendBuffer int
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		WriteWait:  10 * time.Second,
		PongWait:   60 * time.Second,
		PingPeriod: 25 * time.Second,
		ReadLimit:  64 * 1024,
		SendBuffer: 256,
	}
}

// Client 一条长连接; 所有下行帧经 send 队列由 WritePump 串行写出
type Client struct {
	id     ConnID
	userID uint64
	conn   *websocket.Conn
	cfg    ClientConfig

	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewClient conn 可以为 nil, 此时由调用方自行消费 Outbound
func NewClient(userID uint64, conn *websocket.Conn, cfg ClientConfig) *Client {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultClientConfig().SendBuffer
	}
	return &Client{
		id:     ConnID(uuid.NewString()),
		userID: userID,
		conn:   conn,
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() ConnID { return c.id }

func (c *Client) UserID() uint64 { return c.userID }

// Outbound 待写出的下行帧
func (c *Client) Outbound() <-chan []byte { return c.send }

// Done 连接被关闭或被踢出时关闭
func (c *Client) Done() <-chan struct{} { return c.done }

// Close 可重复调用
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// enqueue 非阻塞入队, 队列满或连接已关闭时返回 false
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// ReadPump 阻塞读取上行帧直到连接断开, 每帧同步交给 handle 处理
func (c *Client) ReadPump(handle func(frame []byte)) error {
	c.conn.SetReadLimit(c.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		if msgType != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

// WritePump 写出下行帧并定时 ping, 退出时关闭底层连接
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait))
			return
		}
	}
}
