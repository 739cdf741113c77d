package services

import (
	"context"
	"sync"
	"time"

	Logger "apex-http-service/pkg/logger"

	"github.com/gorilla/websocket"
)

// 实时事件类型
const (
	EventIncidentCreated = "incident.created"
	EventIncidentUpdated = "incident.updated"
	EventIncidentStatus  = "incident.status"
	EventDispatchCreated = "dispatch.created"
	EventDispatchStatus  = "dispatch.status"
	EventGuardStatus     = "guard.status"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
	liveSendBuffer = 32
)

// EventPublisher 业务服务通过它广播实时事件
type EventPublisher interface {
	Publish(eventType string, data interface{})
}

// LiveEvent 推送给监控端的消息
type LiveEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// InterfaceLiveService 实时监控推送
type InterfaceLiveService interface {
	EventPublisher
	Run(ctx context.Context) error
	Register(conn *websocket.Conn, userID uint, role string)
	ClientCount() int
}

type liveClient struct {
	conn   *websocket.Conn
	send   chan LiveEvent
	userID uint
	role   string
}

// LiveHub 管理所有 WebSocket 连接并广播事件
type LiveHub struct {
	register   chan *liveClient
	unregister chan *liveClient
	broadcast  chan LiveEvent
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*liveClient]struct{}
}

// NewLiveHub 创建实时推送中心
func NewLiveHub() *LiveHub {
	return &LiveHub{
		register:   make(chan *liveClient),
		unregister: make(chan *liveClient),
		broadcast:  make(chan LiveEvent, 256),
		done:       make(chan struct{}),
		clients:    make(map[*liveClient]struct{}),
	}
}

// Run 处理注册、注销和广播，ctx 取消后关闭全部连接
func (h *LiveHub) Run(ctx context.Context) error {
	defer func() {
		close(h.done)
		h.mu.Lock()
		for c := range h.clients {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case ev := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- ev:
				default:
					// 客户端消费过慢，断开
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish 非阻塞地投递事件，缓冲区满时丢弃
func (h *LiveHub) Publish(eventType string, data interface{}) {
	ev := LiveEvent{Type: eventType, Data: data, Timestamp: time.Now().UTC()}
	select {
	case h.broadcast <- ev:
	case <-h.done:
	default:
		Logger.Warning("实时事件队列已满，丢弃事件 %s", eventType)
	}
}

// Register 接管一个已升级的连接
func (h *LiveHub) Register(conn *websocket.Conn, userID uint, role string) {
	c := &liveClient{conn: conn, send: make(chan LiveEvent, liveSendBuffer), userID: userID, role: role}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// ClientCount 当前连接数
func (h *LiveHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump 只处理控制帧，连接断开后注销
func (h *LiveHub) readPump(c *liveClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LiveHub) writePump(c *liveClient) {
	ticker := time.NewTicker(livePingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func publishEvent(p EventPublisher, eventType string, data interface{}) {
	if p != nil {
		p.Publish(eventType, data)
	}
}
