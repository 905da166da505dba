package websocket

import (
	"sync"
	"time"

	"WarRoster/internal/roster"

	"github.com/charmbracelet/log"
)

// Hub 管理只读的名单观看连接，按 viewer id 索引。
// 所有发往客户端的名单都经过 Run，保证同一客户端收到的版本不回退。
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan OutgoingMessage
	direct     chan directReq
	quit       chan struct{}
	once       sync.Once
	mu         sync.RWMutex

	names  roster.ListNames
	logger *log.Logger
}

type directReq struct {
	client  *Client
	message OutgoingMessage
}

func NewHub(names roster.ListNames, logger *log.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan OutgoingMessage, 16),
		direct:     make(chan directReq, 16),
		quit:       make(chan struct{}),
		names:      names,
		logger:     logger,
	}
}

func (h *Hub) Run() {
	h.logger.Info("feed hub started")

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("viewer joined", "id", c.ID, "viewers", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.ID]; ok && cur == c {
				h.drop(c)
				h.logger.Debug("viewer left", "id", c.ID, "viewers", len(h.clients))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for _, c := range h.clients {
				h.deliver(c, msg)
			}
			h.mu.Unlock()

		case req := <-h.direct:
			h.mu.Lock()
			if cur, ok := h.clients[req.client.ID]; ok && cur == req.client {
				h.deliver(cur, req.message)
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for _, c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			h.logger.Info("feed hub stopped")
			return
		}
	}
}

// deliver 需持有 h.mu。
func (h *Hub) deliver(c *Client, msg OutgoingMessage) {
	if msg.version < c.version {
		return
	}
	select {
	case c.Send <- msg:
		c.version = msg.version
	default:
		// 消费太慢，直接断开，重连时会拿到新快照
		h.drop(c)
		h.logger.Warn("viewer too slow, dropped", "id", c.ID)
	}
}

// drop 需持有 h.mu。
func (h *Hub) drop(c *Client) {
	delete(h.clients, c.ID)
	close(c.Send)
}

// BroadcastRoster 推送最新名单，可直接挂到 Service.OnChange。
func (h *Hub) BroadcastRoster(l roster.Listing) {
	msg := rosterMessage(l, h.names, time.Now().Unix())
	select {
	case h.broadcast <- msg:
	case <-h.quit:
	}
}

// SendRoster 只发给单个客户端（连接时的快照、refresh）。
func (h *Hub) SendRoster(c *Client, l roster.Listing) {
	req := directReq{client: c, message: rosterMessage(l, h.names, time.Now().Unix())}
	select {
	case h.direct <- req:
	case <-h.quit:
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Close() {
	h.once.Do(func() { close(h.quit) })
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}
