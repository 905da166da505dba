package websocket

import (
	"context"
	"net/http"
	"time"

	"WarRoster/internal/roster"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Lister 是 feed 需要的读接口，*roster.Service 满足。
type Lister interface {
	ListAll(ctx context.Context) (roster.Listing, error)
}

// GET /ws  先注册再读快照，注册之后的变更不会漏掉；旧快照由 Hub 按版本跳过
func ServeWS(hub *Hub, svc Lister) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		client := &Client{
			ID:       uuid.NewString(),
			Conn:     conn,
			Send:     make(chan OutgoingMessage, 32),
			Hub:      hub,
			snapshot: svc.ListAll,
		}
		if !hub.join(client) {
			_ = conn.Close()
			return
		}
		go client.writePump()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		l, err := svc.ListAll(ctx)
		cancel()
		if err != nil {
			hub.logger.Error("snapshot failed", "id", client.ID, "err", err)
			// Send 被关闭后 writePump 发送 close 帧
			hub.leave(client)
			return
		}
		hub.SendRoster(client, l)

		go client.readPump()
	}
}
