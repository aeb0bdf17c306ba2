package handler

import (
	"net/http"

	"grievance/backend/internal/livefeed"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дашборд може жити на іншому origin; доступ обмежує admin JWT
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeFeed оновлює HTTP-з'єднання до WebSocket і підписує адміна на події його департаменту.
func (h *Handler) ServeFeed(c *gin.Context) {
	claims := c.MustGet(claimsKey).(*Claims)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade вже записав відповідь
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := livefeed.NewClient(h.Hub, conn, claims.Department)
	if err := h.Hub.Register(client); err != nil {
		conn.Close()
		return
	}
	client.Run()
}
