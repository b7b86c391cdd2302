package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/fraudwatch/internal/auth"
)

// HandleWebSocket upgrades an authenticated admin request and streams hub
// messages to it. Cross-origin upgrades are rejected by the library's
// default origin check.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn, auth.UserID(r.Context()))
		client.Run(r.Context())
		conn.Close(ws.StatusNormalClosure, "")
	}
}
