package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openlumen/keylightctl/internal/control"
	"github.com/openlumen/keylightctl/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Loopback-only server; cross-origin pages on this machine are
	// trusted the same as any local process.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventJSON is the wire shape of one availability event.
type eventJSON struct {
	Type   string     `json:"type"`
	Device deviceJSON `json:"device"`
}

// handleEvents upgrades to WebSocket and streams device availability
// events until the client disconnects or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	defer conn.Close()

	logging.Info("Event stream opened",
		zap.String("remote_addr", r.RemoteAddr),
	)
	defer logging.Info("Event stream closed",
		zap.String("remote_addr", r.RemoteAddr),
	)

	notifications, cancel := s.registry.Subscribe()
	defer cancel()

	// Reader goroutine: consumes control frames and surfaces the
	// client's disconnect.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-clientGone:
			return

		case n, ok := <-notifications:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(notificationJSON(n)); err != nil {
				logging.Debug("Event stream write failed",
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				return
			}

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func notificationJSON(n control.Notification) eventJSON {
	return eventJSON{
		Type: n.Type.String(),
		Device: deviceJSON{
			Identity: n.Record.Identity,
			Name:     n.Record.Name,
			Addr:     n.Record.Addr(),
			LastSeen: n.Record.LastSeen,
		},
	}
}
