package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval = 45 * time.Second
	readDeadline = 90 * time.Second
)

var upgrader = websocket.Upgrader{
	// Origin checks belong to the external auth collaborator in front of us.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a websocket subscription on the hub.
// The connection stays open until the client disconnects or the subscriber
// is dropped on overflow.
func ServeWS(hub *Hub, logger *zap.Logger) http.HandlerFunc {
	log := logger.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("Websocket upgrade failed", zap.Error(err))
			return
		}

		sub := hub.Subscribe()

		// writer: drain the subscriber queue onto the wire
		go func() {
			defer conn.Close()
			ping := time.NewTicker(pingInterval)
			defer ping.Stop()

			for {
				select {
				case event, ok := <-sub.Events():
					if !ok {
						// dropped or unsubscribed
						_ = conn.WriteMessage(websocket.CloseMessage,
							websocket.FormatCloseMessage(websocket.CloseGoingAway, "resubscribe"))
						return
					}
					if err := conn.WriteJSON(event); err != nil {
						hub.Unsubscribe(sub)
						return
					}
				case <-ping.C:
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						hub.Unsubscribe(sub)
						return
					}
				}
			}
		}()

		// reader: we only care about liveness and close
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readDeadline))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unsubscribe(sub)
	}
}
