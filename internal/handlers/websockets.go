package handlers

import (
	"net/http"
	"time"

	"echopath/internal/logger"
	"echopath/internal/services/websocket"

	gorilla "github.com/gorilla/websocket"
)

// Upgrader only accepts same-host origins; the monitor listens on localhost.
var Upgrader = gorilla.Upgrader{}

// FeedWebsocketHandler streams every new announcement as JSON.
func FeedWebsocketHandler(hub *websocket.HubService, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warning("[MONITOR] WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		hub.Register(connection)
		defer hub.Unregister(connection)

		// Clients only listen; reading detects the disconnect.
		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				return
			}
		}
	}
}
