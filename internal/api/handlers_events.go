package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard is served from a different origin in development;
		// tighten this when the deployment topology is fixed.
		return true
	},
}

// handleTargetEvents upgrades to a WebSocket and streams ChangeEvents
// for a single target as they're published on the bus, until the
// client disconnects or the request context is cancelled.
func (s *Server) handleTargetEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, ok := s.ownedTarget(w, r)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("upgrading to websocket", "error", err)
			return
		}
		defer conn.Close()

		subName := "ws-" + uuid.New().String()
		events, unsubscribe := s.bus.Subscribe(subName)
		defer unsubscribe()

		for {
			select {
			case <-r.Context().Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if event.TargetID != existing.ID {
					continue
				}
				if err := conn.WriteJSON(event); err != nil {
					return
				}
			}
		}
	}
}
