package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"election-ledger/internal/api/interfaces"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking happens in the CORS middleware; the status feed
		// carries only public data.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

const statusPushInterval = 2 * time.Second

// ElectionStatusWebSocket streams the live election status frame: chain
// head, ballot counters, and quorum progress. Frames are pushed on a fixed
// interval until the client disconnects.
func ElectionStatusWebSocket(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		electionID, ok := parseElectionID(c)
		if !ok {
			return
		}

		// Reject before upgrading so a bad id gets a proper HTTP error
		if _, err := services.ElectionService().GetElection(electionID); err != nil {
			respondDomainError(c, services, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			services.GetLogger().Error("WebSocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		services.GetLogger().Info("Status feed connected - election: %d, client_ip: %s", electionID, c.ClientIP())

		// Reader goroutine: the client never sends data frames, but the
		// read loop is what notices a closed connection.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(statusPushInterval)
		defer ticker.Stop()

		if err := pushStatus(conn, services, electionID); err != nil {
			return
		}

		for {
			select {
			case <-done:
				services.GetLogger().Info("Status feed disconnected - election: %d", electionID)
				return
			case <-ticker.C:
				if err := pushStatus(conn, services, electionID); err != nil {
					return
				}
			}
		}
	}
}

func pushStatus(conn *websocket.Conn, services interfaces.Services, electionID int64) error {
	status, err := services.ElectionService().Status(electionID)
	if err != nil {
		services.GetLogger().Error("Status frame build failed: %v", err)
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(WebSocketMessage{
		Type:      "election_status",
		Data:      status,
		Timestamp: time.Now().Unix(),
	})
}
