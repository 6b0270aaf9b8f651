package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"latencyglobe/internal/api"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// StreamMessage is one frame pushed on /api/stream.
type StreamMessage struct {
	Type string            `json:"type"`
	Data api.StateResponse `json:"data"`
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.CORSOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// handleStream pushes the tracker state to a websocket client: once on
// connect, then after every change. Slow clients skip to the latest state.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	id, updates := s.tracker.Subscribe()
	defer s.tracker.Unsubscribe(id)
	log := s.log.With(zap.String("subscriber", id))
	log.Debug("stream opened")

	done := make(chan struct{})
	go s.readPump(conn, done, log)

	if err := writeState(conn, "snapshot", stateResponse(s.tracker.Snapshot())); err != nil {
		log.Debug("stream write", zap.Error(err))
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case st, ok := <-updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := writeState(conn, "state", stateResponse(st)); err != nil {
				log.Debug("stream write", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("stream ping", zap.Error(err))
				return
			}
		case <-done:
			log.Debug("stream closed by peer")
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readPump drains client frames so pongs and close frames are handled.
// Clients are not expected to send anything else.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}, log *zap.Logger) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("stream read", zap.Error(err))
			}
			return
		}
	}
}

func writeState(conn *websocket.Conn, kind string, st api.StateResponse) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(StreamMessage{Type: kind, Data: st})
}
