package coordinator

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 20 * time.Second
)

// Server tracks which device holds the floor. The holder keeps it until it
// releases or its connection closes.
type Server struct {
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	logger   *slog.Logger

	mu     sync.Mutex
	active string
	holder string
}

func NewServer(logger *slog.Logger) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mux:    http.NewServeMux(),
		logger: logger,
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("/", s.handleWS)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Active is the device currently holding the floor, or "".
func (s *Server) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	logger := s.logger.With("conn", connID, "remote_addr", r.RemoteAddr)
	logger.Debug("device connected")
	defer func() {
		if device := s.dropConn(connID); device != "" {
			logger.Info("holder disconnected, floor released", "device", device)
		}
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.ping(conn, done)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("reading message", "error", err)
			}
			return
		}

		switch msg.Type {
		case TypeClaim:
			resp := s.claim(msg.Device, connID)
			logger.Info("claim", "device", msg.Device, "result", resp.Type, "active", resp.Active)
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(resp); err != nil {
				logger.Debug("writing response", "error", err)
				return
			}
		case TypeRelease:
			if s.release(msg.Device) {
				logger.Info("released", "device", msg.Device)
			}
		default:
			logger.Debug("ignoring message", "type", msg.Type)
		}
	}
}

func (s *Server) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) claim(device, connID string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == "" || s.active == device {
		s.active = device
		s.holder = connID
		return Message{Type: TypeGranted}
	}
	return Message{Type: TypeDenied, Active: s.active}
}

func (s *Server) release(device string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if device == "" || s.active != device {
		return false
	}
	s.active = ""
	s.holder = ""
	return true
}

// dropConn frees the floor if connID held it and returns the released device.
func (s *Server) dropConn(connID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.holder != connID || s.active == "" {
		return ""
	}
	device := s.active
	s.active = ""
	s.holder = ""
	return device
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"active": s.Active(),
	})
}
