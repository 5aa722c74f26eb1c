// Package status serves a local operator view of the node: a JSON snapshot
// endpoint for scripts and a websocket that streams every telemetry and
// safety update as it happens. It listens on the LAN only and carries no
// auth; it is a bench tool, not the control channel.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thomas-Heisig/MODAX/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Bench tool on a trusted LAN; browsers on other hosts may connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Snapshot is the node state as last observed by the control loop.
type Snapshot struct {
	DeviceID    string               `json:"device_id"`
	Sample      *domain.SensorSample `json:"sample,omitempty"`
	SafetyState *domain.SafetyState  `json:"safety_state,omitempty"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type event struct {
	Kind   string               `json:"kind"` // "sample" or "safety"
	Sample *domain.SensorSample `json:"sample,omitempty"`
	Safety *domain.SafetyState  `json:"safety,omitempty"`
}

type Server struct {
	deviceID string
	srv      *http.Server

	mu    sync.Mutex
	snap  Snapshot
	conns map[*websocket.Conn]chan []byte
}

func NewServer(addr, deviceID string) *Server {
	s := &Server{
		deviceID: deviceID,
		snap:     Snapshot{DeviceID: deviceID},
		conns:    make(map[*websocket.Conn]chan []byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return s.srv.Shutdown(shctx)
	}
}

// OnSample and OnSafety plug into the control loop hooks.

func (s *Server) OnSample(sample domain.SensorSample) {
	s.mu.Lock()
	cp := sample
	s.snap.Sample = &cp
	s.snap.UpdatedAt = time.Now()
	s.mu.Unlock()
	s.broadcast(event{Kind: "sample", Sample: &cp})
}

func (s *Server) OnSafety(state domain.SafetyState) {
	s.mu.Lock()
	cp := state
	s.snap.SafetyState = &cp
	s.snap.UpdatedAt = time.Now()
	s.mu.Unlock()
	s.broadcast(event{Kind: "safety", Safety: &cp})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	snap := s.snap
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.Printf("status: encode snapshot: %v", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("status: websocket upgrade: %v", err)
		return
	}

	out := make(chan []byte, 32)
	s.mu.Lock()
	s.conns[conn] = out
	s.mu.Unlock()

	go s.writePump(conn, out)

	// Reader exists only to observe the close handshake.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(conn)
}

func (s *Server) writePump(conn *websocket.Conn, out <-chan []byte) {
	for msg := range out {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.drop(conn)
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	out, ok := s.conns[conn]
	if ok {
		delete(s.conns, conn)
	}
	s.mu.Unlock()
	if ok {
		close(out)
	}
	conn.Close()
}

func (s *Server) broadcast(ev event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("status: encode event: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, out := range s.conns {
		select {
		case out <- payload:
		default:
			// Slow consumer; it will be dropped on its next write error
			// rather than stalling the loop here.
			_ = conn
		}
	}
}
