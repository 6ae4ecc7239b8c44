// Package web serves the workspace over a JSON API with server-sent events.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	workos "github.com/madhatter5501/WorkOS"
	"github.com/madhatter5501/WorkOS/internal/broadcast"
)

// Server is the workspace HTTP server.
type Server struct {
	ws     *workos.Workspace
	logger *slog.Logger
	server *http.Server

	// SSE clients
	sseClients   map[chan sseEvent]bool
	sseMu        sync.RWMutex
	sseSeq       atomic.Uint64
	shutdownOnce sync.Once
}

// sseEvent is one message pushed to browsers. Key is the store key a storage
// event refers to and is empty for other events.
type sseEvent struct {
	ID   uint64
	Name string
	Key  string
	Data any
}

// NewServer creates a server for ws.
func NewServer(ws *workos.Workspace, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ws:         ws,
		logger:     logger,
		sseClients: make(map[chan sseEvent]bool),
	}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Session and accounts
	mux.HandleFunc("GET /api/session", s.apiGetSession)
	mux.HandleFunc("POST /api/session", s.apiLogin)
	mux.HandleFunc("DELETE /api/session", s.apiLogout)
	mux.HandleFunc("GET /api/users", s.apiGetUsers)
	mux.HandleFunc("POST /api/users", s.apiRegister)
	mux.HandleFunc("PATCH /api/users/{id}", s.apiUpdateUser)

	// Board
	mux.HandleFunc("GET /api/board", s.apiGetBoard)
	mux.HandleFunc("GET /api/tasks/{id}", s.apiGetTask)
	mux.HandleFunc("POST /api/tasks", s.apiCreateTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.apiEditTask)
	mux.HandleFunc("POST /api/tasks/{id}/move", s.apiMoveTask)
	mux.HandleFunc("POST /api/tasks/{id}/comments", s.apiAddComment)
	mux.HandleFunc("POST /api/tasks/{id}/notify", s.apiNotify)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.apiDeleteTask)
	mux.HandleFunc("GET /api/notice", s.apiGetNotice)
	mux.HandleFunc("DELETE /api/notice", s.apiDismissNotice)

	// Calendar and chat
	mux.HandleFunc("GET /api/calendar", s.apiGetCalendar)
	mux.HandleFunc("POST /api/calendar/move", s.apiCalendarMove)
	mux.HandleFunc("POST /api/meetings", s.apiCreateMeeting)
	mux.HandleFunc("GET /api/chat", s.apiGetChat)
	mux.HandleFunc("POST /api/chat", s.apiSendChat)
	mux.HandleFunc("GET /api/dashboard", s.apiGetDashboard)

	// AI
	mux.HandleFunc("GET /api/report", s.apiGetReport)
	mux.HandleFunc("POST /api/report", s.apiGenerateReport)
	mux.HandleFunc("GET /api/report/history/{index}", s.apiGetHistoryItem)
	mux.HandleFunc("GET /api/strategy", s.apiGetStrategy)
	mux.HandleFunc("POST /api/strategy/evaluate", s.apiEvaluateAll)
	mux.HandleFunc("POST /api/strategy/evaluate/{id}", s.apiEvaluateTask)

	// Room and status
	mux.HandleFunc("GET /api/room", s.apiGetRoom)
	mux.HandleFunc("PUT /api/room/live", s.apiSetRoomLive)
	mux.HandleFunc("GET /api/status", s.apiGetStatus)

	// SSE for real-time updates
	mux.HandleFunc("GET /api/events", s.handleSSE)

	return s.withLogging(mux)
}

// Start serves on addr and forwards storage events to SSE clients until ctx is
// done or the server fails.
func (s *Server) Start(ctx context.Context, addr string) error {
	if err := s.forwardEvents(ctx); err != nil {
		return err
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams and AI calls outlive a fixed write timeout
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting workspace server", "addr", addr)
	return s.server.ListenAndServe()
}

// forwardEvents relays every storage event on the bus, including this
// workspace's own writes, to connected browsers.
func (s *Server) forwardEvents(ctx context.Context) error {
	events, err := s.ws.Bus().Subscribe(ctx)
	if err != nil {
		return err
	}
	go func() {
		for e := range events {
			s.Broadcast(storageEvent(e))
		}
	}()
	return nil
}

func storageEvent(e broadcast.Event) sseEvent {
	return sseEvent{Name: "storage", Key: e.Key, Data: e}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		// Close all SSE clients
		s.sseMu.Lock()
		for ch := range s.sseClients {
			close(ch)
			delete(s.sseClients, ch)
		}
		s.sseMu.Unlock()
	})

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Broadcast sends an SSE event to all clients.
func (s *Server) Broadcast(event sseEvent) {
	event.ID = s.sseSeq.Add(1)

	s.sseMu.RLock()
	defer s.sseMu.RUnlock()

	for ch := range s.sseClients {
		select {
		case ch <- event:
		default:
			// Client too slow, skip
		}
	}
}

// withLogging wraps a handler with request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// jsonCreated writes a 201 JSON response.
func (s *Server) jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// jsonError writes a JSON error response.
func (s *Server) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
