package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"condor_feed/internal/forward"
)

// StatsFunc returns feeder statistics to expose on /api/v1/stats.
type StatsFunc func() map[string]interface{}

// Server serves live positions and the current flight plan.
type Server struct {
	store *PositionStore
	port  int
	stats StatsFunc

	mu       sync.RWMutex
	planText string
}

// Config holds configuration for the position API server.
type Config struct {
	Port       int
	StaleAfter time.Duration
}

// NewServer creates a position API server backed by the given store.
func NewServer(store *PositionStore, cfg Config, stats StatsFunc) *Server {
	return &Server{
		store: store,
		port:  cfg.Port,
		stats: stats,
	}
}

// SetFlightPlan replaces the flight plan text served on /api/v1/flightplan.
func (s *Server) SetFlightPlan(text string) {
	s.mu.Lock()
	s.planText = text
	s.mu.Unlock()
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := ":" + itoa(s.port)
	log.Printf("Position API starting at http://localhost%s", addr)
	return http.ListenAndServe(addr, s.router())
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(10 * time.Second))

	// CORS for browser map clients.
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/positions", s.handleGetPositions)
		r.Post("/positions", s.handlePostPositions)
		r.Get("/flightplan", s.handleGetFlightPlan)
		r.Get("/stats", s.handleGetStats)
	})

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Server-Name, X-Port-Number")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions := s.store.Latest()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(positions),
		"positions": positions,
	})
}

// handlePostPositions accepts a batch of positions from a feeder. This is
// the receiving side of the forwarder's HTTP sink, so a single binary can
// both feed and serve.
func (s *Server) handlePostPositions(w http.ResponseWriter, r *http.Request) {
	var batch []forward.Position
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	if len(batch) == 0 {
		writeError(w, http.StatusBadRequest, "No positions specified")
		return
	}

	for _, p := range batch {
		s.store.Put(p)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accepted": len(batch),
		"server":   r.Header.Get("X-Server-Name"),
	})
}

func (s *Server) handleGetFlightPlan(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	text := s.planText
	s.mu.RUnlock()

	if text == "" {
		writeError(w, http.StatusNotFound, "No flight plan received yet")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"tracked": s.store.Len(),
	}
	if s.stats != nil {
		for k, v := range s.stats() {
			resp[k] = v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
