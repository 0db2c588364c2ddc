package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/parallaxd/internal/compositor"
	"github.com/bryanchriswhite/parallaxd/internal/config"
	"github.com/bryanchriswhite/parallaxd/internal/workspace"
)

// Server exposes daemon state over HTTP: compositor status, monitors,
// workspaces and a websocket stream of workspace changes.
type Server struct {
	router    *mux.Router
	adapter   compositor.Adapter
	tracker   *workspace.Tracker
	configMgr *config.Manager
	upgrader  websocket.Upgrader
}

// NewServer creates the API server around a connected adapter and tracker.
func NewServer(adapter compositor.Adapter, tracker *workspace.Tracker, configMgr *config.Manager) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		adapter:   adapter,
		tracker:   tracker,
		configMgr: configMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local status API, origin checks add nothing.
				return true
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/monitors", s.handleMonitors).Methods("GET")
	api.HandleFunc("/workspaces", s.handleWorkspaces).Methods("GET")
	api.HandleFunc("/events", s.handleEventStream)

	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start blocks serving HTTP on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Printf("Starting status API on http://localhost%s\n", addr)
	return http.ListenAndServe(addr, s.enableCORS(s.router))
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	Compositor string                            `json:"compositor"`
	Kind       string                            `json:"kind"`
	Model      string                            `json:"model"`
	Current    string                            `json:"current"`
	Monitors   map[string]workspace.MonitorState `json:"monitors"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Compositor: s.adapter.Name(),
		Kind:       s.adapter.Kind().String(),
		Model:      s.adapter.Model().String(),
		Current:    s.adapter.CurrentWorkspace().String(),
		Monitors:   s.tracker.States(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := s.adapter.Monitors()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(monitors)
}

func (s *Server) handleWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces, err := s.adapter.Workspaces()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(workspaces)
}

// eventMessage is the websocket frame for one workspace change.
type eventMessage struct {
	Monitor  string `json:"monitor"`
	Old      string `json:"old"`
	New      string `json:"new"`
	Steal    bool   `json:"steal"`
	Vertical bool   `json:"vertical"`
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v\n", err)
		return
	}
	defer conn.Close()

	updates := s.tracker.Subscribe()
	defer s.tracker.Unsubscribe(updates)

	for ev := range updates {
		msg := eventMessage{
			Monitor:  ev.Monitor,
			Old:      ev.Old.String(),
			New:      ev.New.String(),
			Steal:    ev.Steal,
			Vertical: ev.Vertical,
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.configMgr.Get()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
