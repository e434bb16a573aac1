package ws

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/agent-observatory/backend/internal/config"
	"github.com/agent-observatory/backend/internal/engine"
	"github.com/agent-observatory/backend/internal/event"
	"github.com/agent-observatory/backend/internal/health"
	"github.com/agent-observatory/backend/internal/metrics"
)

// maxEventBody bounds a single ingested record. Tool responses are
// summarized client-side by the hook shims; anything bigger is abuse.
const maxEventBody = 1 << 20

type Server struct {
	engine          *engine.Engine
	broadcaster     *Broadcaster
	probe           *health.Probe
	frontendDir     string
	dev             bool
	embeddedHandler http.Handler
	allowedOrigins  map[string]bool
	allowedHosts    map[string]bool
}

func NewServer(eng *engine.Engine, broadcaster *Broadcaster, probe *health.Probe, frontendDir string, dev bool, embeddedHandler http.Handler, allowedOrigins []string) *Server {
	s := &Server{
		engine:          eng,
		broadcaster:     broadcaster,
		probe:           probe,
		frontendDir:     frontendDir,
		dev:             dev,
		embeddedHandler: embeddedHandler,
		allowedOrigins:  make(map[string]bool),
		allowedHosts:    make(map[string]bool),
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/sources/", s.handleSourceRoutes)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	if s.dev {
		log.Printf("Serving frontend from filesystem: %s", s.frontendDir)
		mux.Handle("/", http.FileServer(http.Dir(s.frontendDir)))
	} else if s.embeddedHandler != nil {
		log.Println("Serving embedded frontend")
		mux.Handle("/", s.embeddedHandler)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	log.Printf("WebSocket client connected: %s", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()
}

// handleEvents is the ingestion boundary: one JSON record per call. It
// always acknowledges — malformed records are dropped, not rejected, so a
// misbehaving hook script can never wedge its producer on retries.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	accepted := s.engine.Ingest(body)
	if !accepted {
		log.Printf("Dropped unrecognized event record (%d bytes)", len(body))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]bool{"accepted": accepted})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.engine.Snapshot())
}

// configUpdate is the PATCH-style body accepted by POST /api/config.
// Absent sections keep their current values.
type configUpdate struct {
	Core    *config.CoreConfig    `json:"core"`
	Privacy *config.PrivacyConfig `json:"privacy"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.engine.Config())

	case http.MethodPost:
		var update configUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "invalid config body", http.StatusBadRequest)
			return
		}
		cfg := *s.engine.Config()
		if update.Core != nil {
			cfg.Core = *update.Core
		}
		if update.Privacy != nil {
			cfg.Privacy = *update.Privacy
		}
		cfg.Normalize()
		s.engine.SetConfig(&cfg)
		log.Println("Configuration updated via API")
		s.broadcaster.PublishState(s.engine.Snapshot())

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&cfg)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSourceRoutes dispatches /api/sources/{source}/disconnect.
func (s *Server) handleSourceRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sources/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[1] != "disconnect" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source, err := url.PathUnescape(parts[0])
	if err != nil || source == "" {
		http.Error(w, "invalid source", http.StatusBadRequest)
		return
	}

	count := s.engine.DisconnectSource(event.Source(source))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"disconnected": count})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.probe.Status())
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
