// Package gateway is the HTTP surface of the SignLink server: the WebSocket
// session endpoint, the landmark template API, health probes, Prometheus
// metrics, and static sign-clip assets.
//
// Each WebSocket connection owns one chat session. The gateway creates a
// session controller per connection, feeds client events into it, and pushes
// state snapshots and landmark overlays back out.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/junghee-19/SignLink/internal/health"
	"github.com/junghee-19/SignLink/internal/landmarks"
	"github.com/junghee-19/SignLink/internal/observe"
	"github.com/junghee-19/SignLink/internal/session"
	"github.com/junghee-19/SignLink/internal/transcript"
	"github.com/junghee-19/SignLink/internal/vocab"
	"github.com/junghee-19/SignLink/pkg/provider/landmark"
)

// Config carries the Server's dependencies.
type Config struct {
	// Session is the per-connection controller template. The gateway fills
	// Notify and NotifyOverlay for each accepted connection.
	Session session.Config

	// Templates serves GET /landmarks/{sign} and POST /classify.
	Templates landmarks.Store

	// Transcripts receives every appended chat message. May be nil.
	Transcripts transcript.Store

	// Health serves /healthz and /readyz. Nil disables the probes.
	Health *health.Handler

	// Metrics instruments HTTP requests and session counts. May be nil.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// StaticDir is served under /assets/. Empty disables static serving.
	StaticDir string

	// OriginPatterns whitelists WebSocket origins. Empty means same-origin
	// only.
	OriginPatterns []string
}

// Server routes HTTP traffic to the session and template handlers.
type Server struct {
	cfg     Config
	log     *slog.Logger
	handler http.Handler

	// mu guards sessTmpl, the controller template handed to new sessions.
	// UpdateSession swaps parts of it on config reload.
	mu       sync.RWMutex
	sessTmpl session.Config
}

// New builds the Server and its route table.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg, log: cfg.Logger, sessTmpl: cfg.Session}
	if s.log == nil {
		s.log = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /landmarks/{sign}", s.handleLandmarks)
	mux.HandleFunc("POST /classify", s.handleClassify)
	mux.Handle("GET /metrics", promhttp.Handler())
	if cfg.Health != nil {
		cfg.Health.Register(mux)
	}
	if cfg.StaticDir != "" {
		mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(cfg.StaticDir))))
	}

	s.handler = observe.Middleware(cfg.Metrics)(mux)
	return s
}

// Handler returns the fully assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// UpdateSession swaps the vocabulary table and capture delay handed to new
// sessions. Sessions already running keep the settings they started with.
func (s *Server) UpdateSession(table *vocab.Table, captureDelay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if table != nil {
		s.sessTmpl.Vocabulary = table
	}
	s.sessTmpl.CaptureDelay = captureDelay
}

// sessionConfig returns a copy of the current controller template.
func (s *Server) sessionConfig() session.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessTmpl
}

// landmarkResponse is the GET /landmarks/{sign} body, mirroring the template
// wire format.
type landmarkResponse struct {
	Sign          string             `json:"sign"`
	Alias         string             `json:"alias,omitempty"`
	Video         string             `json:"video,omitempty"`
	FramesSampled int                `json:"frames_sampled,omitempty"`
	Average       []landmark.Point   `json:"average"`
	Frames        [][]landmark.Point `json:"frames,omitempty"`
}

// errorResponse is the JSON error body. Suggestion carries the closest known
// sign on unknown-sign lookups.
type errorResponse struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

// handleLandmarks serves a stored landmark template. Unknown signs get a 404
// with a "did you mean" suggestion when a close match exists.
func (s *Server) handleLandmarks(w http.ResponseWriter, r *http.Request) {
	sign := r.PathValue("sign")

	tpl, err := s.cfg.Templates.Get(r.Context(), sign)
	if errors.Is(err, landmarks.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:      "unknown sign: " + sign,
			Suggestion: landmarks.Suggest(r.Context(), s.cfg.Templates, sign),
		})
		return
	}
	if err != nil {
		s.log.Error("landmark lookup failed", "sign", sign, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "template lookup failed"})
		return
	}

	avg := tpl.Average
	if avg == nil {
		avg = []landmark.Point{}
	}
	writeJSON(w, http.StatusOK, landmarkResponse{
		Sign:          tpl.Sign,
		Alias:         tpl.Alias,
		Video:         tpl.Video,
		FramesSampled: tpl.FramesSampled,
		Average:       avg,
		Frames:        tpl.Frames,
	})
}

// classifyRequest is the POST /classify body.
type classifyRequest struct {
	Points []landmark.Point `json:"points"`
}

// classifyResponse is the POST /classify reply.
type classifyResponse struct {
	Sign string `json:"sign"`
}

// handleClassify matches a set of landmark points against the stored
// templates and returns the nearest sign.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Points) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "points are required"})
		return
	}

	sign, err := s.cfg.Templates.Classify(r.Context(), req.Points)
	if errors.Is(err, landmarks.ErrNoMatch) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no matching sign"})
		return
	}
	if err != nil {
		s.log.Error("classification failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "classification failed"})
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{Sign: sign})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
