package network

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/MRamiBalles/reactor-sim/internal/engine"
	"github.com/MRamiBalles/reactor-sim/internal/infra/storage"
	"github.com/MRamiBalles/reactor-sim/internal/platform/logger"
	"github.com/MRamiBalles/reactor-sim/internal/telemetry"
)

// Server exposes the driver over HTTP and WebSocket.
type Server struct {
	driver  *engine.Driver
	hub     *Hub
	recap   *storage.Recap
	limiter *rate.Limiter
	logger  *logger.Logger

	upgrader websocket.Upgrader
}

// NewServer creates the API. recap may be nil, in which case the journal
// recap view is unavailable.
func NewServer(hub *Hub, recap *storage.Recap, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		driver:  hub.driver,
		hub:     hub,
		recap:   recap,
		limiter: rate.NewLimiter(rate.Limit(hub.buffers.CommandsPerSecond), hub.buffers.CommandBurst),
		logger:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Control panels are served from anywhere during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes returns the API's handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.HandleState)
	mux.HandleFunc("/api/action", s.HandleAction)
	mux.HandleFunc("/api/history", s.HandleHistory)
	mux.HandleFunc("/api/journal", s.HandleJournal)
	mux.HandleFunc("/metrics", s.driver.Metrics().Handler())
	mux.HandleFunc("/metrics/prometheus", s.driver.Metrics().PrometheusHandler())
	mux.HandleFunc("/ws", s.ServeWS)
	return mux
}

// HandleState returns the current frame.
// GET /api/state
func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.driver.Snapshot())
}

// ActionRequest is the body of POST /api/action.
type ActionRequest struct {
	Type  string   `json:"type"`
	Value *float64 `json:"value,omitempty"`
	Actor string   `json:"actor,omitempty"`
}

// HandleAction executes one operator command and returns the resulting
// frame.
// POST /api/action {"type":"setPowerLoad","value":1200}
func (s *Server) HandleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ActionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		jsonError(w, "Missing type", http.StatusBadRequest)
		return
	}
	if !s.limiter.Allow() {
		s.driver.Metrics().RecordThrottled()
		jsonError(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	actor := req.Actor
	if actor == "" {
		actor = "http"
	}
	frame, err := s.driver.Execute(engine.Command{Name: req.Type, Value: req.Value, Actor: actor})
	if err != nil {
		jsonError(w, err.Error(), commandStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrAutoControl):
		return http.StatusConflict
	case errors.Is(err, engine.ErrUnknownCommand),
		errors.Is(err, engine.ErrInvalidValue),
		errors.Is(err, engine.ErrNoGrid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	ReactorID string             `json:"reactorId"`
	Capacity  int                `json:"capacity"`
	Samples   []telemetry.Sample `json:"samples"`
}

// HandleHistory returns the telemetry ring, oldest first.
// GET /api/history?limit=N
func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		jsonError(w, "Invalid limit", http.StatusBadRequest)
		return
	}

	resp := HistoryResponse{ReactorID: s.driver.ReactorID(), Samples: []telemetry.Sample{}}
	if rec := s.driver.Recorder(); rec != nil {
		samples := rec.History().Samples()
		if limit > 0 && limit < len(samples) {
			samples = samples[len(samples)-limit:]
		}
		resp.Capacity = rec.History().Cap()
		resp.Samples = samples
	}
	writeJSON(w, http.StatusOK, resp)
}

// ServeWS upgrades the connection and attaches a client to the hub.
// GET /ws?operator=NAME
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	if s.hub.full() {
		jsonError(w, "Too many clients", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.driver.Metrics().RecordWSError()
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := r.URL.Query().Get("operator")
	if id == "" {
		id = "ws-" + uuid.NewString()[:8]
	}
	client := NewClient(s.hub, conn, id)
	if !s.hub.join(r.Context(), client) {
		conn.Close()
		return
	}

	// Greet with the current state so the panel does not wait for a frame.
	if payload, err := json.Marshal(s.driver.Snapshot()); err == nil {
		client.replies <- payload
	}

	go client.WritePump()
	go client.ReadPump()
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
