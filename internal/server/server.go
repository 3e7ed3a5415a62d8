// Package server exposes the ask endpoint and streams answer events
// over NDJSON and WebSocket transports.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"askvid/internal/agent"
	"askvid/internal/metrics"
	"askvid/internal/models"
	"askvid/internal/ratelimit"
	"askvid/internal/stream"
)

// maxQuestionLen bounds inbound question length.
const maxQuestionLen = 500

// videoHosts are the recognized video-host domains for inbound URLs.
var videoHosts = []string{"youtube.com", "youtu.be"}

// Config holds the server's request-handling knobs.
type Config struct {
	TrustProxy  bool
	TrustedHops int
}

// Server wires the orchestrator, admission control and stream
// transports together. One instance serves all requests.
type Server struct {
	agent    *agent.Agent
	limiter  *ratelimit.Limiter
	metrics  *metrics.Collector
	logger   *slog.Logger
	cfg      Config
	upgrader websocket.Upgrader
}

// New creates a server around a shared agent instance.
func New(ag *agent.Agent, limiter *ratelimit.Limiter, mc *metrics.Collector, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		agent:   ag,
		limiter: limiter,
		metrics: mc,
		logger:  logger,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routed HTTP handler with logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/ask/ws", s.handleAskWS)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	return LoggingMiddleware(s.logger)(mux)
}

// AskRequest is the inbound payload.
type AskRequest struct {
	URL      string `json:"url"`
	Question string `json:"question"`
}

// Validate rejects malformed requests before any downstream work.
func (r *AskRequest) Validate() error {
	if !hasVideoHost(r.URL) {
		return fmt.Errorf("%w: url must reference a recognized video host", models.ErrValidationFailed)
	}
	q := strings.TrimSpace(r.Question)
	if q == "" {
		return fmt.Errorf("%w: question is required", models.ErrValidationFailed)
	}
	if len(r.Question) > maxQuestionLen {
		return fmt.Errorf("%w: question too long (max %d characters)", models.ErrValidationFailed, maxQuestionLen)
	}
	return nil
}

func hasVideoHost(url string) bool {
	lower := strings.ToLower(url)
	for _, host := range videoHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

// handleAsk admits, validates and then runs one question through the
// agent, streaming NDJSON events as the run progresses.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	clientID := ratelimit.ClientID(r, s.cfg.TrustProxy, s.cfg.TrustedHops)
	if !s.limiter.Allow(clientID) {
		retryAfter := s.limiter.RetryAfter(clientID)
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
		writeJSONError(w, http.StatusTooManyRequests,
			fmt.Sprintf("rate limit exceeded, retry in %s", retryAfter.Round(time.Second)))
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation failed: invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, models.SafeMessage(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	serializer := stream.NewSerializer(func(ev stream.Event) error {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	s.run(r, &req, serializer)
}

// handleAskWS serves the same event stream over a WebSocket. The
// client sends one AskRequest as its first message.
func (s *Server) handleAskWS(w http.ResponseWriter, r *http.Request) {
	clientID := ratelimit.ClientID(r, s.cfg.TrustProxy, s.cfg.TrustedHops)
	if !s.limiter.Allow(clientID) {
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req AskRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(stream.Event{Type: stream.EventError, Message: "validation failed: invalid request"})
		return
	}

	serializer := stream.NewSerializer(func(ev stream.Event) error {
		return conn.WriteJSON(ev)
	})

	if err := req.Validate(); err != nil {
		_ = serializer.Error(err)
		return
	}

	s.run(r, &req, serializer)
}

// run executes the agent for one request, bridging orchestrator
// progress into the serializer. The request context stops emission
// when the caller goes away; in-flight upstream calls unwind on their
// own.
func (s *Server) run(r *http.Request, req *AskRequest, serializer *stream.Serializer) {
	hooks := agent.Hooks{
		OnToolCall: func(name, args string) {
			if err := serializer.ToolStart(name, args); err != nil {
				s.logger.Debug("event emission stopped", "error", err)
			}
		},
		OnToolResult: func(name, content string) {
			if err := serializer.ToolEnd(name, content); err != nil {
				s.logger.Debug("event emission stopped", "error", err)
			}
		},
		OnAnswerDelta: serializer.AnswerDelta,
	}

	result, err := s.agent.Run(r.Context(), agent.Input{
		VideoRef: req.URL,
		Question: req.Question,
	}, hooks)
	if err != nil {
		s.logger.Error("run failed", "error", err)
		_ = serializer.Error(err)
		return
	}

	// Flush any answer text the provider did not stream.
	_ = serializer.Answer(result.Answer)
	_ = serializer.Done()
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.metrics.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
