package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
	logpkg "github.com/crolopez/enterprise-rag-system/internal/logger"
	"github.com/crolopez/enterprise-rag-system/internal/metrics"
	"github.com/crolopez/enterprise-rag-system/internal/transport/ollama"
	healthuc "github.com/crolopez/enterprise-rag-system/internal/usecase/health"
)

// relayBufferSize is the read buffer for streamed relays. Each read is
// flushed as one chunk, so backend chunk boundaries survive as long as
// chunks stay below this size.
const relayBufferSize = 32 * 1024

// Error codes returned to clients.
const (
	codeBadRequest          = "bad_request"
	codeUpstreamTimeout     = "upstream_timeout"
	codeUpstreamUnavailable = "upstream_unavailable"
	codeInternalError       = "internal_error"
)

// errorResponse is the JSON error envelope for proxy-originated failures.
// Backend-originated errors are relayed verbatim instead.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Proxy is the inference forwarding contract the server depends on.
type Proxy interface {
	Generate(ctx context.Context, raw []byte) (*domain.UpstreamResponse, error)
	Chat(ctx context.Context, raw []byte) (*domain.UpstreamResponse, error)
	Forward(ctx context.Context, method, pathAndQuery string, header http.Header, body io.Reader) (*domain.UpstreamResponse, error)
}

// Server exposes the proxy over HTTP: the two inference routes, the
// transparent backend passthrough, health, and metrics.
type Server struct {
	proxy         Proxy
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP proxy server.
func NewServer(proxy Proxy, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		proxy:  proxy,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrMalformedRequest, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrUpstreamTimeout, http.StatusGatewayTimeout, codeUpstreamTimeout),
		sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusBadGateway, codeUpstreamUnavailable),
	}
	return s
}

// Mount registers the proxy routes. The two inference routes take
// priority over the wildcard passthrough.
func (s *Server) Mount(r chi.Router) {
	r.Post("/api/generate", s.GenerateRoute)
	r.Post("/api/chat", s.ChatRoute)
	r.HandleFunc("/api/*", s.PassthroughRoute)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// GenerateRoute handles POST /api/generate.
func (s *Server) GenerateRoute(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "read request body: "+err.Error())
		return
	}

	resp, err := s.proxy.Generate(r.Context(), raw)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.relay(w, resp, "generate")
}

// ChatRoute handles POST /api/chat.
func (s *Server) ChatRoute(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "read request body: "+err.Error())
		return
	}

	resp, err := s.proxy.Chat(r.Context(), raw)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.relay(w, resp, "chat")
}

// PassthroughRoute relays any other backend API route untouched.
func (s *Server) PassthroughRoute(w http.ResponseWriter, r *http.Request) {
	resp, err := s.proxy.Forward(r.Context(), r.Method, r.URL.RequestURI(), r.Header, r.Body)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.relay(w, resp, "passthrough")
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusInternalServerError
	}

	writeJSON(w, httpStatus, map[string]string{"status": string(report.Status)})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// relay streams the upstream response to the client as chunks arrive.
// Works for buffered responses too, which simply arrive in few reads.
// An upstream drop mid-stream closes the client connection abruptly so
// truncation stays observable.
func (s *Server) relay(w http.ResponseWriter, resp *domain.UpstreamResponse, route string) {
	defer resp.Body.Close()

	ollama.CopyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.Status)

	flusher, _ := w.(http.Flusher)
	start := time.Now()
	seenFirstByte := false
	buf := make([]byte, relayBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if !seenFirstByte {
				seenFirstByte = true
				metrics.UpstreamFirstByte.WithLabelValues(route).Observe(time.Since(start).Seconds())
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				s.logger.Debug("client disconnected mid-stream", zap.Error(werr))
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("upstream stream aborted", zap.Error(err))
			}
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrMalformedRequest,
		domain.ErrUpstreamTimeout,
		domain.ErrUpstreamUnavailable,
		domain.ErrEmbeddingUnavailable,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
