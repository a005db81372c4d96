// Package httpapi exposes the profile and chat operations over HTTP on a chi
// router. Handlers depend on narrow usecase interfaces so they can be tested
// against hand-rolled fakes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agentcv/agentcv/internal/domain"
	logpkg "github.com/agentcv/agentcv/internal/logger"
	"github.com/agentcv/agentcv/internal/metrics"
	chatuc "github.com/agentcv/agentcv/internal/usecase/chat"
	healthuc "github.com/agentcv/agentcv/internal/usecase/health"
	profileuc "github.com/agentcv/agentcv/internal/usecase/profilestore"
)

// ProfileStore is the profile lifecycle contract used by the handlers.
type ProfileStore interface {
	Replace(ctx context.Context, tenantID, filename string, content []byte, opts profileuc.ReplaceOptions) (domain.ProfileRecord, error)
	Delete(ctx context.Context, tenantID string) error
	History(ctx context.Context, tenantID string) ([]domain.ProfileRecord, error)
}

// Chat is the conversation contract used by the handlers.
type Chat interface {
	Respond(ctx context.Context, req chatuc.Request) (string, error)
	Stream(ctx context.Context, req chatuc.Request, emit func(fragment string) error) error
}

// CredentialStore manages per-tenant provider credentials.
type CredentialStore interface {
	SetCredential(ctx context.Context, tenantID string, cred domain.Credential) error
	DeleteCredential(ctx context.Context, tenantID string) error
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	profiles      ProfileStore
	chat          Chat
	credentials   CredentialStore
	health        HealthChecker
	logger        *zap.Logger
	maxUploadSize int64
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	profiles ProfileStore,
	chat Chat,
	credentials CredentialStore,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		profiles:      profiles,
		chat:          chat,
		credentials:   credentials,
		health:        health,
		logger:        logger,
		maxUploadSize: 10 << 20,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, "validation_failed"),
		sentinelHandler(domain.ErrUnsupportedFile, http.StatusBadRequest, "unsupported_file"),
		sentinelHandler(domain.ErrEmptyDocument, http.StatusBadRequest, "empty_document"),
		sentinelHandler(domain.ErrCredentialMissing, http.StatusBadRequest, "credential_missing"),
		sentinelHandler(domain.ErrNoProfile, http.StatusNotFound, "profile_not_found"),
		sentinelHandler(domain.ErrTenantNotFound, http.StatusNotFound, "tenant_not_found"),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrVectorIndex, http.StatusBadGateway, "vector_index_error"),
		sentinelHandler(domain.ErrCompletionProvider, http.StatusBadGateway, "completion_provider_error"),
	}
	return s
}

// Router assembles the full route tree with middleware.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.jsonRecoverer)
	r.Use(s.wideEvent)
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.healthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(TenantMiddleware)

		r.Post("/profile/upload", s.uploadProfile)
		r.Delete("/profile", s.deleteProfile)
		r.Get("/profile/history", s.profileHistory)

		r.Put("/settings/openai-key", s.setCredential)
		r.Delete("/settings/openai-key", s.deleteCredential)

		r.Post("/chat", s.respondChat)
		r.Post("/chat/stream", s.streamChat)
	})

	return r
}

// healthCheck handles GET /healthz.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, healthResponse{
		Status: string(report.Status),
		Checks: report.Checks,
	})
}

// wideEvent emits a canonical log line per request and propagates
// X-Request-ID.
func (s *Server) wideEvent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := middleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set("X-Request-ID", requestID)
		}

		reqLogger := s.logger.With(zap.String("request_id", requestID))
		ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		reqLogger.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", r.RemoteAddr),
			zap.Int("response_bytes", ww.BytesWritten()),
		)
	})
}

// jsonRecoverer converts panics into JSON 500 responses.
func (s *Server) jsonRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Panic in handler",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
				)
				writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			s.logger.Warn("Request failed", zap.Error(err))
			return
		}
	}
	s.logger.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrUnsupportedFile,
		domain.ErrEmptyDocument,
		domain.ErrCredentialMissing,
		domain.ErrNoProfile,
		domain.ErrTenantNotFound,
		domain.ErrEmbeddingProvider,
		domain.ErrVectorIndex,
		domain.ErrCompletionProvider,
	}
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler matching a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
