package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/payasgoyal/voicenote-bridge/internal/dispatch"
	"github.com/payasgoyal/voicenote-bridge/internal/store"
)

type RouterConfig struct {
	// Webhook verification
	VerifyToken string // shared token for Meta's GET handshake
	AppSecret   string // HMAC secret for payload signatures; empty disables verification

	// HandlerTimeout bounds one message's background processing. Zero
	// falls back to defaultHandlerTimeout.
	HandlerTimeout time.Duration

	// MetricsEnabled exposes /metrics when true.
	MetricsEnabled bool
}

// TranscriptionStore is the persistence surface the admin endpoints read.
type TranscriptionStore interface {
	ListRecentTranscriptions(ctx context.Context, limit int) ([]store.Transcription, error)
	CountTranscriptionsByUser(ctx context.Context, userID string) (int, error)
}

type Router struct {
	cfg        RouterConfig
	logger     *log.Logger
	dispatcher *dispatch.Dispatcher
	store      TranscriptionStore
	messages   *MessageRegistry
	mux        *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, d *dispatch.Dispatcher, s TranscriptionStore, messages *MessageRegistry) http.Handler {
	r := &Router{
		cfg:        cfg,
		logger:     logger,
		dispatcher: d,
		store:      s,
		messages:   messages,
		mux:        http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(r.mux)
}

func (r *Router) routes() {
	// Health checks
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /readyz", r.handleReadyz)

	// Meta webhooks (no auth - handshake token / payload signature verified)
	r.mux.HandleFunc("GET /webhook", r.handleWebhookVerify)
	r.mux.HandleFunc("POST /webhook", r.handleWebhookEvent)

	// Admin debug endpoints
	r.mux.HandleFunc("GET /admin/transcriptions", r.handleAdminListTranscriptions)
	r.mux.HandleFunc("GET /admin/users/{id}/count", r.handleAdminCountUserTranscriptions)

	if r.cfg.MetricsEnabled {
		r.mux.Handle("GET /metrics", promhttp.Handler())
	}
}

func (r *Router) handlerTimeout() time.Duration {
	if r.cfg.HandlerTimeout > 0 {
		return r.cfg.HandlerTimeout
	}
	return defaultHandlerTimeout
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Router) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if r.messages.IsDraining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("draining"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
