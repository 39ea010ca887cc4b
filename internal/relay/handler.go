// Package relay implements the same-origin endpoint that forwards chat turns
// to the external audit backend.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/auditsseus-chat/internal/api"
	"github.com/ashureev/auditsseus-chat/internal/config"
	"github.com/ashureev/auditsseus-chat/internal/monitoring"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Backend forwards one normalized turn and returns the backend's JSON body.
type Backend interface {
	Forward(ctx context.Context, p *Payload) ([]byte, error)
}

// Ensure Forwarder implements Backend.
var _ Backend = (*Forwarder)(nil)

// Handler serves POST /api/message. It keeps no state between requests.
type Handler struct {
	backend        Backend
	maxUploadBytes int64
	metrics        *monitoring.Metrics
	log            ConversationLogger
	logger         *slog.Logger
}

// NewHandler creates a relay handler from cfg.
func NewHandler(cfg *config.Config, metrics *monitoring.Metrics, conversationLogger ConversationLogger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return NewHandlerWithBackend(NewForwarder(cfg.BackendURL(), cfg.APITimeout, logger), cfg.MaxUploadBytes, metrics, conversationLogger, logger)
}

// NewHandlerWithBackend creates a relay handler with a custom backend.
func NewHandlerWithBackend(backend Backend, maxUploadBytes int64, metrics *monitoring.Metrics, conversationLogger ConversationLogger, logger *slog.Logger) *Handler {
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		backend:        backend,
		maxUploadBytes: maxUploadBytes,
		metrics:        metrics,
		log:            conversationLogger,
		logger:         logger,
	}
}

// RegisterRoutes registers relay routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/message", h.HandleMessage)
}

// HandleMessage relays one chat turn to the backend.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	turnID := uuid.NewString()
	reqID := chiMiddleware.GetReqID(ctx)

	payload, err := parsePayload(w, r, h.maxUploadBytes)
	if err != nil {
		h.logger.Error("Failed to parse relay request", "error", err, "turn_id", turnID, "request_id", reqID)
		h.fail(w, turnID, reqID, monitoring.OutcomeInternal, http.StatusInternalServerError, errorMessage(err), 0)
		return
	}

	attrs := []any{
		"turn_id", turnID,
		"request_id", reqID,
		"text_length", len(payload.Text),
		"has_file", payload.File != nil,
	}
	if payload.File != nil {
		attrs = append(attrs, "file_name", payload.File.Name, "file_type", payload.File.ContentType, "file_size", len(payload.File.Data))
		h.metrics.ObserveAttachment(payload.File.Kind())
	}
	h.logger.Info("Relaying chat turn", attrs...)
	h.log.Log(ConversationLogEvent{
		TurnID:    turnID,
		RequestID: reqID,
		Direction: "inbound",
		EventType: "chat_user_message",
		Content:   payload.Text,
		Meta: map[string]any{
			"attachment": payload.File.Kind(),
		},
	})

	if h.metrics != nil {
		h.metrics.InFlight.Inc()
	}
	start := time.Now()
	body, err := h.backend.Forward(ctx, payload)
	elapsed := time.Since(start)
	if h.metrics != nil {
		h.metrics.InFlight.Dec()
	}

	var statusErr *UpstreamStatusError
	switch {
	case err == nil:
		h.metrics.ObserveTurn(monitoring.OutcomeSuccess, elapsed)
		h.log.Log(ConversationLogEvent{
			TurnID:    turnID,
			RequestID: reqID,
			Direction: "outbound",
			EventType: "chat_backend_response",
			Content:   string(body),
			Meta:      map[string]any{"duration_ms": elapsed.Milliseconds()},
		})
		h.logger.Info("Chat turn relayed", "turn_id", turnID, "duration_ms", elapsed.Milliseconds(), "response_bytes", len(body))
		api.RawJSON(w, http.StatusOK, body)
	case errors.Is(err, ErrTimeout):
		h.logger.Warn("Backend call timed out", "turn_id", turnID, "duration_ms", elapsed.Milliseconds())
		h.fail(w, turnID, reqID, monitoring.OutcomeTimeout, http.StatusGatewayTimeout, ErrTimeout.Error(), elapsed)
	case errors.As(err, &statusErr):
		h.logger.Error("Backend returned error status", "turn_id", turnID, "status", statusErr.StatusCode)
		h.fail(w, turnID, reqID, monitoring.OutcomeUpstream, http.StatusInternalServerError, statusErr.Error(), elapsed)
	default:
		h.logger.Error("Backend call failed", "error", err, "turn_id", turnID)
		h.fail(w, turnID, reqID, monitoring.OutcomeInternal, http.StatusInternalServerError, errorMessage(err), elapsed)
	}
}

func (h *Handler) fail(w http.ResponseWriter, turnID, reqID, outcome string, status int, message string, elapsed time.Duration) {
	h.metrics.ObserveTurn(outcome, elapsed)
	h.log.Log(ConversationLogEvent{
		TurnID:    turnID,
		RequestID: reqID,
		Direction: "outbound",
		EventType: "chat_relay_error",
		Content:   message,
		Meta: map[string]any{
			"status":  status,
			"outcome": outcome,
		},
	})
	api.Error(w, status, message)
}

func errorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "unknown error"
	}
	return err.Error()
}
