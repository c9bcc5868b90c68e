package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"verigate/internal/income/models"
	"verigate/internal/income/service"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/httputil"
)

// WebhookPath is where the provider delivers completion callbacks.
const WebhookPath = "/webhooks/buro-de-ingresos"

// Service processes one decoded webhook delivery.
type Service interface {
	Process(ctx context.Context, delivery *models.Delivery) (service.Outcome, error)
}

// Handler exposes the webhook endpoint.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post(WebhookPath, h.HandleWebhook)
}

// HandleWebhook decodes the delivery and acknowledges it. Degraded or partial
// reconciliation still answers 200 so the provider does not redeliver.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	delivery, err := readDelivery(r)
	if err != nil {
		h.logger.WarnContext(ctx, "undecodable webhook body", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "request body must be a JSON object"))
		return
	}

	outcome, err := h.service.Process(ctx, delivery)
	if err != nil {
		level := slog.LevelWarn
		if status := httputil.StatusFor(dErrors.CodeOf(err)); status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "webhook processing failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "webhook processed",
		"outcome", outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteMessage(w, http.StatusOK, outcome.Message())
}

// readDelivery reads the whole body so the archive keeps the exact bytes the
// provider sent. MaxBody bounds the read.
func readDelivery(r *http.Request) (*models.Delivery, error) {
	if r.Body == nil {
		return models.DecodeDelivery(nil)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return models.DecodeDelivery(body)
}
