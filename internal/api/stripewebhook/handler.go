package stripewebhooks

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"checkout-server/internal/domain/checkout"
	"checkout-server/internal/domain/subscriptions"
	"checkout-server/internal/infra/metrics"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = int64(65536)

// EventVerifier turns raw, signed webhook bytes into a verified event.
type EventVerifier interface {
	Verify(payload []byte, signatureHeader string) (checkout.CompletionEvent, error)
}

// SubscriptionScheduler runs the side effect of a completed checkout.
type SubscriptionScheduler interface {
	ScheduleSubscription(ctx context.Context, ev checkout.CompletionEvent) (*subscriptions.Scheduled, error)
}

type Handler struct {
	verifier  EventVerifier
	scheduler SubscriptionScheduler
	log       *slog.Logger
}

func NewHandler(verifier EventVerifier, scheduler SubscriptionScheduler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{verifier: verifier, scheduler: scheduler, log: logger}
}

func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		h.log.Warn("webhook body unreadable", "error", err)
		c.String(http.StatusServiceUnavailable, "Error reading request body")
		return
	}

	ev, err := h.verifier.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		metrics.Webhook(metrics.ResultRejected)
		h.log.Warn("webhook signature verification failed", "error", err)
		c.String(http.StatusBadRequest, "Webhook Error: %s", err.Error())
		return
	}
	metrics.Webhook(metrics.ResultVerified)

	switch ev.Type {
	case checkout.EventCheckoutSessionCompleted:
		h.handleCheckoutSessionCompleted(c, ev)
	default:
		// Acknowledge unknown events to avoid retries
		metrics.Webhook(metrics.ResultIgnored)
		h.log.Debug("webhook event ignored", "event_id", ev.ID, "type", ev.Type)
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

// readStripeBody returns the exact bytes the signature was computed over.
func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
