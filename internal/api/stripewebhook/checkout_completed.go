package stripewebhooks

import (
	"errors"
	"net/http"

	"checkout-server/internal/app/saga"
	"checkout-server/internal/domain/checkout"
	stripeinfra "checkout-server/internal/infra/stripe"

	"github.com/gin-gonic/gin"
)

func (h *Handler) handleCheckoutSessionCompleted(c *gin.Context, ev checkout.CompletionEvent) {
	scheduled, err := h.scheduler.ScheduleSubscription(c.Request.Context(), ev)

	var stepErr *saga.StepError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true, "subscription_id": scheduled.ID})

	case errors.Is(err, saga.ErrDuplicateEvent):
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})

	case errors.Is(err, saga.ErrMissingCustomer):
		// Redeliveries of this event keep getting the same 400 until the
		// provider stops retrying; the error log is what operators act on.
		h.log.Error("completed checkout has no customer", "event_id", ev.ID, "session_id", ev.ObjectID)
		c.String(http.StatusBadRequest, "Webhook Error: %s", err.Error())

	case errors.As(err, &stepErr):
		// 5xx makes the provider redeliver, which retries the failed step.
		c.JSON(http.StatusInternalServerError, gin.H{"error": stripeinfra.ErrorMessage(err)})

	default:
		h.log.Error("webhook processing failed", "event_id", ev.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
	}
}
