package billing

import (
	"context"
	"net/http"

	"checkout-server/internal/domain/checkout"
	stripeinfra "checkout-server/internal/infra/stripe"

	"github.com/gin-gonic/gin"
)

// PaymentInitiator starts the upfront payment.
type PaymentInitiator interface {
	InitiatePayment(ctx context.Context) (*checkout.Session, error)
}

type Handler struct {
	payments PaymentInitiator
}

func NewHandler(payments PaymentInitiator) *Handler {
	return &Handler{payments: payments}
}

// CreateCheckoutSession never reads the request body: amount, currency and
// description are fixed server-side.
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	session, err := h.payments.InitiatePayment(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": stripeinfra.ErrorMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": session.RedirectURL})
}
