package admin

import (
	"context"
	"net/http"
	"strconv"

	"checkout-server/internal/domain/events"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// EventLister reads the webhook ledger.
type EventLister interface {
	List(ctx context.Context, status string, limit int) ([]events.ProcessedEvent, error)
}

type Handler struct {
	events EventLister
}

func NewHandler(events EventLister) *Handler {
	return &Handler{events: events}
}

// ListEvents returns processed webhook events, newest first. Failed rows are
// the ones where a customer paid but has no subscription yet.
func (h *Handler) ListEvents(c *gin.Context) {
	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLimit)
	}

	rows, err := h.events.List(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": rows, "count": len(rows)})
}
