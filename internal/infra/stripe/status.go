package stripe

import (
	"strings"

	"checkout-server/internal/domain/checkout"
)

// NormalizeSessionStatus maps the provider's checkout session status onto the
// values the rest of the service understands.
func NormalizeSessionStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "open":
		return checkout.StatusOpen
	case "complete":
		return checkout.StatusComplete
	case "expired":
		return checkout.StatusExpired
	default:
		return strings.ToLower(strings.TrimSpace(s))
	}
}
