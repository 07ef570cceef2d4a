package metrics

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Outcome labels shared by the counters below.
const (
	ResultCreated   = "created"
	ResultFailed    = "failed"
	ResultVerified  = "verified"
	ResultRejected  = "rejected"
	ResultIgnored   = "ignored"
	ResultDuplicate = "duplicate"
	ResultScheduled = "scheduled"
)

func CheckoutSession(result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`checkout_sessions_total{result=%q}`, result)).Inc()
}

func Webhook(result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`checkout_webhooks_total{result=%q}`, result)).Inc()
}

func Subscription(result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`checkout_subscriptions_total{result=%q}`, result)).Inc()
}

// ProviderLatency records how long a provider call took, in seconds.
func ProviderLatency(op string, seconds float64) {
	metrics.GetOrCreateHistogram(fmt.Sprintf(`checkout_provider_duration_seconds{op=%q}`, op)).Update(seconds)
}

// Write dumps every registered metric in Prometheus text format.
func Write(w io.Writer) {
	metrics.WritePrometheus(w, true)
}

// Count returns the current value of a counter, mostly for tests.
func Count(name string) uint64 {
	return metrics.GetOrCreateCounter(name).Get()
}
