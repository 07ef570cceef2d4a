package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"checkout-server/internal/domain/checkout"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts.Unix())))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

const completedPayload = `{
  "id": "evt_1",
  "object": "event",
  "api_version": "2020-08-27",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_test_a1",
      "object": "checkout.session",
      "customer": "cus_123",
      "payment_intent": "pi_123",
      "payment_status": "paid",
      "metadata": {"checkout_ref": "ref-1"}
    }
  }
}`

func TestVerifier_CheckoutCompleted(t *testing.T) {
	v := NewVerifier(testWebhookSecret)
	payload := []byte(completedPayload)

	header := signPayload(payload, testWebhookSecret, time.Now())

	ev, err := v.Verify(payload, header)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, checkout.EventCheckoutSessionCompleted, ev.Type)
	assert.Equal(t, "cs_test_a1", ev.ObjectID)
	assert.Equal(t, "cus_123", ev.CustomerRef)
	assert.Equal(t, "pi_123", ev.PaymentIntentRef)
	assert.Equal(t, "ref-1", ev.Metadata[checkout.MetadataCheckoutRef])
	assert.Equal(t, payload, ev.RawBody)
	assert.Equal(t, header, ev.SignatureHeader)
}

func TestVerifier_OtherEventType(t *testing.T) {
	v := NewVerifier(testWebhookSecret)
	payload := []byte(`{"id":"evt_2","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)

	ev, err := v.Verify(payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_2", ev.ID)
	assert.Equal(t, "invoice.paid", ev.Type)
	assert.Empty(t, ev.CustomerRef)
}

func TestVerifier_Rejects(t *testing.T) {
	payload := []byte(completedPayload)
	now := time.Now()

	tests := []struct {
		name   string
		body   []byte
		header string
	}{
		{name: "missing header", body: payload, header: ""},
		{name: "garbage header", body: payload, header: "not-a-signature"},
		{name: "wrong secret", body: payload, header: signPayload(payload, "whsec_other", now)},
		{name: "tampered body", body: []byte(completedPayload + " "), header: signPayload(payload, testWebhookSecret, now)},
		{name: "stale timestamp", body: payload, header: signPayload(payload, testWebhookSecret, now.Add(-time.Hour))},
	}

	v := NewVerifier(testWebhookSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := v.Verify(tt.body, tt.header)
			assert.Error(t, err)
			assert.Empty(t, ev.ID)
		})
	}
}

func TestVerifier_MissingHeaderSentinel(t *testing.T) {
	_, err := NewVerifier(testWebhookSecret).Verify([]byte(completedPayload), "")
	assert.True(t, errors.Is(err, ErrMissingSignature))
}

func TestVerifier_CompletedWithoutData(t *testing.T) {
	v := NewVerifier(testWebhookSecret)
	payload := []byte(`{"id":"evt_3","object":"event","type":"checkout.session.completed"}`)

	_, err := v.Verify(payload, signPayload(payload, testWebhookSecret, time.Now()))
	assert.True(t, errors.Is(err, ErrMalformedEvent))
}
