package stripe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"checkout-server/internal/domain/checkout"
	"checkout-server/internal/domain/subscriptions"

	"github.com/pkg/errors"
	sdk "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

// Options configures a Provider.
type Options struct {
	SecretKey  string
	APIURL     string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Provider talks to the Stripe API with its own client instead of the
// package-level stripe.Key, so handlers can be given a fake in tests.
type Provider struct {
	api *client.API
	log *slog.Logger
}

func NewProvider(opts Options) *Provider {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	cfg := &sdk.BackendConfig{
		HTTPClient:        hc,
		LeveledLogger:     &leveledLogger{log: logger.With("component", "stripe")},
		MaxNetworkRetries: sdk.Int64(0),
	}
	if opts.APIURL != "" {
		cfg.URL = sdk.String(opts.APIURL)
	}
	backend := sdk.GetBackendWithConfig(sdk.APIBackend, cfg)

	return &Provider{
		api: client.New(opts.SecretKey, &sdk.Backends{
			API:     backend,
			Connect: backend,
			Uploads: backend,
		}),
		log: logger,
	}
}

// CreateCheckoutSession creates a one-time card payment session for the intent.
// The customer is always created and the card saved for off-session use so the
// deferred subscription can charge it later.
func (p *Provider) CreateCheckoutSession(ctx context.Context, intent checkout.Intent) (*checkout.Session, error) {
	params := &sdk.CheckoutSessionParams{
		Mode:               sdk.String(string(sdk.CheckoutSessionModePayment)),
		PaymentMethodTypes: sdk.StringSlice([]string{"card"}),
		LineItems: []*sdk.CheckoutSessionLineItemParams{
			{
				PriceData: &sdk.CheckoutSessionLineItemPriceDataParams{
					Currency: sdk.String(intent.Currency),
					ProductData: &sdk.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: sdk.String(intent.Description),
					},
					UnitAmount: sdk.Int64(intent.AmountMinorUnits),
				},
				Quantity: sdk.Int64(1),
			},
		},
		CustomerCreation: sdk.String("always"),
		PaymentIntentData: &sdk.CheckoutSessionPaymentIntentDataParams{
			SetupFutureUsage: sdk.String("off_session"),
		},
		SuccessURL: sdk.String(intent.SuccessURL),
		CancelURL:  sdk.String(intent.CancelURL),
	}
	params.Context = ctx
	for k, v := range intent.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}

	session := &checkout.Session{
		ID:          s.ID,
		RedirectURL: s.URL,
		Status:      NormalizeSessionStatus(string(s.Status)),
	}
	if s.Customer != nil {
		session.CustomerRef = s.Customer.ID
	}
	return session, nil
}

// PaymentMethodForIntent returns the payment method used to pay the given
// payment intent, or "" when the provider did not attach one.
func (p *Provider) PaymentMethodForIntent(ctx context.Context, paymentIntentID string) (string, error) {
	params := &sdk.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		return "", errors.Wrapf(err, "fetch payment intent %s", paymentIntentID)
	}
	if pi.PaymentMethod == nil {
		return "", nil
	}
	return pi.PaymentMethod.ID, nil
}

// CreateSubscription starts a recurring subscription whose billing cycle is
// anchored at plan.AnchorAt.
func (p *Provider) CreateSubscription(ctx context.Context, plan subscriptions.Plan) (*subscriptions.Scheduled, error) {
	params := &sdk.SubscriptionParams{
		Customer: sdk.String(plan.CustomerRef),
		Items: []*sdk.SubscriptionItemsParams{
			{
				PriceData: &sdk.SubscriptionItemPriceDataParams{
					Currency:   sdk.String(plan.Currency),
					Product:    sdk.String(plan.ProductRef),
					UnitAmount: sdk.Int64(plan.AmountMinorUnits),
					Recurring: &sdk.SubscriptionItemPriceDataRecurringParams{
						Interval: sdk.String(plan.IntervalUnit),
					},
				},
			},
		},
		BillingCycleAnchor: sdk.Int64(plan.AnchorAt.Unix()),
		ProrationBehavior:  sdk.String(plan.ProrationPolicy),
	}
	if plan.DefaultPaymentMethod != "" {
		params.DefaultPaymentMethod = sdk.String(plan.DefaultPaymentMethod)
	}
	params.Context = ctx
	if plan.IdempotencyKey != "" {
		params.SetIdempotencyKey(plan.IdempotencyKey)
	}
	for k, v := range plan.Metadata {
		params.AddMetadata(k, v)
	}

	sub, err := p.api.Subscriptions.New(params)
	if err != nil {
		return nil, errors.Wrapf(err, "create subscription for customer %s", plan.CustomerRef)
	}

	scheduled := &subscriptions.Scheduled{
		ID:          sub.ID,
		CustomerRef: plan.CustomerRef,
		Status:      string(sub.Status),
		AnchorAt:    plan.AnchorAt,
	}
	if sub.BillingCycleAnchor != 0 {
		scheduled.AnchorAt = time.Unix(sub.BillingCycleAnchor, 0)
	}
	return scheduled, nil
}

// ErrorMessage returns the text a client may see for a provider failure: the
// provider's own message when there is one, never the wrapped error chain.
func ErrorMessage(err error) string {
	var stripeErr *sdk.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return "Payment provider request failed"
}

type leveledLogger struct {
	log *slog.Logger
}

func (l *leveledLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Infof(format string, v ...interface{}) {
	l.log.Info(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(fmt.Sprintf(format, v...))
}
