package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"checkout-server/config"
	"checkout-server/internal/domain/checkout"
	"checkout-server/internal/domain/subscriptions"
	"checkout-server/internal/infra/ledger"
	"checkout-server/internal/infra/metrics"

	"github.com/google/uuid"
)

var (
	// ErrMissingCustomer means a completed session carried no customer, so
	// there is nobody to subscribe. Redelivery will not fix it.
	ErrMissingCustomer = errors.New("checkout session has no customer")
	// ErrUnsupportedEvent is returned when ScheduleSubscription receives an
	// event that is not a completed checkout session.
	ErrUnsupportedEvent = errors.New("event does not complete a checkout")
	// ErrDuplicateEvent is returned for redelivered events already handled.
	ErrDuplicateEvent = ledger.ErrAlreadyProcessed
)

// Routing keys for published domain events.
const (
	RouteSubscriptionScheduled = "subscription.scheduled"
	RouteSubscriptionFailed    = "subscription.failed"
)

// PaymentProvider is the subset of the payment API the saga drives.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, intent checkout.Intent) (*checkout.Session, error)
	PaymentMethodForIntent(ctx context.Context, paymentIntentID string) (string, error)
	CreateSubscription(ctx context.Context, plan subscriptions.Plan) (*subscriptions.Scheduled, error)
}

// Publisher receives domain events; delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// StepError reports which saga step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return e.Step + ": " + e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }

const (
	StepInitiatePayment      = "initiate_payment"
	StepScheduleSubscription = "schedule_subscription"
)

// ScheduledEvent is published after a subscription has been created.
type ScheduledEvent struct {
	EventID          string    `json:"event_id"`
	SessionID        string    `json:"session_id"`
	SubscriptionID   string    `json:"subscription_id"`
	Status           string    `json:"status"`
	CustomerRef      string    `json:"customer_ref"`
	AnchorAt         time.Time `json:"anchor_at"`
	AmountMinorUnits int64     `json:"amount"`
	Currency         string    `json:"currency"`
}

// FailedEvent is published when the second step fails after the customer
// has already paid. Operators follow up from these.
type FailedEvent struct {
	EventID     string    `json:"event_id"`
	SessionID   string    `json:"session_id"`
	CustomerRef string    `json:"customer_ref"`
	Error       string    `json:"error"`
	FailedAt    time.Time `json:"failed_at"`
}

// Orchestrator runs the two-step deferred subscription saga: take the
// upfront payment, then schedule the subscription once payment is confirmed.
type Orchestrator struct {
	provider  PaymentProvider
	ledger    ledger.Store
	publisher Publisher
	log       *slog.Logger

	offer        config.Offer
	subscription config.Subscription
	successURL   string
	cancelURL    string

	now    func() time.Time
	newRef func() string
}

type Option func(*Orchestrator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRefGenerator replaces the checkout_ref generator.
func WithRefGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newRef = fn }
}

func New(cfg *config.Config, provider PaymentProvider, store ledger.Store, publisher Publisher, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		provider:     provider,
		ledger:       store,
		publisher:    publisher,
		log:          logger,
		offer:        cfg.Offer,
		subscription: cfg.Subscription,
		successURL:   cfg.SuccessURL(),
		cancelURL:    cfg.CancelURL(),
		now:          time.Now,
		newRef:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Intent builds the checkout intent from configuration alone.
func (o *Orchestrator) Intent() checkout.Intent {
	return checkout.Intent{
		AmountMinorUnits: o.offer.AmountMinorUnits,
		Currency:         o.offer.Currency,
		Description:      o.offer.Name,
		SuccessURL:       o.successURL,
		CancelURL:        o.cancelURL,
		Metadata: map[string]string{
			checkout.MetadataCheckoutRef: o.newRef(),
		},
	}
}

// InitiatePayment is step one: create the provider session for the fixed offer.
func (o *Orchestrator) InitiatePayment(ctx context.Context) (*checkout.Session, error) {
	intent := o.Intent()

	start := time.Now()
	session, err := o.provider.CreateCheckoutSession(ctx, intent)
	metrics.ProviderLatency("create_checkout_session", time.Since(start).Seconds())
	if err != nil {
		metrics.CheckoutSession(metrics.ResultFailed)
		o.log.Error("checkout session creation failed",
			"checkout_ref", intent.Metadata[checkout.MetadataCheckoutRef],
			"error", err)
		return nil, &StepError{Step: StepInitiatePayment, Err: err}
	}

	metrics.CheckoutSession(metrics.ResultCreated)
	o.log.Info("checkout session created",
		"session_id", session.ID,
		"status", session.Status,
		"checkout_ref", intent.Metadata[checkout.MetadataCheckoutRef],
		"amount", intent.AmountMinorUnits,
		"currency", intent.Currency)
	return session, nil
}

// ScheduleSubscription is step two. It must only be given events produced by
// the webhook verifier. The subscription's first cycle is anchored at
// now + the configured delay and proration is disabled.
func (o *Orchestrator) ScheduleSubscription(ctx context.Context, ev checkout.CompletionEvent) (*subscriptions.Scheduled, error) {
	if ev.Type != checkout.EventCheckoutSessionCompleted {
		return nil, ErrUnsupportedEvent
	}
	if ev.CustomerRef == "" {
		return nil, ErrMissingCustomer
	}

	log := o.log.With("event_id", ev.ID, "session_id", ev.ObjectID, "customer", ev.CustomerRef)

	if err := o.ledger.Begin(ctx, ev.ID, ev.Type); err != nil {
		if errors.Is(err, ledger.ErrAlreadyProcessed) {
			metrics.Webhook(metrics.ResultDuplicate)
			log.Info("duplicate delivery ignored")
			return nil, ErrDuplicateEvent
		}
		return nil, fmt.Errorf("claim event: %w", err)
	}

	scheduled, err := o.createSubscription(ctx, ev)
	if err != nil {
		o.compensate(ctx, log, ev, err)
		return nil, &StepError{Step: StepScheduleSubscription, Err: err}
	}

	metrics.Subscription(metrics.ResultScheduled)
	log.Info("subscription scheduled",
		"subscription_id", scheduled.ID,
		"status", scheduled.Status,
		"anchor", scheduled.AnchorAt)

	if err := o.ledger.Complete(ctx, ev.ID, scheduled.ID, ev.CustomerRef); err != nil {
		// The subscription exists; a stuck "processing" row still blocks
		// redeliveries until it goes stale, and the idempotency key covers
		// the rest.
		log.Error("failed to record completed event", "subscription_id", scheduled.ID, "error", err)
	}

	o.publish(ctx, log, RouteSubscriptionScheduled, ScheduledEvent{
		EventID:          ev.ID,
		SessionID:        ev.ObjectID,
		SubscriptionID:   scheduled.ID,
		Status:           scheduled.Status,
		CustomerRef:      ev.CustomerRef,
		AnchorAt:         scheduled.AnchorAt,
		AmountMinorUnits: o.subscription.AmountMinorUnits,
		Currency:         o.offer.Currency,
	})
	return scheduled, nil
}

func (o *Orchestrator) createSubscription(ctx context.Context, ev checkout.CompletionEvent) (*subscriptions.Scheduled, error) {
	var paymentMethod string
	if ev.PaymentIntentRef != "" {
		pm, err := o.provider.PaymentMethodForIntent(ctx, ev.PaymentIntentRef)
		if err != nil {
			return nil, err
		}
		paymentMethod = pm
	}

	plan := subscriptions.Plan{
		CustomerRef:          ev.CustomerRef,
		DefaultPaymentMethod: paymentMethod,
		ProductRef:           o.subscription.ProductID,
		AmountMinorUnits:     o.subscription.AmountMinorUnits,
		Currency:             o.offer.Currency,
		IntervalUnit:         o.subscription.Interval,
		AnchorAt:             subscriptions.AnchorFrom(o.now(), o.subscription.Delay()),
		ProrationPolicy:      subscriptions.ProrationNone,
		IdempotencyKey:       "schedule-subscription-" + ev.ID,
		Metadata: map[string]string{
			"event_id":   ev.ID,
			"session_id": ev.ObjectID,
		},
	}
	if ref := ev.Metadata[checkout.MetadataCheckoutRef]; ref != "" {
		plan.Metadata[checkout.MetadataCheckoutRef] = ref
	}

	start := time.Now()
	scheduled, err := o.provider.CreateSubscription(ctx, plan)
	metrics.ProviderLatency("create_subscription", time.Since(start).Seconds())
	return scheduled, err
}

// compensate runs when the customer has paid but no subscription exists. The
// event is marked failed so the provider's redelivery can retry it; nothing is
// refunded automatically.
func (o *Orchestrator) compensate(ctx context.Context, log *slog.Logger, ev checkout.CompletionEvent, cause error) {
	metrics.Subscription(metrics.ResultFailed)
	log.Error("subscription scheduling failed after payment", "error", cause)

	if err := o.ledger.Fail(ctx, ev.ID, cause); err != nil {
		log.Error("failed to record failed event", "error", err)
	}

	o.publish(ctx, log, RouteSubscriptionFailed, FailedEvent{
		EventID:     ev.ID,
		SessionID:   ev.ObjectID,
		CustomerRef: ev.CustomerRef,
		Error:       cause.Error(),
		FailedAt:    o.now(),
	})
}

func (o *Orchestrator) publish(ctx context.Context, log *slog.Logger, routingKey string, body interface{}) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, routingKey, body); err != nil {
		log.Warn("domain event publish failed", "routing_key", routingKey, "error", err)
	}
}
