package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/jatango/cart-engine/internal/cart"
	"github.com/jatango/cart-engine/internal/clock"
	"github.com/jatango/cart-engine/internal/events"
	kafkax "github.com/jatango/cart-engine/internal/kafka"
)

// Repo persists intents and orders. CreateOrder must enforce a uniqueness
// check on intent id and re-read the winner when a concurrent confirm got
// there first.
type Repo interface {
	SaveIntent(ctx context.Context, in Intent) error
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	MarkIntent(ctx context.Context, intentID, status string) error
	GetOrderByIntent(ctx context.Context, intentID string) (*Order, error)
	CreateOrder(ctx context.Context, o Order) (Order, bool, error)
}

// Orchestrator drives a checkout attempt: snapshot -> processor handshake
// -> order materialization, with reservations committed on success.
type Orchestrator struct {
	Repo        Repo
	Processor   Processor
	Notifier    cart.Notifier
	Clock       clock.Clock
	Producer    *kafkax.Producer // topic order.created, optional
	ServiceName string
}

type IntentResult struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int    `json:"amount_cents"`
}

// CreateIntent opens a processor handshake for the snapshot. The amount is
// computed here from the snapshot; a client-supplied total is never
// trusted.
func (o *Orchestrator) CreateIntent(ctx context.Context, snapshot cart.Cart, userID string) (IntentResult, error) {
	if userID == "" {
		return IntentResult{}, cart.ErrUnauthenticated
	}
	amount := cart.CartTotalCents(snapshot)
	if amount <= 0 {
		return IntentResult{}, ErrEmptyCart
	}

	pi, err := o.Processor.CreateIntent(ctx, amount, "usd", userID)
	if err != nil {
		return IntentResult{}, fmt.Errorf("processor intent: %w", err)
	}

	in := Intent{
		ID:          pi.IntentID,
		UserID:      userID,
		AmountCents: amount,
		Status:      IntentStatusCreated,
		Snapshot:    snapshot,
		CreatedAt:   o.Clock.Now(),
	}
	if err := o.Repo.SaveIntent(ctx, in); err != nil {
		return IntentResult{}, fmt.Errorf("save intent: %w", err)
	}
	return IntentResult{IntentID: pi.IntentID, ClientSecret: pi.ClientSecret, AmountCents: amount}, nil
}

// ConfirmOrder materializes an order from the cart snapshot captured at
// intent creation, after the processor reports success. The snapshot, not
// a fresh cart read, is the source of the order lines: items removed
// mid-payment stay paid for. Calling it twice with the same intent id
// yields the same single order.
func (o *Orchestrator) ConfirmOrder(ctx context.Context, intentID, userID string, shipping ShippingInfo) (Order, error) {
	if userID == "" {
		return Order{}, cart.ErrUnauthenticated
	}

	// A finished attempt short-circuits before touching the processor. The
	// order must still belong to the caller: intent ids travel through
	// clients, so a replayed id from someone else is simply unknown.
	if existing, err := o.Repo.GetOrderByIntent(ctx, intentID); err != nil {
		return Order{}, fmt.Errorf("lookup order: %w", err)
	} else if existing != nil {
		if existing.UserID != userID {
			return Order{}, ErrIntentUnknown
		}
		return *existing, nil
	}

	intent, err := o.Repo.GetIntent(ctx, intentID)
	if err != nil {
		return Order{}, fmt.Errorf("lookup intent: %w", err)
	}
	if intent == nil || intent.UserID != userID {
		return Order{}, ErrIntentUnknown
	}

	status, err := o.Processor.IntentStatus(ctx, intentID)
	if err != nil {
		return Order{}, fmt.Errorf("verify payment: %w", err)
	}
	switch status {
	case PaymentSucceeded:
	case PaymentFailed:
		if err := o.Repo.MarkIntent(ctx, intentID, IntentStatusFailed); err != nil {
			log.Warn().Err(err).Str("intent_id", intentID).Msg("mark intent failed")
		}
		return Order{}, ErrPaymentFailed
	default:
		return Order{}, ErrPaymentNotConfirmed
	}

	order := materialize(intentID, userID, intent.Snapshot, shipping, o.Clock.Now())
	if len(order.Items) == 0 {
		return Order{}, ErrEmptyCart
	}

	stored, created, err := o.Repo.CreateOrder(ctx, order)
	if err != nil {
		if errors.Is(err, ErrStockConflict) {
			return Order{}, err
		}
		// Payment already succeeded; surface a retryable error, never drop.
		return Order{}, fmt.Errorf("%w: %v", ErrOrderWriteFailed, err)
	}
	if created {
		o.Notifier.CartChanged(ctx, userID, "checkout")
		o.publishOrderCreated(stored)
	}
	return stored, nil
}

func materialize(intentID, userID string, snapshot cart.Cart, shipping ShippingInfo, now time.Time) Order {
	order := Order{
		ID:         uuid.NewString(),
		IntentID:   intentID,
		UserID:     userID,
		TotalCents: cart.CartTotalCents(snapshot),
		Shipping:   shipping,
		CreatedAt:  now,
	}
	for _, it := range snapshot.AllItems() {
		order.Items = append(order.Items, OrderItem{
			ProductID:  it.ProductID,
			SellerID:   it.SellerID,
			Selector:   it.Selector,
			Qty:        it.Quantity,
			PriceCents: cart.UnitPriceCents(it),
		})
	}
	return order
}

func (o *Orchestrator) publishOrderCreated(ord Order) {
	if o.Producer == nil {
		return
	}
	payload := events.OrderCreatedPayload{
		OrderID:    ord.ID,
		IntentID:   ord.IntentID,
		UserID:     ord.UserID,
		TotalCents: ord.TotalCents,
	}
	for _, it := range ord.Items {
		payload.Items = append(payload.Items, events.OrderItemPayload{
			ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents,
		})
	}
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     events.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      o.ServiceName,
		CorrelationID: ord.ID,
		Payload:       kafkax.MustMarshal(payload),
	}
	o.Producer.Publish(events.PartitionKey(ord.UserID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
