package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/jatango/cart-engine/internal/cart"
	"github.com/jatango/cart-engine/internal/events"
	kafkax "github.com/jatango/cart-engine/internal/kafka"
	"github.com/jatango/cart-engine/internal/syncx"
)

// Notifier fans successful cart mutations out to the sync channel (so other
// sessions re-load) and to Kafka (so downstream consumers see domain
// events). Both paths are best-effort; the durable store already holds the
// truth by the time this runs.
type Notifier struct {
	Channel         syncx.Channel
	ProducerUpdated *kafkax.Producer // topic cart.updated
	ProducerExpired *kafkax.Producer // topic cart.reservation.expired
	ServiceName     string
}

func (n *Notifier) CartChanged(ctx context.Context, userID, op string) {
	if err := n.Channel.Publish(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("invalidate publish")
	}
	if n.ProducerUpdated == nil {
		return
	}
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     events.EventCartUpdated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.ServiceName,
		CorrelationID: userID,
		Payload:       kafkax.MustMarshal(events.CartUpdatedPayload{UserID: userID, Op: op}),
	}
	n.ProducerUpdated.Publish(events.PartitionKey(userID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventCartUpdated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (n *Notifier) ReservationsExpired(ctx context.Context, userID string, items []cart.LineItem) {
	if err := n.Channel.Publish(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("invalidate publish")
	}
	if n.ProducerExpired == nil || len(items) == 0 {
		return
	}
	payload := events.ReservationExpiredPayload{UserID: userID, SalesEventID: items[0].SalesEventID}
	for _, it := range items {
		payload.Items = append(payload.Items, events.ExpiredItem{ProductID: it.ProductID, Qty: it.Quantity})
	}
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     events.EventReservationExpired,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.ServiceName,
		CorrelationID: userID,
		Payload:       kafkax.MustMarshal(payload),
	}
	n.ProducerExpired.Publish(events.PartitionKey(userID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventReservationExpired)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
