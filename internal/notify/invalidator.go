package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/jatango/cart-engine/internal/events"
	kafkax "github.com/jatango/cart-engine/internal/kafka"
	"github.com/jatango/cart-engine/internal/redisx"
)

// CacheInvalidator drops cached cart snapshots when expiry events arrive.
// The sweeper runs in its own process, so without this the cached snapshot
// would keep showing reserved items until the cache TTL ran out.
type CacheInvalidator struct {
	RDB         *redis.Client
	ServiceName string
}

// Handle implements kafka.Handler for the reservation-expired topic.
func (ci *CacheInvalidator) Handle(ctx context.Context, m kafkago.Message) error {
	var ev events.Envelope
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		log.Warn().Err(err).Msg("invalidator: bad envelope, skipping")
		return nil
	}

	// at-least-once delivery: dedup on event id, first writer wins
	dedupKey := fmt.Sprintf(redisx.KeyDedup, ci.ServiceName, ev.EventID)
	ok, err := ci.RDB.SetNX(ctx, dedupKey, 1, redisx.TTLDedup).Result()
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if !ok {
		return nil
	}

	payload, err := kafkax.UnwrapPayload[events.ReservationExpiredPayload](ev.Payload)
	if err != nil {
		log.Warn().Err(err).Str("event_id", ev.EventID).Msg("invalidator: bad payload, skipping")
		return nil
	}
	if payload.UserID == "" {
		return nil
	}

	if err := ci.RDB.Del(ctx, fmt.Sprintf(redisx.KeyCartSnapshot, payload.UserID)).Err(); err != nil {
		return fmt.Errorf("drop snapshot: %w", err)
	}
	log.Info().Str("user_id", payload.UserID).Int("items", len(payload.Items)).Msg("cart snapshot dropped")
	return nil
}
