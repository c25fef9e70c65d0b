package redisx

import "time"

const (
	// Idempotency fast-path for checkout intents: idem:intent:{intent_id} -> order_id
	KeyIdemIntent = "idem:intent:%s"

	// Cached cart snapshot: cart:{user_id} -> JSON cart
	KeyCartSnapshot = "cart:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Pub/sub channel carrying cart invalidations: cart.invalidate.{user_id}
	ChanCartInvalidate = "cart.invalidate.%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLCartCache   = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
