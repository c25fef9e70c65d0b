// Package syncx carries cart invalidation signals between sessions.
//
// A signal means "your cached cart is stale, re-load" and nothing more.
// Delivery is at-least-once while connected; a dropped connection loses
// signals, which is acceptable because Load is always authoritative.
package syncx

import "context"

// Channel publishes and subscribes per-user invalidation signals.
type Channel interface {
	// Publish signals every subscriber of userID to re-load.
	Publish(ctx context.Context, userID string) error
	// Subscribe returns a stream of invalidation ticks for userID and a
	// cancel func that releases the subscription.
	Subscribe(ctx context.Context, userID string) (<-chan struct{}, func(), error)
}
