package syncx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jatango/cart-engine/internal/redisx"
)

// Redis fans invalidations out across processes via pub/sub.
type Redis struct {
	Client *redis.Client
}

func (r *Redis) Publish(ctx context.Context, userID string) error {
	ch := fmt.Sprintf(redisx.ChanCartInvalidate, userID)
	if err := r.Client.Publish(ctx, ch, "1").Err(); err != nil {
		return fmt.Errorf("publish invalidate: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, userID string) (<-chan struct{}, func(), error) {
	ch := fmt.Sprintf(redisx.ChanCartInvalidate, userID)
	sub := r.Client.Subscribe(ctx, ch)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe invalidate: %w", err)
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default: // coalesce
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = sub.Close()
	}
	return out, cancel, nil
}
