package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jatango/cart-engine/internal/clock"
)

// Sweeper deletes expired reservations across all users on a schedule.
// It is best-effort cleanup: the lazy sweep in Store.Load and the
// checkout-time stock re-check remain the correctness backstops.
type Sweeper struct {
	Repo     Repository
	Notifier Notifier
	Clock    clock.Clock
	Interval time.Duration
}

func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				log.Error().Err(err).Msg("reservation sweep")
			} else if n > 0 {
				log.Info().Int("released", n).Msg("reservation sweep")
			}
		}
	}
}

// SweepOnce releases every reservation whose window has passed and reports
// the expiry per affected user so their other sessions re-load.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	expired, err := s.Repo.DeleteAllExpired(ctx, s.Clock.Now())
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	byUser := map[string][]LineItem{}
	for _, it := range expired {
		byUser[it.UserID] = append(byUser[it.UserID], it)
	}
	for userID, items := range byUser {
		s.Notifier.ReservationsExpired(ctx, userID, items)
	}
	return len(expired), nil
}
