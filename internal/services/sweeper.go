package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultSweepInterval is how often the sweeper runs when none is configured
const DefaultSweepInterval = 10 * time.Second

// RunSweeper calls Sweep every interval until ctx is cancelled, then sweeps
// once more so pairs that expired since the last tick are resolved before
// the history writer is stopped.
func RunSweeper(ctx context.Context, svc *MatchmakingService, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sweep(context.WithoutCancel(ctx), svc)
			return
		case <-ticker.C:
			sweep(ctx, svc)
		}
	}
}

func sweep(ctx context.Context, svc *MatchmakingService) {
	result := svc.Sweep(ctx)
	if result.ExpiredPairs > 0 || result.EvictedUsers > 0 {
		log.Debug().
			Int("expired_pairs", result.ExpiredPairs).
			Int("evicted_users", result.EvictedUsers).
			Msg("Sweep completed")
	}
}
