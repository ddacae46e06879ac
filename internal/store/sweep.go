package store

import (
	"context"
	"time"
)

// RunSweeper purges expired entries once immediately and then on every
// tick until ctx is done. report receives the outcome of each pass.
func RunSweeper(ctx context.Context, s Sweeper, interval time.Duration, report func(removed int, err error)) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	runOnce := func() {
		ctxPurge, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		n, err := s.PurgeExpired(ctxPurge)
		if report != nil {
			report(n, err)
		}
	}

	runOnce()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			runOnce()
		}
	}
}
