package wallet

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper runs the background maintenance loop: releasing expired holds and
// expiring stale pending topups. Each cycle is independent; a failed cycle
// leaves the affected rows for the next one.
type Sweeper struct {
	store    Store
	interval time.Duration
	topupTTL time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper builds a sweeper. interval controls how often the sweep runs;
// topupTTL is how long a topup may stay pending before it expires.
func NewSweeper(store Store, interval, topupTTL time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		topupTTL: topupTTL,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in a goroutine.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(context.Background())
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the loop and waits for the in-flight sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()

	expired, err := s.store.ExpireHolds(ctx, now)
	if err != nil {
		s.logger.Error("hold expiry sweep", "error", err, "expired", expired)
	} else if expired > 0 {
		s.logger.Info("expired holds released", "count", expired)
	}

	stale, err := s.store.ExpirePendingTopups(ctx, now.Add(-s.topupTTL))
	if err != nil {
		s.logger.Error("topup expiry sweep", "error", err)
	} else if stale > 0 {
		s.logger.Info("stale pending topups expired", "count", stale)
	}
}
