package conversation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often expired conversations are purged
const DefaultSweepInterval = 24 * time.Hour

// StartSweeper purges expired conversations every interval until ctx is done.
// Sweep failures are logged and retried on the next tick.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		s.logger.Info("Conversation sweeper started",
			zap.Duration("interval", interval),
			zap.Duration("ttl", s.ttl))

		for {
			select {
			case <-ticker.C:
				s.sweepOnce(ctx)
			case <-ctx.Done():
				s.logger.Info("Conversation sweeper shutting down", zap.Error(ctx.Err()))
				return
			}
		}
	}()
}

func (s *Service) sweepOnce(ctx context.Context) {
	n, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("Conversation sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Expired conversations removed", zap.Int64("count", n))
	}
}
