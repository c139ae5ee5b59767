package appointment

import (
	"context"
	"time"
)

// RunSweeper calls SweepOverdue every interval until ctx is cancelled. A
// non-positive interval returns immediately.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.logger.Info().Dur("interval", interval).Msg("overdue sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepOverdue(ctx, s.now()); err != nil {
				s.logger.Error().Err(err).Msg("overdue sweep failed")
			}
		case <-ctx.Done():
			s.logger.Info().Msg("overdue sweeper stopped")
			return
		}
	}
}
