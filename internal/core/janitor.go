package core

// janitor.go runs the background sweep that expires idle sessions and
// removes their uploaded files.
//
// The janitor is long-running and context-aware for graceful shutdown. It
// logs each sweep that removed something and never fails the application.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is used when StartSessionJanitor gets a non-positive interval.
const DefaultSweepInterval = 5 * time.Minute

// StartSessionJanitor periodically removes expired sessions until ctx is
// cancelled. It sweeps once immediately, then every interval.
func (s *Service) StartSessionJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	slog.Info("session janitor started",
		"interval", interval.String(),
		"ttl", s.opts.SessionTTL.String(),
	)

	s.sweepSessions(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case <-ticker.C:
			s.sweepSessions(ctx)
		}
	}
}

func (s *Service) sweepSessions(ctx context.Context) {
	start := time.Now()
	removed, files := s.sessions.Sweep()
	for _, path := range files {
		s.removeFile(ctx, path)
	}
	if removed > 0 {
		slog.Info("expired sessions removed",
			"removed", removed,
			"files", len(files),
			"remaining", s.sessions.Len(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
