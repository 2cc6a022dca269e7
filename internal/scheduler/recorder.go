package scheduler

import (
	"context"
	"fmt"
	"time"
)

// Shutdown performs the graceful-termination sequence: stop accepting new
// timer arms, durably record the stop time so the next startup's catch-up
// pass knows the true silent-window start, then stop all live timers. An
// abrupt termination writes no record; the catch-up engine's bounded
// fallback window covers that case.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	entries := make([]*timerEntry, 0, len(s.timers))
	for _, e := range s.timers {
		entries = append(entries, e)
	}
	s.timers = make(map[timerKey]*timerEntry)
	s.mu.Unlock()

	at := s.now()
	if err := s.store.RecordShutdown(ctx, at); err != nil {
		return fmt.Errorf("failed to record shutdown: %w", err)
	}

	for _, e := range entries {
		e.mu.Lock()
		e.cancelled = true
		if e.timer != nil {
			e.timer.Stop()
		}
		e.mu.Unlock()
	}

	s.log.Infof("Scheduler stopped, shutdown recorded at %s", at.Format(time.RFC3339))
	return nil
}
