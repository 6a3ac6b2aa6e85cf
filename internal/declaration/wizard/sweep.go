package wizard

import (
	"context"
	"time"

	id "verdant/pkg/domain"
	"verdant/pkg/platform/audit"
)

// Sweep cancels and forgets sessions idle for longer than the session TTL.
// Submitted sessions are forgotten the same way. Returns how many were removed.
func (s *Service) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.sessionTTL)

	s.mu.RLock()
	var expired []id.DraftID
	for draftID, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, draftID)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, draftID := range expired {
		sess, err := s.remove(draftID)
		if err != nil {
			// cancelled concurrently
			continue
		}
		submitted := sess.Snapshot().DeclarationID != nil
		sess.Cancel(ctx)
		removed++
		if !submitted {
			s.metrics.IncExpired()
			s.emitOps(ctx, audit.EventDraftExpired, draftID.String(), "", "idle longer than "+s.sessionTTL.String())
		}
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "expired idle drafts", "count", removed)
	}
	return removed
}

// RunSweeper sweeps every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Shutdown cancels every open session. In-flight verification runs stop.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[id.DraftID]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Cancel(ctx)
		s.metrics.SessionClosed()
	}
}
