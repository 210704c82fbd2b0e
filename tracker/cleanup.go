package tracker

import (
	"sort"
	"time"
)

// CleanupExpired removes contexts older than maxAge that have no registered
// children. Removal is leaf-first: a parent only becomes eligible once all
// of its children are gone, which may take repeated passes for deep chains
// of expired contexts. Returns the count removed.
func (s *Store) CleanupExpired(maxAge time.Duration) int {
	start := time.Now()
	cutoff := start.Add(-maxAge)

	s.mu.Lock()
	removed := 0
	// Repeat until stable so a fully expired chain collapses in one call.
	for {
		prev := removed
		for id, rec := range s.records {
			if len(rec.children) == 0 && rec.ctx.CreatedAt.Before(cutoff) {
				s.removeLocked(id, rec)
				removed++
			}
		}
		if removed == prev {
			break
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug("tracker cleanup removed expired contexts", "removed", removed, "max_age", maxAge, "duration", time.Since(start))
	}

	return removed
}

// CleanupOrphaned removes contexts whose parent id no longer resolves.
// Register enforces parent integrity, so orphans only appear after explicit
// parent removal or external corruption; this pass cascades through
// transitive orphans until stable. Returns the count removed.
func (s *Store) CleanupOrphaned() int {
	s.mu.Lock()
	removed := 0
	for {
		prev := removed
		for id, rec := range s.records {
			if rec.ctx.ParentID == "" {
				continue
			}
			if _, ok := s.records[rec.ctx.ParentID]; !ok {
				s.removeLocked(id, rec)
				removed++
			}
		}
		if removed == prev {
			break
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Warn("tracker removed orphaned contexts", "removed", removed)
	}

	return removed
}

// EmergencyCleanup evicts oldest leaves first until the registered count is
// at or below targetCount, or no further leaf exists to remove. Contexts
// with live children are never removed, preserving ancestry-walk
// correctness for anyone still holding descendants. Returns the count
// removed.
func (s *Store) EmergencyCleanup(targetCount int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for len(s.records) > targetCount {
		type leaf struct {
			id      string
			created time.Time
		}
		leaves := make([]leaf, 0, len(s.records))
		for id, rec := range s.records {
			if len(rec.children) == 0 {
				leaves = append(leaves, leaf{id: id, created: rec.ctx.CreatedAt})
			}
		}
		if len(leaves) == 0 {
			break
		}
		sort.Slice(leaves, func(i, j int) bool { return leaves[i].created.Before(leaves[j].created) })

		for _, l := range leaves {
			if len(s.records) <= targetCount {
				break
			}
			s.removeLocked(l.id, s.records[l.id])
			removed++
		}
	}

	if removed > 0 {
		s.logger.Warn("tracker emergency cleanup evicted contexts", "removed", removed, "target", targetCount, "remaining", len(s.records))
	}

	return removed
}

// StartCleanupLoop launches a background goroutine that runs CleanupExpired,
// CleanupOrphaned and (when the population exceeds maxContexts)
// EmergencyCleanup every interval. A non-positive interval disables the
// loop. StopCleanupLoop terminates it; starting twice is a no-op for the
// second caller.
func (s *Store) StartCleanupLoop(interval, maxAge time.Duration, maxContexts int) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				expired := s.CleanupExpired(maxAge)
				orphaned := s.CleanupOrphaned()
				evicted := 0
				if maxContexts > 0 && s.Stats().ActiveCount > maxContexts {
					evicted = s.EmergencyCleanup(maxContexts)
				}
				if expired+orphaned+evicted > 0 {
					s.logger.Info("tracker cleanup pass", "expired", expired, "orphaned", orphaned, "evicted", evicted)
				}
			}
		}
	}()
}

// StopCleanupLoop terminates the background cleanup loop. Safe to call
// multiple times and before StartCleanupLoop.
func (s *Store) StopCleanupLoop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
