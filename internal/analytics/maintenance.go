// File: internal/analytics/maintenance.go
package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// decayIdle is how long a site must stay failure-free before its recent
// failure counter decays by one per maintenance pass.
const decayIdle = 2 * time.Hour

// Start launches the background maintenance loop: retention eviction,
// recent-failure decay, and a state snapshot, once per interval. It never
// blocks recording goroutines beyond the shared lock.
func (a *Analytics) Start(ctx context.Context) {
	if a.done != nil {
		return
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.RunMaintenance()
			}
		}
	}()
}

// Stop cancels the maintenance loop and waits for it to exit.
func (a *Analytics) Stop() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
	a.cancel = nil
	a.done = nil
}

// RunMaintenance performs one maintenance pass. Exported so operators and
// tests can force a pass without waiting for the ticker.
func (a *Analytics) RunMaintenance() {
	now := a.now()
	cutoff := now.Add(-a.retention)

	a.mu.Lock()
	kept := a.records[:0]
	evicted := 0
	for _, rec := range a.records {
		if rec.Timestamp.Before(cutoff) {
			evicted++
			continue
		}
		kept = append(kept, rec)
	}
	a.records = kept

	// Decay one unit per pass per idle site. A site that keeps failing
	// never decays; a bursty site drains slowly, one point per pass.
	decayed := 0
	for _, m := range a.sites {
		if m.RecentFailures > 0 &&
			!m.LastFailureTime.IsZero() &&
			now.Sub(m.LastFailureTime) >= decayIdle {
			m.RecentFailures--
			a.refreshDerivedLocked(m)
			decayed++
		}
	}
	a.mu.Unlock()

	if evicted > 0 || decayed > 0 {
		a.logger.Debug("Maintenance pass complete",
			zap.Int("evicted_records", evicted),
			zap.Int("decayed_sites", decayed))
	}

	a.Persist()
}
