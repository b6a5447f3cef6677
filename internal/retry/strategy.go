// File: internal/retry/strategy.go
// Description: Adaptive retry policy derived from a bounded failure
// history. The strategy journals classified failures, maintains per
// (site, type) patterns, and turns them into concrete retry configs and
// delays. It never sleeps; the caller's attempt loop owns control flow.

package retry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/api/schemas"
)

// Hard ceilings and floors for the adaptation rules.
const (
	maxRetriesCap        = 10
	timeoutMultiplierCap = 3.0
	rotationFloor        = 1
)

type patternKey struct {
	Site string
	Type schemas.FailureType
}

// Strategy maintains the failure journal and derives adaptive retry
// configs. All public methods are safe for concurrent use; persistence
// happens off the caller's goroutine and is best effort.
type Strategy struct {
	logger *zap.Logger
	store  *Store
	now    func() time.Time

	mu         sync.Mutex
	maxHistory int
	history    []schemas.FailureRecord
	patterns   map[patternKey]*schemas.FailurePattern

	saves sync.WaitGroup
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithMaxHistory bounds the FIFO failure journal.
func WithMaxHistory(n int) Option {
	return func(s *Strategy) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// WithStore attaches a persistence store. Without one the strategy is
// memory only.
func WithStore(store *Store) Option {
	return func(s *Strategy) { s.store = store }
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *Strategy) { s.now = now }
}

// New creates a Strategy with an empty journal.
func New(logger *zap.Logger, opts ...Option) *Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Strategy{
		logger:     logger.With(zap.String("component", "retry_strategy")),
		now:        time.Now,
		maxHistory: 1000,
		patterns:   make(map[patternKey]*schemas.FailurePattern),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replays the persisted journal through the same pattern-update path
// used at record time, so post-load state matches pre-shutdown state. A
// missing or corrupt store yields an empty journal, never an error.
func (s *Strategy) Load() {
	if s.store == nil {
		return
	}
	records := s.store.Load()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.recordLocked(rec)
	}
	s.logger.Info("Retry journal loaded",
		zap.Int("records", len(s.history)),
		zap.Int("patterns", len(s.patterns)))
}

// RecordFailure appends a classified failure to the journal, evicting the
// oldest entry once the bound is reached, and recomputes the pattern for
// that (site, type). The snapshot is persisted asynchronously.
func (s *Strategy) RecordFailure(rec schemas.FailureRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}

	s.mu.Lock()
	s.recordLocked(rec)
	var snapshot []schemas.FailureRecord
	if s.store != nil {
		snapshot = append(snapshot, s.history...)
	}
	s.mu.Unlock()

	if snapshot != nil {
		s.saves.Add(1)
		go func() {
			defer s.saves.Done()
			if err := s.store.Save(snapshot); err != nil {
				s.logger.Warn("Failed to persist retry journal", zap.Error(err))
			}
		}()
	}
}

// recordLocked is the shared append path used by both live recording and
// replay-on-load. Caller holds s.mu.
func (s *Strategy) recordLocked(rec schemas.FailureRecord) {
	s.history = append(s.history, rec)
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
	s.recomputeLocked(patternKey{Site: rec.Site, Type: rec.Type}, rec.Timestamp)
}

// recomputeLocked rebuilds the pattern for one key by rescanning the full
// bounded history. Deliberately simple over fast; the journal bound keeps
// the scan cheap.
func (s *Strategy) recomputeLocked(key patternKey, asOf time.Time) {
	var (
		total       int
		recent      int
		successes   int
		retrySum    int
		last        time.Time
		hourCounts  [24]int
		consecutive int
	)
	cutoff := asOf.Add(-24 * time.Hour)

	for _, rec := range s.history {
		if rec.Site != key.Site || rec.Type != key.Type {
			continue
		}
		total++
		retrySum += rec.RetryCount
		if rec.FinalSuccess {
			successes++
			consecutive = 0
		} else {
			consecutive++
		}
		if rec.Timestamp.After(cutoff) {
			recent++
		}
		if rec.Timestamp.After(last) {
			last = rec.Timestamp
		}
		hourCounts[rec.Timestamp.Hour()]++
	}

	if total == 0 {
		delete(s.patterns, key)
		return
	}

	peak := 0
	for h := 1; h < 24; h++ {
		if hourCounts[h] > hourCounts[peak] {
			peak = h
		}
	}

	s.patterns[key] = &schemas.FailurePattern{
		Site:                key.Site,
		Type:                key.Type,
		TotalOccurrences:    total,
		RecentOccurrences:   recent,
		SuccessRate:         float64(successes) / float64(total),
		AverageRetryCount:   float64(retrySum) / float64(total),
		LastOccurrence:      last,
		PeakFailureHour:     peak,
		ConsecutiveFailures: consecutive,
	}
}

// Pattern returns a copy of the learned pattern for (site, type), or nil
// when nothing has been recorded yet.
func (s *Strategy) Pattern(site string, ft schemas.FailureType) *schemas.FailurePattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[patternKey{Site: site, Type: ft}]
	if !ok {
		return nil
	}
	out := *p
	return &out
}

// AdaptiveConfig derives the retry policy for the next attempt. It starts
// from the hand-tuned default for the failure type and, when a pattern
// has been learned for (site, type), adjusts a copy of it:
//
//  1. heavy recent traffic earns extra retries
//  2. poor recovery odds stretch the delays; good odds tighten them
//  3. missing elements get a longer element-wait timeout
//  4. repeated access denials rotate the session sooner
//  5. attempts near the site's peak failure hour back off harder
func (s *Strategy) AdaptiveConfig(ft schemas.FailureType, site string, retryCount int) schemas.AdaptiveRetryConfig {
	cfg := DefaultConfig(ft)

	p := s.Pattern(site, ft)
	if p == nil {
		return cfg
	}

	if p.RecentOccurrences > 10 {
		cfg.MaxRetries += 2
		if cfg.MaxRetries > maxRetriesCap {
			cfg.MaxRetries = maxRetriesCap
		}
	}

	if p.SuccessRate < 0.3 {
		cfg.BaseDelay = scaleDuration(cfg.BaseDelay, 1.5)
		cfg.MaxDelay = scaleDuration(cfg.MaxDelay, 2.0)
		cfg.BackoffMultiplier *= 1.2
	} else if p.SuccessRate > 0.8 {
		cfg.BaseDelay = scaleDuration(cfg.BaseDelay, 0.8)
		cfg.MaxDelay = scaleDuration(cfg.MaxDelay, 0.9)
	}

	if ft == schemas.FailureElementMissing {
		cfg.TimeoutMultiplier += 0.2
		if cfg.TimeoutMultiplier > timeoutMultiplierCap {
			cfg.TimeoutMultiplier = timeoutMultiplierCap
		}
	}

	if ft == schemas.FailureAccessDenied && p.ConsecutiveFailures > 2 {
		cfg.SessionRotationThreshold--
		if cfg.SessionRotationThreshold < rotationFloor {
			cfg.SessionRotationThreshold = rotationFloor
		}
	}

	if hourDistance(s.now().Hour(), p.PeakFailureHour) <= 2 {
		cfg.BaseDelay = scaleDuration(cfg.BaseDelay, 1.3)
	}

	s.logger.Debug("Adaptive config derived",
		zap.String("site", site),
		zap.String("type", string(ft)),
		zap.Int("retry_count", retryCount),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("base_delay", cfg.BaseDelay))

	return cfg
}

// Delay computes how long the caller should wait before the given retry.
// It only returns the duration; sleeping is the caller's job.
func Delay(cfg schemas.AdaptiveRetryConfig, retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	switch cfg.Strategy {
	case schemas.StrategyImmediateRetry:
		return 0
	case schemas.StrategyFixedDelay:
		return cfg.BaseDelay
	case schemas.StrategyLinearBackoff:
		return scaleDuration(cfg.BaseDelay, float64(retryCount+1))
	case schemas.StrategyExtendedWait:
		if retryCount == 0 {
			return capDuration(scaleDuration(cfg.BaseDelay, 3), cfg.MaxDelay)
		}
		return exponentialDelay(cfg, retryCount)
	default:
		// ExponentialBackoff plus any kind without its own formula
		// (SessionRotation, CaptchaSolve).
		return exponentialDelay(cfg, retryCount)
	}
}

func exponentialDelay(cfg schemas.AdaptiveRetryConfig, retryCount int) time.Duration {
	d := cfg.BaseDelay
	for i := 0; i < retryCount; i++ {
		d = scaleDuration(d, cfg.BackoffMultiplier)
		if cfg.MaxDelay > 0 && d >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	return capDuration(d, cfg.MaxDelay)
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * factor)
}

func capDuration(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

// hourDistance is the circular distance between two hours of day.
func hourDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if 24-d < d {
		d = 24 - d
	}
	return d
}

// AnalyzePatterns produces human-readable observations about learned
// patterns, optionally filtered to one site. Reporting only; nothing here
// feeds back into control flow.
func (s *Strategy) AnalyzePatterns(site string) []string {
	s.mu.Lock()
	patterns := make([]*schemas.FailurePattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		if site != "" && p.Site != site {
			continue
		}
		cp := *p
		patterns = append(patterns, &cp)
	}
	s.mu.Unlock()

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Site != patterns[j].Site {
			return patterns[i].Site < patterns[j].Site
		}
		return patterns[i].Type < patterns[j].Type
	})

	var insights []string
	for _, p := range patterns {
		label := fmt.Sprintf("%s/%s", p.Site, p.Type)
		if perHour := float64(p.RecentOccurrences) / 24.0; perHour > 1.0 {
			insights = append(insights, fmt.Sprintf(
				"%s: failing %.1f times per hour over the last day", label, perHour))
		}
		if p.SuccessRate < 0.5 {
			insights = append(insights, fmt.Sprintf(
				"%s: only %.0f%% of failures recover after retries", label, p.SuccessRate*100))
		}
		if p.ConsecutiveFailures > 3 {
			insights = append(insights, fmt.Sprintf(
				"%s: %d consecutive unrecovered failures", label, p.ConsecutiveFailures))
		}
		if p.AverageRetryCount > 2.0 {
			insights = append(insights, fmt.Sprintf(
				"%s: averaging %.1f retries per failure", label, p.AverageRetryCount))
		}
	}
	return insights
}

// HistoryLen reports the current journal length.
func (s *Strategy) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// History returns a copy of the journal, oldest first.
func (s *Strategy) History() []schemas.FailureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.FailureRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Close waits for in-flight persistence to finish.
func (s *Strategy) Close() {
	s.saves.Wait()
}
