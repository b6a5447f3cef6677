// File: internal/analytics/analytics.go
// Description: Failure analytics for scraping operations. Keeps an
// independent bounded journal of classified failures plus per-site
// metrics, and turns them into health scores and operator reports. One
// lock guards the journal and the metrics map together so readers always
// observe a consistent pair; no I/O happens under the lock.

package analytics

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/api/schemas"
)

// Health score blend: mostly long-run success rate, tempered by the
// recent failure burst.
const (
	healthSuccessWeight = 0.7
	healthRecentWeight  = 0.3
)

type actionKey struct {
	Site   string
	Type   schemas.FailureType
	Action string
}

// Analytics aggregates failure and success events. Safe for concurrent
// use from many attempt goroutines.
type Analytics struct {
	logger *zap.Logger
	store  *Store
	now    func() time.Time

	mu           sync.RWMutex
	maxRecords   int
	retention    time.Duration
	records      []schemas.FailureRecord
	sites        map[string]*schemas.SiteMetrics
	actionCounts map[actionKey]int

	interval time.Duration
	cancel   func()
	done     chan struct{}
}

// Option configures an Analytics instance.
type Option func(*Analytics)

// WithMaxRecords bounds the FIFO record buffer.
func WithMaxRecords(n int) Option {
	return func(a *Analytics) {
		if n > 0 {
			a.maxRecords = n
		}
	}
}

// WithRetention sets how long records survive maintenance eviction.
func WithRetention(d time.Duration) Option {
	return func(a *Analytics) {
		if d > 0 {
			a.retention = d
		}
	}
}

// WithMaintenanceInterval overrides the hourly maintenance cadence.
func WithMaintenanceInterval(d time.Duration) Option {
	return func(a *Analytics) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithStore attaches a persistence store.
func WithStore(store *Store) Option {
	return func(a *Analytics) { a.store = store }
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(a *Analytics) { a.now = now }
}

// New creates an Analytics instance with empty state.
func New(logger *zap.Logger, opts ...Option) *Analytics {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Analytics{
		logger:       logger.With(zap.String("component", "analytics")),
		now:          time.Now,
		maxRecords:   5000,
		retention:    30 * 24 * time.Hour,
		interval:     time.Hour,
		sites:        make(map[string]*schemas.SiteMetrics),
		actionCounts: make(map[actionKey]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load restores persisted state. Missing or corrupt state degrades to
// empty, never an error. The action frequency counter is rebuilt from the
// surviving records.
func (a *Analytics) Load() {
	if a.store == nil {
		return
	}
	records, sites := a.store.Load()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = records
	if len(a.records) > a.maxRecords {
		a.records = a.records[len(a.records)-a.maxRecords:]
	}
	if sites != nil {
		a.sites = sites
	}
	a.actionCounts = make(map[actionKey]int)
	for _, rec := range a.records {
		if rec.Action != "" {
			a.actionCounts[actionKey{rec.Site, rec.Type, rec.Action}]++
		}
	}
	a.logger.Info("Analytics state loaded",
		zap.Int("records", len(a.records)),
		zap.Int("sites", len(a.sites)))
}

// RecordFailure journals a classified failure and updates the owning
// site's metrics in the same critical section, so readers never see one
// without the other.
func (a *Analytics) RecordFailure(rec schemas.FailureRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = a.now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.records = append(a.records, rec)
	if len(a.records) > a.maxRecords {
		a.records = a.records[len(a.records)-a.maxRecords:]
	}

	m := a.siteLocked(rec.Site)
	m.TotalRequests++
	m.TotalFailures++
	if m.FailureTypes == nil {
		m.FailureTypes = make(map[schemas.FailureType]int)
	}
	m.FailureTypes[rec.Type]++
	m.RecentFailures++
	m.LastFailureTime = rec.Timestamp
	a.refreshDerivedLocked(m)

	if rec.Action != "" {
		a.actionCounts[actionKey{rec.Site, rec.Type, rec.Action}]++
	}
}

// RecordSuccess counts a successful attempt and folds its duration into
// the running average. Successes produce no journal record.
func (a *Analytics) RecordSuccess(site string, duration time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := a.siteLocked(site)
	m.TotalRequests++
	if duration > 0 {
		successes := m.TotalRequests - m.TotalFailures
		if successes < 1 {
			successes = 1
		}
		m.AvgDuration += (duration - m.AvgDuration) / time.Duration(successes)
	}
	a.refreshDerivedLocked(m)
}

// HealthScore blends success rate and recent-failure pressure into [0,1].
// A site with no observations is healthy by definition.
func (a *Analytics) HealthScore(site string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	m, ok := a.sites[site]
	if !ok || m.TotalRequests == 0 {
		return 1.0
	}
	return m.HealthScore
}

// SiteMetricsFor returns a deep copy of one site's metrics, or nil when
// the site has never been seen.
func (a *Analytics) SiteMetricsFor(site string) *schemas.SiteMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sites[site].Clone()
}

// AllSiteMetrics returns deep copies of every site's metrics.
func (a *Analytics) AllSiteMetrics() map[string]*schemas.SiteMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]*schemas.SiteMetrics, len(a.sites))
	for name, m := range a.sites {
		out[name] = m.Clone()
	}
	return out
}

// ActionFrequency reports how often (site, type, action) has failed since
// the journal began.
func (a *Analytics) ActionFrequency(site string, ft schemas.FailureType, action string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.actionCounts[actionKey{site, ft, action}]
}

// Persist writes a snapshot of the journal and metrics. Errors are logged
// and swallowed; analytics must never take the host down over disk
// trouble.
func (a *Analytics) Persist() {
	if a.store == nil {
		return
	}

	a.mu.RLock()
	records := make([]schemas.FailureRecord, len(a.records))
	copy(records, a.records)
	sites := make(map[string]*schemas.SiteMetrics, len(a.sites))
	for name, m := range a.sites {
		sites[name] = m.Clone()
	}
	a.mu.RUnlock()

	if err := a.store.Save(records, sites); err != nil {
		a.logger.Warn("Failed to persist analytics state", zap.Error(err))
	}
}

// siteLocked returns the live metrics for site, creating them on first
// sight. Caller holds a.mu.
func (a *Analytics) siteLocked(site string) *schemas.SiteMetrics {
	m, ok := a.sites[site]
	if !ok {
		m = &schemas.SiteMetrics{Site: site, HealthScore: 1.0}
		a.sites[site] = m
	}
	return m
}

// refreshDerivedLocked recomputes the rate and health fields after a
// counter change. Caller holds a.mu.
func (a *Analytics) refreshDerivedLocked(m *schemas.SiteMetrics) {
	if m.TotalRequests == 0 {
		m.SuccessRate = 0
		m.FailureRate = 0
		m.HealthScore = 1.0
		return
	}
	total := float64(m.TotalRequests)
	m.SuccessRate = float64(m.TotalRequests-m.TotalFailures) / total
	m.FailureRate = float64(m.TotalFailures) / total

	recentPressure := float64(m.RecentFailures) / total
	if recentPressure > 1 {
		recentPressure = 1
	}
	m.HealthScore = round3(healthSuccessWeight*m.SuccessRate + healthRecentWeight*(1-recentPressure))
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
