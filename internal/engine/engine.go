// File: internal/engine/engine.go
// Description: Facade that owns one classifier, one adaptive retry
// strategy, and one analytics instance, wired from configuration. The
// attempt executor calls it synchronously from its worker goroutines; a
// recorded outcome lands in both journals.

package engine

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/api/schemas"
	"github.com/gleanerhq/gleaner/internal/analytics"
	"github.com/gleanerhq/gleaner/internal/classify"
	"github.com/gleanerhq/gleaner/internal/config"
	"github.com/gleanerhq/gleaner/internal/retry"
)

const (
	retryJournalFile   = "retry_journal.json"
	analyticsStateFile = "analytics_state.json"
)

// Engine bundles the resilience components behind one handle.
type Engine struct {
	logger     *zap.Logger
	classifier *classify.Classifier
	strategy   *retry.Strategy
	analytics  *analytics.Analytics
	sessionID  string
}

// Outcome describes one finished (failed) attempt for journaling.
type Outcome struct {
	Site              string
	Action            string
	Failure           schemas.FailureContext
	RetryCount        int
	Duration          time.Duration
	SuccessAfterRetry bool
	FinalSuccess      bool
}

// New wires the engine from configuration and restores persisted state.
func New(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "resilience_engine"))

	classifier, err := classify.New(logger,
		classify.WithNoResultsSelectors(cfg.Resilience.NoResultsSelectors...),
		classify.WithNoResultsPatterns(cfg.Resilience.NoResultsPatterns...),
	)
	if err != nil {
		return nil, err
	}

	strategy := retry.New(logger,
		retry.WithMaxHistory(cfg.Resilience.MaxHistory),
		retry.WithStore(retry.NewStore(
			filepath.Join(cfg.Resilience.DataDir, retryJournalFile), logger)),
	)
	strategy.Load()

	stats := analytics.New(logger,
		analytics.WithMaxRecords(cfg.Resilience.MaxRecords),
		analytics.WithRetention(time.Duration(cfg.Resilience.RetentionDays)*24*time.Hour),
		analytics.WithMaintenanceInterval(cfg.Resilience.MaintenanceInterval),
		analytics.WithStore(analytics.NewStore(
			filepath.Join(cfg.Resilience.DataDir, analyticsStateFile), logger)),
	)
	stats.Load()

	return &Engine{
		logger:     logger,
		classifier: classifier,
		strategy:   strategy,
		analytics:  stats,
		sessionID:  uuid.NewString(),
	}, nil
}

// Start launches background maintenance.
func (e *Engine) Start(ctx context.Context) {
	e.analytics.Start(ctx)
	e.logger.Info("Resilience engine started", zap.String("session_id", e.sessionID))
}

// Close stops maintenance, waits for in-flight persistence, and writes a
// final snapshot.
func (e *Engine) Close() {
	e.analytics.Stop()
	e.strategy.Close()
	e.analytics.Persist()
}

// SessionID identifies this engine's lifetime; every journaled record is
// tagged with it.
func (e *Engine) SessionID() string { return e.sessionID }

// ClassifyError delegates to the classifier.
func (e *Engine) ClassifyError(err error, actx classify.AttemptContext) schemas.FailureContext {
	return e.classifier.ClassifyError(err, actx)
}

// ClassifyPage delegates to the classifier.
func (e *Engine) ClassifyPage(probe classify.PageProbe, actx classify.AttemptContext) schemas.FailureContext {
	return e.classifier.ClassifyPage(probe, actx)
}

// RecordFailure journals one classified failure into both the retry
// strategy and analytics; the two keep separate journals.
func (e *Engine) RecordFailure(o Outcome) {
	rec := schemas.FailureRecord{
		Site:              o.Site,
		Type:              o.Failure.Type,
		Duration:          o.Duration,
		Action:            o.Action,
		RetryCount:        o.RetryCount,
		Context:           o.Failure.Details,
		SuccessAfterRetry: o.SuccessAfterRetry,
		FinalSuccess:      o.FinalSuccess,
		SessionID:         e.sessionID,
	}
	e.strategy.RecordFailure(rec)
	e.analytics.RecordFailure(rec)
}

// RecordSuccess counts a successful attempt for health scoring.
func (e *Engine) RecordSuccess(site string, duration time.Duration) {
	e.analytics.RecordSuccess(site, duration)
}

// RetryConfig returns the adaptive policy for the next attempt.
func (e *Engine) RetryConfig(ft schemas.FailureType, site string, retryCount int) schemas.AdaptiveRetryConfig {
	return e.strategy.AdaptiveConfig(ft, site, retryCount)
}

// RetryDelay computes the wait before the given retry; it never sleeps.
func (e *Engine) RetryDelay(cfg schemas.AdaptiveRetryConfig, retryCount int) time.Duration {
	return retry.Delay(cfg, retryCount)
}

// HealthScore exposes the analytics health score for a site.
func (e *Engine) HealthScore(site string) float64 {
	return e.analytics.HealthScore(site)
}

// AllSiteMetrics returns deep copies of every site's metrics.
func (e *Engine) AllSiteMetrics() map[string]*schemas.SiteMetrics {
	return e.analytics.AllSiteMetrics()
}

// Report builds the operator health report for the trailing window.
func (e *Engine) Report(site string, window time.Duration) *schemas.HealthReport {
	return e.analytics.GenerateReport(site, window)
}

// PatternInsights surfaces the retry strategy's learned-pattern analysis.
func (e *Engine) PatternInsights(site string) []string {
	return e.strategy.AnalyzePatterns(site)
}
