// internal/engine/engine_test.go
package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gleanerhq/gleaner/api/schemas"
	"github.com/gleanerhq/gleaner/internal/classify"
	"github.com/gleanerhq/gleaner/internal/config"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Resilience.DataDir = t.TempDir()

	e, err := New(cfg, nil)
	require.NoError(t, err)
	return e
}

func TestEngineLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newTestEngine(t)
	e.Start(context.Background())
	e.Close()
}

func TestEngineRecordsIntoBothJournals(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	fc := e.ClassifyError(&classify.ElementNotFoundError{Selector: ".price"},
		classify.AttemptContext{Action: "extract_single"})
	require.Equal(t, schemas.FailureElementMissing, fc.Type)

	e.RecordFailure(Outcome{
		Site:       "shop.example",
		Action:     "extract_single",
		Failure:    fc,
		RetryCount: 1,
		Duration:   2 * time.Second,
	})

	// Retry side: a learned pattern exists for the (site, type) pair.
	cfg := e.RetryConfig(schemas.FailureElementMissing, "shop.example", 0)
	assert.Equal(t, schemas.StrategyLinearBackoff, cfg.Strategy)

	// Analytics side: the failure moved the health score off 1.0.
	assert.Less(t, e.HealthScore("shop.example"), 1.0)
	assert.Equal(t, 1, e.AllSiteMetrics()["shop.example"].TotalFailures)
}

func TestEngineTagsRecordsWithSession(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	require.NotEmpty(t, e.SessionID())

	e.RecordFailure(Outcome{
		Site:    "shop.example",
		Failure: schemas.FailureContext{Type: schemas.FailureNetworkError},
	})

	report := e.Report("shop.example", time.Hour)
	assert.Equal(t, 1, report.TotalFailures)
}

func TestEngineDelayNeverSleeps(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	cfg := e.RetryConfig(schemas.FailureRateLimited, "shop.example", 0)
	start := time.Now()
	d := e.RetryDelay(cfg, 1)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Greater(t, d, time.Duration(0))
}

func TestEnginePersistsOnClose(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewDefaultConfig()
	cfg.Resilience.DataDir = dir

	e, err := New(cfg, nil)
	require.NoError(t, err)
	e.RecordFailure(Outcome{
		Site:    "shop.example",
		Failure: schemas.FailureContext{Type: schemas.FailureRateLimited},
	})
	e.RecordSuccess("shop.example", time.Second)
	e.Close()

	for _, name := range []string{"retry_journal.json", "analytics_state.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "expected %s after Close", name)
	}

	// A fresh engine restores the persisted state.
	e2, err := New(cfg, nil)
	require.NoError(t, err)
	defer e2.Close()

	assert.Equal(t, 2, e2.AllSiteMetrics()["shop.example"].TotalRequests)
	assert.NotEmpty(t, e2.PatternInsights("shop.example"))
}

func TestEngineRejectsBadConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Resilience.DataDir = t.TempDir()
	cfg.Resilience.NoResultsPatterns = []string{`([broken`}

	_, err := New(cfg, nil)
	require.Error(t, err)
}
