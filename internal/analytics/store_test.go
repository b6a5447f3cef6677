// internal/analytics/store_test.go
package analytics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gleanerhq/gleaner/api/schemas"
)

func TestAnalyticsStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics_state.json")
	store := NewStore(path, nil)

	records := []schemas.FailureRecord{
		{
			Site:      "shop.example",
			Type:      schemas.FailureRateLimited,
			Timestamp: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			Action:    "extract_multiple",
		},
	}
	sites := map[string]*schemas.SiteMetrics{
		"shop.example": {
			Site:          "shop.example",
			TotalRequests: 10,
			TotalFailures: 4,
			SuccessRate:   0.6,
			FailureRate:   0.4,
			HealthScore:   0.6,
			FailureTypes: map[schemas.FailureType]int{
				schemas.FailureRateLimited: 4,
			},
			RecentFailures:  4,
			LastFailureTime: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			AvgDuration:     1500 * time.Millisecond,
		},
	}

	require.NoError(t, store.Save(records, sites))

	gotRecords, gotSites := store.Load()
	assert.Empty(t, cmp.Diff(records, gotRecords))
	assert.Empty(t, cmp.Diff(sites, gotSites))
}

func TestAnalyticsStoreLenientLoad(t *testing.T) {
	t.Run("missing file yields empty state", func(t *testing.T) {
		records, sites := NewStore(filepath.Join(t.TempDir(), "nope.json"), nil).Load()
		assert.Empty(t, records)
		assert.Empty(t, sites)
	})

	t.Run("corrupt file yields empty state", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		require.NoError(t, os.WriteFile(path, []byte("]["), 0o644))

		records, sites := NewStore(path, nil).Load()
		assert.Empty(t, records)
		assert.Empty(t, sites)
	})

	t.Run("invalid records are skipped and site names are repaired", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		blob := `{
  "records": [
    {"site": "ok.example", "type": "CAPTCHA_DETECTED", "timestamp": "2026-03-14T09:30:00Z"},
    {"site": "", "type": "CAPTCHA_DETECTED"},
    {"site": "bad.example", "type": "NOT_A_TYPE"}
  ],
  "sites": {
    "ok.example": {"site": "", "total_requests": 3, "total_failures": 1},
    "ghost.example": null
  }
}`
		require.NoError(t, os.WriteFile(path, []byte(blob), 0o644))

		records, sites := NewStore(path, nil).Load()
		require.Len(t, records, 1)
		assert.Equal(t, "ok.example", records[0].Site)

		require.Contains(t, sites, "ok.example")
		assert.NotContains(t, sites, "ghost.example")
		assert.Equal(t, "ok.example", sites["ok.example"].Site)
		assert.Equal(t, 3, sites["ok.example"].TotalRequests)
	})
}

func TestAnalyticsLoadRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	clock := &fixedClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}

	a1 := New(nil, WithClock(clock.Now), WithStore(NewStore(path, nil)))
	for i := 0; i < 3; i++ {
		rec := failure("s.example", schemas.FailureElementMissing, clock.Now())
		rec.Action = "extract_single"
		a1.RecordFailure(rec)
	}
	a1.RecordSuccess("s.example", time.Second)
	a1.Persist()

	a2 := New(nil, WithClock(clock.Now), WithStore(NewStore(path, nil)))
	a2.Load()

	assert.Empty(t, cmp.Diff(a1.AllSiteMetrics(), a2.AllSiteMetrics()))
	// The action frequency index is rebuilt from the surviving journal.
	assert.Equal(t, 3, a2.ActionFrequency("s.example", schemas.FailureElementMissing, "extract_single"))
}
