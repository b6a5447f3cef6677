// File: internal/analytics/report.go
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/gleanerhq/gleaner/api/schemas"
)

// Recommendation thresholds. Fractions are of all failures in the window.
const (
	rateLimitedFractionThreshold = 0.3
	captchaFractionThreshold     = 0.2
	siteFailureThreshold         = 10
	loginFailureThreshold        = 5
)

// GenerateReport summarizes the failures inside the trailing window,
// optionally restricted to one site. The recommendation list is never
// empty: when nothing crosses a threshold the report says so explicitly.
func (a *Analytics) GenerateReport(site string, window time.Duration) *schemas.HealthReport {
	now := a.now()
	cutoff := now.Add(-window)

	a.mu.RLock()
	var windowRecords []schemas.FailureRecord
	for _, rec := range a.records {
		if rec.Timestamp.Before(cutoff) {
			continue
		}
		if site != "" && rec.Site != site {
			continue
		}
		windowRecords = append(windowRecords, rec)
	}
	a.mu.RUnlock()

	report := &schemas.HealthReport{
		GeneratedAt:      now,
		Window:           window,
		Site:             site,
		TotalFailures:    len(windowRecords),
		FailuresByType:   make(map[schemas.FailureType]int),
		FailuresBySite:   make(map[string]int),
		FailuresByAction: make(map[string]int),
	}

	var (
		retrySum     int
		retrySuccess int
		hourCounts   [24]int
	)
	for _, rec := range windowRecords {
		report.FailuresByType[rec.Type]++
		report.FailuresBySite[rec.Site]++
		if rec.Action != "" {
			report.FailuresByAction[rec.Action]++
		}
		retrySum += rec.RetryCount
		if rec.SuccessAfterRetry {
			retrySuccess++
		}
		hourCounts[rec.Timestamp.Hour()]++
	}
	if n := len(windowRecords); n > 0 {
		report.AvgRetryCount = float64(retrySum) / float64(n)
		report.SuccessAfterRetryRate = float64(retrySuccess) / float64(n)
	}

	report.Insights = buildInsights(report, hourCounts)
	report.Recommendations = buildRecommendations(report)
	return report
}

// buildInsights derives the headline observations. Iteration is over
// fixed enumeration order and sorted keys so equal counts always resolve
// the same way.
func buildInsights(r *schemas.HealthReport, hourCounts [24]int) []string {
	var insights []string
	if r.TotalFailures == 0 {
		return insights
	}

	if ft, n := topFailureType(r.FailuresByType); n > 0 {
		insights = append(insights, fmt.Sprintf(
			"Most frequent failure: %s (%d of %d)", ft, n, r.TotalFailures))
	}
	if site, n := topStringKey(r.FailuresBySite); n > 0 {
		insights = append(insights, fmt.Sprintf(
			"Most affected site: %s (%d failures)", site, n))
	}
	if action, n := topStringKey(r.FailuresByAction); n > 0 {
		insights = append(insights, fmt.Sprintf(
			"Most failing action: %s (%d failures)", action, n))
	}
	insights = append(insights, fmt.Sprintf(
		"%.0f%% of failures eventually succeeded after retries",
		r.SuccessAfterRetryRate*100))

	peak, peakN := 0, hourCounts[0]
	for h := 1; h < 24; h++ {
		if hourCounts[h] > peakN {
			peak, peakN = h, hourCounts[h]
		}
	}
	if peakN > 0 {
		insights = append(insights, fmt.Sprintf(
			"Peak failure hour: %02d:00 (%d failures)", peak, peakN))
	}
	return insights
}

// buildRecommendations applies the fixed advice thresholds. Always
// returns at least one entry.
func buildRecommendations(r *schemas.HealthReport) []string {
	var recs []string
	total := float64(r.TotalFailures)

	if total > 0 {
		if float64(r.FailuresByType[schemas.FailureRateLimited])/total > rateLimitedFractionThreshold {
			recs = append(recs,
				"High rate-limiting detected: increase delays between requests")
		}
		if float64(r.FailuresByType[schemas.FailureCaptchaDetected])/total > captchaFractionThreshold {
			recs = append(recs,
				"Frequent CAPTCHA challenges: review captcha handling and session reuse")
		}
		if r.FailuresByType[schemas.FailureAccessDenied] > 0 {
			recs = append(recs,
				"Access denials observed: rotate sessions, proxies, or user agents")
		}
	}

	for _, site := range sortedKeys(r.FailuresBySite) {
		if r.FailuresBySite[site] > siteFailureThreshold {
			recs = append(recs, fmt.Sprintf(
				"Site %s has %d failures in the window: review its selectors and pacing",
				site, r.FailuresBySite[site]))
		}
	}

	if r.FailuresByAction["login"] > loginFailureThreshold {
		recs = append(recs,
			"Repeated login failures: verify credentials and login flow")
	}

	single := r.FailuresByAction["extract_single"]
	multiple := r.FailuresByAction["extract_multiple"]
	if single > 0 && single > 2*multiple {
		recs = append(recs,
			"Single-element extraction fails far more than list extraction: harden those selectors")
	}

	if len(recs) == 0 {
		recs = append(recs, "Failure rates are within acceptable bounds; no action required")
	}
	return recs
}

// topFailureType picks the most frequent type, ties resolved by
// enumeration order.
func topFailureType(counts map[schemas.FailureType]int) (schemas.FailureType, int) {
	var (
		best  schemas.FailureType
		bestN int
	)
	for _, ft := range schemas.AllFailureTypes {
		if counts[ft] > bestN {
			best, bestN = ft, counts[ft]
		}
	}
	return best, bestN
}

// topStringKey picks the highest-count key, ties resolved alphabetically.
func topStringKey(counts map[string]int) (string, int) {
	var (
		best  string
		bestN int
	)
	for _, k := range sortedKeys(counts) {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best, bestN
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
