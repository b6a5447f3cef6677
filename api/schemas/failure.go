// File: api/schemas/failure.go
package schemas

import "time"

// FailureType categorizes why a scraping attempt failed.
type FailureType string

const (
	FailureNoResults       FailureType = "NO_RESULTS"
	FailureLoginFailed     FailureType = "LOGIN_FAILED"
	FailureCaptchaDetected FailureType = "CAPTCHA_DETECTED"
	FailureRateLimited     FailureType = "RATE_LIMITED"
	FailurePageNotFound    FailureType = "PAGE_NOT_FOUND"
	FailureAccessDenied    FailureType = "ACCESS_DENIED"
	FailureNetworkError    FailureType = "NETWORK_ERROR"
	FailureElementMissing  FailureType = "ELEMENT_MISSING"
)

// AllFailureTypes is the canonical enumeration order. Page classification
// resolves confidence ties by this order, so it must stay stable.
var AllFailureTypes = []FailureType{
	FailureNoResults,
	FailureLoginFailed,
	FailureCaptchaDetected,
	FailureRateLimited,
	FailurePageNotFound,
	FailureAccessDenied,
	FailureNetworkError,
	FailureElementMissing,
}

// Valid reports whether ft is a known failure type.
func (ft FailureType) Valid() bool {
	switch ft {
	case FailureNoResults, FailureLoginFailed, FailureCaptchaDetected,
		FailureRateLimited, FailurePageNotFound, FailureAccessDenied,
		FailureNetworkError, FailureElementMissing:
		return true
	}
	return false
}

// RecoveryStrategy returns the remediation tag attached to each failure
// category. The orchestrator uses it to decide between retrying, rotating
// the session, or moving on.
func (ft FailureType) RecoveryStrategy() string {
	switch ft {
	case FailureNoResults:
		return "fail_and_continue"
	case FailureLoginFailed:
		return "relogin"
	case FailureCaptchaDetected:
		return "solve_captcha"
	case FailureRateLimited:
		return "wait_and_retry"
	case FailurePageNotFound:
		return "skip_and_continue"
	case FailureAccessDenied:
		return "rotate_session"
	case FailureNetworkError:
		return "retry"
	case FailureElementMissing:
		return "retry_with_wait"
	}
	return "retry"
}

// RetryStrategyKind selects the delay formula applied between attempts.
type RetryStrategyKind string

const (
	StrategyExponentialBackoff RetryStrategyKind = "EXPONENTIAL_BACKOFF"
	StrategyLinearBackoff      RetryStrategyKind = "LINEAR_BACKOFF"
	StrategyFixedDelay         RetryStrategyKind = "FIXED_DELAY"
	StrategyImmediateRetry     RetryStrategyKind = "IMMEDIATE_RETRY"
	StrategyExtendedWait       RetryStrategyKind = "EXTENDED_WAIT"
	StrategySessionRotation    RetryStrategyKind = "SESSION_ROTATION"
	StrategyCaptchaSolve       RetryStrategyKind = "CAPTCHA_SOLVE"
)

// FailureContext is the classifier's verdict for a single failed attempt.
// It is a transient value object; callers copy what they need into a
// FailureRecord before journaling.
type FailureContext struct {
	Type             FailureType       `json:"type"`
	Confidence       float64           `json:"confidence"`
	Details          map[string]string `json:"details,omitempty"`
	RecoveryStrategy string            `json:"recovery_strategy"`
}

// FailureRecord is the append-only journal entry for one classified
// failure. Both the retry strategy and the analytics component keep their
// own bounded buffer of these.
type FailureRecord struct {
	Site              string            `json:"site"`
	Type              FailureType       `json:"type"`
	Timestamp         time.Time         `json:"timestamp"`
	Duration          time.Duration     `json:"duration,omitempty"`
	Action            string            `json:"action,omitempty"`
	RetryCount        int               `json:"retry_count"`
	Context           map[string]string `json:"context,omitempty"`
	SuccessAfterRetry bool              `json:"success_after_retry"`
	FinalSuccess      bool              `json:"final_success"`
	SessionID         string            `json:"session_id,omitempty"`
}

// FailurePattern aggregates the failure history for one (site, type) pair.
// It is recomputed from the bounded history on every insert rather than
// maintained incrementally.
type FailurePattern struct {
	Site                string      `json:"site"`
	Type                FailureType `json:"type"`
	TotalOccurrences    int         `json:"total_occurrences"`
	RecentOccurrences   int         `json:"recent_occurrences"`
	SuccessRate         float64     `json:"success_rate"`
	AverageRetryCount   float64     `json:"average_retry_count"`
	LastOccurrence      time.Time   `json:"last_occurrence"`
	PeakFailureHour     int         `json:"peak_failure_hour"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
}

// SiteMetrics carries per-site request/failure counters and the blended
// health score exposed to operators.
type SiteMetrics struct {
	Site            string              `json:"site"`
	TotalRequests   int                 `json:"total_requests"`
	TotalFailures   int                 `json:"total_failures"`
	SuccessRate     float64             `json:"success_rate"`
	FailureRate     float64             `json:"failure_rate"`
	AvgDuration     time.Duration       `json:"avg_duration"`
	FailureTypes    map[FailureType]int `json:"failure_types,omitempty"`
	RecentFailures  int                 `json:"recent_failures"`
	LastFailureTime time.Time           `json:"last_failure_time"`
	HealthScore     float64             `json:"health_score"`
}

// Clone returns a deep copy so readers never share the live map.
func (m *SiteMetrics) Clone() *SiteMetrics {
	if m == nil {
		return nil
	}
	out := *m
	if m.FailureTypes != nil {
		out.FailureTypes = make(map[FailureType]int, len(m.FailureTypes))
		for k, v := range m.FailureTypes {
			out.FailureTypes[k] = v
		}
	}
	return &out
}

// AdaptiveRetryConfig is the retry/backoff policy handed to the attempt
// loop. Computed fresh on every request; never persisted.
type AdaptiveRetryConfig struct {
	MaxRetries               int               `json:"max_retries"`
	BaseDelay                time.Duration     `json:"base_delay"`
	MaxDelay                 time.Duration     `json:"max_delay"`
	BackoffMultiplier        float64           `json:"backoff_multiplier"`
	Strategy                 RetryStrategyKind `json:"strategy"`
	TimeoutMultiplier        float64           `json:"timeout_multiplier"`
	SessionRotationThreshold int               `json:"session_rotation_threshold"`
	CaptchaRetryLimit        int               `json:"captcha_retry_limit"`
}

// HealthReport is the operator-facing summary produced by the analytics
// component for a trailing time window.
type HealthReport struct {
	GeneratedAt           time.Time           `json:"generated_at"`
	Window                time.Duration       `json:"window"`
	Site                  string              `json:"site,omitempty"`
	TotalFailures         int                 `json:"total_failures"`
	FailuresByType        map[FailureType]int `json:"failures_by_type"`
	FailuresBySite        map[string]int      `json:"failures_by_site"`
	FailuresByAction      map[string]int      `json:"failures_by_action"`
	AvgRetryCount         float64             `json:"avg_retry_count"`
	SuccessAfterRetryRate float64             `json:"success_after_retry_rate"`
	Insights              []string            `json:"insights"`
	Recommendations       []string            `json:"recommendations"`
}
