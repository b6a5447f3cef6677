// File: internal/retry/defaults.go
package retry

import (
	"time"

	"github.com/gleanerhq/gleaner/api/schemas"
)

// defaultConfigs is the hand-tuned baseline policy per failure type.
// AdaptiveConfig always starts from a copy of the matching row; the table
// itself is never mutated.
var defaultConfigs = map[schemas.FailureType]schemas.AdaptiveRetryConfig{
	schemas.FailureNoResults: {
		MaxRetries:               2,
		BaseDelay:                1 * time.Second,
		MaxDelay:                 5 * time.Second,
		BackoffMultiplier:        1.0,
		Strategy:                 schemas.StrategyFixedDelay,
		TimeoutMultiplier:        1.0,
		SessionRotationThreshold: 5,
	},
	schemas.FailureLoginFailed: {
		MaxRetries:               3,
		BaseDelay:                2 * time.Second,
		MaxDelay:                 30 * time.Second,
		BackoffMultiplier:        2.0,
		Strategy:                 schemas.StrategySessionRotation,
		TimeoutMultiplier:        1.0,
		SessionRotationThreshold: 2,
	},
	schemas.FailureCaptchaDetected: {
		MaxRetries:               3,
		BaseDelay:                5 * time.Second,
		MaxDelay:                 60 * time.Second,
		BackoffMultiplier:        2.0,
		Strategy:                 schemas.StrategyCaptchaSolve,
		TimeoutMultiplier:        1.0,
		SessionRotationThreshold: 3,
		CaptchaRetryLimit:        2,
	},
	schemas.FailureRateLimited: {
		MaxRetries:               5,
		BaseDelay:                10 * time.Second,
		MaxDelay:                 300 * time.Second,
		BackoffMultiplier:        2.0,
		Strategy:                 schemas.StrategyExtendedWait,
		TimeoutMultiplier:        1.0,
		SessionRotationThreshold: 5,
	},
	schemas.FailurePageNotFound: {
		MaxRetries:               1,
		BaseDelay:                0,
		MaxDelay:                 1 * time.Second,
		BackoffMultiplier:        1.0,
		Strategy:                 schemas.StrategyImmediateRetry,
		TimeoutMultiplier:        1.0,
		SessionRotationThreshold: 5,
	},
	schemas.FailureAccessDenied: {
		MaxRetries:               3,
		BaseDelay:                5 * time.Second,
		MaxDelay:                 120 * time.Second,
		BackoffMultiplier:        2.0,
		Strategy:                 schemas.StrategySessionRotation,
		TimeoutMultiplier:        1.0,
		SessionRotationThreshold: 2,
	},
	schemas.FailureNetworkError: {
		MaxRetries:               5,
		BaseDelay:                2 * time.Second,
		MaxDelay:                 60 * time.Second,
		BackoffMultiplier:        2.0,
		Strategy:                 schemas.StrategyExponentialBackoff,
		TimeoutMultiplier:        1.5,
		SessionRotationThreshold: 5,
	},
	schemas.FailureElementMissing: {
		MaxRetries:               4,
		BaseDelay:                1 * time.Second,
		MaxDelay:                 10 * time.Second,
		BackoffMultiplier:        1.0,
		Strategy:                 schemas.StrategyLinearBackoff,
		TimeoutMultiplier:        1.5,
		SessionRotationThreshold: 5,
	},
}

// DefaultConfig returns a copy of the baseline policy for ft. Unknown
// types get the network-error row, the most conservative general default.
func DefaultConfig(ft schemas.FailureType) schemas.AdaptiveRetryConfig {
	if cfg, ok := defaultConfigs[ft]; ok {
		return cfg
	}
	return defaultConfigs[schemas.FailureNetworkError]
}
