// internal/classify/classifier_test.go
package classify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/api/schemas"
)

func newTestClassifier(t *testing.T, opts ...Option) *Classifier {
	t.Helper()
	c, err := New(zap.NewNop(), opts...)
	require.NoError(t, err)
	return c
}

func TestClassifyError(t *testing.T) {
	c := newTestClassifier(t)

	t.Run("should flag wait_for timeouts for the page classifier", func(t *testing.T) {
		fc := c.ClassifyError(&TimeoutError{Op: "wait_for"}, AttemptContext{Action: "wait_for"})

		assert.Equal(t, schemas.FailureNetworkError, fc.Type)
		assert.Equal(t, 0.9, fc.Confidence)
		assert.Equal(t, "true", fc.Details[DetailWaitedForElementTimeout])
	})

	t.Run("should not flag timeouts from other actions", func(t *testing.T) {
		fc := c.ClassifyError(&TimeoutError{Op: "navigate"}, AttemptContext{Action: "navigate"})

		assert.Equal(t, schemas.FailureNetworkError, fc.Type)
		assert.Equal(t, 0.9, fc.Confidence)
		assert.NotContains(t, fc.Details, DetailWaitedForElementTimeout)
	})

	t.Run("should classify wrapped timeout errors", func(t *testing.T) {
		err := fmt.Errorf("attempt failed: %w", &TimeoutError{Op: "wait_for"})
		fc := c.ClassifyError(err, AttemptContext{})
		assert.Equal(t, schemas.FailureNetworkError, fc.Type)
		assert.Equal(t, 0.9, fc.Confidence)
	})

	t.Run("should classify missing elements", func(t *testing.T) {
		fc := c.ClassifyError(&ElementNotFoundError{Selector: ".price"}, AttemptContext{})

		assert.Equal(t, schemas.FailureElementMissing, fc.Type)
		assert.Equal(t, 0.8, fc.Confidence)
		assert.Equal(t, ".price", fc.Details["selector"])
		assert.Equal(t, "retry_with_wait", fc.RecoveryStrategy)
	})

	t.Run("should treat connection-flavored driver errors as network errors", func(t *testing.T) {
		fc := c.ClassifyError(&DriverError{Message: "connection refused by upstream"}, AttemptContext{})

		assert.Equal(t, schemas.FailureNetworkError, fc.Type)
		assert.Equal(t, 0.8, fc.Confidence)
	})

	t.Run("should fall back to message scanning", func(t *testing.T) {
		cases := []struct {
			err  error
			want schemas.FailureType
		}{
			{errors.New("captcha required to continue"), schemas.FailureCaptchaDetected},
			{errors.New("HTTP 429 too many requests"), schemas.FailureRateLimited},
			{errors.New("access denied for this resource"), schemas.FailureAccessDenied},
			{errors.New("login failed: invalid credentials"), schemas.FailureLoginFailed},
		}
		for _, tc := range cases {
			fc := c.ClassifyError(tc.err, AttemptContext{})
			assert.Equal(t, tc.want, fc.Type, "error %q", tc.err)
			assert.Greater(t, fc.Confidence, 0.5)
		}
	})

	t.Run("should default to a low-confidence network error", func(t *testing.T) {
		fc := c.ClassifyError(errors.New("something inexplicable happened"), AttemptContext{})

		assert.Equal(t, schemas.FailureNetworkError, fc.Type)
		assert.Equal(t, 0.3, fc.Confidence)
	})

	t.Run("should always keep confidence within bounds", func(t *testing.T) {
		errs := []error{
			nil,
			errors.New(""),
			errors.New("rate limit captcha 404 forbidden connection"),
			&TimeoutError{Op: "x"},
			&DriverError{Message: "weird"},
		}
		for _, err := range errs {
			fc := c.ClassifyError(err, AttemptContext{})
			assert.GreaterOrEqual(t, fc.Confidence, 0.0)
			assert.LessOrEqual(t, fc.Confidence, 1.0)
		}
	})
}

func TestClassifyPage(t *testing.T) {
	c := newTestClassifier(t)

	t.Run("should detect empty result pages from body text", func(t *testing.T) {
		probe := PageProbe{
			BodyText: "No results found for your search. There are no matching products.",
			Title:    "Search",
		}
		fc := c.ClassifyPage(probe, AttemptContext{})

		assert.Equal(t, schemas.FailureNoResults, fc.Type)
		assert.Greater(t, fc.Confidence, 0.3)
		assert.Equal(t, "fail_and_continue", fc.RecoveryStrategy)
	})

	t.Run("should let a status code override conflicting body text", func(t *testing.T) {
		probe := PageProbe{
			BodyText: "Please solve this captcha to continue",
		}
		fc := c.ClassifyPage(probe, AttemptContext{StatusCode: 404})

		assert.Equal(t, schemas.FailurePageNotFound, fc.Type)
		assert.Equal(t, 0.95, fc.Confidence)
	})

	t.Run("should map status code families", func(t *testing.T) {
		cases := []struct {
			status int
			want   schemas.FailureType
		}{
			{404, schemas.FailurePageNotFound},
			{401, schemas.FailureAccessDenied},
			{403, schemas.FailureAccessDenied},
			{429, schemas.FailureRateLimited},
			{500, schemas.FailureNetworkError},
			{503, schemas.FailureNetworkError},
		}
		for _, tc := range cases {
			fc := c.ClassifyPage(PageProbe{StatusCode: tc.status}, AttemptContext{})
			assert.Equal(t, tc.want, fc.Type, "status %d", tc.status)
			assert.Equal(t, 0.95, fc.Confidence)
		}
	})

	t.Run("should score selector hits highest among page signals", func(t *testing.T) {
		probe := PageProbe{
			HasSelector: func(sel string) (bool, error) {
				return sel == ".g-recaptcha", nil
			},
		}
		fc := c.ClassifyPage(probe, AttemptContext{})

		assert.Equal(t, schemas.FailureCaptchaDetected, fc.Type)
		assert.Equal(t, 0.8, fc.Confidence)
	})

	t.Run("should discount title-only matches", func(t *testing.T) {
		fc := c.ClassifyPage(PageProbe{Title: "404 - Not Found"}, AttemptContext{})

		assert.Equal(t, schemas.FailurePageNotFound, fc.Type)
		assert.InDelta(t, 0.56, fc.Confidence, 0.001)
	})

	t.Run("should treat a bare wait_for timeout as weak no-results evidence", func(t *testing.T) {
		fc := c.ClassifyPage(PageProbe{BodyText: "lots of normal content"},
			AttemptContext{WaitedForElementTimeout: true})

		assert.Equal(t, schemas.FailureNoResults, fc.Type)
		assert.Equal(t, 0.6, fc.Confidence)
	})

	t.Run("should boost no-results when a timeout and a signal agree", func(t *testing.T) {
		probe := PageProbe{BodyText: "Your search did not match any documents."}
		fc := c.ClassifyPage(probe, AttemptContext{WaitedForElementTimeout: true})

		assert.Equal(t, schemas.FailureNoResults, fc.Type)
		assert.Equal(t, 0.9, fc.Confidence)
	})

	t.Run("should report no clear failure at rock-bottom confidence", func(t *testing.T) {
		fc := c.ClassifyPage(PageProbe{BodyText: "perfectly ordinary page"}, AttemptContext{})

		assert.Equal(t, schemas.FailureNetworkError, fc.Type)
		assert.Equal(t, 0.1, fc.Confidence)
		assert.Equal(t, "no clear failure detected", fc.Details["reason"])
	})

	t.Run("should swallow selector probe errors", func(t *testing.T) {
		probe := PageProbe{
			BodyText: "too many requests, slow down",
			HasSelector: func(string) (bool, error) {
				return false, errors.New("page context destroyed")
			},
		}
		fc := c.ClassifyPage(probe, AttemptContext{})

		assert.Equal(t, schemas.FailureRateLimited, fc.Type)
		assert.Equal(t, 0.7, fc.Confidence)
	})

	t.Run("should keep confidence within bounds for arbitrary probes", func(t *testing.T) {
		probes := []PageProbe{
			{},
			{BodyText: "captcha forbidden 404 no results rate limit"},
			{Title: "Access Denied", StatusCode: 503},
		}
		for _, probe := range probes {
			fc := c.ClassifyPage(probe, AttemptContext{})
			assert.GreaterOrEqual(t, fc.Confidence, 0.0)
			assert.LessOrEqual(t, fc.Confidence, 1.0)
		}
	})
}

func TestClassifierExtensions(t *testing.T) {
	t.Run("should honor injected no-results selectors", func(t *testing.T) {
		c := newTestClassifier(t, WithNoResultsSelectors("div.custom-empty-banner"))

		probe := PageProbe{
			HasSelector: func(sel string) (bool, error) {
				return sel == "div.custom-empty-banner", nil
			},
		}
		fc := c.ClassifyPage(probe, AttemptContext{})
		assert.Equal(t, schemas.FailureNoResults, fc.Type)
		assert.Equal(t, 0.8, fc.Confidence)
	})

	t.Run("should honor injected no-results patterns", func(t *testing.T) {
		c := newTestClassifier(t, WithNoResultsPatterns(`(?i)keine ergebnisse`))

		fc := c.ClassifyPage(PageProbe{BodyText: "Keine Ergebnisse gefunden."}, AttemptContext{})
		assert.Equal(t, schemas.FailureNoResults, fc.Type)
		assert.Equal(t, 0.7, fc.Confidence)
	})

	t.Run("should reject invalid injected patterns", func(t *testing.T) {
		_, err := New(zap.NewNop(), WithNoResultsPatterns(`([unclosed`))
		require.Error(t, err)
	})
}

func TestRecoveryStrategies(t *testing.T) {
	want := map[schemas.FailureType]string{
		schemas.FailureNoResults:       "fail_and_continue",
		schemas.FailureLoginFailed:     "relogin",
		schemas.FailureCaptchaDetected: "solve_captcha",
		schemas.FailureRateLimited:     "wait_and_retry",
		schemas.FailurePageNotFound:    "skip_and_continue",
		schemas.FailureAccessDenied:    "rotate_session",
		schemas.FailureNetworkError:    "retry",
		schemas.FailureElementMissing:  "retry_with_wait",
	}
	for ft, strategy := range want {
		assert.Equal(t, strategy, ft.RecoveryStrategy(), "type %s", ft)
	}
}
