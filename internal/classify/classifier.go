// File: internal/classify/classifier.go
// Description: Heuristic failure classification for scraping attempts. Maps
// errors from the browser layer, or an inspection probe of the rendered
// page, to a typed FailureContext with a confidence score. This component
// never returns an error; absence of signal is expressed as low confidence.

package classify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/api/schemas"
)

// Signal confidences. Titles are discounted because they are the least
// reliable of the three page signals.
const (
	confSelector   = 0.8
	confBodyText   = 0.7
	confTitle      = confBodyText * 0.8
	confStatusCode = 0.95

	confTimeout       = 0.9
	confElementError  = 0.8
	confDriverNetwork = 0.8

	// minAccept is the floor below which a page classification is treated
	// as "no clear failure detected".
	minAccept = 0.3
)

// DetailWaitedForElementTimeout marks that the failing action was a
// wait_for that timed out. The page classifier uses it as weak evidence
// of an empty result set.
const DetailWaitedForElementTimeout = "waited_for_element_timeout"

// AttemptContext carries the caller-supplied facts about the failed
// attempt. All fields are optional.
type AttemptContext struct {
	// Action is the browser action that failed, e.g. "wait_for",
	// "extract_single", "login".
	Action string

	// WaitedForElementTimeout is set when a prior wait_for classification
	// flagged the timeout detail.
	WaitedForElementTimeout bool

	// StatusCode is the last observed HTTP status, 0 when unknown.
	StatusCode int
}

// PageProbe is a snapshot of the rendered page handed in by the browser
// layer. HasSelector may be nil when no live DOM is available.
type PageProbe struct {
	BodyText    string
	Title       string
	StatusCode  int
	HasSelector func(selector string) (bool, error)
}

// Classifier maps failures to FailureContext values. It is stateless
// after construction and safe for concurrent use.
type Classifier struct {
	logger  *zap.Logger
	signals map[schemas.FailureType]*signalSet
}

// Option configures a Classifier.
type Option func(*Classifier) error

// WithNoResultsSelectors appends site-specific selectors that mark an
// empty result page.
func WithNoResultsSelectors(selectors ...string) Option {
	return func(c *Classifier) error {
		set := c.signals[schemas.FailureNoResults]
		set.selectors = append(set.selectors, selectors...)
		return nil
	}
}

// WithNoResultsPatterns appends site-specific body-text regexes that mark
// an empty result page. Invalid patterns fail construction.
func WithNoResultsPatterns(patterns ...string) Option {
	return func(c *Classifier) error {
		set := c.signals[schemas.FailureNoResults]
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("invalid no-results pattern %q: %w", p, err)
			}
			set.body = append(set.body, re)
		}
		return nil
	}
}

// New builds a Classifier with the built-in signal library plus any
// injected site-specific extensions.
func New(logger *zap.Logger, opts ...Option) (*Classifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{
		logger:  logger.With(zap.String("component", "classifier")),
		signals: defaultSignals(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ClassifyError maps an error from the attempt executor to a
// FailureContext. Explicit error-type rules take precedence over message
// scanning.
func (c *Classifier) ClassifyError(err error, actx AttemptContext) schemas.FailureContext {
	if err == nil {
		return c.result(schemas.FailureNetworkError, minAccept, map[string]string{
			"reason": "classify called with nil error",
		})
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) || errors.Is(err, context.DeadlineExceeded) {
		details := map[string]string{"error": err.Error()}
		if actx.Action == "wait_for" {
			// The page classifier reads this flag downstream.
			details[DetailWaitedForElementTimeout] = "true"
		}
		return c.result(schemas.FailureNetworkError, confTimeout, details)
	}

	var notFound *ElementNotFoundError
	if errors.As(err, &notFound) {
		return c.result(schemas.FailureElementMissing, confElementError, map[string]string{
			"selector": notFound.Selector,
		})
	}

	var driverErr *DriverError
	if errors.As(err, &driverErr) {
		msg := strings.ToLower(driverErr.Error())
		for _, hint := range driverNetworkHints {
			if strings.Contains(msg, hint) {
				return c.result(schemas.FailureNetworkError, confDriverNetwork, map[string]string{
					"error": driverErr.Error(),
				})
			}
		}
	}

	// No explicit rule matched; scan the message against every type's
	// pattern library in enumeration order.
	msg := err.Error()
	for _, ft := range schemas.AllFailureTypes {
		set := c.signals[ft]
		if set.messageConfidence <= 0.5 {
			continue
		}
		for _, re := range set.message {
			if re.MatchString(msg) {
				return c.result(ft, set.messageConfidence, map[string]string{
					"matched_pattern": re.String(),
				})
			}
		}
	}

	return c.result(schemas.FailureNetworkError, minAccept, map[string]string{
		"error": err.Error(),
	})
}

// ClassifyPage inspects a rendered page and returns the most plausible
// failure type. Probe callback errors are swallowed as non-matches; this
// method never fails.
func (c *Classifier) ClassifyPage(probe PageProbe, actx AttemptContext) schemas.FailureContext {
	status := probe.StatusCode
	if status == 0 {
		status = actx.StatusCode
	}

	bestType := schemas.FailureNetworkError
	bestConf := 0.0
	bestSignal := ""
	first := true

	for _, ft := range schemas.AllFailureTypes {
		conf, signal := c.scorePage(ft, probe)

		if actx.WaitedForElementTimeout && ft == schemas.FailureNoResults {
			// A wait_for timeout after a search is itself evidence of an
			// empty result set: strong when any direct signal agreed,
			// weak otherwise.
			if conf > 0 && conf < confTimeout {
				conf, signal = confTimeout, signal+"+timeout"
			} else if conf == 0 {
				conf, signal = 0.6, "timeout_only"
			}
		}

		if status != 0 && statusMapsTo(status, ft) && confStatusCode > conf {
			conf, signal = confStatusCode, "status_code"
		}

		// Strict comparison keeps ties resolved by enumeration order.
		if first || conf > bestConf {
			bestType, bestConf, bestSignal = ft, conf, signal
			first = false
		}
	}

	if bestConf <= minAccept {
		if actx.WaitedForElementTimeout {
			return c.result(schemas.FailureNoResults, 0.5, map[string]string{
				"reason": "wait_for timeout with no stronger signal",
			})
		}
		return c.result(schemas.FailureNetworkError, 0.1, map[string]string{
			"reason": "no clear failure detected",
		})
	}

	return c.result(bestType, bestConf, map[string]string{"signal": bestSignal})
}

// scorePage computes the max of the three independent page signals for
// one type and names the winning signal.
func (c *Classifier) scorePage(ft schemas.FailureType, probe PageProbe) (float64, string) {
	set := c.signals[ft]
	conf, signal := 0.0, ""

	if probe.HasSelector != nil {
		for _, sel := range set.selectors {
			found, err := probe.HasSelector(sel)
			if err != nil {
				// Probe failures are treated as "not present".
				c.logger.Debug("selector probe failed",
					zap.String("selector", sel), zap.Error(err))
				continue
			}
			if found {
				conf, signal = confSelector, "selector"
				break
			}
		}
	}

	if conf < confBodyText && probe.BodyText != "" {
		for _, re := range set.body {
			if re.MatchString(probe.BodyText) {
				conf, signal = confBodyText, "body_text"
				break
			}
		}
	}

	if conf < confTitle && probe.Title != "" {
		for _, re := range set.title {
			if re.MatchString(probe.Title) {
				conf, signal = confTitle, "title"
				break
			}
		}
	}

	return conf, signal
}

// statusMapsTo reports whether the HTTP status is direct evidence for the
// given failure type.
func statusMapsTo(status int, ft schemas.FailureType) bool {
	switch {
	case status == 404:
		return ft == schemas.FailurePageNotFound
	case status == 401 || status == 403:
		return ft == schemas.FailureAccessDenied
	case status == 429:
		return ft == schemas.FailureRateLimited
	case status >= 500 && status <= 599:
		return ft == schemas.FailureNetworkError
	}
	return false
}

func (c *Classifier) result(ft schemas.FailureType, conf float64, details map[string]string) schemas.FailureContext {
	return schemas.FailureContext{
		Type:             ft,
		Confidence:       conf,
		Details:          details,
		RecoveryStrategy: ft.RecoveryStrategy(),
	}
}
