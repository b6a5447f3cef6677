// File: internal/classify/patterns.go
package classify

import (
	"regexp"

	"github.com/gleanerhq/gleaner/api/schemas"
)

// signalSet holds the detection signals for one failure type. Selectors
// are probed against the live DOM, body and title patterns against the
// rendered text, and message patterns against exception text.
type signalSet struct {
	selectors []string
	body      []*regexp.Regexp
	title     []*regexp.Regexp
	message   []*regexp.Regexp
	// messageConfidence is the confidence assigned when a message pattern
	// matches during exception classification.
	messageConfidence float64
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// defaultSignals builds the built-in signal library. Site-specific
// NoResults markers are appended by the Classifier constructor.
func defaultSignals() map[schemas.FailureType]*signalSet {
	return map[schemas.FailureType]*signalSet{
		schemas.FailureNoResults: {
			selectors: []string{
				".no-results", "#no-results", ".empty-state", ".search-empty",
				"[data-testid='no-results']",
			},
			body: compileAll(
				`(?i)no results?\s+(found|for)`,
				`(?i)no matching\s+(products|items|records|results)`,
				`(?i)your search did not match`,
				`(?i)\b0 results\b`,
				`(?i)nothing (was )?found`,
				`(?i)we couldn'?t find`,
			),
			title: compileAll(
				`(?i)no results`,
				`(?i)search results.*empty`,
			),
			message: compileAll(
				`(?i)no results`,
				`(?i)empty result set`,
			),
			messageConfidence: 0.6,
		},
		schemas.FailureLoginFailed: {
			selectors: []string{
				"#login-form", "form[action*='login']", ".login-error",
				"input[type='password']",
			},
			body: compileAll(
				`(?i)(invalid|incorrect)\s+(username|password|credentials)`,
				`(?i)login failed`,
				`(?i)please (sign|log)\s?in to continue`,
				`(?i)session (has )?expired`,
				`(?i)authentication (failed|required)`,
			),
			title: compileAll(
				`(?i)(sign|log)\s?in`,
				`(?i)authentication required`,
			),
			message: compileAll(
				`(?i)login failed`,
				`(?i)invalid credentials`,
				`(?i)not (logged|signed) in`,
				`(?i)session expired`,
			),
			messageConfidence: 0.7,
		},
		schemas.FailureCaptchaDetected: {
			selectors: []string{
				"iframe[src*='recaptcha']", ".g-recaptcha", "#captcha",
				"iframe[src*='hcaptcha']", "div[class*='cf-challenge']",
				"form#challenge-form",
			},
			body: compileAll(
				`(?i)captcha`,
				`(?i)verify (that )?you('?re| are) (a )?human`,
				`(?i)unusual traffic`,
				`(?i)security check`,
				`(?i)prove you('?re| are) not a robot`,
			),
			title: compileAll(
				`(?i)captcha`,
				`(?i)are you a robot`,
				`(?i)attention required`,
				`(?i)just a moment`,
			),
			message: compileAll(
				`(?i)captcha`,
			),
			messageConfidence: 0.8,
		},
		schemas.FailureRateLimited: {
			selectors: []string{
				".rate-limit-message",
			},
			body: compileAll(
				`(?i)too many requests`,
				`(?i)rate limit(ed|s)?`,
				`(?i)slow down`,
				`(?i)try again (later|in \d)`,
				`(?i)request limit (reached|exceeded)`,
			),
			title: compileAll(
				`(?i)too many requests`,
				`(?i)\b429\b`,
			),
			message: compileAll(
				`(?i)too many requests`,
				`(?i)rate limit`,
				`(?i)\b429\b`,
			),
			messageConfidence: 0.7,
		},
		schemas.FailurePageNotFound: {
			selectors: []string{
				".error-404", "#error-404",
			},
			body: compileAll(
				`(?i)page (was )?not found`,
				`(?i)page (no longer|doesn'?t) exist`,
				`(?i)\b404\b`,
				`(?i)has been (removed|moved|deleted)`,
			),
			title: compileAll(
				`(?i)\b404\b`,
				`(?i)not found`,
			),
			message: compileAll(
				`(?i)\b404\b`,
				`(?i)not found`,
			),
			messageConfidence: 0.6,
		},
		schemas.FailureAccessDenied: {
			selectors: []string{
				".access-denied", "#blocked-message",
			},
			body: compileAll(
				`(?i)access denied`,
				`(?i)forbidden`,
				`(?i)you (have been|are) (blocked|banned)`,
				`(?i)permission denied`,
				`(?i)ip (address )?(has been )?blocked`,
			),
			title: compileAll(
				`(?i)access denied`,
				`(?i)forbidden`,
				`(?i)\b403\b`,
			),
			message: compileAll(
				`(?i)access denied`,
				`(?i)forbidden`,
				`(?i)\b403\b`,
				`(?i)blocked`,
			),
			messageConfidence: 0.7,
		},
		schemas.FailureNetworkError: {
			body: compileAll(
				`(?i)(connection|network)\s+(error|refused|reset|lost)`,
				`(?i)proxy error`,
				`(?i)bad gateway`,
				`(?i)service (is )?(temporarily )?unavailable`,
				`(?i)gateway time[- ]?out`,
			),
			title: compileAll(
				`(?i)bad gateway`,
				`(?i)service unavailable`,
				`(?i)\b50[234]\b`,
			),
			message: compileAll(
				`(?i)(connection|network)`,
				`(?i)timed? ?out`,
				`(?i)refused`,
				`(?i)reset by peer`,
				`(?i)dns`,
				`(?i)proxy`,
			),
			messageConfidence: 0.7,
		},
		schemas.FailureElementMissing: {
			body: []*regexp.Regexp{},
			title: []*regexp.Regexp{},
			message: compileAll(
				`(?i)(element|node) not found`,
				`(?i)no such element`,
				`(?i)stale element`,
				`(?i)selector .* (did not match|matched nothing|not found)`,
			),
			messageConfidence: 0.7,
		},
	}
}

// driverNetworkHints are substrings in driver error messages that point at
// a transport-level failure rather than a page-level one.
var driverNetworkHints = []string{
	"connection", "network", "timeout", "timed out",
	"refused", "reset", "dns", "proxy",
}
