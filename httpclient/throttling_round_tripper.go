/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package httpclient wires the resource-governance layer into http.Client:
// a round tripper that paces every outgoing request per destination and
// records server-supplied retry hints for the caller's retry loop.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/acronis/go-scrapekit/ratelimit"
)

// ThrottlingRoundTripperOpts represents an options for ThrottlingRoundTripper.
type ThrottlingRoundTripperOpts struct {
	// GlobalRateLimit adds a process-wide ceiling (requests per second) on top
	// of the per-destination pacing. Zero means no global ceiling.
	GlobalRateLimit int

	// GlobalBurst is the burst size of the global ceiling. Defaults to 1.
	GlobalBurst int
}

// ThrottlingRoundTripper wraps an object implementing http.RoundTripper interface
// and paces outgoing requests with the per-destination rate limiter before delegating.
// Responses carrying a Retry-After header (rate-limited or overloaded servers)
// have the parsed hint recorded; the retry loop itself stays with the caller.
type ThrottlingRoundTripper struct {
	Delegate http.RoundTripper

	RateLimiter *ratelimit.RateLimiter

	globalLimiter *rate.Limiter
}

// NewThrottlingRoundTripper creates a new ThrottlingRoundTripper.
func NewThrottlingRoundTripper(delegate http.RoundTripper, limiter *ratelimit.RateLimiter) (*ThrottlingRoundTripper, error) {
	return NewThrottlingRoundTripperWithOpts(delegate, limiter, ThrottlingRoundTripperOpts{})
}

// NewThrottlingRoundTripperWithOpts creates a new ThrottlingRoundTripper with options.
// For options that are not presented, the default values will be used.
func NewThrottlingRoundTripperWithOpts(
	delegate http.RoundTripper, limiter *ratelimit.RateLimiter, opts ThrottlingRoundTripperOpts,
) (*ThrottlingRoundTripper, error) {
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter must not be nil")
	}
	if opts.GlobalRateLimit < 0 {
		return nil, fmt.Errorf("global rate limit must be positive")
	}
	rt := &ThrottlingRoundTripper{Delegate: delegate, RateLimiter: limiter}
	if opts.GlobalRateLimit > 0 {
		if opts.GlobalBurst == 0 {
			opts.GlobalBurst = 1
		}
		rt.globalLimiter = rate.NewLimiter(rate.Limit(opts.GlobalRateLimit), opts.GlobalBurst)
	}
	return rt, nil
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
func (rt *ThrottlingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if rt.globalLimiter != nil {
		if err := rt.globalLimiter.Wait(r.Context()); err != nil {
			return nil, &ThrottlingWaitError{Inner: err}
		}
	}
	if err := rt.RateLimiter.WaitContext(r.Context(), r.URL.String()); err != nil {
		return nil, &ThrottlingWaitError{Inner: err}
	}

	resp, err := rt.Delegate.RoundTrip(r)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		if hint := ratelimit.RetryAfter(resp.Header.Get("Retry-After")); hint > 0 {
			rt.recordRetryAfterHint(r, hint)
		}
	}
	return resp, nil
}

// recordRetryAfterHint stashes the parsed Retry-After delay for the caller.
func (rt *ThrottlingRoundTripper) recordRetryAfterHint(r *http.Request, hint time.Duration) {
	if h, ok := r.Context().Value(ctxKeyRetryAfterHint).(*RetryAfterHint); ok {
		h.Delay = hint
	}
}

// RetryAfterHint receives the Retry-After delay parsed from a rate-limited
// response. Attach it to the request context with NewContextWithRetryAfterHint
// before sending and inspect Delay afterwards.
type RetryAfterHint struct {
	Delay time.Duration
}

type ctxKey int

const ctxKeyRetryAfterHint ctxKey = iota

// NewContextWithRetryAfterHint returns a copy of the request with the attached RetryAfterHint receiver.
func NewContextWithRetryAfterHint(r *http.Request, hint *RetryAfterHint) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxKeyRetryAfterHint, hint))
}

// ThrottlingWaitError is returned in RoundTrip method of ThrottlingRoundTripper
// when waiting for a free slot is interrupted by the request context.
type ThrottlingWaitError struct {
	Inner error
}

// Error implements error interface.
func (e *ThrottlingWaitError) Error() string {
	return fmt.Sprintf("wait due to client side throttling: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *ThrottlingWaitError) Unwrap() error {
	return e.Inner
}
