/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/acronis/go-scrapekit/log"
)

// Default parameter values for RateLimiter.
const (
	DefaultBurst = 1
)

// MaxBackoff limits the delay returned by CalculateBackoff.
const MaxBackoff = 300 * time.Second

// bucketState holds the mutable part of a destination's token bucket.
// tokens is always kept in [0, burst]; a pending deficit is represented
// by lastRefill pointing into the future.
type bucketState struct {
	tokens     float64
	lastRefill time.Time
	requests   uint64
}

// RateLimiter is a token-bucket governor for outgoing requests.
// A separate bucket is created lazily for every destination and lives
// for the whole lifetime of the limiter.
type RateLimiter struct {
	rate  float64
	burst int

	mu      sync.Mutex
	buckets map[string]*bucketState
	total   uint64

	logger           log.FieldLogger
	metricsCollector MetricsCollector
}

// Opts represents an options for RateLimiter.
type Opts struct {
	// Burst is the bucket capacity, i.e. how many requests may proceed
	// immediately on a fresh destination before pacing applies.
	// If not set, DefaultBurst is used.
	Burst int

	// Logger is used for logging throttling events. Disabled if not set.
	Logger log.FieldLogger

	// MetricsCollector is used to collect statistics about limiter usage.
	// Disabled if not set.
	MetricsCollector MetricsCollector
}

// New creates a new RateLimiter with the passed steady-state rate (requests per second).
func New(requestsPerSecond float64) (*RateLimiter, error) {
	return NewWithOpts(requestsPerSecond, Opts{})
}

// NewWithOpts creates a new RateLimiter with the passed steady-state rate
// (requests per second) and options.
func NewWithOpts(requestsPerSecond float64, opts Opts) (*RateLimiter, error) {
	if requestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests per second must be positive, got %v", requestsPerSecond)
	}
	if opts.Burst < 0 {
		return nil, fmt.Errorf("burst must be positive, got %d", opts.Burst)
	}
	if opts.Burst == 0 {
		opts.Burst = DefaultBurst
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	return &RateLimiter{
		rate:             requestsPerSecond,
		burst:            opts.Burst,
		buckets:          make(map[string]*bucketState),
		logger:           opts.Logger,
		metricsCollector: opts.MetricsCollector,
	}, nil
}

// Wait delays the calling goroutine until the destination's bucket has a free
// token, consumes it and returns. It never fails; with a fresh destination it
// returns immediately for the first burst-size calls.
func (l *RateLimiter) Wait(destination string) {
	dst := NormalizeDestination(destination)
	delay := l.reserve(dst, time.Now())
	if delay > 0 {
		time.Sleep(delay)
	}
}

// WaitContext is the suspending counterpart of Wait: the delay is performed
// with a timer so that other goroutines keep running, and the passed context
// may abort it. A non-nil error is returned only when ctx is done; pacing
// itself never produces an error.
func (l *RateLimiter) WaitContext(ctx context.Context, destination string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := NormalizeDestination(destination)
	delay := l.reserve(dst, time.Now())
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// reserve consumes a token from the destination's bucket (creating it full if
// it does not exist yet) and returns how long the caller must wait before the
// consumed token is actually available.
func (l *RateLimiter) reserve(dst string, now time.Time) time.Duration {
	l.mu.Lock()
	b, ok := l.buckets[dst]
	if !ok {
		b = &bucketState{tokens: float64(l.burst), lastRefill: now}
		l.buckets[dst] = b
	}
	var delay time.Duration
	*b, delay = l.advance(*b, now)
	b.requests++
	l.total++
	l.mu.Unlock()

	l.metricsCollector.IncRequests(dst)
	if delay > 0 {
		l.metricsCollector.IncThrottled(dst)
		l.metricsCollector.ObserveWaitTime(dst, delay)
		l.logger.Debug("rate limit reached, waiting",
			log.String("destination", dst), log.Duration("wait_time", delay))
	}
	return delay
}

// advance is the pure bucket transition: it refills b from the elapsed
// wall-clock time, consumes one token and reports the required delay.
// When the bucket is in deficit, the consumed token is the one that will have
// accrued by now+delay, so lastRefill is moved to that moment and tokens stays
// at zero. Queued callers therefore stack their delays correctly.
func (l *RateLimiter) advance(b bucketState, now time.Time) (bucketState, time.Duration) {
	refilled := b.tokens + now.Sub(b.lastRefill).Seconds()*l.rate
	if refilled >= 1 {
		b.tokens = min(refilled, float64(l.burst)) - 1
		b.lastRefill = now
		return b, 0
	}
	delay := time.Duration((1 - refilled) / l.rate * float64(time.Second))
	b.tokens = 0
	b.lastRefill = now.Add(delay)
	return b, delay
}

// projectTokens returns the token level of b at the moment now without
// consuming anything.
func (l *RateLimiter) projectTokens(b *bucketState, now time.Time) float64 {
	refilled := b.tokens + now.Sub(b.lastRefill).Seconds()*l.rate
	return max(0, min(refilled, float64(l.burst)))
}

// CalculateBackoff returns the exponential backoff delay (2^attempt seconds)
// for the passed retry attempt number, capped at MaxBackoff.
func CalculateBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// 2^9 seconds already exceeds the cap.
	if attempt >= 9 {
		return MaxBackoff
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

// RetryAfter parses the value of a Retry-After HTTP header into a delay.
// Both the delta-seconds and the HTTP-date forms are supported.
// Missing, negative or unparseable values degrade to a zero delay:
// pacing must never fail a request.
func RetryAfter(headerValue string) time.Duration {
	v := strings.TrimSpace(headerValue)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// NormalizeDestination reduces a URL to its destination key: scheme+host[:port],
// lowercased. A value that does not look like a URL (e.g. a bare host) is
// lowercased and used as-is, so the fetch pipeline may pass either form.
func NormalizeDestination(destination string) string {
	if !strings.Contains(destination, "://") {
		return strings.ToLower(destination)
	}
	u, err := url.Parse(destination)
	if err != nil || u.Host == "" {
		return strings.ToLower(destination)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
