/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import "time"

// DestinationStats is a read-only snapshot of a single destination's bucket.
type DestinationStats struct {
	// Requests is the number of Wait/WaitContext calls made for the destination.
	Requests uint64

	// Tokens is the current token level projected to the snapshot moment.
	Tokens float64
}

// Stats is a read-only snapshot of the whole limiter.
type Stats struct {
	// TotalRequests is the number of Wait/WaitContext calls across all destinations.
	TotalRequests uint64

	// Tokens is the sum of the current token levels of all buckets.
	Tokens float64

	// MaxTokens is the configured bucket capacity (burst size).
	MaxTokens int

	// Rate is the configured steady-state rate in requests per second.
	Rate float64

	// Destinations maps every destination seen so far to its bucket snapshot.
	Destinations map[string]DestinationStats
}

// Stats returns a snapshot of the limiter state: the total request count,
// the current token levels and a per-destination breakdown.
// It is purely derived from the bucket states and consumes nothing.
func (l *RateLimiter) Stats() Stats {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		TotalRequests: l.total,
		MaxTokens:     l.burst,
		Rate:          l.rate,
		Destinations:  make(map[string]DestinationStats, len(l.buckets)),
	}
	for dst, b := range l.buckets {
		tokens := l.projectTokens(b, now)
		s.Destinations[dst] = DestinationStats{Requests: b.requests, Tokens: tokens}
		s.Tokens += tokens
	}
	return s
}

// DestinationStats returns the snapshot of a single destination's bucket.
// A destination that has not been seen yet reports zero requests and a full
// bucket, which is exactly the state its bucket would be created in.
func (l *RateLimiter) DestinationStats(destination string) DestinationStats {
	dst := NormalizeDestination(destination)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[dst]
	if !ok {
		return DestinationStats{Tokens: float64(l.burst)}
	}
	return DestinationStats{Requests: b.requests, Tokens: l.projectTokens(b, now)}
}
