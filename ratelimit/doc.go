/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides a client-side token-bucket governor for outgoing
// scraping requests, keyed by destination (scheme + host).
//
// Tokens refill continuously from wall-clock time, so a fresh destination gets
// a full burst of immediate requests and steady-state pacing after that.
// Both a blocking entry point (Wait) and a context-aware one (WaitContext) are
// provided; they share the same bucket arithmetic and differ only in how the
// computed delay is performed.
//
// The package also contains helpers for exponential retry backoff and for
// parsing Retry-After hints sent by overloaded servers.
package ratelimit
