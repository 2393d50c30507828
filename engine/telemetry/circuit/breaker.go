// Package circuit wraps sony/gobreaker with the settings shape grounded on
// the circuitbreaker.Manager pattern in the example pack (ReadyToTrip on
// consecutive failures), generalized so both the verifier's links probe and
// the agent's advisor client can share one construction path instead of
// hand-rolling failure counters.
package circuit

import (
	"time"

	"github.com/sony/gobreaker"
)

// NewBreaker builds a named circuit breaker that opens after
// consecutiveFailures in a row and stays open for cooldown before
// half-opening again.
func NewBreaker(name string, consecutiveFailures int, cooldown time.Duration) *gobreaker.CircuitBreaker {
	if consecutiveFailures <= 0 {
		consecutiveFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(consecutiveFailures)
		},
	})
}
