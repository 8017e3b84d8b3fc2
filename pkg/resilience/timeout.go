package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines the timeout hierarchy for payment processing
//
// From outermost to innermost:
//
//	Caller (HTTP layer, jobs)
//	  -> Service layer (50s)
//	  -> Provider API call (30s)
//	  -> Database query (handled by the postgres adapter)
//
// Each layer must complete before its parent times out. Payment operations
// are not safely retryable without a provider-level idempotency key, so a
// timed-out provider call is resolved by status polling, never by blind
// re-invocation.
type TimeoutConfig struct {
	// Service layer timeouts
	Service time.Duration // Service operation timeout (default: 50s)
	Sweep   time.Duration // Reconciliation sweep timeout (default: 5 minutes)

	// Provider API timeouts
	ProviderCall time.Duration // Payment provider calls (default: 30s)
	StatusPoll   time.Duration // Individual status poll (default: 10s)
	Incidental   time.Duration // Auth token fetches and similar (default: 8s)
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		Service:      50 * time.Second,
		Sweep:        5 * time.Minute,
		ProviderCall: 30 * time.Second,
		StatusPoll:   10 * time.Second,
		Incidental:   8 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		Service:      4 * time.Second,
		Sweep:        30 * time.Second,
		ProviderCall: 2 * time.Second,
		StatusPoll:   1 * time.Second,
		Incidental:   1 * time.Second,
	}
}

// ServiceContext creates a context with timeout for service layer operations
func (tc *TimeoutConfig) ServiceContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Service)
}

// SweepContext creates a context with timeout for a reconciliation sweep
func (tc *TimeoutConfig) SweepContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Sweep)
}

// ProviderCallContext creates a context for a payment provider call
func (tc *TimeoutConfig) ProviderCallContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.ProviderCall)
}

// StatusPollContext creates a context for a single status poll
func (tc *TimeoutConfig) StatusPollContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.StatusPoll)
}

// IncidentalContext creates a context for incidental fetches such as auth
// token refreshes
func (tc *TimeoutConfig) IncidentalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Incidental)
}
