// Package reliability implements the Reliability Wrappers (C22): a circuit
// breaker around outbound network calls (the Attribution Agent Caller, Git
// Sync's fetch/pull/push) and a primary/fallback provider composition for
// calls that have a degraded-but-usable alternative.
package reliability

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
)

// BreakerConfig tunes a single named circuit breaker. Defaults mirror
// gobreaker's own: trip after 5 consecutive failures, half-open after 30s.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ConsecutiveTrips uint32
}

// DefaultBreakerConfig returns a config suitable for an external network
// call: a handful of half-open probes, a 30s cool-down, five-in-a-row trips
// the circuit.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         0,
		Timeout:          30 * time.Second,
		ConsecutiveTrips: 5,
	}
}

// Breaker wraps a gobreaker.CircuitBreaker with Falcon's error taxonomy: a
// call rejected because the circuit is open surfaces as KindTimeout so
// callers already handling timeouts handle this the same way.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker builds a Breaker that trips after ConsecutiveTrips consecutive
// failures and stays open for Timeout before allowing MaxRequests probes.
func NewBreaker(cfg BreakerConfig) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveTrips
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. When the circuit is open, fn is never
// called and Execute returns a KindTimeout error naming the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, falconerrors.New(falconerrors.KindTimeout, "execute breaker-guarded call", err).WithComponent(b.cb.Name())
		}
		return nil, err
	}
	return result, nil
}

// State reports the breaker's current gobreaker state, for health endpoints
// and logging.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
