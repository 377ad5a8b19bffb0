package evidence

import (
	"context"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/reliability"
)

// ResilientProvider wraps a primary Provider in a circuit breaker and, once
// the breaker is open (or the primary call itself fails), falls back to a
// secondary Provider. This is the composition the rest of the codebase
// constructs: primary=AnthropicProvider, fallback=BedrockProvider, selected
// at startup based on which credentials resolved.
type ResilientProvider struct {
	primary  Provider
	fallback Provider
	breaker  *reliability.Breaker
}

// NewResilientProvider wires primary and fallback behind a named circuit
// breaker. fallback may be nil, in which case a tripped breaker or a
// primary failure simply returns the primary's error.
func NewResilientProvider(primary, fallback Provider) *ResilientProvider {
	return &ResilientProvider{
		primary:  primary,
		fallback: fallback,
		breaker:  reliability.NewBreaker(reliability.DefaultBreakerConfig("evidence-extraction")),
	}
}

// Extract implements Provider.
func (p *ResilientProvider) Extract(ctx context.Context, req Request) (domain.EvidenceBundle, error) {
	result, err := p.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return p.primary.Extract(ctx, req)
	})
	if err == nil {
		return result.(domain.EvidenceBundle), nil
	}
	if p.fallback == nil {
		return domain.EvidenceBundle{}, err
	}
	return p.fallback.Extract(ctx, req)
}
