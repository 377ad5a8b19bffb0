package reliability

import "context"

// WithFallback calls primary; if it returns an error, fallback is attempted
// once and its result (success or failure) is returned instead. Used by the
// Attribution Agent Caller (C12) to drop from the direct Anthropic API to
// AWS Bedrock when the primary provider is unavailable, and available for
// any other call with a degraded-but-usable alternative.
func WithFallback[T any](ctx context.Context, primary, fallback func(context.Context) (T, error)) (T, error) {
	result, err := primary(ctx)
	if err == nil {
		return result, nil
	}
	return fallback(ctx)
}
