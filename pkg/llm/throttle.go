package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// ThrottledProvider wraps a provider with a request-rate limiter so one
// busy loop cannot exhaust a provider's quota. Distinct from governance
// rate limiting, which operates per caller subject.
type ThrottledProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// Throttle wraps the provider at the given requests-per-second rate with
// the given burst. Non-positive rps disables throttling.
func Throttle(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &ThrottledProvider{
		inner:   p,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (t *ThrottledProvider) Name() string     { return t.inner.Name() }
func (t *ThrottledProvider) Models() []string { return t.inner.Models() }

// Complete waits for a rate token, then delegates. A cancelled context
// surfaces as the wait error.
func (t *ThrottledProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}
	return t.inner.Complete(ctx, req)
}
