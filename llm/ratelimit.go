package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedProvider throttles outbound completions with a token bucket.
// It keeps bursty workflow runs from tripping upstream rate limits in the
// first place, rather than relying on 429 handling after the fact.
type rateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// RateLimited wraps a provider so that completions are throttled to rps
// requests per second with the given burst.
func RateLimited(inner Provider, rps float64, burst int) Provider {
	return &rateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (p *rateLimitedProvider) Name() string { return p.inner.Name() }

func (p *rateLimitedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return p.inner.Completion(ctx, req)
}
