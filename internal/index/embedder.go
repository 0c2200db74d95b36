package index

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"golang.org/x/time/rate"
)

// LimitedEmbedder wraps an ai.Embedder with a client-side rate limit so
// bulk ingestion stays within the embedding API's quota. Reads share the
// same limiter; query traffic is light enough that this is harmless.
type LimitedEmbedder struct {
	inner   ai.Embedder
	limiter *rate.Limiter
}

// NewLimitedEmbedder wraps embedder at callsPerSecond with a burst of one.
// A non-positive rate disables limiting and returns the embedder unchanged.
func NewLimitedEmbedder(embedder ai.Embedder, callsPerSecond float64) ai.Embedder {
	if callsPerSecond <= 0 {
		return embedder
	}
	return &LimitedEmbedder{
		inner:   embedder,
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), 1),
	}
}

func (e *LimitedEmbedder) Name() string {
	return e.inner.Name()
}

func (e *LimitedEmbedder) Register(r api.Registry) {
	e.inner.Register(r)
}

func (e *LimitedEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.inner.Embed(ctx, req)
}
