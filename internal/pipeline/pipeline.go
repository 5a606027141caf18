// Package pipeline runs extracted items through an ordered middleware
// chain that normalizes, filters and validates them.
package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/AutoStalk/internal/types"
)

// Middleware processes an item and returns the (possibly modified) item.
// Return nil to drop the item from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms an item. Return nil to drop the item.
	Process(item *types.Item) (*types.Item, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates an empty Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// NewCleaning builds the standard post-extraction chain: whitespace
// normalization, price normalization, URL filtering, per-page
// deduplication and the final validity gate. The dedup stage is
// stateful, so build one pipeline per page.
func NewCleaning(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	p.Use(&PriceNormalizeMiddleware{})
	p.Use(&URLFilterMiddleware{})
	p.Use(NewPageDedupMiddleware())
	p.Use(&ValidityMiddleware{})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
}

// Process runs the item through all middleware in order. A nil item
// with nil error means a middleware dropped the item.
func (p *Pipeline) Process(item *types.Item) (*types.Item, error) {
	current := item

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				Item:  current,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("item dropped", "stage", mw.Name(), "url", item.URL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}
