// Package retrieve turns user queries into ranked, attributed course
// content. The Resolver maps fuzzy course names onto canonical catalog
// titles; the Retriever orchestrates resolution, filtered content search
// and source attribution.
package retrieve

import (
	"context"
	"errors"
	"fmt"

	"github.com/lectern-ai/lectern/internal/index"
)

// ErrCourseNotFound indicates a course filter that resolved to nothing in
// the catalog. Distinct from ErrNoResults: the course name itself was the
// problem, not the query.
var ErrCourseNotFound = errors.New("course not found")

// CatalogSearcher is the slice of the index the Resolver needs.
type CatalogSearcher interface {
	SearchCatalog(ctx context.Context, query string, topK int) ([]index.CatalogEntry, error)
}

// Resolver maps partial or fuzzy course names ("MCP", "intro to ai") onto
// canonical catalog titles via semantic search over the catalog collection.
type Resolver struct {
	catalog CatalogSearcher
}

// NewResolver creates a Resolver over the given catalog.
func NewResolver(catalog CatalogSearcher) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve returns the canonical title of the best catalog match for name,
// or ErrCourseNotFound when the catalog is empty.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	entries, err := r.catalog.SearchCatalog(ctx, name, 1)
	if err != nil {
		return "", fmt.Errorf("resolving course %q: %w", name, err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, name)
	}
	return entries[0].Title, nil
}
