package interfaces

import (
	"context"

	"github.com/ternarybob/messis/internal/models"
)

// Session is the opaque authenticated session handle established before the
// engine starts (the login step is interactive and outside the engine).
// Invalidity is fatal to the running phase.
type Session interface {
	IsValid(ctx context.Context) bool
}

// PageFetcher renders portal pages and reads raw DOM content. It owns all
// site-specific selector and markup knowledge; the engine only sees rows,
// pagination signals and section payloads.
type PageFetcher interface {
	// Partitions discovers the source partitions for a category. Categories
	// served by a single global table return one empty partition label.
	Partitions(ctx context.Context, category models.Category) ([]string, error)

	// FetchListPage renders page pageIdx of a partition's result set.
	// Reaching past the last page is reported via HasNextPage=false, not as
	// an error.
	FetchListPage(ctx context.Context, category models.Category, partition string, pageIdx int) (*models.ListPage, error)

	// FetchDetailPage renders a detail page and extracts every known section.
	// Per-section failures are reported independently in the result map; an
	// error return means the page itself was unreachable.
	FetchDetailPage(ctx context.Context, category models.Category, url string) (map[string]models.SectionResult, error)
}
