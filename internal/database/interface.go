package database

import (
	"context"

	"github.com/quotearchive/quotesearch/internal/tenant"
)

// Searcher defines the store operations the HTTP layer depends on
// This interface enables testing with mocks
type Searcher interface {
	// Search runs a filtered, ranked, paginated search for one tenant
	Search(ctx context.Context, req SearchRequest) (*SearchResult, error)

	// VideoIDs lists the tenant's distinct video identifiers
	VideoIDs(ctx context.Context, t *tenant.Tenant) ([]string, error)

	// ChannelStats counts videos and passages per source channel
	ChannelStats(ctx context.Context, t *tenant.Tenant) ([]ChannelStat, error)

	// RandomQuotes samples up to 10 passages grouped by video
	RandomQuotes(ctx context.Context, t *tenant.Tenant) ([]VideoGroup, error)

	// CheckHealth pings the tenant's store and reports pool telemetry
	CheckHealth(ctx context.Context, t *tenant.Tenant) (*Health, error)
}

// Ensure Store implements Searcher interface
var _ Searcher = (*Store)(nil)
