package database

import (
	"strings"
	"unicode/utf8"

	"github.com/quotearchive/quotesearch/internal/tenant"
)

// Sort orders accepted by Search.
const (
	SortDefault = "default"
	SortNewest  = "newest"
	SortOldest  = "oldest"
)

const (
	defaultLimit = 10
	maxLimit     = 50

	// Terms shorter than this (after trimming) are not honored.
	minTermLength = 3
)

// SearchRequest carries one search call's term, filters, pagination, and the
// tenant whose rules and store apply. Request-local, never persisted.
type SearchRequest struct {
	SearchTerm  string
	Channel     string
	Game        string
	Year        string
	SortOrder   string
	Page        int
	Limit       int
	ExactPhrase bool
	Tenant      *tenant.Tenant
}

// Normalize trims the term and clamps pagination: page at least 1, limit
// within [1, 50] defaulting to 10. Callers reporting pagination back to the
// user must derive it from the normalized request, not the raw one.
func (r SearchRequest) Normalize() SearchRequest {
	r.SearchTerm = strings.TrimSpace(r.SearchTerm)
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit < 1 {
		r.Limit = defaultLimit
	}
	if r.Limit > maxLimit {
		r.Limit = maxLimit
	}
	if r.SortOrder == "" {
		r.SortOrder = SortDefault
	}
	return r
}

// term returns the trimmed search term, or "" when it is too short to honor.
// Length is counted in runes so multibyte terms are measured as the user
// typed them.
func (r SearchRequest) term() string {
	t := strings.TrimSpace(r.SearchTerm)
	if utf8.RuneCountInString(t) < minTermLength {
		return ""
	}
	return t
}

// offset computes the pagination offset for the normalized request.
func (r SearchRequest) offset() int {
	return (r.Page - 1) * r.Limit
}
