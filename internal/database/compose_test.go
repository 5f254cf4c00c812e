package database

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func composeFor(t *testing.T, req SearchRequest) (*PredicateSet, QueryPair) {
	t.Helper()
	ps, err := BuildPredicates(req, zaptest.NewLogger(t))
	require.NoError(t, err)
	return ps, Compose(ps, req)
}

func TestCompose_TermParamIsFirst(t *testing.T) {
	_, qp := composeFor(t, SearchRequest{
		SearchTerm: "busted",
		Year:       "2021",
		Tenant:     testTenant(),
	})

	require.NotEmpty(t, qp.Main.Args)
	assert.Equal(t, "busted", qp.Main.Args[0])
	// The headline expression reuses $1 rather than binding the term again.
	assert.Contains(t, qp.Main.SQL, "ts_headline('simple', q.text, websearch_to_tsquery('simple', $1)")
	assert.Contains(t, qp.Main.SQL, "websearch_to_tsquery('simple', $1)")
}

func TestCompose_PaginationParamsLast(t *testing.T) {
	_, qp := composeFor(t, SearchRequest{
		SearchTerm: "busted",
		Channel:    "librarian",
		Year:       "2021",
		Page:       3,
		Limit:      20,
		Tenant:     testTenant(),
	})

	// term, channel, year, then limit and offset.
	require.Len(t, qp.Main.Args, 5)
	assert.Equal(t, 20, qp.Main.Args[3])
	assert.Equal(t, 40, qp.Main.Args[4])
	assert.Contains(t, qp.Main.SQL, "LIMIT $4 OFFSET $5")
}

// The count query must see exactly the filter parameters the main query was
// built with, value for value, so the totals always describe the same result
// set as the fetched page.
func TestCompose_CountArgsMatchMainFilters(t *testing.T) {
	tests := []struct {
		name string
		req  SearchRequest
	}{
		{"term only", SearchRequest{SearchTerm: "busted"}},
		{"term and filters", SearchRequest{SearchTerm: "busted", Channel: "librarian", Game: "Isaac Repentance", Year: "2021", Tenant: testTenant()}},
		{"filters only", SearchRequest{Channel: "northernlion", Year: "2019", Tenant: testTenant()}},
		{"exact phrase", SearchRequest{SearchTerm: "certified classic", ExactPhrase: true}},
		{"exact phrase with filters", SearchRequest{SearchTerm: "certified classic", ExactPhrase: true, Game: "Noita", Year: "2020"}},
		{"no predicates at all", SearchRequest{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, qp := composeFor(t, tt.req)

			// Main args end with LIMIT and OFFSET; everything before them is
			// filter parameters.
			require.GreaterOrEqual(t, len(qp.Main.Args), 2)
			filterArgs := qp.Main.Args[:len(qp.Main.Args)-2]
			require.Len(t, qp.Count.Args, len(filterArgs))
			for i := range filterArgs {
				assert.Equal(t, filterArgs[i], qp.Count.Args[i])
			}
		})
	}
}

func TestCompose_ExactPhraseCountRestructured(t *testing.T) {
	_, qp := composeFor(t, SearchRequest{
		SearchTerm:  "certified classic",
		ExactPhrase: true,
		Channel:     "librarian",
		Year:        "2021",
		Tenant:      testTenant(),
	})

	// The term moves into a per-video join so a phrase hit counts each video
	// once; the remaining predicates stay in the outer WHERE, reindexed
	// contiguously after the term parameter.
	assert.Contains(t, qp.Count.SQL,
		"JOIN (SELECT DISTINCT video_id FROM quotes q WHERE to_tsvector('simple', q.text) @@ phraseto_tsquery('simple', $1)) matched ON matched.video_id = q.video_id")
	assert.Contains(t, qp.Count.SQL, "q.channel_source = $2")
	assert.Contains(t, qp.Count.SQL, "EXTRACT(YEAR FROM q.upload_date) = $3")
	assert.Equal(t, []any{"certified classic", "librarian", 2021}, qp.Count.Args)
}

func TestCompose_NonExactCountIsFlat(t *testing.T) {
	_, qp := composeFor(t, SearchRequest{SearchTerm: "busted", Year: "2021"})

	assert.NotContains(t, qp.Count.SQL, "JOIN")
	assert.Contains(t, qp.Count.SQL, "websearch_to_tsquery('simple', $1)")
	assert.Contains(t, qp.Count.SQL, "EXTRACT(YEAR FROM q.upload_date) = $2")
	assert.Equal(t, []any{"busted", 2021}, qp.Count.Args)
}

func TestCompose_RankOnlyForExactPhrase(t *testing.T) {
	_, exact := composeFor(t, SearchRequest{SearchTerm: "certified classic", ExactPhrase: true})
	assert.Contains(t, exact.Main.SQL, "ts_rank")
	assert.Contains(t, exact.Main.SQL, "ORDER BY rank DESC")

	_, loose := composeFor(t, SearchRequest{SearchTerm: "certified classic"})
	assert.NotContains(t, loose.Main.SQL, "ts_rank")
}

func TestCompose_NoHighlightWithoutTerm(t *testing.T) {
	_, qp := composeFor(t, SearchRequest{Year: "2021"})
	assert.NotContains(t, qp.Main.SQL, "ts_headline")
}

func TestCompose_PassagesOrderedByLineNumber(t *testing.T) {
	_, qp := composeFor(t, SearchRequest{SearchTerm: "busted"})
	assert.Contains(t, qp.Main.SQL, "ORDER BY q.line_number::int) AS quotes")
}

func TestOrderClause(t *testing.T) {
	tests := []struct {
		ranked bool
		sort   string
		want   string
	}{
		{false, SortDefault, ""},
		{false, SortNewest, "q.upload_date DESC"},
		{false, SortOldest, "q.upload_date ASC"},
		{true, SortDefault, "rank DESC"},
		{true, SortNewest, "rank DESC, q.upload_date DESC"},
		{true, SortOldest, "rank DESC, q.upload_date ASC"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("ranked=%v/%s", tt.ranked, tt.sort), func(t *testing.T) {
			assert.Equal(t, tt.want, orderClause(tt.ranked, tt.sort))
		})
	}
}

func TestCompose_DefaultUnrankedHasNoOrderBy(t *testing.T) {
	_, qp := composeFor(t, SearchRequest{SearchTerm: "busted"})

	// GROUP BY is present but nothing orders the groups.
	idx := strings.Index(qp.Main.SQL, "GROUP BY")
	require.Greater(t, idx, 0)
	assert.NotContains(t, qp.Main.SQL[idx:], "ORDER BY q.upload_date")
	assert.NotContains(t, qp.Main.SQL[idx:], "ORDER BY rank")
}
