package database

import (
	"fmt"
	"strings"
)

// ComposedQuery is a rendered SQL statement with its positional arguments.
type ComposedQuery struct {
	SQL  string
	Args []any
}

// QueryPair holds the ranked/paginated main query and its matching aggregate
// count query, both rendered from the same PredicateSet.
type QueryPair struct {
	Main  ComposedQuery
	Count ComposedQuery
}

// Compose assembles both queries for a normalized request. The main query
// groups passages by source video, aggregates them ordered by line number,
// ranks groups when an exact phrase is searched, and paginates with bound
// LIMIT/OFFSET parameters appended after all filter parameters. The count
// query answers how many videos and how many passages satisfy the filters,
// ignoring pagination.
func Compose(ps *PredicateSet, req SearchRequest) QueryPair {
	req = req.Normalize()
	return QueryPair{
		Main:  composeMain(ps, req),
		Count: composeCount(ps),
	}
}

func tsqueryFunc(exact bool) string {
	if exact {
		return "phraseto_tsquery"
	}
	return "websearch_to_tsquery"
}

func composeMain(ps *PredicateSet, req SearchRequest) ComposedQuery {
	cursor := 1
	clauses, args := renderPredicates(ps.preds, &cursor)

	// The term predicate is emitted first, so its parameter is always $1.
	// Postgres lets the headline and rank expressions reference it again
	// without re-binding.
	const termIdx = 1
	ranked := ps.exact && ps.HasTerm()

	var b strings.Builder
	b.WriteString("SELECT q.video_id, q.title, q.upload_date, q.channel_source,")
	b.WriteString("\n  json_agg(json_build_object(")
	b.WriteString("\n    'text', q.text,")
	if ps.HasTerm() {
		fmt.Fprintf(&b,
			"\n    'highlight', ts_headline('simple', q.text, %s('simple', $%d), 'StartSel=<b>, StopSel=</b>, MaxWords=18, MinWords=6'),",
			tsqueryFunc(ps.exact), termIdx)
	}
	b.WriteString("\n    'line_number', q.line_number,")
	b.WriteString("\n    'timestamp_start', q.timestamp_start")
	b.WriteString("\n  ) ORDER BY q.line_number::int) AS quotes")
	if ranked {
		fmt.Fprintf(&b,
			",\n  MAX(ts_rank(to_tsvector('simple', q.text), phraseto_tsquery('simple', $%d))) AS rank",
			termIdx)
	}
	b.WriteString("\nFROM quotes q")

	if len(clauses) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(clauses, " AND "))
	}

	b.WriteString("\nGROUP BY q.video_id, q.title, q.upload_date, q.channel_source")

	if order := orderClause(ranked, req.SortOrder); order != "" {
		b.WriteString("\nORDER BY ")
		b.WriteString(order)
	}

	// Pagination parameters come after every filter parameter.
	fmt.Fprintf(&b, "\nLIMIT $%d OFFSET $%d", cursor, cursor+1)
	args = append(args, req.Limit, req.offset())

	return ComposedQuery{SQL: b.String(), Args: args}
}

// orderClause maps the sort order to an ORDER BY body. Rank, when present,
// is the primary key with upload date secondary; the default order without a
// rank leaves the store's iteration order alone.
func orderClause(ranked bool, sort string) string {
	switch sort {
	case SortNewest:
		if ranked {
			return "rank DESC, q.upload_date DESC"
		}
		return "q.upload_date DESC"
	case SortOldest:
		if ranked {
			return "rank DESC, q.upload_date ASC"
		}
		return "q.upload_date ASC"
	default:
		if ranked {
			return "rank DESC"
		}
		return ""
	}
}

func composeCount(ps *PredicateSet) ComposedQuery {
	const countSelect = "SELECT COUNT(DISTINCT q.video_id) AS total_videos, COUNT(*) AS total_quotes\nFROM quotes q"

	term, rest := ps.split()

	// An exact-phrase term must count once per video, not once per passage:
	// the term predicate moves into a per-video join and its parameter is
	// bound separately, with the remaining predicates reindexed so their
	// parameters stay contiguous.
	if ps.exact && term != nil {
		cursor := 1
		termClauses, termArgs := renderPredicates([]Predicate{*term}, &cursor)
		restClauses, restArgs := renderPredicates(rest, &cursor)

		var b strings.Builder
		b.WriteString(countSelect)
		fmt.Fprintf(&b,
			"\nJOIN (SELECT DISTINCT video_id FROM quotes q WHERE %s) matched ON matched.video_id = q.video_id",
			termClauses[0])
		if len(restClauses) > 0 {
			b.WriteString("\nWHERE ")
			b.WriteString(strings.Join(restClauses, " AND "))
		}
		return ComposedQuery{SQL: b.String(), Args: append(termArgs, restArgs...)}
	}

	cursor := 1
	clauses, args := renderPredicates(ps.preds, &cursor)

	var b strings.Builder
	b.WriteString(countSelect)
	if len(clauses) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(clauses, " AND "))
	}
	return ComposedQuery{SQL: b.String(), Args: args}
}
