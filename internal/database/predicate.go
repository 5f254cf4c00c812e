package database

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/quotearchive/quotesearch/internal/tenant"
)

type predicateKind int

const (
	predicateTerm predicateKind = iota
	predicateChannel
	predicateGame
	predicateYear
)

// Predicate is one bound filter condition: a clause template holding one $%d
// verb per bound argument. Literal values are always bound, never
// interpolated into the clause text.
type Predicate struct {
	kind     predicateKind
	template string
	args     []any
}

// PredicateSet is the ordered predicate list for one request, the single
// source of truth both the main query and the count query are rendered from.
// Parameter indices are assigned at render time, in emission order.
type PredicateSet struct {
	preds   []Predicate
	exact   bool
	dropped []string
}

// Dropped lists the kinds of filters silently dropped during validation.
func (ps *PredicateSet) Dropped() []string {
	return ps.dropped
}

// HasTerm reports whether a full-text term predicate was emitted.
func (ps *PredicateSet) HasTerm() bool {
	return len(ps.preds) > 0 && ps.preds[0].kind == predicateTerm
}

// split separates the term predicate from the rest. The term, when present,
// is always first in emission order.
func (ps *PredicateSet) split() (*Predicate, []Predicate) {
	if !ps.HasTerm() {
		return nil, ps.preds
	}
	return &ps.preds[0], ps.preds[1:]
}

// renderPredicates assigns positional parameter indices from cursor, in
// order, and returns the rendered clauses with their flattened arguments.
// Indices are never reused; the cursor advances past every bound argument.
func renderPredicates(preds []Predicate, cursor *int) ([]string, []any) {
	clauses := make([]string, 0, len(preds))
	var args []any
	for _, p := range preds {
		idxs := make([]any, len(p.args))
		for i := range p.args {
			idxs[i] = *cursor
			*cursor++
		}
		clauses = append(clauses, fmt.Sprintf(p.template, idxs...))
		args = append(args, p.args...)
	}
	return clauses, args
}

// termMatchTemplate picks the tsquery parser: phrase matching for exact
// phrases, web-style syntax otherwise.
func termMatchTemplate(exact bool) string {
	if exact {
		return `to_tsvector('simple', q.text) @@ phraseto_tsquery('simple', $%d)`
	}
	return `to_tsvector('simple', q.text) @@ websearch_to_tsquery('simple', $%d)`
}

// defaultChannels is the whitelist applied when a tenant defines none.
var defaultChannels = []string{"librarian", "northernlion"}

var filterSanitizer = strings.NewReplacer(`'`, "", `"`, "", ";", "")

func sanitizeFilter(s string) string {
	return filterSanitizer.Replace(strings.TrimSpace(s))
}

// BuildPredicates translates a request into a PredicateSet, validating and
// sanitizing every filter. Emission order is fixed: term, channel, game,
// year. An unparseable year fails closed with a ValidationError; an
// unrecognized channel is silently dropped with a diagnostic.
func BuildPredicates(req SearchRequest, logger *zap.Logger) (*PredicateSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ps := &PredicateSet{exact: req.ExactPhrase}

	if term := req.term(); term != "" {
		ps.preds = append(ps.preds, Predicate{
			kind:     predicateTerm,
			template: termMatchTemplate(req.ExactPhrase),
			args:     []any{term},
		})
	}

	if ch := sanitizeFilter(req.Channel); ch != "" && !strings.EqualFold(ch, "all") {
		if canonical, ok := allowedChannel(req.Tenant, ch); ok {
			ps.preds = append(ps.preds, Predicate{
				kind:     predicateChannel,
				template: `q.channel_source = $%d`,
				args:     []any{canonical},
			})
		} else {
			ps.dropped = append(ps.dropped, "channel")
			logger.Warn("dropping unrecognized channel filter",
				zap.String("channel", ch),
				zap.String("tenant", req.Tenant.PoolKey()))
		}
	}

	if game := sanitizeFilter(req.Game); len(game) > 2 && !strings.EqualFold(game, "all") {
		ps.preds = append(ps.preds, Predicate{
			kind:     predicateGame,
			template: `q.game_name = $%d`,
			args:     []any{game},
		})
	}

	if year := strings.TrimSpace(req.Year); year != "" {
		y, err := strconv.Atoi(year)
		if err != nil || y < 1000 || y > 9999 {
			return nil, &ValidationError{Field: "year", Reason: fmt.Sprintf("%q is not a valid year", year)}
		}
		ps.preds = append(ps.preds, Predicate{
			kind:     predicateYear,
			template: `EXTRACT(YEAR FROM q.upload_date) = $%d`,
			args:     []any{y},
		})
	}

	return ps, nil
}

// allowedChannel matches a sanitized channel value against the tenant's
// whitelist (case-insensitive), returning the canonical whitelist entry.
// Tenants without a whitelist fall back to the fixed default set.
func allowedChannel(t *tenant.Tenant, value string) (string, bool) {
	whitelist := t.ChannelWhitelist()
	if len(whitelist) == 0 {
		whitelist = defaultChannels
	}
	for _, id := range whitelist {
		if strings.EqualFold(id, value) {
			return id, true
		}
	}
	return "", false
}
