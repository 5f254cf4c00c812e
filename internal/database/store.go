package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/quotearchive/quotesearch/internal/observability"
	"github.com/quotearchive/quotesearch/internal/tenant"
)

// Passage is one matched transcript line within a video.
type Passage struct {
	Text           string `json:"text"`
	Highlight      string `json:"highlight,omitempty"`
	LineNumber     string `json:"line_number"`
	TimestampStart string `json:"timestamp_start"`
}

// VideoGroup collects every matched passage of one source video.
type VideoGroup struct {
	VideoID       string    `json:"video_id"`
	Title         string    `json:"title"`
	UploadDate    time.Time `json:"upload_date"`
	ChannelSource string    `json:"channel_source"`
	Rank          float64   `json:"rank,omitempty"`
	Quotes        []Passage `json:"quotes"`
}

// SearchResult is the grouped, counted outcome of one search call.
type SearchResult struct {
	Data        []VideoGroup `json:"data"`
	TotalVideos int          `json:"totalVideos"`
	TotalQuotes int          `json:"totalQuotes"`
}

// ChannelStat is a per-channel document/passage count.
type ChannelStat struct {
	ChannelSource string `json:"channel_source"`
	VideoCount    int    `json:"videoCount"`
	TotalQuotes   int    `json:"totalQuotes"`
}

// Health reports a tenant store's reachability and pool telemetry.
type Health struct {
	Healthy        bool      `json:"healthy"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	Pool           PoolStats `json:"poolStats"`
}

// querier is the subset of a pooled connection the operations execute
// through.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store executes search operations against per-tenant connection pools.
type Store struct {
	pools   *PoolManager
	logger  *zap.Logger
	metrics *observability.Metrics

	// exec is swappable in tests.
	exec func(ctx context.Context, t *tenant.Tenant, fn func(q querier) error) error
}

// NewStore wires the store to its pool manager. metrics may be nil.
func NewStore(pools *PoolManager, logger *zap.Logger, metrics *observability.Metrics) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{pools: pools, logger: logger, metrics: metrics}
	s.exec = s.withConn
	return s
}

func emptyResult() *SearchResult {
	return &SearchResult{Data: []VideoGroup{}}
}

// Search runs the composed main and count queries for the request. Requests
// that fail validation return an empty result without touching the store.
// A count-query timeout degrades totals to zero but keeps the fetched rows;
// an acquisition or main-query timeout fails the request.
func (s *Store) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	req = req.Normalize()

	// A non-empty term too short to honor fails closed rather than silently
	// searching for something else.
	if req.SearchTerm != "" && utf8.RuneCountInString(req.SearchTerm) < minTermLength {
		s.logger.Debug("search term too short, returning empty result",
			zap.String("tenant", req.Tenant.PoolKey()))
		return emptyResult(), nil
	}

	ps, err := BuildPredicates(req, s.logger)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.logger.Warn("search request failed validation",
				zap.String("field", verr.Field),
				zap.String("reason", verr.Reason),
				zap.String("tenant", req.Tenant.PoolKey()))
			s.metrics.RecordError(ctx, "validation", "search")
			return emptyResult(), nil
		}
		return nil, err
	}
	for _, kind := range ps.Dropped() {
		s.metrics.RecordPredicateDropped(ctx, kind)
	}

	queries := Compose(ps, req)
	ranked := ps.exact && ps.HasTerm()
	result := emptyResult()

	err = s.exec(ctx, req.Tenant, func(q querier) error {
		start := time.Now()
		qerr := guarded(ctx, "search", QueryTimeout, func(gctx context.Context) error {
			rows, err := q.Query(gctx, queries.Main.SQL, queries.Main.Args...)
			if err != nil {
				return err
			}
			defer rows.Close()

			groups, err := scanGroups(rows, ranked)
			if err != nil {
				return err
			}
			result.Data = groups
			return nil
		})
		s.metrics.RecordDBQuery(ctx, "search", durationMs(start), qerr)
		if qerr != nil {
			return qerr
		}

		start = time.Now()
		cerr := guarded(ctx, "count", CountTimeout, func(gctx context.Context) error {
			return q.QueryRow(gctx, queries.Count.SQL, queries.Count.Args...).
				Scan(&result.TotalVideos, &result.TotalQuotes)
		})
		s.metrics.RecordDBQuery(ctx, "count", durationMs(start), cerr)
		if cerr != nil {
			var terr *TimeoutError
			if errors.As(cerr, &terr) {
				// Approximate totals beat failing the whole request.
				s.logger.Warn("count query timed out, degrading totals to zero",
					zap.String("tenant", req.Tenant.PoolKey()),
					zap.Duration("budget", terr.Budget))
				s.metrics.RecordCountDegraded(ctx, req.Tenant.PoolKey())
				result.TotalVideos, result.TotalQuotes = 0, 0
				return nil
			}
			return cerr
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordError(ctx, errorKind(err), "search")
		s.logger.Error("search failed",
			zap.String("tenant", req.Tenant.PoolKey()),
			zap.Error(err))
		return nil, err
	}

	s.metrics.RecordSearchResults(ctx, req.Tenant.PoolKey(), int64(len(result.Data)))
	return result, nil
}

// VideoIDs lists every distinct video identifier in the tenant's store.
func (s *Store) VideoIDs(ctx context.Context, t *tenant.Tenant) ([]string, error) {
	const query = `SELECT DISTINCT video_id FROM quotes ORDER BY video_id`

	var ids []string
	err := s.exec(ctx, t, func(q querier) error {
		start := time.Now()
		qerr := guarded(ctx, "videos", QueryTimeout, func(gctx context.Context) error {
			rows, err := q.Query(gctx, query)
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				var id string
				if err := rows.Scan(&id); err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return rows.Err()
		})
		s.metrics.RecordDBQuery(ctx, "videos", durationMs(start), qerr)
		return qerr
	})
	if err != nil {
		s.metrics.RecordError(ctx, errorKind(err), "videos")
		return nil, err
	}
	return ids, nil
}

// ChannelStats counts videos and passages per source channel.
func (s *Store) ChannelStats(ctx context.Context, t *tenant.Tenant) ([]ChannelStat, error) {
	const query = `
		SELECT COALESCE(channel_source, 'Unknown') AS channel_source,
		       COUNT(DISTINCT video_id) AS video_count,
		       COUNT(*) AS total_quotes
		FROM quotes
		WHERE channel_source IS NOT NULL AND channel_source <> ''
		GROUP BY channel_source
		ORDER BY video_count DESC
	`

	var stats []ChannelStat
	err := s.exec(ctx, t, func(q querier) error {
		start := time.Now()
		qerr := guarded(ctx, "stats", QueryTimeout, func(gctx context.Context) error {
			rows, err := q.Query(gctx, query)
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				var cs ChannelStat
				if err := rows.Scan(&cs.ChannelSource, &cs.VideoCount, &cs.TotalQuotes); err != nil {
					return err
				}
				stats = append(stats, cs)
			}
			return rows.Err()
		})
		s.metrics.RecordDBQuery(ctx, "stats", durationMs(start), qerr)
		return qerr
	})
	if err != nil {
		s.metrics.RecordError(ctx, errorKind(err), "stats")
		return nil, err
	}
	return stats, nil
}

// RandomQuotes returns up to 10 passages drawn with a block-level table
// sample, grouped by video. TABLESAMPLE reads a statistical block sample
// instead of ordering the whole table randomly.
func (s *Store) RandomQuotes(ctx context.Context, t *tenant.Tenant) ([]VideoGroup, error) {
	const query = `
		SELECT q.video_id, q.title, q.upload_date, q.channel_source,
		       q.text, q.line_number, q.timestamp_start
		FROM quotes q TABLESAMPLE SYSTEM (1)
		ORDER BY RANDOM()
		LIMIT 10
	`

	var groups []VideoGroup
	err := s.exec(ctx, t, func(q querier) error {
		start := time.Now()
		qerr := guarded(ctx, "random", QueryTimeout, func(gctx context.Context) error {
			rows, err := q.Query(gctx, query)
			if err != nil {
				return err
			}
			defer rows.Close()

			byVideo := make(map[string]int)
			for rows.Next() {
				var (
					g VideoGroup
					p Passage
				)
				if err := rows.Scan(&g.VideoID, &g.Title, &g.UploadDate, &g.ChannelSource,
					&p.Text, &p.LineNumber, &p.TimestampStart); err != nil {
					return err
				}
				if i, ok := byVideo[g.VideoID]; ok {
					groups[i].Quotes = append(groups[i].Quotes, p)
					continue
				}
				g.Quotes = []Passage{p}
				byVideo[g.VideoID] = len(groups)
				groups = append(groups, g)
			}
			return rows.Err()
		})
		s.metrics.RecordDBQuery(ctx, "random", durationMs(start), qerr)
		return qerr
	})
	if err != nil {
		s.metrics.RecordError(ctx, errorKind(err), "random")
		return nil, err
	}
	return groups, nil
}

// CheckHealth pings the tenant's store and snapshots its pool telemetry.
// An unreachable store is reported, not returned as an error.
func (s *Store) CheckHealth(ctx context.Context, t *tenant.Tenant) (*Health, error) {
	pool, err := s.pools.Get(ctx, t)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pingErr := guarded(ctx, "health", AcquireTimeout, func(gctx context.Context) error {
		return pool.Ping(gctx)
	})

	h := &Health{
		Healthy:        pingErr == nil,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Pool:           snapshotPool(pool),
	}
	s.metrics.RecordPoolStats(ctx, t.PoolKey(), int64(h.Pool.Total), int64(h.Pool.Idle))

	if pingErr != nil {
		s.logger.Warn("tenant store health check failed",
			zap.String("tenant", t.PoolKey()),
			zap.Error(pingErr))
	}
	return h, nil
}

// withConn resolves the tenant's pool and checks out one connection for the
// duration of fn. The connection is released exactly once, on every exit
// path.
func (s *Store) withConn(ctx context.Context, t *tenant.Tenant, fn func(q querier) error) error {
	pool, err := s.pools.Get(ctx, t)
	if err != nil {
		return err
	}

	conn, err := acquireConn(ctx, pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	return fn(conn)
}

var _ querier = (*pgxpool.Conn)(nil)

// scanGroups reads grouped search rows, decoding the aggregated passage
// JSON. The rank column is present only on ranked queries.
func scanGroups(rows pgx.Rows, ranked bool) ([]VideoGroup, error) {
	groups := []VideoGroup{}
	for rows.Next() {
		var (
			g          VideoGroup
			quotesJSON []byte
		)
		dest := []any{&g.VideoID, &g.Title, &g.UploadDate, &g.ChannelSource, &quotesJSON}
		if ranked {
			dest = append(dest, &g.Rank)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(quotesJSON, &g.Quotes); err != nil {
			return nil, fmt.Errorf("decoding passage aggregate: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func durationMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func errorKind(err error) string {
	switch {
	case errors.As(err, new(*ValidationError)):
		return "validation"
	case errors.As(err, new(*ConfigurationError)):
		return "configuration"
	case errors.As(err, new(*TimeoutError)):
		return "timeout"
	default:
		return "store"
	}
}
