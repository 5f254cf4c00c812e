package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/quotearchive/quotesearch/internal/tenant"
)

// PoolConfig holds per-tenant connection pool sizing.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPoolConfig caps each tenant at 10 connections, closes idle ones
// after 30s, and fails fast on slow connection attempts.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        10,
		MaxConnIdleTime: 30 * time.Second,
		ConnectTimeout:  2 * time.Second,
	}
}

// PoolStats is the telemetry snapshot of one tenant pool.
type PoolStats struct {
	Total   int32 `json:"total"`
	Idle    int32 `json:"idle"`
	Waiting int64 `json:"waiting"`
}

// PoolManager caches one connection pool per tenant id, created lazily and
// exactly once. Process-scoped: constructed at startup and passed by
// reference to request handlers.
type PoolManager struct {
	cfg    PoolConfig
	logger *zap.Logger

	mu    sync.RWMutex
	pools map[string]*pgxpool.Pool

	// connect is swappable in tests.
	connect func(ctx context.Context, connString string, cfg PoolConfig) (*pgxpool.Pool, error)
}

// NewPoolManager creates an empty manager with the given sizing.
func NewPoolManager(cfg PoolConfig, logger *zap.Logger) *PoolManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolManager{
		cfg:     cfg,
		logger:  logger,
		pools:   make(map[string]*pgxpool.Pool),
		connect: connectPool,
	}
}

// Get returns the pool for the tenant, creating it on first use. A nil
// tenant maps to the "default" pool. Concurrent first-time callers for the
// same tenant observe the same pool: the check-then-create is atomic per
// key under the manager's lock. Creation failures are not cached, so a
// retry after corrected configuration can succeed.
func (m *PoolManager) Get(ctx context.Context, t *tenant.Tenant) (*pgxpool.Pool, error) {
	key := t.PoolKey()

	m.mu.RLock()
	pool, ok := m.pools[key]
	m.mu.RUnlock()
	if ok {
		return pool, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if pool, ok := m.pools[key]; ok {
		return pool, nil
	}

	connString := t.DatabaseURL()
	if connString == "" {
		return nil, &ConfigurationError{TenantID: key, Reason: "no database connection string resolves"}
	}

	pool, err := m.connect(ctx, connString, m.cfg)
	if err != nil {
		return nil, &ConfigurationError{TenantID: key, Reason: err.Error()}
	}

	m.pools[key] = pool
	m.logger.Info("created tenant connection pool",
		zap.String("tenant", key),
		zap.Int32("max_conns", m.cfg.MaxConns))
	return pool, nil
}

// Stats snapshots the telemetry of every live pool, keyed by tenant id.
func (m *PoolManager) Stats() map[string]PoolStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]PoolStats, len(m.pools))
	for key, pool := range m.pools {
		out[key] = snapshotPool(pool)
	}
	return out
}

// Close tears down every cached pool. Shutdown only.
func (m *PoolManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, pool := range m.pools {
		pool.Close()
		delete(m.pools, key)
	}
}

func snapshotPool(pool *pgxpool.Pool) PoolStats {
	st := pool.Stat()
	return PoolStats{
		Total:   st.TotalConns(),
		Idle:    st.IdleConns(),
		Waiting: st.EmptyAcquireCount(),
	}
}

// connectPool builds a pgx pool from the connection string. Connections are
// established lazily; a broken database surfaces on first acquire, a broken
// descriptor surfaces here.
func connectPool(ctx context.Context, connString string, cfg PoolConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	pc.MaxConnLifetime = time.Hour
	pc.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	return pool, nil
}
