package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Wall-clock budgets for the three suspension points of a request.
const (
	AcquireTimeout = 5 * time.Second
	QueryTimeout   = 10 * time.Second
	CountTimeout   = 5 * time.Second
)

// opBudget bounds an operation by its budget while detaching it from the
// caller's cancellation: an abandoned request still runs its in-flight
// database work to completion and releases the connection.
func opBudget(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), budget)
}

// acquireConn checks a connection out of the pool under the acquisition
// budget. A timeout here is fatal to the request.
func acquireConn(ctx context.Context, pool *pgxpool.Pool) (*pgxpool.Conn, error) {
	actx, cancel := opBudget(ctx, AcquireTimeout)
	defer cancel()

	conn, err := pool.Acquire(actx)
	if err != nil {
		return nil, classify("acquire", AcquireTimeout, err)
	}
	return conn, nil
}

// guarded runs op under its own deadline, classifying a deadline overrun as
// a TimeoutError for name. Whether that timeout is fatal or degradable is
// the caller's policy, not the guard's.
func guarded(ctx context.Context, name string, budget time.Duration, op func(context.Context) error) error {
	gctx, cancel := opBudget(ctx, budget)
	defer cancel()

	if err := op(gctx); err != nil {
		return classify(name, budget, err)
	}
	return nil
}
