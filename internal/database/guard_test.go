package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Run("deadline becomes timeout error", func(t *testing.T) {
		err := classify("search", QueryTimeout, context.DeadlineExceeded)

		var terr *TimeoutError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, "search", terr.Op)
		assert.Equal(t, QueryTimeout, terr.Budget)
	})

	t.Run("wrapped deadline becomes timeout error", func(t *testing.T) {
		wrapped := errors.Join(errors.New("query canceled"), context.DeadlineExceeded)
		err := classify("count", CountTimeout, wrapped)

		var terr *TimeoutError
		assert.ErrorAs(t, err, &terr)
	})

	t.Run("driver error becomes store error", func(t *testing.T) {
		cause := errors.New("relation does not exist")
		err := classify("search", QueryTimeout, cause)

		var serr *StoreError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "search", serr.Op)
		assert.ErrorIs(t, err, cause)

		// The caller-facing message never leaks the driver detail.
		assert.NotContains(t, err.Error(), "relation")
	})
}

func TestGuarded_BudgetEnforced(t *testing.T) {
	err := guarded(context.Background(), "search", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "search", terr.Op)
	assert.Equal(t, 10*time.Millisecond, terr.Budget)
}

func TestGuarded_Success(t *testing.T) {
	err := guarded(context.Background(), "search", time.Second, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestGuarded_OpErrorClassified(t *testing.T) {
	cause := errors.New("connection reset")
	err := guarded(context.Background(), "count", time.Second, func(ctx context.Context) error {
		return cause
	})

	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, cause)
}

// An abandoned caller must not abort in-flight database work: the operation
// context survives the parent's cancellation and only its budget bounds it.
func TestOpBudget_DetachedFromCallerCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	opCtx, opCancel := opBudget(parent, time.Second)
	defer opCancel()

	select {
	case <-opCtx.Done():
		t.Fatal("operation context should survive parent cancellation")
	default:
	}

	deadline, ok := opCtx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)
}
