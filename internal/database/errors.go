package database

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ValidationError reports bad or unsafe filter input. Requests failing
// validation never reach the store; the caller gets an empty result.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s filter: %s", e.Field, e.Reason)
}

// ConfigurationError reports a tenant without a resolvable data store. The
// pool is not cached, so a later call can succeed once configuration is
// corrected.
type ConfigurationError struct {
	TenantID string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("tenant %s misconfigured: %s", e.TenantID, e.Reason)
}

// TimeoutError reports a database operation exceeding its wall-clock budget.
// Retryable from the caller's point of view.
type TimeoutError struct {
	Op     string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("database %s exceeded %s budget", e.Op, e.Budget)
}

// StoreError wraps a store-level failure. The message stays generic; the
// underlying error is for logs, never for callers.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed", e.Op)
}

func (e *StoreError) Unwrap() error { return e.Err }

// classify maps a raw driver error to the taxonomy above. A deadline overrun
// becomes a TimeoutError carrying the operation's budget.
func classify(op string, budget time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Budget: budget}
	}
	return &StoreError{Op: op, Err: err}
}
