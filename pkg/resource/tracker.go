// Package resource implements the per-invocation resource accounting
// contract (C1): a Tracker built from a set of Limits that counts operations,
// tracks a memory high-water mark, and bounds a unit of work with a timeout,
// surfacing deterministic "limit exceeded" failures instead of blocking or
// panicking.
package resource

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/llmspell/llmspell/pkg/errs"
)

// Limits are optional ceilings; a nil/zero field skips its corresponding check.
// Tracker checks MaxMemoryBytes, MaxOperations and OperationTimeout;
// MaxCPUTimeMs and MaxOutputBytes are carried but not checked by Tracker.
type Limits struct {
	MaxMemoryBytes   int64
	MaxCPUTimeMs     int64
	MaxOperations    int64
	OperationTimeout time.Duration
	MaxOutputBytes   int64
}

// Metrics is an immutable snapshot returned by Tracker.Metrics.
type Metrics struct {
	MemoryBytes     int64
	CPUTimeMs       int64
	OperationsCount int64
}

// Tracker has process-local state; it never blocks and it is legal to drop it
// mid-operation since resources are logical counters, not OS handles.
type Tracker struct {
	limits    Limits
	started   time.Time
	ops       atomic.Int64
	memHWM    atomic.Int64
}

func New(limits Limits) *Tracker {
	return &Tracker{limits: limits, started: time.Now()}
}

// TrackOperation increments the operation counter and reports whether the
// configured operation-count ceiling has been crossed.
func (t *Tracker) TrackOperation() error {
	n := t.ops.Add(1)
	if t.limits.MaxOperations > 0 && n > t.limits.MaxOperations {
		return errs.Resource("operations_count")
	}
	return nil
}

// Allocate records an additional allocation of nBytes against the tracker's
// high-water mark and reports whether the memory ceiling has been crossed.
func (t *Tracker) Allocate(nBytes int64) error {
	hwm := t.memHWM.Add(nBytes)
	if t.limits.MaxMemoryBytes > 0 && hwm > t.limits.MaxMemoryBytes {
		return errs.Resource("memory_bytes")
	}
	return nil
}

// WithTimeout runs f bounded by the tracker's OperationTimeout, if any. When
// the timeout fires it returns errs.Resource("operation_timeout_ms") rather
// than waiting on f; f is expected to honor ctx cancellation.
func (t *Tracker) WithTimeout(ctx context.Context, f func(ctx context.Context) error) error {
	if t.limits.OperationTimeout <= 0 {
		return f(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, t.limits.OperationTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errs.Resource("operation_timeout_ms")
	}
}

// Metrics returns an immutable snapshot of the tracker's current state.
// CPU time is best-effort wall time between construction and this call.
func (t *Tracker) Metrics() Metrics {
	return Metrics{
		MemoryBytes:     t.memHWM.Load(),
		CPUTimeMs:       time.Since(t.started).Milliseconds(),
		OperationsCount: t.ops.Load(),
	}
}
