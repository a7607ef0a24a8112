package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmspell/llmspell/pkg/errs"
)

func TestTrackOperationLimit(t *testing.T) {
	tr := New(Limits{MaxOperations: 2})
	require.NoError(t, tr.TrackOperation())
	require.NoError(t, tr.TrackOperation())
	err := tr.TrackOperation()
	require.Error(t, err)
	assert.Equal(t, errs.KindResource, errs.KindOf(err))
}

func TestTrackOperationUnlimited(t *testing.T) {
	tr := New(Limits{})
	for i := 0; i < 100; i++ {
		require.NoError(t, tr.TrackOperation())
	}
}

func TestAllocateHighWaterMark(t *testing.T) {
	tr := New(Limits{MaxMemoryBytes: 1024})
	require.NoError(t, tr.Allocate(512))
	require.NoError(t, tr.Allocate(400))
	err := tr.Allocate(200)
	require.Error(t, err)
	assert.Equal(t, errs.KindResource, errs.KindOf(err))
}

func TestWithTimeoutExceeded(t *testing.T) {
	tr := New(Limits{OperationTimeout: 20 * time.Millisecond})
	err := tr.WithTimeout(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindResource, errs.KindOf(err))
}

func TestWithTimeoutCompletes(t *testing.T) {
	tr := New(Limits{OperationTimeout: time.Second})
	err := tr.WithTimeout(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestMetricsSnapshot(t *testing.T) {
	tr := New(Limits{})
	_ = tr.TrackOperation()
	_ = tr.Allocate(128)
	m := tr.Metrics()
	assert.Equal(t, int64(1), m.OperationsCount)
	assert.Equal(t, int64(128), m.MemoryBytes)
	assert.GreaterOrEqual(t, m.CPUTimeMs, int64(0))
}
