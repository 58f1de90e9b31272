package numerator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "explostock/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates sys_sequences: one counter per key.
type mockQuerier struct {
	mu     sync.Mutex
	values map[string]int64
	calls  int
	err    error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{values: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return &mockRow{err: m.err}
	}

	key := args[0].(string)
	switch {
	case strings.Contains(sql, "current_val = $2"):
		m.values[key] = args[1].(int64)
	case len(args) == 2:
		m.values[key] += args[1].(int64)
	default:
		m.values[key]++
	}
	return &mockRow{val: m.values[key]}
}

var day = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("TR")

	num, err := svc.GetNextNumber(ctx, cfg, nil, day)
	require.NoError(t, err)
	assert.Equal(t, "TR-20261019-00001", num)

	num, err = svc.GetNextNumber(ctx, cfg, nil, day)
	require.NoError(t, err)
	assert.Equal(t, "TR-20261019-00002", num)

	// The daily sequence restarts on the next day.
	num, err = svc.GetNextNumber(ctx, cfg, nil, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "TR-20261020-00001", num)
	assert.Equal(t, 3, q.calls)
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("TR")
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}

	num, err := svc.GetNextNumber(ctx, cfg, opts, day)
	require.NoError(t, err)
	assert.Equal(t, "TR-20261019-00001", num)
	assert.Equal(t, int64(10), q.values[cfg.Key(day)])

	num, err = svc.GetNextNumber(ctx, cfg, opts, day)
	require.NoError(t, err)
	assert.Equal(t, "TR-20261019-00002", num)
	assert.Equal(t, 1, q.calls, "second number comes from the cached range")

	for range 8 {
		_, err = svc.GetNextNumber(ctx, cfg, opts, day)
		require.NoError(t, err)
	}

	num, err = svc.GetNextNumber(ctx, cfg, opts, day)
	require.NoError(t, err)
	assert.Equal(t, "TR-20261019-00011", num)
	assert.Equal(t, int64(20), q.values[cfg.Key(day)])
	assert.Equal(t, 2, q.calls)
}

func TestSetNextNumber_InvalidatesCache(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("TR")
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}

	_, err := svc.GetNextNumber(ctx, cfg, opts, day)
	require.NoError(t, err)

	require.NoError(t, svc.SetNextNumber(ctx, cfg, day, 100))

	num, err := svc.GetNextNumber(ctx, cfg, opts, day)
	require.NoError(t, err)
	assert.Equal(t, "TR-20261019-00101", num)
}

func TestGetNextNumber_QueryError(t *testing.T) {
	q := newMockQuerier()
	q.err = errors.New("connection reset")
	svc := New(q)

	_, err := svc.GetNextNumber(context.Background(), corenumerator.DefaultConfig("TR"), nil, day)
	require.Error(t, err)
	assert.ErrorIs(t, err, q.err)
}

func TestGetNextNumber_ProviderPerCall(t *testing.T) {
	outer, inner := newMockQuerier(), newMockQuerier()
	type key struct{}
	svc := NewWithProvider(func(ctx context.Context) Querier {
		if ctx.Value(key{}) != nil {
			return inner
		}
		return outer
	})

	_, err := svc.GetNextNumber(context.WithValue(context.Background(), key{}, true), corenumerator.DefaultConfig("TR"), nil, day)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Zero(t, outer.calls)
}
