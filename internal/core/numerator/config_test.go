package numerator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_FormatAndKey(t *testing.T) {
	period := time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)
	cfg := DefaultConfig("TR")

	assert.Equal(t, "TR_2026_10_19", cfg.Key(period))
	assert.Equal(t, "TR-20261019-00042", cfg.Format(period, 42))

	cfg.DateLayout = ""
	cfg.ResetPeriod = ResetNever
	assert.Equal(t, "TR", cfg.Key(period))
	assert.Equal(t, "TR-00042", cfg.Format(period, 42))
}

func TestSequence_RestartsPerDay(t *testing.T) {
	seq := NewSequence()
	ctx := context.Background()
	cfg := DefaultConfig("TR")
	day1 := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	n1, err := seq.GetNextNumber(ctx, cfg, nil, day1)
	require.NoError(t, err)
	n2, err := seq.GetNextNumber(ctx, cfg, nil, day1)
	require.NoError(t, err)
	n3, err := seq.GetNextNumber(ctx, cfg, nil, day2)
	require.NoError(t, err)

	assert.Equal(t, "TR-20261019-00001", n1)
	assert.Equal(t, "TR-20261019-00002", n2)
	assert.Equal(t, "TR-20261020-00001", n3)
}
