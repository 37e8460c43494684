package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileManagerRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(Config{Enabled: true, Dir: t.TempDir()})
	require.NoError(t, err)

	_, err = m.Load(ctx, "2025-2026", "training")
	assert.ErrorIs(t, err, ErrNoCheckpoint)

	cp := &Checkpoint{
		Season:    "2025-2026",
		Kind:      "training",
		Watermark: 7,
		RunID:     "run-1",
		UpdatedAt: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, m.Save(ctx, cp))

	got, err := m.Load(ctx, "2025-2026", "training")
	require.NoError(t, err)
	assert.Equal(t, cp, got)

	_, err = m.Load(ctx, "2025-2026", "prediction")
	assert.ErrorIs(t, err, ErrNoCheckpoint, "kinds are tracked separately")
}

func TestUpToDate(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(Config{Enabled: true, Dir: t.TempDir()})
	require.NoError(t, err)

	ok, err := UpToDate(ctx, m, "2025-2026", "features", 5, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Save(ctx, &Checkpoint{Season: "2025-2026", Kind: "features", Watermark: 5, ConfigHash: "abc"}))
	ok, err = UpToDate(ctx, m, "2025-2026", "features", 5, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = UpToDate(ctx, m, "2025-2026", "features", 6, "abc")
	assert.False(t, ok, "new watermark")

	ok, _ = UpToDate(ctx, m, "2025-2026", "features", 5, "def")
	assert.False(t, ok, "changed configuration")
}

func TestNoopManager(t *testing.T) {
	m, err := NewManager(Config{})
	require.NoError(t, err)
	require.NoError(t, m.Save(context.Background(), &Checkpoint{Watermark: 3}))
	_, err = m.Load(context.Background(), "s", "training")
	assert.ErrorIs(t, err, ErrNoCheckpoint)
}
