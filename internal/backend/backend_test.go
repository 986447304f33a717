package backend

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	id, err := Parse("interpreted")
	require.NoError(t, err)
	assert.Equal(t, Interpreted, id)

	id, err = Parse("native")
	require.NoError(t, err)
	assert.Equal(t, Native, id)

	_, err = Parse("hybrid")
	assert.Error(t, err)

	_, err = Parse("")
	assert.Error(t, err)
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, Native, Interpreted.Other())
	assert.Equal(t, Interpreted, Native.Other())

	assert.True(t, Interpreted.Valid())
	assert.True(t, Native.Valid())
	assert.False(t, Identity("x").Valid())

	assert.Equal(t, []Identity{Interpreted, Native}, Identities())
}

func TestDryRun(t *testing.T) {
	d := NewDryRun(Native, 800, 600, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	assert.Equal(t, Native, d.Identity())

	w, h, err := d.ScreenSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)

	require.NoError(t, d.MouseMove(ctx, 1, 2))
	require.NoError(t, d.MouseClick(ctx, 1, 2, ButtonLeft))
	require.NoError(t, d.MouseDoubleClick(ctx, 1, 2, ButtonLeft))
	require.NoError(t, d.MouseDrag(ctx, 1, 2, 3, 4, ButtonRight))
	require.NoError(t, d.MouseScroll(ctx, 1, 2, -3))
	require.NoError(t, d.KeyPress(ctx, "a", []string{"ctrl"}))
	require.NoError(t, d.KeyRelease(ctx, "a"))
	require.NoError(t, d.TypeText(ctx, "hello"))
	require.NoError(t, d.Probe(ctx))
}

func TestDryRunHonorsCancellation(t *testing.T) {
	d := NewDryRun(Interpreted, 800, 600, slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, d.MouseMove(ctx, 1, 2))
	assert.Error(t, d.Probe(ctx))
	_, _, err := d.ScreenSize(ctx)
	assert.Error(t, err)
}

var _ Capability = (*DryRun)(nil)
