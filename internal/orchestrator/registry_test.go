package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *registry {
	return newRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistry_StartRejectsDuplicate(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	taskID := uuid.New()

	ctx, ok := reg.start(context.Background(), taskID)
	require.True(t, ok)
	require.NotNil(t, ctx)

	_, ok = reg.start(context.Background(), taskID)
	assert.False(t, ok, "a second workflow for the same task must not start")
	assert.True(t, reg.isActive(taskID))
}

func TestRegistry_StopCancelsContext(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	taskID := uuid.New()

	ctx, ok := reg.start(context.Background(), taskID)
	require.True(t, ok)

	assert.True(t, reg.stop(taskID))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, reg.isActive(taskID))

	assert.False(t, reg.stop(taskID), "stopping an inactive task reports false")
}

func TestRegistry_RemoveAllowsRestart(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	taskID := uuid.New()

	_, ok := reg.start(context.Background(), taskID)
	require.True(t, ok)

	reg.remove(taskID)
	assert.False(t, reg.isActive(taskID))

	_, ok = reg.start(context.Background(), taskID)
	assert.True(t, ok, "a finished task can start a new workflow")
}

func TestRegistry_StopAll(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()

	var ctxs []context.Context
	for i := 0; i < 4; i++ {
		ctx, ok := reg.start(context.Background(), uuid.New())
		require.True(t, ok)
		ctxs = append(ctxs, ctx)
	}

	reg.stopAll()

	for _, ctx := range ctxs {
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	}
}
