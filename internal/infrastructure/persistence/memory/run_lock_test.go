package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLock(t *testing.T) {
	ctx := context.Background()
	l := NewRunLock()

	release, ok, err := l.TryLock(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, l.Held("k"))

	_, ok, err = l.TryLock(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	assert.False(t, l.Held("k"))

	release2, ok, err := l.TryLock(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	// A stale release must not drop the new holder.
	require.NoError(t, release(ctx))
	assert.True(t, l.Held("k"))
	require.NoError(t, release2(ctx))
}
