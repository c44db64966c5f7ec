package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ Completer = (*Mock)(nil)

func TestMock_CannedAndDefaultResponses(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	m.AddResponse("known prompt", "canned")

	got, err := m.Complete(ctx, "known prompt", Options{})
	require.NoError(t, err)
	assert.Equal(t, "canned", got)

	got, err = m.Complete(ctx, "unknown", Options{})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: unknown", got)

	m.SetDefaultResponse("fallback")
	got, err = m.Complete(ctx, "still unknown", Options{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	assert.Equal(t, []string{"known prompt", "unknown", "still unknown"}, m.Calls())
}

func TestMock_FailWith(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	boom := errors.New("boom")
	m.FailWith(boom)

	_, err := m.Complete(ctx, "any", Options{})
	assert.ErrorIs(t, err, boom)

	m.FailWith(nil)
	_, err = m.Complete(ctx, "any", Options{})
	assert.NoError(t, err)
}

func TestMock_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMock()
	_, err := m.Complete(ctx, "any", Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.Calls())
}
