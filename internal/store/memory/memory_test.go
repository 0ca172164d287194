package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telemed-api/internal/store"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSetGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "things/a", doc{Name: "first", Count: 1}))

	var got doc
	require.NoError(t, s.Get(ctx, "things/a", &got))
	assert.Equal(t, doc{Name: "first", Count: 1}, got)

	err := s.Get(ctx, "things/missing", &got)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetAll(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "things/a", doc{Name: "a"}))
	require.NoError(t, s.Set(ctx, "things/b", doc{Name: "b"}))

	all, err := s.GetAll(ctx, "things")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Contains(t, all, "a")
	assert.Contains(t, all, "b")

	empty, err := s.GetAll(ctx, "nothing/here")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSetAllReplacesCollection(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "things/old", doc{Name: "old"}))
	require.NoError(t, s.SetAll(ctx, "things", map[string]interface{}{
		"x": doc{Name: "x"},
		"y": doc{Name: "y"},
	}))

	all, err := s.GetAll(ctx, "things")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.NotContains(t, all, "old")
}

func TestUpdateMergesFields(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "things/a", doc{Name: "keep", Count: 1}))
	require.NoError(t, s.Update(ctx, "things/a", map[string]interface{}{"count": 7}))

	var got doc
	require.NoError(t, s.Get(ctx, "things/a", &got))
	assert.Equal(t, "keep", got.Name)
	assert.Equal(t, 7, got.Count)
}

func TestDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "things/a", doc{Name: "a"}))
	require.NoError(t, s.Delete(ctx, "things/a"))

	var got doc
	assert.ErrorIs(t, s.Get(ctx, "things/a", &got), store.ErrNotFound)

	// Deleting a missing entry is a no-op.
	assert.NoError(t, s.Delete(ctx, "things/a"))
}

func TestCompareAndSet(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "things/a", doc{Name: "v1"}))

	ok, err := s.CompareAndSet(ctx, "things/a", doc{Name: "v1"}, doc{Name: "v2"})
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale expectation loses.
	ok, err = s.CompareAndSet(ctx, "things/a", doc{Name: "v1"}, doc{Name: "v3"})
	require.NoError(t, err)
	assert.False(t, ok)

	var got doc
	require.NoError(t, s.Get(ctx, "things/a", &got))
	assert.Equal(t, "v2", got.Name)

	// Missing entry never matches.
	ok, err = s.CompareAndSet(ctx, "things/missing", doc{Name: "v1"}, doc{Name: "v2"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFailWith(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, s.Set(ctx, "things/a", doc{Name: "a"}))

	s.FailWith(boom)
	var got doc
	assert.ErrorIs(t, s.Get(ctx, "things/a", &got), boom)
	assert.ErrorIs(t, s.Set(ctx, "things/b", doc{}), boom)
	assert.ErrorIs(t, s.Ping(ctx), boom)

	s.FailWith(nil)
	assert.NoError(t, s.Get(ctx, "things/a", &got))
	assert.NoError(t, s.Ping(ctx))
}
