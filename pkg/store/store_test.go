package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillforge/pkg/errors"
)

type widget struct {
	ID    string
	Count int
}

func testStore(t *testing.T) *Store[widget] {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewStore(db, "widgets", func(w widget) string { return w.ID })
	require.NoError(t, err)
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, widget{ID: "w1", Count: 1}))
	got, err := s.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, widget{ID: "w1", Count: 1}, got)
}

func TestCreate_DuplicateFails(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, widget{ID: "w1"}))
	err := s.Create(ctx, widget{ID: "w1"})
	require.Error(t, err)
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeAlreadyExists, code)
}

func TestGet_MissingReturnsNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "nope")
	require.Error(t, err)
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, code)
}

func TestUpdate_MissingReturnsNotFound(t *testing.T) {
	s := testStore(t)
	err := s.Update(context.Background(), widget{ID: "nope"})
	require.Error(t, err)
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, code)
}

func TestDelete_AbsentIsNoop(t *testing.T) {
	s := testStore(t)
	assert.NoError(t, s.Delete(context.Background(), "nope"))
}

func TestExists(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ok, err := s.Exists(ctx, "w1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Create(ctx, widget{ID: "w1"}))
	ok, err = s.Exists(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestList_FiltersByPredicate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, widget{ID: "w1", Count: 1}))
	require.NoError(t, s.Create(ctx, widget{ID: "w2", Count: 2}))

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	even, err := s.List(ctx, func(w widget) bool { return w.Count%2 == 0 })
	require.NoError(t, err)
	require.Len(t, even, 1)
	assert.Equal(t, "w2", even[0].ID)
}

func TestUpdateAtomic_AppliesFunction(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, widget{ID: "w1", Count: 1}))

	updated, err := s.UpdateAtomic(ctx, "w1", func(w widget) (widget, error) {
		w.Count++
		return w, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Count)

	got, err := s.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count)
}

func TestUpdateAtomic_ConcurrentIncrementsSerialize(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, widget{ID: "w1", Count: 0}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateAtomic(ctx, "w1", func(w widget) (widget, error) {
				w.Count++
				return w, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Count)
}

func TestUpdateAtomic_MissingReturnsNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.UpdateAtomic(context.Background(), "nope", func(w widget) (widget, error) { return w, nil })
	require.Error(t, err)
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, code)
}
