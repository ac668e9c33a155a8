package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oebrowse/errors"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Models(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	fields := map[string]any{"name": map[string]any{"type": "char", "string": "Name"}}
	require.NoError(t, s.DefineModel(ctx, "res.partner", fields))
	require.NoError(t, s.DefineModel(ctx, "product.product", fields))

	got, found, err := s.Fields(ctx, "res.partner")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, fields, got)

	_, found, err = s.Fields(ctx, "missing.model")
	require.NoError(t, err)
	assert.False(t, found)

	names, err := s.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"product.product", "res.partner"}, names)
}

func TestStore_RecordLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	id1, err := s.Insert(ctx, "product.product", map[string]any{"name": "Widget", "price": 9.99, "tags": []any{int64(1), int64(2)}})
	require.NoError(t, err)
	id2, err := s.Insert(ctx, "product.product", map[string]any{"name": "Gadget", "price": 3.0})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)

	other, err := s.Insert(ctx, "res.partner", map[string]any{"name": "Acme"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), other, "ids are allocated per model")

	rows, err := s.Get(ctx, "product.product", []int64{id2, 99, id1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, id1, rows[0].ID)
	assert.Equal(t, "Widget", rows[0].Values["name"])
	assert.Equal(t, 9.99, rows[0].Values["price"])
	assert.Equal(t, []any{int64(1), int64(2)}, rows[0].Values["tags"])

	require.NoError(t, s.Update(ctx, "product.product", id1, map[string]any{"price": 12.5}))
	rows, err = s.Get(ctx, "product.product", []int64{id1})
	require.NoError(t, err)
	assert.Equal(t, 12.5, rows[0].Values["price"])
	assert.Equal(t, "Widget", rows[0].Values["name"])

	err = s.Update(ctx, "product.product", 42, map[string]any{"price": 1.0})
	assert.True(t, errors.IsNotFound(err))

	n, err := s.Delete(ctx, "product.product", []int64{id1, 42})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err = s.List(ctx, "product.product", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id2, rows[0].ID)
}

func TestStore_ListPaging(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	for i := 0; i < 5; i++ {
		_, err := s.Insert(ctx, "res.partner", map[string]any{"seq": i})
		require.NoError(t, err)
	}

	rows, err := s.List(ctx, "res.partner", 1, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].ID)
	assert.Equal(t, int64(3), rows[1].ID)

	rows, err = s.List(ctx, "res.partner", 3, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(4), rows[0].ID)
}

func TestSelectBuilder(t *testing.T) {
	q, args := newSelect("id", "data").From("records").
		Where("model = ?", "m").
		WhereIn("id", []int64{1, 2}).
		OrderBy("id", true).
		Limit(10).
		Offset(5).
		Build()
	assert.Equal(t, "SELECT id, data FROM records WHERE model = ? AND id IN (?, ?) ORDER BY id DESC LIMIT 10 OFFSET 5", q)
	assert.Equal(t, []any{"m", int64(1), int64(2)}, args)

	q, _ = newSelect().From("t").WhereIn("id", nil).Build()
	assert.Equal(t, "SELECT * FROM t WHERE 1 = 0", q)
}
