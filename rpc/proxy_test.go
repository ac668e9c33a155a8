package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oebrowse/errors"
)

// recorder 记录每次调用并按 reply 应答
type recorder struct {
	calls [][]any
	reply func(message []any) (any, error)
}

func (r *recorder) Call(ctx context.Context, message ...any) (any, error) {
	r.calls = append(r.calls, message)
	if r.reply == nil {
		return nil, nil
	}
	return r.reply(message)
}

func newProxy(rec *recorder) *ObjectProxy {
	client := NewClient(rec)
	client.Credentials("demo").Set(1, "admin", "secret")
	client.Context().Set("lang", "fr_FR")
	return client.Proxy("demo", "res.partner")
}

func TestObjectProxy_InvokeAppendsContext(t *testing.T) {
	rec := &recorder{reply: func([]any) (any, error) { return true, nil }}
	proxy := newProxy(rec)

	_, err := proxy.Invoke(context.Background(), "button_confirm", []any{int64(5)})
	require.NoError(t, err)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, []any{
		"object", "execute", "demo", int64(1), "secret", "res.partner", "button_confirm",
		[]any{int64(5)}, map[string]any{"lang": "fr_FR"},
	}, rec.calls[0])
}

func TestObjectProxy_RequiresCredentials(t *testing.T) {
	rec := &recorder{}
	client := NewClient(rec)
	client.Credentials("demo").Set(0, "admin", "secret")
	proxy := client.Proxy("demo", "res.partner")

	_, err := proxy.Read(context.Background(), []int64{1}, nil)
	assert.True(t, errors.IsPrecondition(err))
	_, err = proxy.ExecWorkflow(context.Background(), 1, "confirm")
	assert.True(t, errors.IsPrecondition(err))
	_, err = proxy.NameSearch(context.Background(), "a", nil, "", 0)
	assert.True(t, errors.IsPrecondition(err))
	assert.Empty(t, rec.calls)
}

func TestObjectProxy_Search(t *testing.T) {
	rec := &recorder{reply: func([]any) (any, error) { return []any{int64(3), int64(4)}, nil }}
	proxy := newProxy(rec)

	ids, err := proxy.Search(context.Background(), nil, 0, 10, "name")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids)
	assert.Equal(t, []any{[]any{}, int64(0), int64(10), "name"}, rec.calls[0][7:11])

	_, err = proxy.Search(context.Background(), []any{[]any{"name", "=", "x"}}, 5, 0, "")
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{[]any{"name", "=", "x"}}, int64(5), nil, nil}, rec.calls[1][7:11])
}

func TestObjectProxy_NameSearch(t *testing.T) {
	rec := &recorder{reply: func([]any) (any, error) {
		return []any{[]any{int64(7), "Agrolait"}}, nil
	}}
	proxy := newProxy(rec)

	pairs, err := proxy.NameSearch(context.Background(), "agro", nil, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []NamePair{{ID: 7, Name: "Agrolait"}}, pairs)
	assert.Equal(t, []any{"agro", nil, "ilike", map[string]any{"lang": "fr_FR"}, int64(80)}, rec.calls[0][7:])
}

func TestObjectProxy_Read(t *testing.T) {
	rec := &recorder{reply: func([]any) (any, error) {
		return []any{map[string]any{"id": int64(1), "name": "A"}}, nil
	}}
	proxy := newProxy(rec)

	rows, err := proxy.Read(context.Background(), []int64{1}, []string{"name"})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": int64(1), "name": "A"}}, rows)
	assert.Equal(t, []any{[]any{int64(1)}, []any{"name"}}, rec.calls[0][7:9])

	rec.reply = func([]any) (any, error) { return []any{}, nil }
	rows, err = proxy.Read(context.Background(), []int64{9}, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestObjectProxy_FieldsViewGet(t *testing.T) {
	rec := &recorder{reply: func([]any) (any, error) {
		return map[string]any{"type": "form", "arch": "<form/>"}, nil
	}}
	proxy := newProxy(rec)

	view, err := proxy.FieldsViewGet(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Equal(t, "form", view["type"])
	assert.Equal(t, []any{nil, "form"}, rec.calls[0][7:9])

	_, err = proxy.FieldsViewGet(context.Background(), 12, "tree")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(12), "tree"}, rec.calls[1][7:9])

	rec.reply = func([]any) (any, error) { return false, nil }
	_, err = proxy.FieldsViewGet(context.Background(), 0, "form")
	assert.True(t, errors.IsErrorCode(err, errors.ErrCodeProtocol))
}

func TestObjectProxy_CreateWrite(t *testing.T) {
	rec := &recorder{reply: func(m []any) (any, error) {
		if m[6] == "create" {
			return int64(42), nil
		}
		return true, nil
	}}
	proxy := newProxy(rec)

	id, err := proxy.Create(context.Background(), map[string]any{"name": "W"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	ok, err := proxy.Write(context.Background(), []int64{42}, map[string]any{"name": "X"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []any{int64(42)}, rec.calls[1][7])
}

func TestObjectProxy_ExecWorkflow(t *testing.T) {
	rec := &recorder{}
	proxy := newProxy(rec)

	_, err := proxy.ExecWorkflow(context.Background(), 12, "order_confirm")
	require.NoError(t, err)
	assert.Equal(t, []any{"object", "exec_workflow", "demo", int64(1), "secret", "res.partner", "order_confirm", int64(12)}, rec.calls[0])
}

func TestObjectProxy_UnexpectedResult(t *testing.T) {
	rec := &recorder{reply: func([]any) (any, error) { return "nope", nil }}
	proxy := newProxy(rec)

	_, err := proxy.Create(context.Background(), map[string]any{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrCodeProtocol))
	assert.Equal(t, "<Proxy on res.partner@demo>", proxy.String())
}
