package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oebrowse/errors"
)

func TestClient_Login(t *testing.T) {
	rec := &recorder{reply: func(m []any) (any, error) {
		switch m[1] {
		case "login":
			return int64(5), nil
		case "execute":
			return map[string]any{"lang": "en_US", "tz": "Europe/Paris"}, nil
		}
		return nil, nil
	}}
	client := NewClient(rec)

	ok, err := client.Login(context.Background(), "demo", "admin", "pw")
	require.NoError(t, err)
	assert.True(t, ok)

	cred := client.Credentials("demo")
	assert.Equal(t, int64(5), cred.UID())
	assert.Equal(t, "admin", cred.Login())
	assert.True(t, cred.Connected())

	lang, _ := client.Context().Get("lang")
	assert.Equal(t, "en_US", lang)
	assert.Equal(t, []any{"common", "login", "demo", "admin", "pw"}, rec.calls[0])
	assert.Equal(t, []any{"object", "execute", "demo", int64(5), "pw", "res.users", "context_get"}, rec.calls[1])
}

func TestClient_LoginRejected(t *testing.T) {
	rec := &recorder{reply: func([]any) (any, error) { return false, nil }}
	client := NewClient(rec)

	ok, err := client.Login(context.Background(), "demo", "admin", "bad")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, client.Credentials("demo").Connected())
	assert.Len(t, rec.calls, 1)
}

func TestClient_Execute(t *testing.T) {
	rec := &recorder{reply: func([]any) (any, error) { return []any{"demo", "prod"}, nil }}
	client := NewClient(rec)

	dbs, err := client.ListDatabases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"demo", "prod"}, dbs)

	_, err = client.Execute(context.Background(), "report", "get")
	assert.True(t, errors.IsPrecondition(err))
}

func TestClient_ProxySharesCredentials(t *testing.T) {
	client := NewClient(&recorder{})
	p1 := client.Proxy("demo", "res.partner")
	p2 := client.Proxy("demo", "res.users")
	assert.Same(t, p1.Credentials(), p2.Credentials())
	assert.NotSame(t, p1.Credentials(), client.Proxy("other", "res.partner").Credentials())
}
