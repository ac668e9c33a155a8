package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oebrowse/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--stub", "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, int64(3), parseValue("3"))
	assert.Equal(t, 9.99, parseValue("9.99"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, []any{int64(1), int64(2)}, parseValue("[1,2]"))
	assert.Equal(t, "Widget", parseValue("Widget"))
	assert.Equal(t, "1 2", parseValue("1 2"))
}

func TestParseAssignments(t *testing.T) {
	values, err := parseAssignments([]string{"name=Thing", "list_price=3.5", "tag_ids=[1,3]"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":       "Thing",
		"list_price": 3.5,
		"tag_ids":    []any{int64(1), int64(3)},
	}, values)

	_, err = parseAssignments([]string{"=x"})
	assert.True(t, errors.IsPrecondition(err))
}

func TestParseDomain(t *testing.T) {
	domain, err := parseDomain(`["|", ["id","=",1], ["name","ilike","acme"]]`)
	require.NoError(t, err)
	assert.Equal(t, []any{"|", []any{"id", "=", int64(1)}, []any{"name", "ilike", "acme"}}, domain)

	domain, err = parseDomain("")
	require.NoError(t, err)
	assert.Empty(t, domain)

	_, err = parseDomain(`{"a":1}`)
	assert.True(t, errors.IsPrecondition(err))
}

func TestCLI_Read(t *testing.T) {
	out, err := run(t, "read", "product.product", "1", "--fields", "name,list_price,categ_id,tag_ids")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Widget", rows[0]["name"])
	assert.Equal(t, 9.99, rows[0]["list_price"])
	assert.Equal(t, []any{1.0, "Goods"}, rows[0]["categ_id"])
	assert.Equal(t, []any{1.0}, rows[0]["tag_ids"])
}

func TestCLI_SearchAndFields(t *testing.T) {
	out, err := run(t, "search", "product.product", "--domain", `[["list_price",">",10]]`, "--order", "list_price desc")
	require.NoError(t, err)
	assert.JSONEq(t, "[3, 2]", out)

	out, err = run(t, "fields", "res.partner")
	require.NoError(t, err)
	assert.Contains(t, out, "child_ids")
	assert.Contains(t, out, "one2many")

	out, err = run(t, "name-search", "res.partner", "acm")
	require.NoError(t, err)
	assert.Equal(t, "1  Acme", strings.TrimSpace(out))

	out, err = run(t, "databases")
	require.NoError(t, err)
	assert.Equal(t, "demo", strings.TrimSpace(out))
}

func TestCLI_CreateAndWrite(t *testing.T) {
	out, err := run(t, "create", "product.product", "--set", "name=Thing", "--set", "list_price=3.5")
	require.NoError(t, err)
	assert.Equal(t, "4", strings.TrimSpace(out))

	out, err = run(t, "create", "product.product", "--defaults", "--set", "name=Thing")
	require.NoError(t, err)
	assert.Equal(t, "4", strings.TrimSpace(out))

	out, err = run(t, "write", "product.product", "1", "--set", "list_price=12.5", "--set", "tag_ids=[2,3]")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 1, "list_price": 12.5, "tag_ids": [2, 3]}`, out)

	_, err = run(t, "write", "product.product", "1")
	assert.True(t, errors.IsPrecondition(err))

	_, err = run(t, "create", "product.product", "--set", "list_price=1")
	assert.True(t, errors.IsRemote(err))
}

func TestCLI_CallAndUnlink(t *testing.T) {
	out, err := run(t, "call", "product.product", "search", `[["name","=","Gadget"]]`)
	require.NoError(t, err)
	assert.JSONEq(t, "[2]", out)

	_, err = run(t, "unlink", "product.product", "2", "3")
	require.NoError(t, err)

	_, err = run(t, "read", "product.product", "99")
	assert.True(t, errors.IsNotFound(err))

	_, err = run(t, "read", "product.product", "x")
	assert.True(t, errors.IsPrecondition(err))
}

func TestCLI_WatchRequiresNATS(t *testing.T) {
	_, err := run(t, "watch")
	assert.True(t, errors.IsPrecondition(err))
}

func TestCLI_RejectsUnknownLogLevel(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "loud", "version"})
	err := cmd.ExecuteContext(context.Background())
	assert.True(t, errors.IsPrecondition(err))
}
