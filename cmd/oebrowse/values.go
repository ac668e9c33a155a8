package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"oebrowse/errors"
	"oebrowse/record"
)

// parseJSON 解析命令行上的 JSON，整数保持为 int64
func parseJSON(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return numbers(v), nil
}

func numbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i, item := range val {
			val[i] = numbers(item)
		}
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = numbers(item)
		}
		return val
	}
	return v
}

// parseValue 合法的 JSON 按 JSON 解析，否则视为字符串
func parseValue(text string) any {
	if v, err := parseJSON(text); err == nil {
		return v
	}
	return text
}

// parseAssignments 解析重复的 --set field=value
func parseAssignments(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, text, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.Precondition("expected field=value, got %q", pair)
		}
		values[name] = parseValue(text)
	}
	return values, nil
}

// parseDomain 解析 JSON 形式的检索条件，空串表示全部
func parseDomain(text string) ([]any, error) {
	if strings.TrimSpace(text) == "" {
		return []any{}, nil
	}
	v, err := parseJSON(text)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodePrecondition, "invalid domain")
	}
	domain, ok := v.([]any)
	if !ok {
		return nil, errors.Precondition("domain must be a JSON array")
	}
	return domain, nil
}

// plain 把物化后的字段值转换为可输出的形式
func plain(v any) any {
	switch val := v.(type) {
	case decimal.Decimal:
		return json.Number(val.String())
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 {
			return val.Format(record.DateLayout)
		}
		return val.Format(record.DateTimeLayout)
	case *record.Record:
		if val == nil {
			return false
		}
		return []any{val.ID(), val.DisplayName()}
	case *record.List:
		return val.IDs()
	}
	return v
}

// renderRecord 按字段名输出记录，fields 为空时输出全部字段
func renderRecord(ctx context.Context, r *record.Record, fields []string) (map[string]any, error) {
	if len(fields) == 0 {
		fields = r.Model().Schema().Names()
	}
	out := map[string]any{"id": r.ID()}
	for _, name := range fields {
		v, err := r.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = plain(v)
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
