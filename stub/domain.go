package stub

import (
	"sort"
	"strings"

	"oebrowse/storage"
	"oebrowse/transport"
)

type predicate func(row storage.Row) bool

// compileDomain 解析前缀表示法的检索条件：'&'、'|'、'!' 作用于其后的项，
// 相邻的项之间隐含 '&'
func compileDomain(domain []any) (predicate, error) {
	stack := make([]predicate, 0, len(domain))
	pop := func() (predicate, error) {
		if len(stack) == 0 {
			return nil, faultf(TagValidation, "invalid domain %v", domain)
		}
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return p, nil
	}

	for i := len(domain) - 1; i >= 0; i-- {
		switch term := domain[i].(type) {
		case string:
			switch term {
			case "!":
				p, err := pop()
				if err != nil {
					return nil, err
				}
				stack = append(stack, func(r storage.Row) bool { return !p(r) })
			case "&", "|":
				a, err := pop()
				if err != nil {
					return nil, err
				}
				b, err := pop()
				if err != nil {
					return nil, err
				}
				if term == "&" {
					stack = append(stack, func(r storage.Row) bool { return a(r) && b(r) })
				} else {
					stack = append(stack, func(r storage.Row) bool { return a(r) || b(r) })
				}
			default:
				return nil, faultf(TagValidation, "unknown domain operator %q", term)
			}
		default:
			leaf, ok := transport.AsList(term)
			if !ok || len(leaf) != 3 {
				return nil, faultf(TagValidation, "invalid domain term %v", term)
			}
			p, err := compileLeaf(leaf)
			if err != nil {
				return nil, err
			}
			stack = append(stack, p)
		}
	}

	return func(r storage.Row) bool {
		for _, p := range stack {
			if !p(r) {
				return false
			}
		}
		return true
	}, nil
}

func compileLeaf(leaf []any) (predicate, error) {
	field, ok := leaf[0].(string)
	if !ok {
		return nil, faultf(TagValidation, "invalid domain field %v", leaf[0])
	}
	op, ok := leaf[1].(string)
	if !ok {
		return nil, faultf(TagValidation, "invalid domain operator %v", leaf[1])
	}
	want := leaf[2]

	var match func(v any) bool
	switch strings.ToLower(op) {
	case "=", "==":
		match = func(v any) bool { return equal(v, want) }
	case "!=", "<>":
		match = func(v any) bool { return !equal(v, want) }
	case "<":
		match = func(v any) bool { return compare(v, want) < 0 }
	case ">":
		match = func(v any) bool { return compare(v, want) > 0 }
	case "<=":
		match = func(v any) bool { return compare(v, want) <= 0 }
	case ">=":
		match = func(v any) bool { return compare(v, want) >= 0 }
	case "like":
		match = func(v any) bool { return contains(v, want, false) }
	case "ilike":
		match = func(v any) bool { return contains(v, want, true) }
	case "not like":
		match = func(v any) bool { return !contains(v, want, false) }
	case "not ilike":
		match = func(v any) bool { return !contains(v, want, true) }
	case "in", "not in":
		options, ok := transport.AsList(want)
		if !ok {
			options = []any{want}
		}
		in := func(v any) bool {
			for _, o := range options {
				if equal(v, o) {
					return true
				}
			}
			return false
		}
		if strings.EqualFold(op, "in") {
			match = in
		} else {
			match = func(v any) bool { return !in(v) }
		}
	default:
		return nil, faultf(TagValidation, "unsupported domain operator %q", op)
	}

	return func(r storage.Row) bool {
		var value any
		if field == "id" {
			value = r.ID
		} else {
			value = r.Values[field]
		}
		// 集合字段任一成员满足即匹配
		if list, ok := transport.AsList(value); ok && len(list) > 0 {
			for _, item := range list {
				if match(item) {
					return true
				}
			}
			return false
		}
		return match(value)
	}, nil
}

func equal(a, b any) bool {
	if transport.IsFalsy(a) && transport.IsFalsy(b) {
		if _, isNum := transport.AsFloat64(b); !isNum {
			return true
		}
	}
	if fa, ok := transport.AsFloat64(a); ok {
		if fb, ok := transport.AsFloat64(b); ok {
			return fa == fb
		}
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return sa == sb
	}
	ba, okA := a.(bool)
	bb, okB := b.(bool)
	return okA && okB && ba == bb
}

// compare 数值按大小比较，字符串按字典序，空值最小
func compare(a, b any) int {
	aNil, bNil := transport.IsFalsy(a) && !isNumber(a), transport.IsFalsy(b) && !isNumber(b)
	switch {
	case aNil && bNil:
		return 0
	case aNil:
		return -1
	case bNil:
		return 1
	}
	if fa, ok := transport.AsFloat64(a); ok {
		if fb, ok := transport.AsFloat64(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	sa, _ := a.(string)
	sb, _ := b.(string)
	return strings.Compare(sa, sb)
}

func isNumber(v any) bool {
	_, ok := transport.AsFloat64(v)
	return ok
}

func contains(v, want any, fold bool) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	pattern, ok := want.(string)
	if !ok {
		return false
	}
	pattern = strings.ReplaceAll(pattern, "%", "")
	if fold {
		return strings.Contains(strings.ToLower(s), strings.ToLower(pattern))
	}
	return strings.Contains(s, pattern)
}

// sortRows 按 "field [asc|desc], ..." 排序，未指定时按标识升序
func sortRows(rows []storage.Row, order string) {
	type key struct {
		field string
		desc  bool
	}
	var keys []key
	for _, part := range strings.Split(order, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		k := key{field: fields[0]}
		if len(fields) > 1 && strings.EqualFold(fields[1], "desc") {
			k.desc = true
		}
		keys = append(keys, k)
	}
	keys = append(keys, key{field: "id"})

	value := func(r storage.Row, field string) any {
		if field == "id" {
			return r.ID
		}
		return r.Values[field]
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			c := compare(value(rows[i], k.field), value(rows[j], k.field))
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
