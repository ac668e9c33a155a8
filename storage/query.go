package storage

import (
	"strconv"
	"strings"
)

// selectBuilder 最小 SELECT 构建器
type selectBuilder struct {
	cols   []string
	table  string
	where  []string
	args   []any
	order  string
	limit  int
	offset int
}

func newSelect(columns ...string) *selectBuilder {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	return &selectBuilder{cols: columns}
}

func (b *selectBuilder) From(table string) *selectBuilder { b.table = table; return b }

func (b *selectBuilder) Where(cond string, args ...any) *selectBuilder {
	if cond != "" {
		b.where = append(b.where, cond)
		b.args = append(b.args, args...)
	}
	return b
}

// WhereIn 追加 col IN (?, ...)，values 为空时条件恒假
func (b *selectBuilder) WhereIn(col string, values []int64) *selectBuilder {
	if len(values) == 0 {
		return b.Where("1 = 0")
	}
	placeholders := strings.TrimRight(strings.Repeat("?, ", len(values)), ", ")
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return b.Where(col+" IN ("+placeholders+")", args...)
}

func (b *selectBuilder) OrderBy(col string, desc bool) *selectBuilder {
	if col != "" {
		b.order = col
		if desc {
			b.order += " DESC"
		}
	}
	return b
}

func (b *selectBuilder) Limit(n int) *selectBuilder  { b.limit = n; return b }
func (b *selectBuilder) Offset(n int) *selectBuilder { b.offset = n; return b }

func (b *selectBuilder) Build() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if b.order != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.order)
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(b.limit))
	} else if b.offset > 0 {
		// sqlite 要求 OFFSET 前有 LIMIT
		sb.WriteString(" LIMIT -1")
	}
	if b.offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(b.offset))
	}
	return sb.String(), b.args
}
