package record

import (
	"context"

	"oebrowse/errors"
	"oebrowse/schema"
	"oebrowse/transport"
)

// 关联集合写入命令
const (
	CommandCreate  int64 = 0
	CommandUpdate  int64 = 1
	CommandDelete  int64 = 2
	CommandUnlink  int64 = 3
	CommandLink    int64 = 4
	CommandClear   int64 = 5
	CommandReplace int64 = 6
)

// List 关联集合字段的值，记录自上次保存以来的成员增删
//
// 任何修改都会把所属记录的该字段标记为脏。同一脏周期内先加入再移除的成员
// 互相抵消，不出现在差异中。插入、反转、排序会打乱差异，因此被禁止。
type List struct {
	owner   *Record
	field   *schema.Field
	items   []*Record
	added   []*Record
	removed []*Record
	// replaced 为 true 时保存整体替换成员，而不是增量差异
	replaced bool
}

func newList(owner *Record, field *schema.Field) *List {
	return &List{owner: owner, field: field, items: []*Record{}}
}

// Field 所属字段
func (l *List) Field() *schema.Field { return l.field }

// Len 成员数量
func (l *List) Len() int { return len(l.items) }

// At 按下标取成员，负数从末尾计
func (l *List) At(index int) (*Record, error) {
	i, err := l.index(index)
	if err != nil {
		return nil, err
	}
	return l.items[i], nil
}

// Records 返回成员副本
func (l *List) Records() []*Record {
	return append([]*Record(nil), l.items...)
}

// IDs 已持久化成员的标识
func (l *List) IDs() []int64 {
	ids := make([]int64, 0, len(l.items))
	for _, item := range l.items {
		if !item.IsNew() {
			ids = append(ids, item.id)
		}
	}
	return ids
}

// Contains 是否包含同一条记录，草稿记录只与自身相等
func (l *List) Contains(item *Record) bool {
	return indexOf(l.items, item) >= 0
}

// Added 本脏周期新增的成员
func (l *List) Added() []*Record { return append([]*Record(nil), l.added...) }

// Removed 本脏周期移除的成员
func (l *List) Removed() []*Record { return append([]*Record(nil), l.removed...) }

// Append 追加成员
func (l *List) Append(items ...*Record) error {
	if err := l.attached(); err != nil {
		return err
	}
	for _, item := range items {
		if err := l.accepts(item); err != nil {
			return err
		}
	}
	l.owner.markDirty(l.field.Name)
	for _, item := range items {
		l.items = append(l.items, item)
		if i := indexOf(l.removed, item); i >= 0 {
			l.removed = removeAt(l.removed, i)
			continue
		}
		l.added = append(l.added, item)
	}
	return nil
}

// Extend 追加多个成员
func (l *List) Extend(items []*Record) error {
	return l.Append(items...)
}

// Pop 移除并返回指定下标的成员，负数从末尾计
func (l *List) Pop(index int) (*Record, error) {
	if err := l.attached(); err != nil {
		return nil, err
	}
	i, err := l.index(index)
	if err != nil {
		return nil, err
	}
	l.owner.markDirty(l.field.Name)
	item := l.items[i]
	l.items = removeAt(l.items, i)
	l.forget(item)
	return item, nil
}

// Remove 移除第一个与 item 相等的成员
func (l *List) Remove(item *Record) error {
	if err := l.attached(); err != nil {
		return err
	}
	i := indexOf(l.items, item)
	if i < 0 {
		return errors.Precondition("%s is not in %s", item, l.field.Name)
	}
	l.owner.markDirty(l.field.Name)
	removed := l.items[i]
	l.items = removeAt(l.items, i)
	l.forget(removed)
	return nil
}

// Insert 不支持
func (l *List) Insert(int, *Record) error {
	return l.unsupported("insert")
}

// Reverse 不支持
func (l *List) Reverse() error {
	return l.unsupported("reverse")
}

// Sort 不支持
func (l *List) Sort(func(a, b *Record) int) error {
	return l.unsupported("sort")
}

// OERepr 生成保存所需的命令列表
func (l *List) OERepr(ctx context.Context) ([]any, error) {
	if l.replaced {
		commands := []any{transport.Tuple{CommandReplace, int64(0), toAnyIDs(l.IDs())}}
		for _, item := range l.items {
			if !item.IsNew() {
				continue
			}
			cmd, err := createCommand(ctx, item)
			if err != nil {
				return nil, err
			}
			commands = append(commands, cmd)
		}
		return commands, nil
	}

	commands := make([]any, 0, len(l.added)+len(l.removed))
	for _, item := range l.added {
		if item.IsNew() {
			cmd, err := createCommand(ctx, item)
			if err != nil {
				return nil, err
			}
			commands = append(commands, cmd)
			continue
		}
		commands = append(commands, transport.Tuple{CommandLink, item.id})
	}
	code := CommandDelete
	if l.field.Kind == schema.KindMany2Many {
		code = CommandUnlink
	}
	for _, item := range l.removed {
		if item.IsNew() {
			continue
		}
		commands = append(commands, transport.Tuple{code, item.id})
	}
	return commands, nil
}

// Reload 重新读取已持久化的成员并清空差异
func (l *List) Reload(ctx context.Context) error {
	for _, item := range l.items {
		if item.IsNew() {
			continue
		}
		if err := item.Reload(ctx); err != nil {
			return err
		}
	}
	l.reset()
	return nil
}

func (l *List) reset() {
	l.added = nil
	l.removed = nil
	l.replaced = false
}

// attached 保存或重载后旧的集合不再属于记录，修改必须通过重新读取的集合进行
func (l *List) attached() error {
	if cur, ok := l.owner.values[l.field.Name].(*List); !ok || cur != l {
		return errors.Precondition("%s of %s was reloaded, read the field again", l.field.Name, l.owner).
			WithContext("field", l.field.Name)
	}
	return nil
}

func (l *List) accepts(item *Record) error {
	if item == nil {
		return errors.Precondition("cannot add nil record to %s", l.field.Name)
	}
	if item.model.key.Model != l.field.Relation || item.model.key.Database != l.owner.model.key.Database {
		return errors.Precondition("field %s expects %s, got %s", l.field.Name, l.field.Relation, item.model.key)
	}
	return nil
}

// forget 新增后又移除的成员直接抵消
func (l *List) forget(item *Record) {
	if i := indexOf(l.added, item); i >= 0 {
		l.added = removeAt(l.added, i)
		return
	}
	if indexOf(l.removed, item) < 0 {
		l.removed = append(l.removed, item)
	}
}

func (l *List) index(index int) (int, error) {
	i := index
	if i < 0 {
		i += len(l.items)
	}
	if i < 0 || i >= len(l.items) {
		return 0, errors.Precondition("index %d out of range for %s (len %d)", index, l.field.Name, len(l.items))
	}
	return i, nil
}

func (l *List) unsupported(op string) error {
	return errors.Precondition("%s is not supported on relation field %s", op, l.field.Name).
		WithContext("operation", op)
}

func createCommand(ctx context.Context, item *Record) (transport.Tuple, error) {
	values, err := item.OERepr(ctx)
	if err != nil {
		return nil, err
	}
	return transport.Tuple{CommandCreate, int64(0), values}, nil
}

func indexOf(items []*Record, item *Record) int {
	for i, candidate := range items {
		if candidate.Equal(item) {
			return i
		}
	}
	return -1
}

func removeAt(items []*Record, i int) []*Record {
	return append(items[:i:i], items[i+1:]...)
}

func toAnyIDs(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
