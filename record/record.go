// Package record 把远程模型的记录呈现为本地对象：按字段种类物化值，
// 记录自上次保存以来的修改，并只把差异写回服务端。
package record

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"oebrowse/errors"
	"oebrowse/logging"
	"oebrowse/messaging"
	"oebrowse/schema"
	"oebrowse/transport"
)

// Record 单条记录的本地代理
//
// raw 保存服务端形态的字段值，values 缓存物化后的值，dirty 是自上次
// 保存或重载以来被修改过的字段。标识为 0 表示尚未创建的草稿记录。
// Record 不是并发安全的。
type Record struct {
	model  *Model
	id     int64
	raw    map[string]any
	values map[string]any
	dirty  map[string]struct{}
}

func newRecord(m *Model) *Record {
	return &Record{
		model:  m,
		raw:    make(map[string]any),
		values: make(map[string]any),
		dirty:  make(map[string]struct{}),
	}
}

// Model 所属记录类
func (r *Record) Model() *Model { return r.model }

// ID 记录标识，草稿为 0
func (r *Record) ID() int64 { return r.id }

// IsNew 是否尚未创建
func (r *Record) IsNew() bool { return r.id == 0 }

// Equal 同一数据库、同一模型、同一标识即相等；草稿记录只与自身相等
func (r *Record) Equal(other *Record) bool {
	if r == other {
		return true
	}
	if r == nil || other == nil || r.IsNew() || other.IsNew() {
		return false
	}
	return r.id == other.id && r.model.key == other.model.key
}

// DisplayName 显示名，取自 name 字段
func (r *Record) DisplayName() string {
	if name, ok := r.raw["name"].(string); ok {
		return name
	}
	return ""
}

func (r *Record) String() string {
	if r == nil {
		return "<nil record>"
	}
	if r.IsNew() {
		return fmt.Sprintf("<%s draft@%s>", r.model.key.Model, r.model.key.Database)
	}
	return fmt.Sprintf("<%s %d@%s>", r.model.key.Model, r.id, r.model.key.Database)
}

func (r *Record) field(name string) (*schema.Field, error) {
	f, ok := r.model.schema.Field(name)
	if !ok {
		return nil, errors.Precondition("%s has no field %q", r.model.key.Model, name).
			WithContext("field", name)
	}
	return f, nil
}

// Raw 服务端形态的字段值
func (r *Record) Raw(name string) (any, bool) {
	v, ok := r.raw[name]
	return v, ok
}

// Get 读取物化后的字段值，结果被缓存直到下次赋值或重载
//
// 浮点字段返回 decimal.Decimal；日期字段返回 time.Time 或 nil；单个关联
// 返回 *Record 或 nil；关联集合返回 *List。
func (r *Record) Get(ctx context.Context, name string) (any, error) {
	if name == schema.IDField {
		return r.id, nil
	}
	f, err := r.field(name)
	if err != nil {
		return nil, err
	}
	if v, ok := r.values[name]; ok {
		return v, nil
	}
	raw, ok := r.raw[name]
	if !ok && !f.Kind.IsCollection() && f.Kind != schema.KindFloat {
		return nil, nil
	}
	v, err := ruleFor(f.Kind).materialize(ctx, r, f, raw)
	if err != nil {
		return nil, err
	}
	r.values[name] = v
	return v, nil
}

// Set 按字段种类赋值并标记为脏
func (r *Record) Set(name string, value any) error {
	if name == schema.IDField {
		return errors.Precondition("field %q is read-only", name)
	}
	f, err := r.field(name)
	if err != nil {
		return err
	}
	a, err := ruleFor(f.Kind).assign(r, f, value)
	if err != nil {
		return err
	}
	if a.skip {
		return nil
	}
	r.raw[name] = a.raw
	if a.cached {
		r.values[name] = a.typed
	} else {
		delete(r.values, name)
	}
	r.markDirty(name)
	return nil
}

// Float 读取浮点字段
func (r *Record) Float(ctx context.Context, name string) (decimal.Decimal, error) {
	v, err := r.typed(ctx, name, schema.KindFloat)
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

// Time 读取日期或时间戳字段，空值时 ok 为 false
func (r *Record) Time(ctx context.Context, name string) (t time.Time, ok bool, err error) {
	v, err := r.typed(ctx, name, schema.KindDate, schema.KindDateTime)
	if err != nil || v == nil {
		return time.Time{}, false, err
	}
	return v.(time.Time), true, nil
}

// Many2One 读取单个关联，空值返回 nil
func (r *Record) Many2One(ctx context.Context, name string) (*Record, error) {
	v, err := r.typed(ctx, name, schema.KindMany2One)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*Record), nil
}

// List 读取关联集合
func (r *Record) List(ctx context.Context, name string) (*List, error) {
	v, err := r.typed(ctx, name, schema.KindOne2Many, schema.KindMany2Many)
	if err != nil {
		return nil, err
	}
	return v.(*List), nil
}

func (r *Record) typed(ctx context.Context, name string, kinds ...schema.Kind) (any, error) {
	f, err := r.field(name)
	if err != nil {
		return nil, err
	}
	for _, k := range kinds {
		if f.Kind == k {
			return r.Get(ctx, name)
		}
	}
	return nil, errors.Precondition("field %s is %s, not %s", name, f.Kind, kinds[0])
}

// Dirty 自上次保存以来修改过的字段，按名称排序
func (r *Record) Dirty() []string {
	names := make([]string, 0, len(r.dirty))
	for name := range r.dirty {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsDirty 是否有未保存的修改
func (r *Record) IsDirty() bool { return len(r.dirty) > 0 }

func (r *Record) isDirty(name string) bool {
	_, ok := r.dirty[name]
	return ok
}

func (r *Record) markDirty(name string) {
	r.dirty[name] = struct{}{}
}

// OERepr 生成只包含脏字段的写入载荷
//
// 单个关联指向草稿记录时先保存该记录；关联集合转换为命令列表。
func (r *Record) OERepr(ctx context.Context) (map[string]any, error) {
	out := make(map[string]any, len(r.dirty))
	for _, name := range r.Dirty() {
		f, err := r.field(name)
		if err != nil {
			return nil, err
		}
		value, err := r.wireValue(ctx, f)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}

func (r *Record) wireValue(ctx context.Context, f *schema.Field) (any, error) {
	cached, isCached := r.values[f.Name]
	switch v := cached.(type) {
	case *List:
		return v.OERepr(ctx)
	case *Record:
		if v.IsNew() {
			if err := v.Save(ctx); err != nil {
				return nil, err
			}
		}
		return v.id, nil
	}

	raw := r.raw[f.Name]
	switch {
	case f.Kind.IsCollection() && !isCached:
		ids, _ := transport.AsInt64List(raw)
		return []any{transport.Tuple{CommandReplace, int64(0), toAnyIDs(ids)}}, nil
	case f.Kind == schema.KindMany2One:
		id, _ := many2oneID(raw)
		return id, nil
	}
	return raw, nil
}

// Save 保存记录：草稿调用 create，已持久化且有修改时调用 write，随后重载
func (r *Record) Save(ctx context.Context) error {
	if !r.IsNew() && !r.IsDirty() {
		return nil
	}
	start := time.Now()
	fields := r.Dirty()
	values, err := r.OERepr(ctx)
	if err != nil {
		return err
	}

	event := messaging.EventRecordWritten
	if r.IsNew() {
		id, err := r.model.proxy.Create(ctx, values)
		if err != nil {
			return err
		}
		r.id = id
		event = messaging.EventRecordCreated
	} else {
		if _, err := r.model.proxy.Write(ctx, []int64{r.id}, values); err != nil {
			return err
		}
	}

	if err := r.Reload(ctx); err != nil {
		return err
	}

	r.model.factory.logger.Debug(ctx, "record saved",
		logging.String("record", r.String()),
		logging.String("event", event),
		logging.Int("fields", len(fields)),
		logging.Duration("elapsed", time.Since(start)))
	r.model.factory.publish(ctx, event, r, fields)
	return nil
}

// Reload 丢弃本地修改并重新读取服务端的值
//
// 被修改过的关联值（单个关联与集合成员）一并重载。
func (r *Record) Reload(ctx context.Context) error {
	if r.IsNew() {
		return errors.Precondition("cannot reload unsaved %s record", r.model.key.Model)
	}
	for name := range r.dirty {
		switch v := r.values[name].(type) {
		case *Record:
			if !v.IsNew() {
				if err := v.Reload(ctx); err != nil {
					return err
				}
			}
		case *List:
			if err := v.Reload(ctx); err != nil {
				return err
			}
		}
	}

	rows, err := r.model.proxy.Read(ctx, []int64{r.id}, nil)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.NotFound(r.model.key.Model, r.id)
	}
	r.raw = make(map[string]any, len(rows[0]))
	for name, value := range rows[0] {
		if name != schema.IDField {
			r.raw[name] = value
		}
	}
	r.values = make(map[string]any)
	r.dirty = make(map[string]struct{})
	return nil
}

// Unlink 删除记录
func (r *Record) Unlink(ctx context.Context) error {
	return r.model.Unlink(ctx, r)
}

func (r *Record) relatedModel(ctx context.Context, f *schema.Field) (*Model, error) {
	return r.model.factory.Get(ctx, r.model.key.Database, f.Relation)
}
