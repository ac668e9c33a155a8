package record

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"oebrowse/errors"
	"oebrowse/schema"
	"oebrowse/transport"
)

// 服务端日期格式
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// assignment 一次赋值的结果
type assignment struct {
	raw   any
	typed any
	// cached 为 false 时不缓存类型化的值，下次读取时重新物化
	cached bool
	// skip 为 true 时赋值被忽略，记录不变
	skip bool
}

func keep(raw, typed any) assignment { return assignment{raw: raw, typed: typed, cached: true} }

func rawOnly(raw any) assignment { return assignment{raw: raw} }

var skipped = assignment{skip: true}

type (
	materializeFunc func(ctx context.Context, r *Record, f *schema.Field, raw any) (any, error)
	assignFunc      func(r *Record, f *schema.Field, value any) (assignment, error)
)

// kindRule 某一字段种类的物化与赋值规则
type kindRule struct {
	materialize materializeFunc
	assign      assignFunc
}

func ruleFor(kind schema.Kind) kindRule {
	switch kind {
	case schema.KindFloat:
		return kindRule{materialize: materializeFloat, assign: assignFloat}
	case schema.KindMany2One:
		return kindRule{materialize: materializeMany2One, assign: assignMany2One}
	case schema.KindOne2Many, schema.KindMany2Many:
		return kindRule{materialize: materializeCollection, assign: assignCollection}
	case schema.KindDate:
		return kindRule{materialize: timeMaterializer(DateLayout), assign: timeAssigner(DateLayout)}
	case schema.KindDateTime:
		return kindRule{materialize: timeMaterializer(DateTimeLayout), assign: timeAssigner(DateTimeLayout)}
	default:
		return kindRule{materialize: materializeDefault, assign: assignDefault}
	}
}

func materializeError(f *schema.Field, raw any, cause error) error {
	var err errors.IError
	if cause != nil {
		err = errors.WrapError(cause, errors.ErrCodeMaterialize, "cannot materialize field "+f.Name)
	} else {
		err = errors.Errorf(errors.ErrCodeMaterialize, "cannot materialize field %s from %T", f.Name, raw)
	}
	return err.WithDetails(map[string]any{"field": f.Name, "kind": f.Kind.String(), "value": raw})
}

func assignError(f *schema.Field, value any) error {
	return errors.Precondition("cannot assign %T to %s field %s", value, f.Kind, f.Name).
		WithContext("field", f.Name)
}

func materializeDefault(_ context.Context, _ *Record, _ *schema.Field, raw any) (any, error) {
	return raw, nil
}

func assignDefault(_ *Record, _ *schema.Field, value any) (assignment, error) {
	if n, ok := value.(int); ok {
		value = int64(n)
	}
	return keep(value, value), nil
}

// 浮点字段以十进制呈现，空值为 0
func materializeFloat(_ context.Context, _ *Record, f *schema.Field, raw any) (any, error) {
	if transport.IsFalsy(raw) {
		return decimal.Zero, nil
	}
	switch v := raw.(type) {
	case float64:
		return floatDecimal(f, v)
	case int64:
		return decimal.NewFromInt(v), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, materializeError(f, raw, err)
		}
		return d, nil
	}
	return nil, materializeError(f, raw, nil)
}

// floatDecimal 按最短十进制表示转换，9.99 得到 9.99 而不是二进制展开
func floatDecimal(f *schema.Field, v float64) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strconv.FormatFloat(v, 'f', -1, 64))
	if err != nil {
		return decimal.Zero, materializeError(f, v, err)
	}
	return d, nil
}

func assignFloat(_ *Record, f *schema.Field, value any) (assignment, error) {
	switch v := value.(type) {
	case nil:
		return keep(false, decimal.Zero), nil
	case decimal.Decimal:
		return keep(v.InexactFloat64(), v), nil
	case float64:
		// 浮点数原样上送
		typed, err := floatDecimal(f, v)
		if err != nil {
			return assignment{}, err
		}
		return keep(v, typed), nil
	case float32:
		return keep(float64(v), decimal.NewFromFloat32(v)), nil
	case int, int32, int64:
		i, _ := transport.AsInt64(v)
		return keep(float64(i), decimal.NewFromInt(i)), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return assignment{}, materializeError(f, v, err)
		}
		return keep(d.InexactFloat64(), d), nil
	}
	return assignment{}, assignError(f, value)
}

// 单个关联：原始值为 (id, 显示名) 或 False
func materializeMany2One(ctx context.Context, r *Record, f *schema.Field, raw any) (any, error) {
	id, ok := many2oneID(raw)
	if !ok || id <= 0 {
		return nil, nil
	}
	target, err := r.relatedModel(ctx, f)
	if err != nil {
		return nil, err
	}
	return target.Browse(ctx, id)
}

func many2oneID(raw any) (int64, bool) {
	if pair, ok := transport.AsList(raw); ok {
		if len(pair) == 0 {
			return 0, false
		}
		return transport.AsInt64(pair[0])
	}
	return transport.AsInt64(raw)
}

// 空值赋值被忽略
func assignMany2One(r *Record, f *schema.Field, value any) (assignment, error) {
	switch v := value.(type) {
	case *Record:
		if v == nil {
			return skipped, nil
		}
		if v.model.key.Model != f.Relation || v.model.key.Database != r.model.key.Database {
			return assignment{}, errors.Precondition("field %s expects %s, got %s", f.Name, f.Relation, v.model.key)
		}
		var id any
		if !v.IsNew() {
			id = v.id
		}
		return keep([]any{id, v.DisplayName()}, v), nil
	case int, int32, int64:
		id, _ := transport.AsInt64(v)
		if id == 0 {
			return skipped, nil
		}
		if id < 0 {
			return assignment{}, assignError(f, value)
		}
		return rawOnly([]any{id, ""}), nil
	}
	if transport.IsFalsy(value) {
		return skipped, nil
	}
	return assignment{}, assignError(f, value)
}

// 关联集合：原始值为标识列表
func materializeCollection(ctx context.Context, r *Record, f *schema.Field, raw any) (any, error) {
	list := newList(r, f)
	if transport.IsFalsy(raw) {
		return list, nil
	}
	ids, ok := transport.AsInt64List(raw)
	if !ok {
		return nil, materializeError(f, raw, nil)
	}
	// 被整体赋值为标识列表且尚未保存时，保留替换语义
	list.replaced = r.isDirty(f.Name)
	if len(ids) == 0 {
		return list, nil
	}
	target, err := r.relatedModel(ctx, f)
	if err != nil {
		return nil, err
	}
	items, err := target.BrowseMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	list.items = items
	return list, nil
}

// 整体赋值替换集合的全部成员
func assignCollection(r *Record, f *schema.Field, value any) (assignment, error) {
	switch v := value.(type) {
	case nil:
		list := newList(r, f)
		list.replaced = true
		return keep([]any{}, list), nil
	case []*Record:
		list := newList(r, f)
		list.replaced = true
		for _, item := range v {
			if err := list.accepts(item); err != nil {
				return assignment{}, err
			}
		}
		list.items = append(list.items, v...)
		return keep(idsOf(v), list), nil
	case *List:
		if v == nil {
			return assignCollection(r, f, nil)
		}
		return assignCollection(r, f, v.Records())
	case []int64:
		return collectionRaw(f, v)
	case []any:
		ids, ok := collectionIDs(v)
		if !ok {
			return assignment{}, assignError(f, value)
		}
		return collectionRaw(f, ids)
	}
	return assignment{}, assignError(f, value)
}

func collectionRaw(f *schema.Field, ids []int64) (assignment, error) {
	raw := make([]any, len(ids))
	for i, id := range ids {
		if id <= 0 {
			return assignment{}, errors.Precondition("field %s: invalid id %d", f.Name, id)
		}
		raw[i] = id
	}
	return rawOnly(raw), nil
}

// collectionIDs 接受标识列表，或服务端默认值常见的 [(6, 0, ids)] 命令形式
func collectionIDs(values []any) ([]int64, bool) {
	if ids, ok := transport.AsInt64List(values); ok {
		return ids, true
	}
	if len(values) != 1 {
		return nil, false
	}
	cmd, ok := transport.AsList(values[0])
	if !ok || len(cmd) != 3 {
		return nil, false
	}
	if code, ok := transport.AsInt64(cmd[0]); !ok || code != CommandReplace {
		return nil, false
	}
	return transport.AsInt64List(cmd[2])
}

func idsOf(records []*Record) []any {
	ids := make([]any, 0, len(records))
	for _, item := range records {
		if !item.IsNew() {
			ids = append(ids, item.id)
		}
	}
	return ids
}

// 日期与时间戳字段，空值物化为 nil
func timeMaterializer(layout string) materializeFunc {
	return func(_ context.Context, _ *Record, f *schema.Field, raw any) (any, error) {
		if transport.IsFalsy(raw) {
			return nil, nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil, materializeError(f, raw, nil)
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			return nil, materializeError(f, raw, err)
		}
		return t, nil
	}
}

// normalizeTime 把赋值的时间化为服务端能表示的值：时间戳转 UTC 并截到秒，
// 日期只保留日历日
func normalizeTime(layout string, t time.Time) time.Time {
	if layout == DateLayout {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t.UTC().Truncate(time.Second)
}

func timeAssigner(layout string) assignFunc {
	return func(_ *Record, f *schema.Field, value any) (assignment, error) {
		switch v := value.(type) {
		case nil:
			return keep(false, nil), nil
		case time.Time:
			if v.IsZero() {
				return keep(false, nil), nil
			}
			t := normalizeTime(layout, v)
			return keep(t.Format(layout), t), nil
		case *time.Time:
			if v == nil || v.IsZero() {
				return keep(false, nil), nil
			}
			t := normalizeTime(layout, *v)
			return keep(t.Format(layout), t), nil
		case string:
			if v == "" {
				return keep(false, nil), nil
			}
			t, err := time.Parse(layout, v)
			if err != nil {
				return assignment{}, materializeError(f, v, err)
			}
			return keep(v, t), nil
		case bool:
			if !v {
				return keep(false, nil), nil
			}
		}
		return assignment{}, assignError(f, value)
	}
}
