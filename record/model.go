package record

import (
	"context"
	"sort"

	"oebrowse/errors"
	"oebrowse/rpc"
	"oebrowse/schema"
	"oebrowse/transport"
	"oebrowse/validation"
)

// Model 某个远程模型的记录类：字段结构加上绑定的远程代理
type Model struct {
	factory *Factory
	key     Key
	schema  *schema.Schema
	proxy   *rpc.ObjectProxy
}

// Name 模型名
func (m *Model) Name() string { return m.key.Model }

// Database 数据库名
func (m *Model) Database() string { return m.key.Database }

// Key 缓存键
func (m *Model) Key() Key { return m.key }

// Schema 字段结构
func (m *Model) Schema() *schema.Schema { return m.schema }

// Proxy 远程方法代理
func (m *Model) Proxy() *rpc.ObjectProxy { return m.proxy }

func (m *Model) String() string { return "<Model " + m.key.String() + ">" }

// Browse 读取已持久化的记录
func (m *Model) Browse(ctx context.Context, id int64) (*Record, error) {
	if err := validation.ValidateID(id, m.key.Model+" id"); err != nil {
		return nil, err
	}
	rows, err := m.proxy.Read(ctx, []int64{id}, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NotFound(m.key.Model, id)
	}
	return m.persisted(id, rows[0]), nil
}

// BrowseMany 以一次 read 调用读取多条记录，结果顺序与 ids 一致
func (m *Model) BrowseMany(ctx context.Context, ids []int64) ([]*Record, error) {
	if len(ids) == 0 {
		return []*Record{}, nil
	}
	for _, id := range ids {
		if err := validation.ValidateID(id, m.key.Model+" id"); err != nil {
			return nil, err
		}
	}
	rows, err := m.proxy.Read(ctx, ids, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]map[string]any, len(rows))
	for _, row := range rows {
		if id, ok := transport.AsInt64(row[schema.IDField]); ok {
			byID[id] = row
		}
	}
	records := make([]*Record, 0, len(ids))
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			return nil, errors.NotFound(m.key.Model, id)
		}
		records = append(records, m.persisted(id, row))
	}
	return records, nil
}

// New 用字段值构造草稿记录，值按字段种类逐个赋值
func (m *Model) New(values map[string]any) (*Record, error) {
	if len(values) == 0 {
		return nil, errors.Precondition("new %s record requires field values", m.key.Model)
	}
	return m.draft(values)
}

// Default 以服务端默认值构造草稿记录
func (m *Model) Default(ctx context.Context) (*Record, error) {
	defaults, err := m.proxy.DefaultGet(ctx, m.schema.Names())
	if err != nil {
		return nil, err
	}
	return m.draft(defaults)
}

// Search 按条件检索并批量读取记录
func (m *Model) Search(ctx context.Context, condition []any, offset, limit int, orderBy string) ([]*Record, error) {
	ids, err := m.proxy.Search(ctx, condition, offset, limit, orderBy)
	if err != nil {
		return nil, err
	}
	return m.BrowseMany(ctx, ids)
}

// NameSearch 按显示名检索并批量读取记录
func (m *Model) NameSearch(ctx context.Context, name string, domain []any, operator string, limit int) ([]*Record, error) {
	pairs, err := m.proxy.NameSearch(ctx, name, domain, operator, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(pairs))
	for i, p := range pairs {
		ids[i] = p.ID
	}
	return m.BrowseMany(ctx, ids)
}

// Unlink 删除持久化记录
func (m *Model) Unlink(ctx context.Context, records ...*Record) error {
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		if r.IsNew() {
			return errors.Precondition("cannot unlink unsaved %s record", m.key.Model)
		}
		if r.model.key != m.key {
			return errors.Precondition("record %s does not belong to %s", r, m.key)
		}
		ids = append(ids, r.id)
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := m.proxy.Unlink(ctx, ids)
	return err
}

func (m *Model) persisted(id int64, row map[string]any) *Record {
	r := newRecord(m)
	r.id = id
	for name, value := range row {
		if name == schema.IDField {
			continue
		}
		r.raw[name] = value
	}
	return r
}

func (m *Model) draft(values map[string]any) (*Record, error) {
	r := newRecord(m)
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Set(name, values[name]); err != nil {
			return nil, err
		}
	}
	return r, nil
}
