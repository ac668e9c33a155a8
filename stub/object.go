package stub

import (
	"context"
	"fmt"
	"slices"

	"oebrowse/storage"
	"oebrowse/transport"
)

// 集合字段写入命令
const (
	cmdCreate  = 0
	cmdUpdate  = 1
	cmdDelete  = 2
	cmdUnlink  = 3
	cmdLink    = 4
	cmdClear   = 5
	cmdReplace = 6
)

// modelDef 一个模型的字段定义
type modelDef struct {
	name   string
	fields map[string]any
}

func (m modelDef) field(name string) (map[string]any, bool) {
	def, ok := m.fields[name].(map[string]any)
	return def, ok
}

func fieldType(def map[string]any) string {
	t, _ := def["type"].(string)
	return t
}

func fieldRelation(def map[string]any) string {
	r, _ := def["relation"].(string)
	return r
}

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func (s *Service) loadModel(ctx context.Context, model string) (modelDef, error) {
	fields, found, err := s.store.Fields(ctx, model)
	if err != nil {
		return modelDef{}, err
	}
	if !found {
		return modelDef{}, faultf(TagWarning, "Object %s doesn't exist", model)
	}
	return modelDef{name: model, fields: fields}, nil
}

func (s *Service) object(ctx context.Context, user User, model, method string, args []any) (any, error) {
	if model == "res.users" && method == "context_get" {
		return map[string]any{"lang": user.Lang, "tz": user.TZ}, nil
	}

	m, err := s.loadModel(ctx, model)
	if err != nil {
		return nil, err
	}

	switch method {
	case "fields_get":
		return s.fieldsGet(m, arg(args, 0)), nil
	case "read":
		ids, ok := transport.AsInt64List(arg(args, 0))
		if !ok {
			if id, single := transport.AsInt64(arg(args, 0)); single {
				rows, err := s.read(ctx, m, []int64{id}, arg(args, 1))
				if err != nil || len(rows) == 0 {
					return false, err
				}
				return rows[0], nil
			}
			return nil, faultf(TagWarning, "read expects a list of ids")
		}
		rows, err := s.read(ctx, m, ids, arg(args, 1))
		if err != nil {
			return nil, err
		}
		out := make([]any, len(rows))
		for i, r := range rows {
			out[i] = r
		}
		return out, nil
	case "create":
		values, ok := transport.AsMap(arg(args, 0))
		if !ok {
			return nil, faultf(TagWarning, "create expects a values dictionary")
		}
		return s.create(ctx, m, values)
	case "write":
		ids, ok := transport.AsInt64List(arg(args, 0))
		values, okValues := transport.AsMap(arg(args, 1))
		if !ok || !okValues {
			return nil, faultf(TagWarning, "write expects (ids, values)")
		}
		for _, id := range ids {
			if err := s.write(ctx, m, id, values); err != nil {
				return nil, err
			}
		}
		return true, nil
	case "unlink":
		ids, ok := transport.AsInt64List(arg(args, 0))
		if !ok {
			return nil, faultf(TagWarning, "unlink expects a list of ids")
		}
		if _, err := s.store.Delete(ctx, m.name, ids); err != nil {
			return nil, err
		}
		return true, nil
	case "search":
		return s.search(ctx, m, args)
	case "name_search":
		return s.nameSearch(ctx, m, args)
	case "default_get":
		return s.defaultGet(m, arg(args, 0)), nil
	}
	return nil, faultf(TagWarning, "Method %s.%s is not available", model, method)
}

func (s *Service) fieldsGet(m modelDef, filter any) map[string]any {
	names, _ := transport.AsList(filter)
	out := make(map[string]any, len(m.fields))
	for name, def := range m.fields {
		if len(names) > 0 && !slices.Contains(names, any(name)) {
			continue
		}
		out[name] = def
	}
	return out
}

func (s *Service) defaultGet(m modelDef, filter any) map[string]any {
	names, _ := transport.AsList(filter)
	out := make(map[string]any)
	for name := range m.fields {
		def, _ := m.field(name)
		value, ok := def["default"]
		if !ok {
			continue
		}
		if len(names) > 0 && !slices.Contains(names, any(name)) {
			continue
		}
		out[name] = value
	}
	return out
}

// read 返回服务端形态的记录：单个关联为 (id, 显示名)，集合为标识列表，缺失值为 False
func (s *Service) read(ctx context.Context, m modelDef, ids []int64, fieldsArg any) ([]map[string]any, error) {
	rows, err := s.store.Get(ctx, m.name, ids)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.fields))
	if requested, _ := transport.AsList(fieldsArg); len(requested) > 0 {
		for _, n := range requested {
			if name, ok := n.(string); ok {
				if _, known := m.field(name); known {
					names = append(names, name)
				}
			}
		}
	} else {
		for name := range m.fields {
			names = append(names, name)
		}
	}

	// 保持调用方给出的标识顺序
	byID := make(map[int64]storage.Row, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]map[string]any, 0, len(rows))
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			continue
		}
		record := map[string]any{"id": row.ID}
		for _, name := range names {
			def, _ := m.field(name)
			value, err := s.shape(ctx, def, row.Values[name])
			if err != nil {
				return nil, err
			}
			record[name] = value
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *Service) shape(ctx context.Context, def map[string]any, stored any) (any, error) {
	switch fieldType(def) {
	case "many2one":
		id, ok := transport.AsInt64(stored)
		if !ok || id <= 0 {
			return false, nil
		}
		target, err := s.store.Get(ctx, fieldRelation(def), []int64{id})
		if err != nil {
			return nil, err
		}
		if len(target) == 0 {
			return false, nil
		}
		name, ok := target[0].Values["name"].(string)
		if !ok {
			name = fmt.Sprintf("%s,%d", fieldRelation(def), id)
		}
		return []any{id, name}, nil
	case "one2many", "many2many":
		ids, _ := transport.AsInt64List(stored)
		out := make([]any, len(ids))
		for i, id := range ids {
			out[i] = id
		}
		return out, nil
	case "float":
		if transport.IsFalsy(stored) {
			return 0.0, nil
		}
		if f, ok := transport.AsFloat64(stored); ok {
			return f, nil
		}
		return stored, nil
	case "boolean":
		b, _ := stored.(bool)
		return b, nil
	}
	if stored == nil {
		return false, nil
	}
	return stored, nil
}

func (s *Service) create(ctx context.Context, m modelDef, values map[string]any) (int64, error) {
	merged := s.defaultGet(m, nil)
	for k, v := range values {
		merged[k] = v
	}
	for name := range m.fields {
		def, _ := m.field(name)
		if required, _ := def["required"].(bool); required && transport.IsFalsy(merged[name]) {
			return 0, faultf(TagValidation, "Field %s is required on %s", name, m.name)
		}
	}
	stored, err := s.toStored(ctx, m, merged, nil)
	if err != nil {
		return 0, err
	}
	return s.store.Insert(ctx, m.name, stored)
}

func (s *Service) write(ctx context.Context, m modelDef, id int64, values map[string]any) error {
	rows, err := s.store.Get(ctx, m.name, []int64{id})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return faultf(TagMissing, "Record %s(%d) does not exist", m.name, id)
	}
	stored, err := s.toStored(ctx, m, values, rows[0].Values)
	if err != nil {
		return err
	}
	return s.store.Update(ctx, m.name, id, stored)
}

// toStored 校验字段并把写入值转换为存储形态，current 为已有记录的值
func (s *Service) toStored(ctx context.Context, m modelDef, values, current map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for name, value := range values {
		if name == "id" {
			continue
		}
		def, ok := m.field(name)
		if !ok {
			return nil, faultf(TagValidation, "Invalid field %s on model %s", name, m.name)
		}
		switch fieldType(def) {
		case "many2one":
			id, err := s.many2one(ctx, def, value)
			if err != nil {
				return nil, err
			}
			if id == 0 {
				out[name] = false
			} else {
				out[name] = id
			}
		case "one2many", "many2many":
			existing, _ := transport.AsInt64List(current[name])
			ids, err := s.applyCommands(ctx, fieldRelation(def), existing, value)
			if err != nil {
				return nil, err
			}
			list := make([]any, len(ids))
			for i, id := range ids {
				list[i] = id
			}
			out[name] = list
		default:
			out[name] = value
		}
	}
	return out, nil
}

func (s *Service) many2one(ctx context.Context, def map[string]any, value any) (int64, error) {
	if transport.IsFalsy(value) {
		return 0, nil
	}
	id, ok := transport.AsInt64(value)
	if !ok {
		if pair, isList := transport.AsList(value); isList && len(pair) > 0 {
			id, ok = transport.AsInt64(pair[0])
		}
	}
	if !ok {
		return 0, faultf(TagValidation, "invalid many2one value %v", value)
	}
	rows, err := s.store.Get(ctx, fieldRelation(def), []int64{id})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, faultf(TagMissing, "Record %s(%d) does not exist", fieldRelation(def), id)
	}
	return id, nil
}

// applyCommands 对集合执行写入命令，也接受纯标识列表（整体替换）
func (s *Service) applyCommands(ctx context.Context, relation string, ids []int64, value any) ([]int64, error) {
	commands, ok := transport.AsList(value)
	if !ok {
		if transport.IsFalsy(value) {
			return []int64{}, nil
		}
		return nil, faultf(TagValidation, "invalid relation value %v", value)
	}
	if len(commands) == 0 {
		return ids, nil
	}
	if plain, isIDs := transport.AsInt64List(commands); isIDs {
		return plain, nil
	}

	target, err := s.loadModel(ctx, relation)
	if err != nil {
		return nil, err
	}
	out := append([]int64{}, ids...)
	for _, c := range commands {
		cmd, ok := transport.AsList(c)
		if !ok || len(cmd) == 0 {
			return nil, faultf(TagValidation, "invalid relation command %v", c)
		}
		code, _ := transport.AsInt64(cmd[0])
		id, _ := transport.AsInt64(arg(cmd, 1))
		switch code {
		case cmdCreate:
			values, ok := transport.AsMap(arg(cmd, 2))
			if !ok {
				return nil, faultf(TagValidation, "create command expects values")
			}
			newID, err := s.create(ctx, target, values)
			if err != nil {
				return nil, err
			}
			out = append(out, newID)
		case cmdUpdate:
			values, ok := transport.AsMap(arg(cmd, 2))
			if !ok {
				return nil, faultf(TagValidation, "update command expects values")
			}
			if err := s.write(ctx, target, id, values); err != nil {
				return nil, err
			}
		case cmdDelete:
			if _, err := s.store.Delete(ctx, relation, []int64{id}); err != nil {
				return nil, err
			}
			out = slices.DeleteFunc(out, func(v int64) bool { return v == id })
		case cmdUnlink:
			out = slices.DeleteFunc(out, func(v int64) bool { return v == id })
		case cmdLink:
			if !slices.Contains(out, id) {
				out = append(out, id)
			}
		case cmdClear:
			out = out[:0]
		case cmdReplace:
			replacement, ok := transport.AsInt64List(arg(cmd, 2))
			if !ok {
				return nil, faultf(TagValidation, "replace command expects ids")
			}
			out = append(out[:0], replacement...)
		default:
			return nil, faultf(TagValidation, "unknown relation command %d", code)
		}
	}
	return out, nil
}

// search 参数 (domain, offset, limit, order, context)
func (s *Service) search(ctx context.Context, m modelDef, args []any) (any, error) {
	domain, _ := transport.AsList(arg(args, 0))
	offset, _ := transport.AsInt64(arg(args, 1))
	limit, _ := transport.AsInt64(arg(args, 2))
	order, _ := arg(args, 3).(string)

	rows, err := s.filter(ctx, m, domain)
	if err != nil {
		return nil, err
	}
	sortRows(rows, order)
	rows = page(rows, int(offset), int(limit))

	ids := make([]any, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

// nameSearch 参数 (name, args, operator, context, limit)
func (s *Service) nameSearch(ctx context.Context, m modelDef, args []any) (any, error) {
	name, _ := arg(args, 0).(string)
	domain, _ := transport.AsList(arg(args, 1))
	operator, _ := arg(args, 2).(string)
	if operator == "" {
		operator = "ilike"
	}
	limit, ok := transport.AsInt64(arg(args, 4))
	if !ok {
		limit = 80
	}

	if name != "" {
		domain = append([]any{[]any{"name", operator, name}}, domain...)
	}
	rows, err := s.filter(ctx, m, domain)
	if err != nil {
		return nil, err
	}
	sortRows(rows, "name")
	rows = page(rows, 0, int(limit))

	out := make([]any, len(rows))
	for i, r := range rows {
		label, ok := r.Values["name"].(string)
		if !ok {
			label = fmt.Sprintf("%s,%d", m.name, r.ID)
		}
		out[i] = []any{r.ID, label}
	}
	return out, nil
}

func (s *Service) filter(ctx context.Context, m modelDef, domain []any) ([]storage.Row, error) {
	match, err := compileDomain(domain)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.List(ctx, m.name, 0, 0)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, r := range rows {
		if match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func page(rows []storage.Row, offset, limit int) []storage.Row {
	if offset > len(rows) {
		return rows[:0]
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
