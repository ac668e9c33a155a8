package schema

import (
	"sort"

	"oebrowse/errors"
	"oebrowse/transport"
)

// IDField 标识字段，不绑定字段规则
const IDField = "id"

// Field 单个字段的定义
type Field struct {
	Name     string
	Type     string
	Kind     Kind
	Relation string
	Label    string
	Required bool
	Readonly bool
	// Attrs 服务端返回的完整属性
	Attrs map[string]any
}

// Schema 一个模型的字段表，构建后只读
type Schema struct {
	Model  string
	fields map[string]*Field
	names  []string
}

// Parse 从 fields_get 的结果构建字段表
func Parse(model string, raw map[string]any) (*Schema, error) {
	s := &Schema{Model: model, fields: make(map[string]*Field, len(raw))}
	for name, def := range raw {
		if name == IDField {
			continue
		}
		attrs, ok := transport.AsMap(def)
		if !ok {
			return nil, errors.Errorf(errors.ErrCodeProtocol, "%s.%s 的字段定义不是映射", model, name)
		}

		f := &Field{Name: name, Attrs: attrs}
		f.Type, _ = transport.AsString(attrs["type"])
		f.Kind = KindOf(f.Type)
		f.Relation, _ = transport.AsString(attrs["relation"])
		f.Label, _ = transport.AsString(attrs["string"])
		f.Required = !transport.IsFalsy(attrs["required"])
		f.Readonly = !transport.IsFalsy(attrs["readonly"])

		if f.Kind.IsRelational() && f.Relation == "" {
			return nil, errors.Errorf(errors.ErrCodeProtocol, "%s.%s 是 %s 字段但缺少 relation", model, name, f.Type)
		}
		s.fields[name] = f
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	return s, nil
}

// Field 查找字段
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Names 按字母序返回字段名（不含 id）
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len 字段数量
func (s *Schema) Len() int {
	return len(s.names)
}
