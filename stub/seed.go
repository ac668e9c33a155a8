package stub

import (
	"context"

	"oebrowse/storage"
)

func field(fieldType, label string, attrs ...any) map[string]any {
	def := map[string]any{"type": fieldType, "string": label}
	for i := 0; i+1 < len(attrs); i += 2 {
		def[attrs[i].(string)] = attrs[i+1]
	}
	return def
}

// DemoModels 演示模型的字段定义
func DemoModels() map[string]map[string]any {
	return map[string]map[string]any{
		"product.category": {
			"name": field("char", "Name", "required", true),
		},
		"product.tag": {
			"name": field("char", "Name", "required", true),
		},
		"product.product": {
			"name":        field("char", "Name", "required", true),
			"list_price":  field("float", "Sale Price", "default", 1.0),
			"categ_id":    field("many2one", "Category", "relation", "product.category"),
			"tag_ids":     field("many2many", "Tags", "relation", "product.tag"),
			"date_launch": field("date", "Launch Date"),
			"active":      field("boolean", "Active", "default", true),
			"description": field("text", "Description"),
		},
		"res.partner": {
			"name":         field("char", "Name", "required", true),
			"parent_id":    field("many2one", "Parent", "relation", "res.partner"),
			"child_ids":    field("one2many", "Contacts", "relation", "res.partner", "relation_field", "parent_id"),
			"credit_limit": field("float", "Credit Limit"),
			"birthdate":    field("date", "Birthdate"),
			"last_seen":    field("datetime", "Last Seen"),
			"email":        field("char", "Email"),
		},
		"res.users": {
			"name":  field("char", "Name", "required", true),
			"login": field("char", "Login", "required", true),
		},
	}
}

type seedRow struct {
	model  string
	values map[string]any
}

var demoRows = []seedRow{
	{"product.category", map[string]any{"name": "Goods"}},
	{"product.category", map[string]any{"name": "Services"}},
	{"product.tag", map[string]any{"name": "Eco"}},
	{"product.tag", map[string]any{"name": "Sale"}},
	{"product.tag", map[string]any{"name": "New"}},
	{"product.product", map[string]any{
		"name": "Widget", "list_price": 9.99, "categ_id": int64(1),
		"tag_ids": []any{int64(1)}, "active": true,
	}},
	{"product.product", map[string]any{
		"name": "Gadget", "list_price": 25.5, "categ_id": int64(1),
		"tag_ids": []any{int64(2), int64(3)}, "date_launch": "2012-03-01", "active": true,
	}},
	{"product.product", map[string]any{
		"name": "Consulting", "list_price": 120.0, "categ_id": int64(2),
		"tag_ids": []any{}, "active": true,
	}},
	{"res.partner", map[string]any{
		"name": "Acme", "credit_limit": 5000.0, "child_ids": []any{int64(2)},
		"email": "info@acme.example",
	}},
	{"res.partner", map[string]any{
		"name": "John Doe", "parent_id": int64(1), "child_ids": []any{},
		"birthdate": "1980-07-14", "last_seen": "2012-05-01 08:30:00",
	}},
	{"res.users", map[string]any{"name": "Administrator", "login": "admin"}},
}

// Seed 写入演示模型与记录，标识从 1 开始按模型递增
func Seed(ctx context.Context, store *storage.Store) error {
	for model, fields := range DemoModels() {
		if err := store.DefineModel(ctx, model, fields); err != nil {
			return err
		}
	}
	for _, row := range demoRows {
		if _, err := store.Insert(ctx, row.model, row.values); err != nil {
			return err
		}
	}
	return nil
}
