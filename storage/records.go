package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"oebrowse/errors"
)

// Row 一条记录：标识加字段值
type Row struct {
	ID     int64
	Values map[string]any
}

// DefineModel 保存模型的字段定义（fields_get 形态），已存在时覆盖
func (s *Store) DefineModel(ctx context.Context, model string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeStorage, "encode fields of "+model)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO models (name, fields) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET fields = excluded.fields`, model, string(data))
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeStorage, "define model "+model)
	}
	return nil
}

// Fields 读取模型的字段定义
func (s *Store) Fields(ctx context.Context, model string) (map[string]any, bool, error) {
	q, args := newSelect("fields").From("models").Where("name = ?", model).Build()
	var data string
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WrapError(err, errors.ErrCodeStorage, "load fields of "+model)
	}
	fields, err := decodeValues(data)
	if err != nil {
		return nil, false, errors.WrapError(err, errors.ErrCodeStorage, "decode fields of "+model)
	}
	return fields, true, nil
}

// Models 已定义的模型名，按名称排序
func (s *Store) Models(ctx context.Context) ([]string, error) {
	q, args := newSelect("name").From("models").OrderBy("name", false).Build()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeStorage, "list models")
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeStorage, "scan model")
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Insert 新增记录并返回分配的标识
func (s *Store) Insert(ctx context.Context, model string, values map[string]any) (int64, error) {
	data, err := encodeValues(values)
	if err != nil {
		return 0, errors.WrapError(err, errors.ErrCodeStorage, "encode "+model+" values")
	}
	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		q, args := newSelect("COALESCE(MAX(id), 0) + 1").From("records").Where("model = ?", model).Build()
		if err := tx.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
			return errors.WrapError(err, errors.ErrCodeStorage, "allocate "+model+" id")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (model, id, data) VALUES (?, ?, ?)`, model, id, data); err != nil {
			return errors.WrapError(err, errors.ErrCodeStorage, "insert "+model)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get 按标识读取记录，不存在的标识被跳过，结果按标识升序
func (s *Store) Get(ctx context.Context, model string, ids []int64) ([]Row, error) {
	q, args := newSelect("id", "data").From("records").
		Where("model = ?", model).
		WhereIn("id", ids).
		OrderBy("id", false).
		Build()
	return s.query(ctx, model, q, args)
}

// List 按标识顺序分页读取模型的记录，limit 为 0 表示不限制
func (s *Store) List(ctx context.Context, model string, offset, limit int) ([]Row, error) {
	q, args := newSelect("id", "data").From("records").
		Where("model = ?", model).
		OrderBy("id", false).
		Offset(offset).
		Limit(limit).
		Build()
	return s.query(ctx, model, q, args)
}

// Update 合并写入字段值
func (s *Store) Update(ctx context.Context, model string, id int64, values map[string]any) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var data string
		q, args := newSelect("data").From("records").Where("model = ?", model).Where("id = ?", id).Build()
		err := tx.QueryRowContext(ctx, q, args...).Scan(&data)
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NotFound(model, id)
		}
		if err != nil {
			return errors.WrapError(err, errors.ErrCodeStorage, "load "+model)
		}
		current, err := decodeValues(data)
		if err != nil {
			return errors.WrapError(err, errors.ErrCodeStorage, "decode "+model)
		}
		for k, v := range values {
			current[k] = v
		}
		encoded, err := encodeValues(current)
		if err != nil {
			return errors.WrapError(err, errors.ErrCodeStorage, "encode "+model)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE records SET data = ? WHERE model = ? AND id = ?`, encoded, model, id); err != nil {
			return errors.WrapError(err, errors.ErrCodeStorage, "update "+model)
		}
		return nil
	})
}

// Delete 删除记录，返回实际删除的条数
func (s *Store) Delete(ctx context.Context, model string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var total int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE model = ? AND id = ?`, model, id)
			if err != nil {
				return errors.WrapError(err, errors.ErrCodeStorage, "delete "+model)
			}
			n, _ := res.RowsAffected()
			total += n
		}
		return nil
	})
	return total, err
}

func (s *Store) query(ctx context.Context, model, q string, args []any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeStorage, "query "+model)
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		var (
			id   int64
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeStorage, "scan "+model)
		}
		values, err := decodeValues(data)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeStorage, "decode "+model).WithContext("id", id)
		}
		out = append(out, Row{ID: id, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeStorage, "iterate "+model)
	}
	return out, nil
}

func encodeValues(values map[string]any) (string, error) {
	if values == nil {
		values = map[string]any{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeValues 解码 JSON，整数保持为 int64，其余数值为 float64
func decodeValues(data string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range out {
		out[k] = numbers(v)
	}
	return out, nil
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
