package rpc

import (
	"context"
	"fmt"

	"oebrowse/errors"
	"oebrowse/transport"
	"oebrowse/validation"
)

// NamePair name_search 返回的 (标识, 显示名)
type NamePair struct {
	ID   int64
	Name string
}

// ObjectProxy 绑定 (数据库, 模型, 凭据, 会话上下文) 的远程方法代理。
//
// 除显式列出的方法外，其余模型方法通过 Invoke 调用，会话上下文作为最后一个参数自动追加。
type ObjectProxy struct {
	invoker     transport.Invoker
	database    string
	model       string
	credentials *Credentials
	context     *Context
}

// NewObjectProxy 创建代理
func NewObjectProxy(invoker transport.Invoker, database, model string, credentials *Credentials, sessionCtx *Context) *ObjectProxy {
	if credentials == nil {
		credentials = &Credentials{}
	}
	if sessionCtx == nil {
		sessionCtx = NewContext()
	}
	return &ObjectProxy{
		invoker:     invoker,
		database:    database,
		model:       model,
		credentials: credentials,
		context:     sessionCtx,
	}
}

// Database 数据库名
func (p *ObjectProxy) Database() string { return p.database }

// Model 模型名
func (p *ObjectProxy) Model() string { return p.model }

// Credentials 绑定的凭据
func (p *ObjectProxy) Credentials() *Credentials { return p.credentials }

func (p *ObjectProxy) String() string {
	return fmt.Sprintf("<Proxy on %s@%s>", p.model, p.database)
}

// prefix 返回 (object, execute, db, uid, password, model, method)，未登录时本地失败
func (p *ObjectProxy) prefix(call, method string) ([]any, error) {
	uid, password := p.credentials.UID(), p.credentials.Password()
	if err := validation.ValidateCredentials(uid, password); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodePrecondition, p.model+"."+method)
	}
	return []any{"object", call, p.database, uid, password, p.model, method}, nil
}

// Invoke 调用任意模型方法，追加会话上下文
func (p *ObjectProxy) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	message, err := p.prefix("execute", method)
	if err != nil {
		return nil, err
	}
	message = append(message, args...)
	message = append(message, p.context.AsMap())
	return p.invoker.Call(ctx, message...)
}

// Search 按条件搜索，limit 为 0 表示不限制，orderBy 为空使用服务端默认排序
func (p *ObjectProxy) Search(ctx context.Context, condition []any, offset, limit int, orderBy string) ([]int64, error) {
	if condition == nil {
		condition = []any{}
	}
	var lim, order any
	if limit > 0 {
		lim = int64(limit)
	}
	if orderBy != "" {
		order = orderBy
	}

	result, err := p.Invoke(ctx, "search", condition, int64(offset), lim, order)
	if err != nil {
		return nil, err
	}
	ids, ok := transport.AsInt64List(result)
	if !ok {
		return nil, unexpected("search", result)
	}
	return ids, nil
}

// NameSearch 按显示名搜索；上下文位于 limit 之前，与服务端签名一致
func (p *ObjectProxy) NameSearch(ctx context.Context, name string, domain []any, operator string, limit int) ([]NamePair, error) {
	if operator == "" {
		operator = "ilike"
	}
	if limit <= 0 {
		limit = 80
	}
	var args any
	if domain != nil {
		args = domain
	}

	message, err := p.prefix("execute", "name_search")
	if err != nil {
		return nil, err
	}
	message = append(message, name, args, operator, p.context.AsMap(), int64(limit))
	result, err := p.invoker.Call(ctx, message...)
	if err != nil {
		return nil, err
	}

	rows, ok := transport.AsList(result)
	if !ok {
		return nil, unexpected("name_search", result)
	}
	pairs := make([]NamePair, 0, len(rows))
	for _, row := range rows {
		pair, ok := transport.AsList(row)
		if !ok || len(pair) != 2 {
			return nil, unexpected("name_search", row)
		}
		id, ok := transport.AsInt64(pair[0])
		if !ok {
			return nil, unexpected("name_search", row)
		}
		label, _ := transport.AsString(pair[1])
		pairs = append(pairs, NamePair{ID: id, Name: label})
	}
	return pairs, nil
}

// Read 读取记录的原始字段值，fields 为空时读取全部字段
func (p *ObjectProxy) Read(ctx context.Context, ids []int64, fields []string) ([]map[string]any, error) {
	fieldArgs := make([]any, len(fields))
	for i, f := range fields {
		fieldArgs[i] = f
	}

	result, err := p.Invoke(ctx, "read", int64Args(ids), fieldArgs)
	if err != nil {
		return nil, err
	}
	if transport.IsFalsy(result) {
		return nil, nil
	}

	rows, ok := transport.AsList(result)
	if !ok {
		// 以单个标识调用时服务端返回映射
		if row, isMap := transport.AsMap(result); isMap {
			return []map[string]any{row}, nil
		}
		return nil, unexpected("read", result)
	}
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		row, ok := transport.AsMap(r)
		if !ok {
			return nil, unexpected("read", r)
		}
		out = append(out, row)
	}
	return out, nil
}

// FieldsGet 返回字段结构定义
func (p *ObjectProxy) FieldsGet(ctx context.Context) (map[string]any, error) {
	result, err := p.Invoke(ctx, "fields_get", []any{})
	if err != nil {
		return nil, err
	}
	fields, ok := transport.AsMap(result)
	if !ok {
		return nil, unexpected("fields_get", result)
	}
	return fields, nil
}

// FieldsViewGet 返回视图定义，viewID 为 0 时使用默认视图
func (p *ObjectProxy) FieldsViewGet(ctx context.Context, viewID int64, viewKind string) (map[string]any, error) {
	if viewKind == "" {
		viewKind = "form"
	}
	var id any
	if viewID > 0 {
		id = viewID
	}

	result, err := p.Invoke(ctx, "fields_view_get", id, viewKind)
	if err != nil {
		return nil, err
	}
	view, ok := transport.AsMap(result)
	if !ok {
		return nil, unexpected("fields_view_get", result)
	}
	return view, nil
}

// DefaultGet 返回草稿记录的默认原始值
func (p *ObjectProxy) DefaultGet(ctx context.Context, fields []string) (map[string]any, error) {
	names := make([]any, len(fields))
	for i, f := range fields {
		names[i] = f
	}
	result, err := p.Invoke(ctx, "default_get", names)
	if err != nil {
		return nil, err
	}
	if transport.IsFalsy(result) {
		return map[string]any{}, nil
	}
	values, ok := transport.AsMap(result)
	if !ok {
		return nil, unexpected("default_get", result)
	}
	return values, nil
}

// Create 创建记录并返回新标识
func (p *ObjectProxy) Create(ctx context.Context, values map[string]any) (int64, error) {
	result, err := p.Invoke(ctx, "create", values)
	if err != nil {
		return 0, err
	}
	id, ok := transport.AsInt64(result)
	if !ok {
		return 0, unexpected("create", result)
	}
	return id, nil
}

// Write 更新记录
func (p *ObjectProxy) Write(ctx context.Context, ids []int64, values map[string]any) (bool, error) {
	result, err := p.Invoke(ctx, "write", int64Args(ids), values)
	if err != nil {
		return false, err
	}
	return !transport.IsFalsy(result), nil
}

// Unlink 删除记录
func (p *ObjectProxy) Unlink(ctx context.Context, ids []int64) (bool, error) {
	result, err := p.Invoke(ctx, "unlink", int64Args(ids))
	if err != nil {
		return false, err
	}
	return !transport.IsFalsy(result), nil
}

// ExecWorkflow 触发工作流迁移，不携带会话上下文
func (p *ObjectProxy) ExecWorkflow(ctx context.Context, id int64, transition string) (any, error) {
	message, err := p.prefix("exec_workflow", transition)
	if err != nil {
		return nil, err
	}
	message = append(message, id)
	return p.invoker.Call(ctx, message...)
}

func int64Args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func unexpected(method string, v any) error {
	return errors.Errorf(errors.ErrCodeProtocol, "%s 返回了意外的结果类型 %T", method, v)
}
