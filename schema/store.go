package schema

import "context"

// Store 跨进程共享 fields_get 结果的存储。
//
// 进程内每个 (数据库, 模型) 至多查询一次 Store；命中时跳过远程 fields_get。
type Store interface {
	Load(ctx context.Context, database, model string) (raw map[string]any, found bool, err error)
	Save(ctx context.Context, database, model string, raw map[string]any) error
}
