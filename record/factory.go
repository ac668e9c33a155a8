package record

import (
	"context"
	"fmt"
	"time"

	"oebrowse/cache"
	"oebrowse/errors"
	"oebrowse/logging"
	"oebrowse/messaging"
	"oebrowse/rpc"
	"oebrowse/schema"
)

// Key 记录类的缓存键
type Key struct {
	Database string
	Model    string
}

func (k Key) String() string {
	return k.Model + "@" + k.Database
}

// Config 类工厂配置
type Config struct {
	// Client 必填，提供凭据与远程调用
	Client *rpc.Client
	// Store 可选的字段结构持久缓存，命中时跳过 fields_get
	Store schema.Store
	// Publisher 可选，保存成功后发布记录变更事件
	Publisher messaging.IPublisher
	Logger    logging.Logger
}

// Factory 按 (数据库, 模型) 生成并缓存记录类
//
// 同一键只会向服务端请求一次字段结构，并发请求共享同一次加载。
type Factory struct {
	client    *rpc.Client
	store     schema.Store
	publisher messaging.IPublisher
	logger    logging.Logger
	models    *cache.Cache[Key, *Model]
}

// NewFactory 创建类工厂
func NewFactory(cfg Config) (*Factory, error) {
	if cfg.Client == nil {
		return nil, errors.Precondition("record factory requires a client")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Component("record")
	}
	return &Factory{
		client:    cfg.Client,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		models:    cache.New[Key, *Model](cache.Config{Name: "record-classes"}),
	}, nil
}

// Client 返回底层客户端
func (f *Factory) Client() *rpc.Client { return f.client }

// Get 返回模型对应的记录类，首次访问时加载字段结构
func (f *Factory) Get(ctx context.Context, database, model string) (*Model, error) {
	if database == "" || model == "" {
		return nil, errors.Precondition("database and model are required")
	}
	key := Key{Database: database, Model: model}
	return f.models.GetOrLoad(key, func() (*Model, error) {
		return f.load(ctx, key)
	})
}

// Clear 清空类缓存
func (f *Factory) Clear() {
	f.models.Clear()
}

// Stats 返回类缓存统计
func (f *Factory) Stats() cache.CacheStats {
	return f.models.Stats()
}

func (f *Factory) load(ctx context.Context, key Key) (*Model, error) {
	start := time.Now()
	proxy := f.client.Proxy(key.Database, key.Model)

	raw, source, err := f.fetchSchema(ctx, key, proxy)
	if err != nil {
		return nil, err
	}
	sch, err := schema.Parse(key.Model, raw)
	if err != nil {
		return nil, err
	}

	f.logger.Debug(ctx, "record class loaded",
		logging.String("class", key.String()),
		logging.String("source", source),
		logging.Int("fields", sch.Len()),
		logging.Duration("elapsed", time.Since(start)))

	return &Model{factory: f, key: key, schema: sch, proxy: proxy}, nil
}

func (f *Factory) fetchSchema(ctx context.Context, key Key, proxy *rpc.ObjectProxy) (map[string]any, string, error) {
	if f.store != nil {
		raw, found, err := f.store.Load(ctx, key.Database, key.Model)
		switch {
		case err != nil:
			f.logger.Warn(ctx, "schema store load failed", logging.String("class", key.String()), logging.Error(err))
		case found:
			return raw, "store", nil
		}
	}

	raw, err := proxy.FieldsGet(ctx)
	if err != nil {
		return nil, "", errors.WrapWithLog(ctx, err, errors.GetErrorCode(err), fmt.Sprintf("load fields of %s", key),
			logging.String("class", key.String()))
	}

	if f.store != nil {
		if err := f.store.Save(ctx, key.Database, key.Model, raw); err != nil {
			f.logger.Warn(ctx, "schema store save failed", logging.String("class", key.String()), logging.Error(err))
		}
	}
	return raw, "remote", nil
}

func (f *Factory) publish(ctx context.Context, eventType string, r *Record, fields []string) {
	if f.publisher == nil {
		return
	}
	event := messaging.NewRecordEvent(eventType, messaging.RecordChange{
		Database: r.model.key.Database,
		Model:    r.model.key.Model,
		ID:       r.id,
		Fields:   fields,
	})
	if err := f.publisher.Publish(ctx, event); err != nil {
		f.logger.Warn(ctx, "publish record event failed",
			logging.String("type", eventType), logging.String("record", r.String()), logging.Error(err))
	}
}
