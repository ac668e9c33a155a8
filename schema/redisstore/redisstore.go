// Package redisstore 基于 Redis 的 schema.Store 实现
package redisstore

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"oebrowse/errors"
	"oebrowse/logging"
	"oebrowse/schema"
)

// client 使用到的 go-redis 命令子集（便于测试替换）
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Config 描述 Redis 连接与键空间
type Config struct {
	Client   redis.UniversalClient
	Addr     string
	Username string
	Password string
	DB       int

	// Prefix 键前缀，默认 "oebrowse:schema:"
	Prefix string
	// TTL 结构过期时间，0 表示不过期
	TTL time.Duration

	Logger logging.Logger
}

// Store 以 JSON 保存 fields_get 原始结果
type Store struct {
	cfg       Config
	client    client
	ownClient bool
	logger    logging.Logger
}

var _ schema.Store = (*Store)(nil)

// New 创建 Redis 结构存储
func New(cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "oebrowse:schema:"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Component("schema.redis")
	}

	var cl client
	var own bool
	if cfg.Client != nil {
		cl = cfg.Client
	} else {
		cl = redis.NewClient(&redis.Options{Addr: cfg.Addr, Username: cfg.Username, Password: cfg.Password, DB: cfg.DB})
		own = true
	}
	return &Store{cfg: cfg, client: cl, ownClient: own, logger: cfg.Logger}
}

func (s *Store) key(database, model string) string {
	return s.cfg.Prefix + database + ":" + model
}

// Load 读取结构，不存在时 found 为 false
func (s *Store) Load(ctx context.Context, database, model string) (map[string]any, bool, error) {
	data, err := s.client.Get(ctx, s.key(database, model)).Bytes()
	if stdErrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WrapError(err, errors.ErrCodeStorage, "读取结构缓存失败")
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		// 损坏的条目按未命中处理，由调用方重新拉取并覆盖
		s.logger.Warn(ctx, "结构缓存条目无法解析", logging.String("key", s.key(database, model)), logging.Error(err))
		return nil, false, nil
	}
	return raw, true, nil
}

// Save 写入结构
func (s *Store) Save(ctx context.Context, database, model string, raw map[string]any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeStorage, "结构序列化失败")
	}
	if err := s.client.Set(ctx, s.key(database, model), data, s.cfg.TTL).Err(); err != nil {
		return errors.WrapError(err, errors.ErrCodeStorage, "写入结构缓存失败")
	}
	return nil
}

// Close 关闭自建的客户端
func (s *Store) Close() error {
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}
