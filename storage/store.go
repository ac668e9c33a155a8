// Package storage 提供基于 sqlite 的记录存储，为测试桩对象服务保存模型定义与记录
package storage

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"oebrowse/errors"
	"oebrowse/logging"
)

// Config 存储配置
type Config struct {
	// Driver 默认 sqlite（modernc.org/sqlite）
	Driver string
	// DSN 默认内存数据库
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	Logger          logging.Logger
}

const memoryDSN = ":memory:"

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS models (
		name   TEXT PRIMARY KEY,
		fields TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS records (
		model TEXT    NOT NULL,
		id    INTEGER NOT NULL,
		data  TEXT    NOT NULL,
		PRIMARY KEY (model, id)
	)`,
}

// Store sqlite 记录存储
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// Open 打开数据库并建表
//
// 内存数据库每个连接各自独立，因此连接数固定为 1。
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.DSN == "" {
		cfg.DSN = memoryDSN
	}
	if cfg.DSN == memoryDSN {
		cfg.MaxOpenConns = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Component("storage")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeStorage, "open database")
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.WrapError(err, errors.ErrCodeStorage, "ping database")
	}

	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, errors.WrapError(err, errors.ErrCodeStorage, "create tables")
		}
	}

	cfg.Logger.Debug(ctx, "storage opened", logging.String("driver", cfg.Driver), logging.String("dsn", cfg.DSN))
	return &Store{db: db, logger: cfg.Logger}, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeStorage, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapError(err, errors.ErrCodeStorage, "commit transaction")
	}
	return nil
}
