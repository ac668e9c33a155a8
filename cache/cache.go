// Package cache 提供进程内的泛型键值缓存
//
// 设计原则：
// 1. 只增不减 - 条目写入后在进程生命周期内保留，除非显式 Delete/Clear
// 2. 原子加载 - GetOrLoad 保证同一个 key 的加载函数至多成功执行一次
// 3. 并发安全 - 使用 Mutex 保护检查与插入
package cache

import (
	"fmt"
	"sync"
)

// Cache 通用泛型缓存
//
// 使用示例：
//
//	models := cache.New[Key, *Model](cache.Config{Name: "models"})
//	m, err := models.GetOrLoad(key, func() (*Model, error) {
//	    return build(key)
//	})
type Cache[K comparable, V any] struct {
	name string

	items map[K]V

	// 按 key 串行化加载，避免并发时重复拉取
	loading map[K]*sync.Mutex

	mu    sync.Mutex
	stats CacheStats
}

// Config 缓存配置
type Config struct {
	// Name 缓存名称（用于日志和统计）
	Name string
}

// CacheStats 缓存统计信息
type CacheStats struct {
	Hits   int64 // 命中次数
	Misses int64 // 未命中次数
	Loads  int64 // 加载成功次数
	Size   int   // 当前条目数
}

// New 创建新的缓存实例
func New[K comparable, V any](config Config) *Cache[K, V] {
	if config.Name == "" {
		config.Name = "unnamed"
	}

	return &Cache[K, V]{
		name:    config.Name,
		items:   make(map[K]V),
		loading: make(map[K]*sync.Mutex),
	}
}

// Get 获取缓存值
func (c *Cache[K, V]) Get(key K) (value V, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, found = c.items[key]
	if found {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return value, found
}

// Set 设置缓存值
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = value
	c.stats.Size = len(c.items)
}

// GetOrLoad 返回已缓存的值；未命中时调用 load 并缓存其结果。
//
// 同一个 key 的并发调用会排队等待第一个加载完成，load 返回错误时不缓存，
// 下一个调用方会重新加载。
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	c.mu.Lock()
	if value, ok := c.items[key]; ok {
		c.stats.Hits++
		c.mu.Unlock()
		return value, nil
	}
	c.stats.Misses++
	keyMu, ok := c.loading[key]
	if !ok {
		keyMu = &sync.Mutex{}
		c.loading[key] = keyMu
	}
	c.mu.Unlock()

	keyMu.Lock()
	defer keyMu.Unlock()

	// 等待期间可能已被其他调用方加载
	c.mu.Lock()
	if value, ok := c.items[key]; ok {
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	value, err := load()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.items[key] = value
	delete(c.loading, key)
	c.stats.Loads++
	c.stats.Size = len(c.items)
	c.mu.Unlock()

	return value, nil
}

// Delete 删除缓存条目
//
// 返回：是否存在并被删除
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists {
		return false
	}
	delete(c.items, key)
	c.stats.Size = len(c.items)
	return true
}

// Clear 清空所有缓存
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]V)
	c.stats.Size = 0
}

// Stats 获取缓存统计信息（副本）
func (c *Cache[K, V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.items)
	return stats
}

// Size 获取当前缓存条目数
func (c *Cache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// String 返回缓存信息的字符串表示
func (c *Cache[K, V]) String() string {
	stats := c.Stats()
	return fmt.Sprintf("Cache[%s]: size=%d, hits=%d, misses=%d, loads=%d",
		c.name, stats.Size, stats.Hits, stats.Misses, stats.Loads)
}
