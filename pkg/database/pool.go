package database

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DatabasePool 数据库连接池
type DatabasePool struct {
	instance Store
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *DatabasePool
	poolMutex  sync.Mutex
)

// GetDatabase 获取数据库连接（单例模式 + 连接池）
// Warm serverless invocations reuse the store built on cold start.
func GetDatabase(config DatabaseConfig, log *zap.Logger) (Store, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool != nil && !shouldRecreateConnection(globalPool, config, log) {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
		return globalPool.instance, nil
	}

	// 关闭旧连接（如果存在）
	if globalPool != nil && globalPool.instance != nil {
		globalPool.instance.Close()
	}

	log.Info("creating database connection", zap.String("driver", config.Driver))
	instance, err := NewDatabase(config, log)
	if err != nil {
		globalPool = nil
		return nil, err
	}
	globalPool = &DatabasePool{
		instance: instance,
		config:   config,
		lastUsed: time.Now(),
	}
	return instance, nil
}

// shouldRecreateConnection 判断是否需要重新创建连接
func shouldRecreateConnection(pool *DatabasePool, newConfig DatabaseConfig, log *zap.Logger) bool {
	if pool.instance == nil {
		return true
	}
	if pool.config != newConfig {
		log.Info("database configuration changed, recreating connection")
		return true
	}

	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > 30*time.Minute
	pool.mu.RUnlock()
	if !expired {
		return false
	}

	// 空闲太久：确认连接仍然健康
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.instance.HealthCheck(ctx); err != nil {
		log.Warn("database health check failed, recreating", zap.Error(err))
		return true
	}
	return false
}

// GetConnectionStats 获取连接池统计信息
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"driver":    globalPool.config.Driver,
		"last_used": lastUsed.Format(time.RFC3339),
		"age":       time.Since(lastUsed).String(),
	}
}
