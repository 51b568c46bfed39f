package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/user/movienight/internal/collab"
	"github.com/user/movienight/internal/config"
)

// InitRedis 初始化 Redis 连接，启动阶段按指数退避重试
func InitRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: 25,
	})

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 15 * time.Second

	ping := func() error {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[Redis] ping 失败，稍后重试: %v", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(policy, ctx)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping 失败: %w", err)
	}

	return client, nil
}

// Repositories 仓库集合
type Repositories struct {
	Redis  *redis.Client // 未配置 Redis 时为 nil
	Collab collab.Backend
}

// NewRepositories 创建仓库集合，client 为 nil 时使用进程内后端
func NewRepositories(client *redis.Client) *Repositories {
	if client == nil {
		log.Println("[Repository] 未配置 REDIS_ADDR，使用进程内协作后端（仅单实例有效）")
		return &Repositories{Collab: NewMemoryCollabRepository()}
	}
	return &Repositories{
		Redis:  client,
		Collab: NewRedisCollabRepository(client),
	}
}

// Close 释放连接
func (r *Repositories) Close() error {
	if r.Redis != nil {
		return r.Redis.Close()
	}
	return nil
}
