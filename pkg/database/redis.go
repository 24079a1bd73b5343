package database

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"shop-assist-go/pkg/log"
)

var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接。
// 与 MySQL 一样，连接探测失败时做有界的带抖动重试。
func InitRedis(addr, password string, db int) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	var err error
	for attempt := 0; attempt < connectRetries; attempt++ {
		if err = RDB.Ping(ctx).Err(); err == nil {
			break
		}
		delay := backoffWithJitter(attempt)
		log.Warnf("Redis 连接失败 (attempt %d/%d), %v 后重试: %v", attempt+1, connectRetries, delay, err)
		time.Sleep(delay)
	}
	if err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
}
