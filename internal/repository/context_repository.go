package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"shop-assist-go/internal/model"
)

// ContextRepository 定义了用户商品上下文（本轮聊天针对哪个商品）的操作接口。
// 上下文是带 TTL 的建议性缓存：Get 返回 (nil, nil) 表示没有生效的上下文，
// 缓存失效与从未选择在语义上等价。
type ContextRepository interface {
	Get(ctx context.Context, userID uint) (*model.SelectedProduct, error)
	Set(ctx context.Context, userID uint, sp model.SelectedProduct) error
	Clear(ctx context.Context, userID uint) error
}

type redisContextRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewContextRepository 创建一个新的 ContextRepository 实例。
func NewContextRepository(redisClient *redis.Client, ttl time.Duration) ContextRepository {
	return &redisContextRepository{redisClient: redisClient, ttl: ttl}
}

func contextKey(userID uint) string {
	return fmt.Sprintf("ctx:product:%d", userID)
}

// Get 返回用户当前选中的商品上下文；没有则返回 (nil, nil)。
func (r *redisContextRepository) Get(ctx context.Context, userID uint) (*model.SelectedProduct, error) {
	jsonData, err := r.redisClient.Get(ctx, contextKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get selected product: %w", err)
	}
	var sp model.SelectedProduct
	if err := json.Unmarshal([]byte(jsonData), &sp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selected product: %w", err)
	}
	return &sp, nil
}

// Set 写入用户当前选中的商品上下文，覆盖旧值并重置 TTL。
func (r *redisContextRepository) Set(ctx context.Context, userID uint, sp model.SelectedProduct) error {
	jsonData, err := json.Marshal(sp)
	if err != nil {
		return fmt.Errorf("failed to marshal selected product: %w", err)
	}
	if err := r.redisClient.Set(ctx, contextKey(userID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set selected product: %w", err)
	}
	return nil
}

// Clear 删除用户的商品上下文。登录、登出和显式取消选择都会调用，
// 保证旧会话的上下文不会泄漏到新会话。
func (r *redisContextRepository) Clear(ctx context.Context, userID uint) error {
	if err := r.redisClient.Del(ctx, contextKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear selected product: %w", err)
	}
	return nil
}
