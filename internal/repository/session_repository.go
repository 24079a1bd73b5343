package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"shop-assist-go/internal/model"
)

// SessionRepository 缓存已登录用户的脱敏信息，减少热路径上的数据库读。
// 纯缓存语义：未命中返回 (nil, nil)，调用方回源数据库。
type SessionRepository interface {
	Get(ctx context.Context, userID uint) (*model.User, error)
	Set(ctx context.Context, user model.User) error
	Delete(ctx context.Context, userID uint) error
}

type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(redisClient *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient, ttl: ttl}
}

func sessionKey(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// Get 返回缓存的用户信息；未命中返回 (nil, nil)。
func (r *redisSessionRepository) Get(ctx context.Context, userID uint) (*model.User, error) {
	jsonData, err := r.redisClient.Get(ctx, sessionKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached user: %w", err)
	}
	var user model.User
	if err := json.Unmarshal([]byte(jsonData), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached user: %w", err)
	}
	return &user, nil
}

// Set 缓存脱敏后的用户信息。
func (r *redisSessionRepository) Set(ctx context.Context, user model.User) error {
	clean := user.Sanitized()
	jsonData, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := r.redisClient.Set(ctx, sessionKey(user.ID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache user: %w", err)
	}
	return nil
}

// Delete 删除用户缓存。
func (r *redisSessionRepository) Delete(ctx context.Context, userID uint) error {
	if err := r.redisClient.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached user: %w", err)
	}
	return nil
}
