package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"shop-assist-go/internal/model"
)

// ChatLogRepository 定义了用户聊天记录的操作接口。
// 记录存在 Redis list 中，按追加顺序排列，整个 key 带 TTL。
// SetCaseID 用 LSET 原地回填工单 ID，是“每轮对话至多折叠进工单一次”
// 这一不变量的落点。
type ChatLogRepository interface {
	Append(ctx context.Context, userID uint, entry model.ChatLogEntry) error
	List(ctx context.Context, userID uint) ([]model.ChatLogEntry, error)
	SetCaseID(ctx context.Context, userID uint, index int, caseID string) error
	Clear(ctx context.Context, userID uint) error
}

type redisChatLogRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewChatLogRepository 创建一个新的 ChatLogRepository 实例。
func NewChatLogRepository(redisClient *redis.Client, ttl time.Duration) ChatLogRepository {
	return &redisChatLogRepository{redisClient: redisClient, ttl: ttl}
}

func chatKey(userID uint) string {
	return fmt.Sprintf("chat:%d", userID)
}

// Append 向用户的聊天记录尾部追加一条并刷新过期时间。
func (r *redisChatLogRepository) Append(ctx context.Context, userID uint, entry model.ChatLogEntry) error {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal chat log entry: %w", err)
	}
	key := chatKey(userID)
	if err := r.redisClient.RPush(ctx, key, jsonData).Err(); err != nil {
		return fmt.Errorf("failed to append chat log entry: %w", err)
	}
	if err := r.redisClient.Expire(ctx, key, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set chat log expiry: %w", err)
	}
	return nil
}

// List 返回用户的全部聊天记录，顺序与追加顺序一致。
// key 不存在（缓存过期）时返回空切片，这是正常路径。
func (r *redisChatLogRepository) List(ctx context.Context, userID uint) ([]model.ChatLogEntry, error) {
	values, err := r.redisClient.LRange(ctx, chatKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range chat log: %w", err)
	}
	entries := make([]model.ChatLogEntry, 0, len(values))
	for _, v := range values {
		var entry model.ChatLogEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			// 单条损坏不拖垮整个列表
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SetCaseID 回填第 index 条记录的工单 ID。
// index 对应 List 返回的下标；记录已过期被整体淘汰时 LSET 会报错，
// 调用方只记录这个错误，不中断主流程。
func (r *redisChatLogRepository) SetCaseID(ctx context.Context, userID uint, index int, caseID string) error {
	key := chatKey(userID)
	value, err := r.redisClient.LIndex(ctx, key, int64(index)).Result()
	if err != nil {
		return fmt.Errorf("failed to read chat log entry %d: %w", index, err)
	}
	var entry model.ChatLogEntry
	if err := json.Unmarshal([]byte(value), &entry); err != nil {
		return fmt.Errorf("failed to unmarshal chat log entry %d: %w", index, err)
	}
	entry.CaseID = caseID
	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal chat log entry %d: %w", index, err)
	}
	if err := r.redisClient.LSet(ctx, key, int64(index), jsonData).Err(); err != nil {
		return fmt.Errorf("failed to back-fill case id on entry %d: %w", index, err)
	}
	return nil
}

// Clear 删除用户的整个聊天记录，登录时调用以避免跨会话串历史。
func (r *redisChatLogRepository) Clear(ctx context.Context, userID uint) error {
	if err := r.redisClient.Del(ctx, chatKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear chat log: %w", err)
	}
	return nil
}
