package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"doc-theme-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const queryHistoryKey = "query:history"

// QueryHistoryRepository 接口定义了查询历史的存取操作。
type QueryHistoryRepository interface {
	Push(ctx context.Context, entry model.QueryHistoryEntry, maxEntries int) error
	Recent(ctx context.Context, limit int) ([]model.QueryHistoryEntry, error)
}

// queryHistoryRepository 是 QueryHistoryRepository 接口的 Redis 实现。
// 历史记录保存在一个定长列表中，最新的在最前面。
type queryHistoryRepository struct {
	redisClient *redis.Client
}

// NewQueryHistoryRepository 创建一个新的 QueryHistoryRepository 实例。
func NewQueryHistoryRepository(redisClient *redis.Client) QueryHistoryRepository {
	return &queryHistoryRepository{redisClient: redisClient}
}

// Push 追加一条查询历史并裁剪到最大长度。
func (r *queryHistoryRepository) Push(ctx context.Context, entry model.QueryHistoryEntry, maxEntries int) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("序列化查询历史失败: %w", err)
	}
	if err := r.redisClient.LPush(ctx, queryHistoryKey, data).Err(); err != nil {
		return err
	}
	if maxEntries > 0 {
		return r.redisClient.LTrim(ctx, queryHistoryKey, 0, int64(maxEntries-1)).Err()
	}
	return nil
}

// Recent 返回最近的查询历史记录。
func (r *queryHistoryRepository) Recent(ctx context.Context, limit int) ([]model.QueryHistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	values, err := r.redisClient.LRange(ctx, queryHistoryKey, 0, int64(limit-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return []model.QueryHistoryEntry{}, nil
		}
		return nil, err
	}

	entries := make([]model.QueryHistoryEntry, 0, len(values))
	for _, v := range values {
		var entry model.QueryHistoryEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
