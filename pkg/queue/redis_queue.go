package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisQueue 基于Redis列表的任务队列，附带发布订阅
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisQueue 创建Redis队列实例
func NewRedisQueue(config *Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisQueueWithClient(client, config.Prefix)
}

// NewRedisQueueWithClient 使用已有客户端创建队列
func NewRedisQueueWithClient(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "rentflow"
	}
	return &RedisQueue{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping 测试Redis连接
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue 序列化后左侧入队
func (q *RedisQueue) Enqueue(ctx context.Context, queue string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	if err := q.client.LPush(ctx, q.getQueueKey(queue), data).Err(); err != nil {
		return fmt.Errorf("消息入队失败: %w", err)
	}
	return nil
}

// Dequeue 阻塞式右侧出队，超时返回 nil, nil
func (q *RedisQueue) Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	result, err := q.client.BRPop(ctx, timeout, q.getQueueKey(queue)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("消息出队失败: %w", err)
	}
	// BRPOP 返回 [key, value]
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

// Len 队列长度
func (q *RedisQueue) Len(ctx context.Context, queue string) (int64, error) {
	return q.client.LLen(ctx, q.getQueueKey(queue)).Result()
}

// Clear 清空队列
func (q *RedisQueue) Clear(ctx context.Context, queue string) error {
	return q.client.Del(ctx, q.getQueueKey(queue)).Err()
}

// Publish 发布消息到指定频道
func (q *RedisQueue) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	if err := q.client.Publish(ctx, q.getChannelKey(channel), data).Err(); err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}
	return nil
}

// Subscribe 订阅指定频道
func (q *RedisQueue) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return q.client.Subscribe(ctx, q.getChannelKey(channel))
}

// GetClient 获取Redis客户端（用于高级操作）
func (q *RedisQueue) GetClient() *redis.Client {
	return q.client
}

func (q *RedisQueue) getQueueKey(queue string) string {
	return fmt.Sprintf("%s:queue:%s", q.prefix, queue)
}

func (q *RedisQueue) getChannelKey(channel string) string {
	return fmt.Sprintf("%s:channel:%s", q.prefix, channel)
}
