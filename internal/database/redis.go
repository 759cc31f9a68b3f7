package database

import (
	"sync"

	"rentflow/pkg/config"
	"rentflow/pkg/queue"
)

// 通知队列与实时推送共用一个Redis连接：
// 分发器用列表做投递队列，站内通知通过 pubsub 推给 websocket 连接
var (
	redisQueueInstance *queue.RedisQueue
	redisQueueOnce     sync.Once
)

// GetRedisQueue 按全局配置创建通知队列连接，只创建一次
func GetRedisQueue() *queue.RedisQueue {
	redisQueueOnce.Do(func() {
		redisQueueInstance = NewNotificationQueue(config.GetConfig().Redis)
	})
	return redisQueueInstance
}

// NewNotificationQueue 创建通知队列，键统一加配置的前缀
func NewNotificationQueue(cfg config.RedisConfig) *queue.RedisQueue {
	return queue.NewRedisQueue(&queue.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
	})
}

// CloseRedisQueue 关闭通知队列连接，未创建时直接返回
func CloseRedisQueue() error {
	if redisQueueInstance != nil {
		return redisQueueInstance.Close()
	}
	return nil
}
