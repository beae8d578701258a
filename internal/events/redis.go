// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultStream = "checkout-events"

// RedisPublisher 以 XADD 写入 Redis Stream，流长度近似裁剪到 maxLen
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// RedisConfig Redis 发布器配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64 // 0 表示不裁剪
}

// NewRedisPublisher 连接 Redis 并校验可用
func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisPublisherWithClient(client, cfg.Stream, cfg.MaxLen), nil
}

// NewRedisPublisherWithClient 复用已有客户端
func NewRedisPublisherWithClient(client *redis.Client, stream string, maxLen int64) *RedisPublisher {
	if stream == "" {
		stream = defaultStream
	}
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish 实现 Publisher
func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"id":       evt.ID,
			"type":     string(evt.Type),
			"order_id": evt.OrderID,
			"payload":  string(payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// Close 关闭客户端
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
