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

package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"checkout-platform/internal/checkout/domain"
	pkgerrors "checkout-platform/pkg/errors"
)

const (
	cartKeyPrefix      = "cart:"
	cartOrderKeyPrefix = "cart_order:"
	deactivatedSuffix  = ":deactivated"
)

// RedisConfig Redis 购物车存储配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL 购物车键过期时间，0 表示不过期
	TTL time.Duration
}

// RedisStore Redis 实现：购物车 JSON 存于 cart:{id}，关联订单存于 cart_order:{id}
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore 连接 Redis 并校验可用
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
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
	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

// Close 关闭客户端
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, cartID string) (*domain.Cart, error) {
	raw, err := s.client.Get(ctx, cartKeyPrefix+cartID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "cart %s", cartID)
		}
		return nil, err
	}
	var c domain.Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart %s: %w", cartID, err)
	}
	return &c, nil
}

func (s *RedisStore) Save(ctx context.Context, cart *domain.Cart) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, cartKeyPrefix+cart.ID, raw, s.ttl)
	pipe.Del(ctx, cartKeyPrefix+cart.ID+deactivatedSuffix)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: save cart %s: %w", pkgerrors.ErrPersistence, cart.ID, err)
	}
	return nil
}

func (s *RedisStore) EmptyAndDeactivate(ctx context.Context, cartID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, cartKeyPrefix+cartID)
	pipe.Set(ctx, cartKeyPrefix+cartID+deactivatedSuffix, time.Now().UTC().Format(time.RFC3339), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: deactivate cart %s: %w", pkgerrors.ErrPersistence, cartID, err)
	}
	return nil
}

func (s *RedisStore) SetCartOrder(ctx context.Context, cartID, orderID string) error {
	if err := s.client.Set(ctx, cartOrderKeyPrefix+cartID, orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: set cart order %s: %w", pkgerrors.ErrPersistence, cartID, err)
	}
	return nil
}

func (s *RedisStore) CartOrder(ctx context.Context, cartID string) (string, error) {
	id, err := s.client.Get(ctx, cartOrderKeyPrefix+cartID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

func (s *RedisStore) RemoveCartOrder(ctx context.Context, cartID string) error {
	if err := s.client.Del(ctx, cartOrderKeyPrefix+cartID).Err(); err != nil {
		return fmt.Errorf("%w: remove cart order %s: %w", pkgerrors.ErrPersistence, cartID, err)
	}
	return nil
}
