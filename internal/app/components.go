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

package app

import (
	"context"
	"fmt"
	"time"

	"checkout-platform/internal/checkout/payment"
	"checkout-platform/internal/events"
	"checkout-platform/internal/storage/cartstore"
	"checkout-platform/internal/storage/orderstore"
	"checkout-platform/pkg/config"
	"checkout-platform/pkg/secrets"
)

func newOrderStore(ctx context.Context, cfg config.OrderStoreConfig) (orderstore.Store, func() error, error) {
	switch cfg.Type {
	case "", "memory":
		return orderstore.NewMemoryStore(), nil, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, nil, fmt.Errorf("storage.order.dsn is required for postgres")
		}
		s, err := orderstore.NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { s.Close(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported order store type: %s", cfg.Type)
	}
}

func newCartStore(ctx context.Context, cfg config.CartStoreConfig) (cartstore.Store, func() error, error) {
	switch cfg.Type {
	case "", "memory":
		return cartstore.NewMemoryStore(), nil, nil
	case "redis":
		s, err := cartstore.NewRedisStore(ctx, cartstore.RedisConfig{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			TTL:      parseDuration(cfg.TTL, 0),
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cart store type: %s", cfg.Type)
	}
}

func newPublisher(ctx context.Context, cfg config.EventsConfig) (events.Publisher, func() error, error) {
	switch cfg.Type {
	case "", "memory":
		return events.NewMemoryPublisher(), nil, nil
	case "redis":
		p, err := events.NewRedisPublisher(ctx, events.RedisConfig{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			Stream:   cfg.Stream,
			MaxLen:   cfg.MaxLen,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported events type: %s", cfg.Type)
	}
}

func newCapabilities(cfg config.CapabilitiesConfig) payment.Capabilities {
	return payment.Capabilities{
		Reserve:       config.Enabled(cfg.Reserve, true),
		ModifyReserve: config.Enabled(cfg.ModifyReserve, true),
		ReverseCharge: config.Enabled(cfg.ReverseCharge, true),
		Credit:        config.Enabled(cfg.Credit, true),
	}
}

// newGateway 创建支付网关；http 网关的 API key 从 secret store 读取
func newGateway(ctx context.Context, cfg config.PaymentConfig, store secrets.Store) (payment.Provider, error) {
	caps := newCapabilities(cfg.Capabilities)
	switch cfg.Gateway {
	case "", "memory":
		return payment.NewMemoryGateway(caps), nil
	case "http":
		var apiKey string
		if cfg.APIKeySecret != "" {
			v, err := store.Get(ctx, cfg.APIKeySecret)
			if err != nil {
				return nil, fmt.Errorf("read payment api key: %w", err)
			}
			apiKey = v
		}
		gw, err := payment.NewHTTPGateway(payment.HTTPGatewayConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     apiKey,
			Timeout:    parseDuration(cfg.Timeout, 10*time.Second),
			RetryCount: cfg.RetryCount,
			Limit: payment.LimitConfig{
				QPS:           cfg.QPS,
				MaxConcurrent: cfg.MaxConcurrent,
				Burst:         cfg.Burst,
			},
			Capabilities: caps,
		})
		if err != nil {
			return nil, err
		}
		return gw, nil
	default:
		return nil, fmt.Errorf("unsupported payment gateway: %s", cfg.Gateway)
	}
}

// parseDuration 解析时长字符串，无效或空时返回 defaultVal
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
