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

package payment

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"checkout-platform/internal/checkout/domain"
)

// LimitConfig 网关调用限流配置
type LimitConfig struct {
	QPS           float64 // 每秒请求数限制，0 表示不限
	MaxConcurrent int     // 最大并发数，0 表示不限
	Burst         int     // 令牌桶容量（可选，默认为 QPS）
}

// Limiter 按交易类型的限流器，支持 QPS + 并发控制。
// 补偿类请求（Cancel / ReverseCharge）与正向请求分开计数，正向流量打满时补偿仍能发出。
type Limiter struct {
	mu       sync.RWMutex
	limiters map[domain.TransactionType]*typeLimiter
	config   LimitConfig
}

type typeLimiter struct {
	rateLimiter *rate.Limiter
	semaphore   chan struct{}
}

// NewLimiter 创建限流器
func NewLimiter(config LimitConfig) *Limiter {
	if config.Burst == 0 {
		config.Burst = int(config.QPS)
		if config.Burst < 1 {
			config.Burst = 1
		}
	}
	return &Limiter{
		limiters: make(map[domain.TransactionType]*typeLimiter),
		config:   config,
	}
}

func (l *Limiter) get(t domain.TransactionType) *typeLimiter {
	l.mu.RLock()
	tl, ok := l.limiters[t]
	l.mu.RUnlock()
	if ok {
		return tl
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if tl, ok = l.limiters[t]; ok {
		return tl
	}
	tl = &typeLimiter{}
	if l.config.QPS > 0 {
		tl.rateLimiter = rate.NewLimiter(rate.Limit(l.config.QPS), l.config.Burst)
	}
	if l.config.MaxConcurrent > 0 {
		tl.semaphore = make(chan struct{}, l.config.MaxConcurrent)
	}
	l.limiters[t] = tl
	return tl
}

// Wait 等待获取执行许可；成功后须调用 Release
func (l *Limiter) Wait(ctx context.Context, t domain.TransactionType) error {
	tl := l.get(t)
	if tl.rateLimiter != nil {
		if err := tl.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait failed: %w", err)
		}
	}
	if tl.semaphore != nil {
		select {
		case tl.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 释放并发 slot
func (l *Limiter) Release(t domain.TransactionType) {
	tl := l.get(t)
	if tl.semaphore == nil {
		return
	}
	select {
	case <-tl.semaphore:
	default:
	}
}
