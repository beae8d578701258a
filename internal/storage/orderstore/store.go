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

// Package orderstore 订单持久化：内存实现与 PostgreSQL（JSONB + 乐观版本）实现。
package orderstore

import (
	"context"
	"fmt"

	"checkout-platform/internal/checkout/domain"
	pkgerrors "checkout-platform/pkg/errors"
)

// ErrPersistence 写入失败；版本冲突同时满足 errors.Is(err, pkgerrors.ErrConflict)
var ErrPersistence = pkgerrors.ErrPersistence

// Store 订单存储。写操作返回存储中的规范副本（含新版本号），调用方应采用该副本。
type Store interface {
	// Create 写入新订单，ID 为空时分配；返回 Version=1 的副本
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	// Update 按 order.Version 做乐观并发更新
	Update(ctx context.Context, order *domain.Order) (*domain.Order, error)
	// Get 查询订单，不存在返回 pkgerrors.ErrNotFound
	Get(ctx context.Context, id string) (*domain.Order, error)
}

func conflict(id string, version int) error {
	return fmt.Errorf("%w: order %s version %d: %w", ErrPersistence, id, version, pkgerrors.ErrConflict)
}

func notFound(id string) error {
	return fmt.Errorf("%w: order %s: %w", ErrPersistence, id, pkgerrors.ErrNotFound)
}
