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

// Package cartstore 购物车与“购物车→订单”关联的存储：内存实现与 Redis 实现。
package cartstore

import (
	"context"

	"checkout-platform/internal/checkout/domain"
)

// Store 购物车存储。写失败包装为 pkgerrors.ErrPersistence；已停用或不存在的购物车 Get 返回 ErrNotFound。
type Store interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	// EmptyAndDeactivate 清空并停用购物车；重复调用无副作用
	EmptyAndDeactivate(ctx context.Context, cartID string) error
	// SetCartOrder 记录购物车对应的进行中订单
	SetCartOrder(ctx context.Context, cartID, orderID string) error
	// CartOrder 查询购物车对应的订单 ID，无则为空
	CartOrder(ctx context.Context, cartID string) (string, error)
	// RemoveCartOrder 删除关联；不存在时无副作用
	RemoveCartOrder(ctx context.Context, cartID string) error
}
