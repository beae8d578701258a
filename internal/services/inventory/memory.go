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

// Package inventory 库存充足性检查（只读，不做分配）。
package inventory

import (
	"context"
	"sort"
	"sync"

	"checkout-platform/internal/checkout/domain"
)

// MemoryInventory 内存库存；未登记的 SKU 视为不限量
type MemoryInventory struct {
	mu    sync.RWMutex
	stock map[string]int
}

// NewMemoryInventory 创建内存库存
func NewMemoryInventory(stock map[string]int) *MemoryInventory {
	s := make(map[string]int, len(stock))
	for k, v := range stock {
		s[k] = v
	}
	return &MemoryInventory{stock: s}
}

// SetStock 设置 SKU 库存
func (m *MemoryInventory) SetStock(sku string, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[sku] = qty
}

// Sufficient 返回库存不足的 SKU（排序后）；只检查实物商品
func (m *MemoryInventory) Sufficient(ctx context.Context, items []domain.LineItem) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	need := make(map[string]int)
	for _, it := range items {
		if it.Kind != domain.ItemPhysical && it.Kind != "" {
			continue
		}
		need[it.SKU] += it.Quantity
	}
	var short []string
	for sku, qty := range need {
		avail, tracked := m.stock[sku]
		if tracked && avail < qty {
			short = append(short, sku)
		}
	}
	sort.Strings(short)
	return short, nil
}
