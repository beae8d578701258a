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

package orderstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"checkout-platform/internal/checkout/domain"
	pkgerrors "checkout-platform/pkg/errors"
)

// Op 存储操作名，用于注入失败
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
)

// MemoryStore 内存实现，读写均为深拷贝
type MemoryStore struct {
	mu       sync.RWMutex
	orders   map[string]*domain.Order
	failures map[Op]error
	calls    map[Op]int
}

// NewMemoryStore 创建内存订单存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[string]*domain.Order),
		failures: make(map[Op]error),
		calls:    make(map[Op]int),
	}
}

// FailOn 之后的 op 操作返回 err（包装为 ErrPersistence）；err 为 nil 时取消
func (s *MemoryStore) FailOn(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls 操作调用次数（含失败）
func (s *MemoryStore) Calls(op Op) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// Create 实现 Store
func (s *MemoryStore) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpCreate]++
	if err := s.failures[OpCreate]; err != nil {
		return nil, fmt.Errorf("%w: create order: %w", ErrPersistence, err)
	}
	o := order.Clone()
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if _, ok := s.orders[o.ID]; ok {
		return nil, conflict(o.ID, 0)
	}
	now := time.Now()
	o.Version = 1
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	s.orders[o.ID] = o
	return o.Clone(), nil
}

// Update 实现 Store
func (s *MemoryStore) Update(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpUpdate]++
	if err := s.failures[OpUpdate]; err != nil {
		return nil, fmt.Errorf("%w: update order: %w", ErrPersistence, err)
	}
	cur, ok := s.orders[order.ID]
	if !ok {
		return nil, notFound(order.ID)
	}
	if cur.Version != order.Version {
		return nil, conflict(order.ID, order.Version)
	}
	o := order.Clone()
	o.Version = cur.Version + 1
	o.CreatedAt = cur.CreatedAt
	o.UpdatedAt = time.Now()
	s.orders[o.ID] = o
	return o.Clone(), nil
}

// Get 实现 Store
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "order %s", id)
	}
	return o.Clone(), nil
}

// Len 订单数
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
