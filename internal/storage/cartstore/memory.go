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
	"fmt"
	"sync"

	"checkout-platform/internal/checkout/domain"
	pkgerrors "checkout-platform/pkg/errors"
)

// MemoryStore 内存实现
type MemoryStore struct {
	mu          sync.RWMutex
	carts       map[string][]byte // 以 JSON 保存，读写互不共享
	deactivated map[string]bool
	cartOrders  map[string]string
	failWrites  error
}

// NewMemoryStore 创建内存购物车存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts:       make(map[string][]byte),
		deactivated: make(map[string]bool),
		cartOrders:  make(map[string]string),
	}
}

// FailWrites 之后的写操作返回 err；err 为 nil 时取消
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = err
}

func (s *MemoryStore) Get(ctx context.Context, cartID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.carts[cartID]
	if !ok || s.deactivated[cartID] {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "cart %s", cartID)
	}
	var c domain.Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MemoryStore) Save(ctx context.Context, cart *domain.Cart) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr("save cart"); err != nil {
		return err
	}
	s.carts[cart.ID] = raw
	delete(s.deactivated, cart.ID)
	return nil
}

func (s *MemoryStore) EmptyAndDeactivate(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr("deactivate cart"); err != nil {
		return err
	}
	delete(s.carts, cartID)
	s.deactivated[cartID] = true
	return nil
}

// Deactivated 购物车是否已停用
func (s *MemoryStore) Deactivated(cartID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deactivated[cartID]
}

func (s *MemoryStore) SetCartOrder(ctx context.Context, cartID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr("set cart order"); err != nil {
		return err
	}
	s.cartOrders[cartID] = orderID
	return nil
}

func (s *MemoryStore) CartOrder(ctx context.Context, cartID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cartOrders[cartID], nil
}

func (s *MemoryStore) RemoveCartOrder(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr("remove cart order"); err != nil {
		return err
	}
	delete(s.cartOrders, cartID)
	return nil
}

// writeErr 调用方需持有锁
func (s *MemoryStore) writeErr(op string) error {
	if s.failWrites == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", pkgerrors.ErrPersistence, op, s.failWrites)
}
