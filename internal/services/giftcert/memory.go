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

// Package giftcert 礼品卡余额查询、签发与作废（内存实现）。
package giftcert

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"checkout-platform/internal/checkout/domain"
	pkgerrors "checkout-platform/pkg/errors"
)

// MemoryService 内存礼品卡服务
type MemoryService struct {
	mu        sync.RWMutex
	balances  map[string]decimal.Decimal
	issued    map[string]string // code -> order ID
	failIssue error
}

// NewMemoryService 创建服务，balances 为已存在礼品卡余额
func NewMemoryService(balances map[string]decimal.Decimal) *MemoryService {
	b := make(map[string]decimal.Decimal, len(balances))
	for k, v := range balances {
		b[k] = v
	}
	return &MemoryService{balances: b, issued: make(map[string]string)}
}

// FailIssue 之后的 Issue 返回 err
func (s *MemoryService) FailIssue(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failIssue = err
}

// Balance 查询余额，未知卡号返回 ErrNotFound
func (s *MemoryService) Balance(ctx context.Context, code string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balances[code]
	if !ok {
		return decimal.Zero, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "gift certificate %s", code)
	}
	return b, nil
}

// Issue 为订单中的礼品卡商品签发一张卡，面额为单价
func (s *MemoryService) Issue(ctx context.Context, orderID string, item domain.LineItem) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIssue != nil {
		return "", s.failIssue
	}
	code := "GC-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
	s.balances[code] = item.UnitPrice
	s.issued[code] = orderID
	return code, nil
}

// Revoke 作废礼品卡；不存在时无副作用
func (s *MemoryService) Revoke(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.balances, code)
	delete(s.issued, code)
	return nil
}

// Issued 已签发且未作废的卡数
func (s *MemoryService) Issued() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.issued)
}
