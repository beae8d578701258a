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

// Package promotion 优惠券使用计数与顾客分配（内存实现）。
package promotion

import (
	"context"
	"fmt"
	"sync"

	"checkout-platform/internal/checkout/pipeline"
)

// MemoryCoupons 限次优惠券：limits 中登记的券有使用上限，其余不限
type MemoryCoupons struct {
	mu          sync.Mutex
	limits      map[string]int
	usage       map[string]int
	assignments map[string]map[string]bool // customerID -> codes
	failAssign  error
}

// NewMemoryCoupons 创建内存优惠券服务
func NewMemoryCoupons(limits map[string]int) *MemoryCoupons {
	l := make(map[string]int, len(limits))
	for k, v := range limits {
		l[k] = v
	}
	return &MemoryCoupons{
		limits:      l,
		usage:       make(map[string]int),
		assignments: make(map[string]map[string]bool),
	}
}

// FailAssign 之后的 Assign 返回 err
func (m *MemoryCoupons) FailAssign(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAssign = err
}

// IncrementUsage 全部券可用时一次性增加计数；任一券用尽返回校验失败且不改变计数
func (m *MemoryCoupons) IncrementUsage(ctx context.Context, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var exhausted []string
	for _, c := range codes {
		if limit, ok := m.limits[c]; ok && m.usage[c] >= limit {
			exhausted = append(exhausted, fmt.Sprintf("coupon %s has reached its usage limit", c))
		}
	}
	if len(exhausted) > 0 {
		return pipeline.NewValidationFailure(exhausted...)
	}
	for _, c := range codes {
		m.usage[c]++
	}
	return nil
}

// DecrementUsage 回退计数，不低于 0
func (m *MemoryCoupons) DecrementUsage(ctx context.Context, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range codes {
		if m.usage[c] > 0 {
			m.usage[c]--
		}
	}
	return nil
}

// Usage 当前使用次数
func (m *MemoryCoupons) Usage(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[code]
}

// Assign 将券记到顾客名下
func (m *MemoryCoupons) Assign(ctx context.Context, customerID string, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAssign != nil {
		return m.failAssign
	}
	set, ok := m.assignments[customerID]
	if !ok {
		set = make(map[string]bool)
		m.assignments[customerID] = set
	}
	for _, c := range codes {
		set[c] = true
	}
	return nil
}

// Unassign 撤销分配
func (m *MemoryCoupons) Unassign(ctx context.Context, customerID string, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range codes {
		delete(m.assignments[customerID], c)
	}
	return nil
}

// Assigned 顾客名下是否有该券
func (m *MemoryCoupons) Assigned(customerID, code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignments[customerID][code]
}
