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

// Package tax 税单提交协作方的内存实现；税额计算不在本服务范围内，提交时原样确认快照中的税额。
package tax

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"checkout-platform/internal/checkout/domain"
)

// AdjustFunc 提交时重新确定税额（如按最终收货地址），返回新的金额字符串
type AdjustFunc func(doc domain.TaxDocument, shipment *domain.Shipment) string

// MemoryEngine 内存税务引擎
type MemoryEngine struct {
	mu        sync.RWMutex
	committed map[string]domain.TaxDocument
	adjust    AdjustFunc
	failOn    map[string]error // key: shipment ID
	deletes   int
}

// NewMemoryEngine 创建内存税务引擎
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		committed: make(map[string]domain.TaxDocument),
		failOn:    make(map[string]error),
	}
}

// SetAdjust 设置提交时的税额调整
func (e *MemoryEngine) SetAdjust(fn AdjustFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.adjust = fn
}

// FailOn 提交指定发货单税单时返回 err
func (e *MemoryEngine) FailOn(shipmentID string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failOn[shipmentID] = err
}

// Commit 提交税单，ID 为空时分配
func (e *MemoryEngine) Commit(ctx context.Context, doc domain.TaxDocument, shipment *domain.Shipment) (domain.TaxDocument, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.failOn[shipment.ID]; err != nil {
		return domain.TaxDocument{}, fmt.Errorf("commit tax for shipment %s: %w", shipment.ID, err)
	}
	if doc.ID == "" {
		doc.ID = "tax_" + uuid.New().String()
	}
	doc.ShipmentID = shipment.ID
	if e.adjust != nil {
		doc.Amount = e.adjust(doc, shipment)
	}
	e.committed[doc.ID] = doc
	return doc, nil
}

// Delete 撤销已提交税单；不存在时无副作用
func (e *MemoryEngine) Delete(ctx context.Context, doc domain.TaxDocument) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.committed, doc.ID)
	e.deletes++
	return nil
}

// Committed 当前已提交税单数
func (e *MemoryEngine) Committed() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.committed)
}

// Deletes Delete 调用次数
func (e *MemoryEngine) Deletes() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.deletes
}
