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

// Package events 结算领域事件及其发布（内存 / Redis Stream）。
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type 事件类型
type Type string

const (
	OrderCreated      Type = "order.created"
	OrderFailed       Type = "order.failed"
	OrderOnHold       Type = "order.on_hold"
	CheckoutCompleted Type = "checkout.completed"
)

// Event 结算事件；Attributes 为附加的字符串字段（如挂起原因、最终状态）
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	OrderID    string            `json:"order_id"`
	CartID     string            `json:"cart_id,omitempty"`
	CustomerID string            `json:"customer_id,omitempty"`
	Status     string            `json:"status,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// New 创建事件
func New(t Type, orderID, cartID, customerID, status string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       t,
		OrderID:    orderID,
		CartID:     cartID,
		CustomerID: customerID,
		Status:     status,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher 事件发布
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}
