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

// Package domain 结算领域模型：订单、发货单、支付记录、挂起、税单与购物车快照。
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态机
type OrderStatus string

const (
	OrderCreated          OrderStatus = "CREATED"
	OrderOnHold           OrderStatus = "ON_HOLD"
	OrderInProgress       OrderStatus = "IN_PROGRESS"
	OrderPartiallyShipped OrderStatus = "PARTIALLY_SHIPPED"
	OrderCompleted        OrderStatus = "COMPLETED"
	OrderCancelled        OrderStatus = "CANCELLED"
	OrderFailed           OrderStatus = "FAILED"
	OrderAwaitingExchange OrderStatus = "AWAITING_EXCHANGE"
)

// ShipmentType 发货单类型
type ShipmentType string

const (
	ShipmentPhysical   ShipmentType = "PHYSICAL"
	ShipmentElectronic ShipmentType = "ELECTRONIC"
)

// ShipmentStatus 发货单状态
type ShipmentStatus string

const (
	ShipmentCreated           ShipmentStatus = "CREATED"
	ShipmentInventoryAssigned ShipmentStatus = "INVENTORY_ASSIGNED"
	ShipmentReleased          ShipmentStatus = "RELEASED"
	ShipmentShipped           ShipmentStatus = "SHIPPED"
	ShipmentCancelled         ShipmentStatus = "CANCELLED"
)

// Address 收货地址
type Address struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	City    string `json:"city"`
	Country string `json:"country"`
	Zip     string `json:"zip"`
}

// Shipment 订单发货单；电子发货单在结算时即扣款，实物发货单仅预授权
type Shipment struct {
	ID             string          `json:"id"`
	Type           ShipmentType    `json:"type"`
	Status         ShipmentStatus  `json:"status"`
	Items          []LineItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	Address        *Address        `json:"address,omitempty"`
	ShippingOption string          `json:"shipping_option,omitempty"`
}

// Total 发货单应付总额
func (s *Shipment) Total() decimal.Decimal {
	return s.Subtotal.Add(s.Tax).Add(s.ShippingCost)
}

// PaymentInstruction 模板支付展开后的单条支付计划（每个发货单一条）
type PaymentInstruction struct {
	ShipmentID   string          `json:"shipment_id"`
	InstrumentID string          `json:"instrument_id"`
	Method       PaymentMethod   `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
}

// Order 结算生成的订单；Version 为 0 表示尚未持久化
type Order struct {
	ID          string               `json:"id"`
	OrderNumber string               `json:"order_number"`
	CartID      string               `json:"cart_id"`
	CustomerID  string               `json:"customer_id"`
	StoreCode   string               `json:"store_code"`
	Currency    string               `json:"currency"`
	Status      OrderStatus          `json:"status"`
	Shipments   []*Shipment          `json:"shipments"`
	Payments    []*PaymentRecord     `json:"payments,omitempty"`
	PaymentPlan []PaymentInstruction `json:"payment_plan,omitempty"`
	Holds       []OrderHold          `json:"holds,omitempty"`
	Coupons     []string             `json:"coupons,omitempty"`
	// GiftCertificates 本单购买并已签发的礼品卡号
	GiftCertificates []string  `json:"gift_certificates,omitempty"`
	ExchangeID       string    `json:"exchange_id,omitempty"`
	Version          int       `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Persisted 是否已由订单存储写入
func (o *Order) Persisted() bool {
	return o != nil && o.Version > 0
}

// Total 订单应付总额
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, s := range o.Shipments {
		total = total.Add(s.Total())
	}
	return total
}

// Shipment 按 ID 查找发货单
func (o *Order) Shipment(id string) *Shipment {
	for _, s := range o.Shipments {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ShipmentsOfType 返回指定类型的发货单（保持原顺序）
func (o *Order) ShipmentsOfType(t ShipmentType) []*Shipment {
	var out []*Shipment
	for _, s := range o.Shipments {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// ActiveShipments 未取消的发货单
func (o *Order) ActiveShipments() []*Shipment {
	var out []*Shipment
	for _, s := range o.Shipments {
		if s.Status != ShipmentCancelled {
			out = append(out, s)
		}
	}
	return out
}

// Clone 深拷贝；存储实现与结算上下文之间传递副本，避免共享可变状态
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Shipments = make([]*Shipment, len(o.Shipments))
	for i, s := range o.Shipments {
		sc := *s
		sc.Items = append([]LineItem(nil), s.Items...)
		if s.Address != nil {
			addr := *s.Address
			sc.Address = &addr
		}
		c.Shipments[i] = &sc
	}
	// 支付记录不可变，复制切片即可
	c.Payments = append([]*PaymentRecord(nil), o.Payments...)
	c.PaymentPlan = append([]PaymentInstruction(nil), o.PaymentPlan...)
	c.Holds = append([]OrderHold(nil), o.Holds...)
	c.Coupons = append([]string(nil), o.Coupons...)
	c.GiftCertificates = append([]string(nil), o.GiftCertificates...)
	return &c
}
