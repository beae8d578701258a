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

package domain

import "github.com/shopspring/decimal"

// ItemKind 商品类型
type ItemKind string

const (
	ItemPhysical        ItemKind = "PHYSICAL"
	ItemDigital         ItemKind = "DIGITAL"
	ItemGiftCertificate ItemKind = "GIFT_CERTIFICATE"
)

// LineItem 购物车/发货单行
type LineItem struct {
	SKU       string          `json:"sku"`
	Kind      ItemKind        `json:"kind"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	// Recurring 周期计费价格（订阅类）；为 true 时零金额结算需做预授权校验
	Recurring bool `json:"recurring,omitempty"`
	// Recipient 礼品卡收件人（Kind=GIFT_CERTIFICATE 时使用）
	Recipient string `json:"recipient,omitempty"`
}

// Amount 行金额
func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart 购物车快照（结算只读输入）
type Cart struct {
	ID        string         `json:"id"`
	StoreCode string         `json:"store_code"`
	Currency  string         `json:"currency"`
	Shipments []CartShipment `json:"shipments"`
	Coupons   []string       `json:"coupons,omitempty"`
}

// CartShipment 购物车中按配送方式拆分的发货组
type CartShipment struct {
	ID             string          `json:"id"`
	Type           ShipmentType    `json:"type"`
	Items          []LineItem      `json:"items"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	Address        *Address        `json:"address,omitempty"`
	ShippingOption string          `json:"shipping_option,omitempty"`
}

// HasRecurringItem 购物车是否含周期计费商品
func (c *Cart) HasRecurringItem() bool {
	for _, s := range c.Shipments {
		for _, li := range s.Items {
			if li.Recurring {
				return true
			}
		}
	}
	return false
}

// TaxSnapshot 已计算的税额快照（按发货单）
type TaxSnapshot struct {
	Documents map[string]TaxDocument `json:"documents"` // key: shipment ID
}

// ShipmentTax 取发货单税额，无则为 0
func (t *TaxSnapshot) ShipmentTax(shipmentID string) decimal.Decimal {
	if t == nil {
		return decimal.Zero
	}
	doc, ok := t.Documents[shipmentID]
	if !ok {
		return decimal.Zero
	}
	amt, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return decimal.Zero
	}
	return amt
}

// Session 顾客会话
type Session struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Email      string `json:"email"`
	Locale     string `json:"locale,omitempty"`
	Anonymous  bool   `json:"anonymous,omitempty"`
}

// PaymentTemplate 顾客选择的支付方式模板，按发货单展开为支付计划
type PaymentTemplate struct {
	InstrumentID string        `json:"instrument_id"`
	Method       PaymentMethod `json:"method"`
}
