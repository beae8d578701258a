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

// Package actions 结算各阶段的具体步骤及其回滚，按配置组装为有序步骤列表。
package actions

import (
	"context"

	"github.com/shopspring/decimal"

	"checkout-platform/internal/checkout/domain"
	"checkout-platform/internal/checkout/payment"
	"checkout-platform/internal/events"
	"checkout-platform/internal/storage/cartstore"
	"checkout-platform/internal/storage/orderstore"
	"checkout-platform/pkg/log"
)

// TaxEngine 税单提交与撤销
type TaxEngine interface {
	Commit(ctx context.Context, doc domain.TaxDocument, shipment *domain.Shipment) (domain.TaxDocument, error)
	Delete(ctx context.Context, doc domain.TaxDocument) error
}

// Validator 购物车校验，返回可展示的消息；非空即中止结算
type Validator interface {
	Validate(ctx context.Context, cart *domain.Cart, session *domain.Session, storeCode string) ([]string, error)
}

// Inventory 库存充足性检查，返回不足的 SKU
type Inventory interface {
	Sufficient(ctx context.Context, items []domain.LineItem) ([]string, error)
}

// CouponService 优惠券计数与分配
type CouponService interface {
	IncrementUsage(ctx context.Context, codes []string) error
	DecrementUsage(ctx context.Context, codes []string) error
	Assign(ctx context.Context, customerID string, codes []string) error
	Unassign(ctx context.Context, customerID string, codes []string) error
}

// GiftCertificateService 礼品卡
type GiftCertificateService interface {
	Balance(ctx context.Context, code string) (decimal.Decimal, error)
	Issue(ctx context.Context, orderID string, item domain.LineItem) (string, error)
	Revoke(ctx context.Context, code string) error
}

// Settings 步骤使用的结算配置
type Settings struct {
	StoreCode string
	Currency  string
	// CreditCheckAmount 零金额含周期计费商品时预授权校验的金额
	CreditCheckAmount decimal.Decimal
}

// Deps 步骤依赖的协作方
type Deps struct {
	Orders           orderstore.Store
	Carts            cartstore.Store
	Tax              TaxEngine
	Validator        Validator
	Inventory        Inventory
	Events           events.Publisher
	Coupons          CouponService
	GiftCertificates GiftCertificateService
	Payments         *payment.Coordinator
	Settings         Settings
	Logger           *log.Logger
}
