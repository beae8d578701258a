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

// Package pipeline 结算管线：请求级上下文、步骤记录、按阶段执行与逆序回滚。
package pipeline

import (
	"checkout-platform/internal/checkout/domain"
)

// Input 构造 Context 的只读输入
type Input struct {
	Cart                    *domain.Cart
	Tax                     *domain.TaxSnapshot
	Session                 *domain.Session
	PaymentTemplate         *domain.PaymentTemplate
	IsExchange              bool
	AwaitExchangeCompletion bool
	ExchangeID              string
}

// Context 单次结算尝试的可变状态，所有步骤共享；每次结算新建，不复用、不跨请求共享
type Context struct {
	cart     *domain.Cart
	tax      *domain.TaxSnapshot
	session  *domain.Session
	template *domain.PaymentTemplate

	// order 在创建订单步骤完成前为 nil
	order    *domain.Order
	payments []*domain.PaymentRecord
	taxDocs  map[string]domain.TaxDocument
	holds    []domain.OrderHold

	isExchange    bool
	awaitExchange bool
	exchangeID    string

	finalized bool
}

// NewContext 创建结算上下文
func NewContext(in Input) *Context {
	return &Context{
		cart:          in.Cart,
		tax:           in.Tax,
		session:       in.Session,
		template:      in.PaymentTemplate,
		taxDocs:       make(map[string]domain.TaxDocument),
		isExchange:    in.IsExchange,
		awaitExchange: in.AwaitExchangeCompletion,
		exchangeID:    in.ExchangeID,
	}
}

func (c *Context) Cart() *domain.Cart                       { return c.cart }
func (c *Context) TaxSnapshot() *domain.TaxSnapshot         { return c.tax }
func (c *Context) Session() *domain.Session                 { return c.session }
func (c *Context) PaymentTemplate() *domain.PaymentTemplate { return c.template }
func (c *Context) IsExchange() bool                         { return c.isExchange }
func (c *Context) AwaitExchangeCompletion() bool            { return c.awaitExchange }
func (c *Context) ExchangeID() string                       { return c.exchangeID }

// SetPaymentTemplate 替换支付模板
func (c *Context) SetPaymentTemplate(t *domain.PaymentTemplate) { c.template = t }

// Order 当前订单，创建前为 nil
func (c *Context) Order() *domain.Order { return c.order }

// SetOrder 设置订单（创建订单步骤或持久化后采用存储返回的副本）
func (c *Context) SetOrder(o *domain.Order) { c.order = o }

// CustomerID 会话中的顾客 ID，无会话时为空
func (c *Context) CustomerID() string {
	if c.session == nil {
		return ""
	}
	return c.session.CustomerID
}

// Payments 按创建顺序返回支付记录的副本切片
func (c *Context) Payments() []*domain.PaymentRecord {
	return append([]*domain.PaymentRecord(nil), c.payments...)
}

// AddPayment 追加支付记录
func (c *Context) AddPayment(r *domain.PaymentRecord) {
	if r == nil {
		return
	}
	c.payments = append(c.payments, r)
}

// MergeUnseenPayments 追加 ID 尚未出现的记录，保持原有顺序。
// 用于采用存储返回的订单副本后补回副本未携带的记录。
func (c *Context) MergeUnseenPayments(records []*domain.PaymentRecord) {
	seen := make(map[string]struct{}, len(c.payments))
	for _, p := range c.payments {
		seen[p.ID] = struct{}{}
	}
	for _, r := range records {
		if r == nil {
			continue
		}
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		c.payments = append(c.payments, r)
	}
}

// TaxDocuments 已提交税单（key 为税单 ID）的副本
func (c *Context) TaxDocuments() map[string]domain.TaxDocument {
	out := make(map[string]domain.TaxDocument, len(c.taxDocs))
	for k, v := range c.taxDocs {
		out[k] = v
	}
	return out
}

// PutTaxDocument 记录已提交税单
func (c *Context) PutTaxDocument(doc domain.TaxDocument) { c.taxDocs[doc.ID] = doc }

// RemoveTaxDocument 移除税单记录
func (c *Context) RemoveTaxDocument(id string) { delete(c.taxDocs, id) }

// Holds 评估得到的挂起
func (c *Context) Holds() []domain.OrderHold {
	return append([]domain.OrderHold(nil), c.holds...)
}

// SetHolds 设置挂起集合
func (c *Context) SetHolds(holds []domain.OrderHold) {
	c.holds = append([]domain.OrderHold(nil), holds...)
}

// Finalized CAPTURE 已成功完成；此后 PRE_CAPTURE/CAPTURE 的回滚不再生效
func (c *Context) Finalized() bool { return c.finalized }

// MarkFinalized 标记捕获完成
func (c *Context) MarkFinalized() { c.finalized = true }
