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

package actions

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"checkout-platform/internal/checkout/domain"
	"checkout-platform/internal/checkout/payment"
	"checkout-platform/internal/checkout/pipeline"
)

const (
	StepAuthorizePayments = "authorize_payments"
	StepCaptureElectronic = "capture_electronic"
	StepCommitTax         = "commit_tax"
	StepPersistOrder      = "persist_order"
)

// authorizePayments 为每条支付计划预授权（网关不支持预授权时直接扣款）。
// 零金额且含周期计费商品时执行信用校验：预授权 CreditCheckAmount 后立即撤销，不扣款。
// 中途失败时先补偿本次已创建的记录再返回错误。
func (c *Catalog) authorizePayments() pipeline.Step {
	return pipeline.Step{
		Name:  StepAuthorizePayments,
		Phase: pipeline.PhaseCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			o := cc.Order()
			caps := c.deps.Payments.Capabilities()
			recurring := cc.Cart().HasRecurringItem()

			var created []*domain.PaymentRecord
			record := func(r *domain.PaymentRecord) {
				if r != nil {
					cc.AddPayment(r)
					created = append(created, r)
				}
			}
			fail := func(cause error) error {
				comps, err := c.deps.Payments.Compensate(ctx, created, c.authorizationTypes()...)
				for _, r := range comps {
					cc.AddPayment(r)
				}
				if err != nil {
					c.deps.Logger.Error("compensate partial authorization", "order_id", o.ID, "error", err)
				}
				return cause
			}

			for _, in := range o.PaymentPlan {
				s := o.Shipment(in.ShipmentID)
				if s == nil || s.Status == domain.ShipmentCancelled {
					continue
				}
				if !in.Amount.IsPositive() {
					if !recurring {
						continue
					}
					if !caps.Reserve {
						c.deps.Logger.Warn("gateway cannot reserve; skipping credit check", "order_id", o.ID, "shipment_id", s.ID)
						continue
					}
					r, err := c.deps.Payments.Reserve(ctx, s.ID, in.InstrumentID, c.deps.Settings.CreditCheckAmount, o.Currency)
					record(r)
					if err != nil {
						return fail(err)
					}
					res, err := payment.ReservationFrom(r)
					if err != nil {
						return fail(err)
					}
					cancel, err := c.deps.Payments.Cancel(ctx, res)
					record(cancel)
					if err != nil {
						return fail(err)
					}
					continue
				}

				var (
					r   *domain.PaymentRecord
					err error
				)
				if caps.Reserve {
					r, err = c.deps.Payments.Reserve(ctx, s.ID, in.InstrumentID, in.Amount, o.Currency)
				} else {
					r, err = c.deps.Payments.Sale(ctx, s.ID, in.InstrumentID, in.Amount, o.Currency)
				}
				record(r)
				if err != nil {
					return fail(err)
				}
			}
			return nil
		},
		Rollback: func(ctx context.Context, cc *pipeline.Context) error {
			return c.compensate(ctx, cc, c.authorizationTypes()...)
		},
	}
}

// authorizationTypes 授权步骤创建的交易类型
func (c *Catalog) authorizationTypes() []domain.TransactionType {
	if c.deps.Payments.Capabilities().Reserve {
		return []domain.TransactionType{domain.TxReserve, domain.TxModifyReserve}
	}
	return []domain.TransactionType{domain.TxCharge}
}

// captureElectronic 对电子发货单按预授权扣款并标记为已发货。
// 单个发货单扣款失败而仍有其他有效发货单时，撤销该发货单的预授权并取消该发货单，订单继续；
// 没有其他有效发货单时步骤失败。步骤失败前冲正本次已完成的扣款。
func (c *Catalog) captureElectronic() pipeline.Step {
	return pipeline.Step{
		Name:  StepCaptureElectronic,
		Phase: pipeline.PhaseCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			o := cc.Order()
			var charged []*domain.PaymentRecord
			fail := func(cause error) error {
				comps, err := c.deps.Payments.Compensate(ctx, charged, domain.TxCharge)
				for _, r := range comps {
					cc.AddPayment(r)
				}
				if err != nil {
					c.deps.Logger.Error("reverse partial electronic capture", "order_id", o.ID, "error", err)
				}
				for _, r := range charged {
					if s := o.Shipment(r.ChainKey); s != nil {
						s.Status = domain.ShipmentCreated
					}
				}
				return cause
			}
			for _, s := range o.Shipments {
				if s.Type != domain.ShipmentElectronic || s.Status == domain.ShipmentCancelled {
					continue
				}
				amount := s.Total()
				if !amount.IsPositive() || chainCharged(cc.Payments(), s.ID) {
					s.Status = domain.ShipmentShipped
					continue
				}
				latest := latestReservation(cc.Payments(), s.ID)
				if latest == nil {
					return fail(fmt.Errorf("electronic shipment %s has no open reservation", s.ID))
				}
				res, err := payment.ReservationFrom(latest)
				if err != nil {
					return fail(err)
				}
				r, err := c.deps.Payments.Charge(ctx, res, amount)
				if r != nil {
					cc.AddPayment(r)
				}
				if err == nil {
					charged = append(charged, r)
					s.Status = domain.ShipmentShipped
					continue
				}
				if len(o.ActiveShipments()) <= 1 {
					return fail(err)
				}
				cancel, cerr := c.deps.Payments.Cancel(ctx, res)
				if cancel != nil {
					cc.AddPayment(cancel)
				}
				if cerr != nil {
					c.deps.Logger.Error("cancel reservation of failed electronic shipment", "order_id", o.ID, "shipment_id", s.ID, "error", cerr)
					return fail(err)
				}
				s.Status = domain.ShipmentCancelled
				c.deps.Logger.Warn("electronic shipment charge failed; shipment cancelled",
					"order_id", o.ID, "shipment_id", s.ID, "error", err)
			}
			return nil
		},
		Rollback: func(ctx context.Context, cc *pipeline.Context) error {
			return c.compensate(ctx, cc, domain.TxCharge)
		},
	}
}

// commitTax 提交有效发货单的税单。提交后的税额与快照不同时更新发货单税额，
// 实物发货单的预授权随之修改。中途失败时撤销本次已提交的税单。
func (c *Catalog) commitTax() pipeline.Step {
	return pipeline.Step{
		Name:  StepCommitTax,
		Phase: pipeline.PhaseCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			snapshot := cc.TaxSnapshot()
			if snapshot == nil {
				return nil
			}
			o := cc.Order()
			var committed []domain.TaxDocument
			fail := func(cause error) error {
				for i := len(committed) - 1; i >= 0; i-- {
					if err := c.deps.Tax.Delete(ctx, committed[i]); err != nil {
						c.deps.Logger.Error("delete tax document", "tax_document_id", committed[i].ID, "error", err)
						continue
					}
					cc.RemoveTaxDocument(committed[i].ID)
				}
				return cause
			}
			for _, s := range o.ActiveShipments() {
				doc, ok := snapshot.Documents[s.ID]
				if !ok {
					continue
				}
				doc, err := c.deps.Tax.Commit(ctx, doc, s)
				if err != nil {
					return fail(err)
				}
				committed = append(committed, doc)
				cc.PutTaxDocument(doc)

				amount, err := decimal.NewFromString(doc.Amount)
				if err != nil || amount.Equal(s.Tax) {
					continue
				}
				s.Tax = amount
				if err := c.modifyReservation(ctx, cc, s); err != nil {
					return fail(err)
				}
			}
			return nil
		},
		Rollback: func(ctx context.Context, cc *pipeline.Context) error {
			docs := cc.TaxDocuments()
			ids := make([]string, 0, len(docs))
			for id := range docs {
				ids = append(ids, id)
			}
			sort.Sort(sort.Reverse(sort.StringSlice(ids)))
			var errs []error
			for _, id := range ids {
				if err := c.deps.Tax.Delete(ctx, docs[id]); err != nil {
					errs = append(errs, err)
					continue
				}
				cc.RemoveTaxDocument(id)
			}
			return errors.Join(errs...)
		},
	}
}

// modifyReservation 实物发货单总额变化后修改其预授权
func (c *Catalog) modifyReservation(ctx context.Context, cc *pipeline.Context, s *domain.Shipment) error {
	if s.Type != domain.ShipmentPhysical || !c.deps.Payments.Capabilities().ModifyReserve {
		return nil
	}
	latest := latestReservation(cc.Payments(), s.ID)
	if latest == nil {
		return nil
	}
	res, err := payment.ReservationFrom(latest)
	if err != nil {
		return err
	}
	r, err := c.deps.Payments.Modify(ctx, res, s.Total())
	if r != nil {
		cc.AddPayment(r)
	}
	return err
}

// persistOrder 写入支付记录与结算后的状态，采用存储返回的副本
func (c *Catalog) persistOrder() pipeline.Step {
	return pipeline.Step{
		Name:  StepPersistOrder,
		Phase: pipeline.PhaseCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			o := cc.Order().Clone()
			o.Payments = cc.Payments()
			o.Status = capturedStatus(cc, o)
			o.ExchangeID = cc.ExchangeID()
			saved, err := c.deps.Orders.Update(ctx, o)
			if err != nil {
				return err
			}
			cc.SetOrder(saved)
			cc.MergeUnseenPayments(saved.Payments)
			c.deps.Logger.Info("order captured", "order_id", saved.ID, "status", saved.Status, "payments", len(saved.Payments))
			return nil
		},
	}
}

// capturedStatus 捕获完成后的订单状态：等待换货完成、全部已发货则完成，否则处理中
func capturedStatus(cc *pipeline.Context, o *domain.Order) domain.OrderStatus {
	if cc.AwaitExchangeCompletion() {
		return domain.OrderAwaitingExchange
	}
	active := o.ActiveShipments()
	if len(active) == 0 {
		return domain.OrderInProgress
	}
	for _, s := range active {
		if s.Status != domain.ShipmentShipped {
			return domain.OrderInProgress
		}
	}
	return domain.OrderCompleted
}

// compensate 补偿上下文中指定类型的支付记录，并把补偿记录追加到上下文
func (c *Catalog) compensate(ctx context.Context, cc *pipeline.Context, types ...domain.TransactionType) error {
	created, err := c.deps.Payments.Compensate(ctx, cc.Payments(), types...)
	for _, r := range created {
		cc.AddPayment(r)
	}
	return err
}

// latestReservation 链上最新的有效预授权；链已撤销或已扣款时返回 nil
func latestReservation(records []*domain.PaymentRecord, chainKey string) *domain.PaymentRecord {
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if r.ChainKey != chainKey || !r.Approved() {
			continue
		}
		switch r.Type {
		case domain.TxReserve, domain.TxModifyReserve:
			return r
		case domain.TxCancelReserve, domain.TxCharge:
			return nil
		}
	}
	return nil
}

// chainCharged 链上是否已有成功扣款
func chainCharged(records []*domain.PaymentRecord, chainKey string) bool {
	for _, r := range records {
		if r.ChainKey == chainKey && r.Type == domain.TxCharge && r.Approved() {
			return true
		}
	}
	return false
}
