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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"checkout-platform/internal/checkout/domain"
	"checkout-platform/internal/checkout/pipeline"
	"checkout-platform/internal/events"
	pkgerrors "checkout-platform/pkg/errors"
)

// 步骤名
const (
	StepValidateCart             = "validate_cart"
	StepCheckShipping            = "check_shipping"
	StepCheckInventory           = "check_inventory"
	StepCreateOrder              = "create_order"
	StepLinkCartOrder            = "link_cart_order"
	StepPublishOrderCreated      = "publish_order_created"
	StepPopulateTemplatePayments = "populate_template_payments"
	StepUpdateCouponUsage        = "update_coupon_usage"
	StepVerifyGiftCertificates   = "verify_gift_certificates"
)

func (c *Catalog) validateCart() pipeline.Step {
	return pipeline.Step{
		Name:  StepValidateCart,
		Phase: pipeline.PhasePreCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			msgs, err := c.deps.Validator.Validate(ctx, cc.Cart(), cc.Session(), c.deps.Settings.StoreCode)
			if err != nil {
				return err
			}
			if len(msgs) > 0 {
				return pipeline.NewValidationFailure(msgs...)
			}
			return nil
		},
	}
}

func (c *Catalog) checkShipping() pipeline.Step {
	return pipeline.Step{
		Name:  StepCheckShipping,
		Phase: pipeline.PhasePreCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			var msgs []string
			for _, s := range cc.Cart().Shipments {
				if s.Type != domain.ShipmentPhysical {
					continue
				}
				if s.Address == nil {
					msgs = append(msgs, fmt.Sprintf("shipment %s: shipping address is required", s.ID))
				}
				if s.ShippingOption == "" {
					msgs = append(msgs, fmt.Sprintf("shipment %s: shipping option is required", s.ID))
				}
			}
			if len(msgs) > 0 {
				return pipeline.NewValidationFailure(msgs...)
			}
			return nil
		},
	}
}

func (c *Catalog) checkInventory() pipeline.Step {
	return pipeline.Step{
		Name:  StepCheckInventory,
		Phase: pipeline.PhasePreCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			var items []domain.LineItem
			for _, s := range cc.Cart().Shipments {
				items = append(items, s.Items...)
			}
			short, err := c.deps.Inventory.Sufficient(ctx, items)
			if err != nil {
				return err
			}
			if len(short) > 0 {
				msgs := make([]string, len(short))
				for i, sku := range short {
					msgs[i] = fmt.Sprintf("item %s: insufficient inventory", sku)
				}
				return pipeline.NewValidationFailure(msgs...)
			}
			return nil
		},
	}
}

// createOrder 由购物车与税额快照生成订单并写入存储；写入失败时上下文中不留订单。
// 回滚把订单置为 FAILED。
func (c *Catalog) createOrder() pipeline.Step {
	return pipeline.Step{
		Name:  StepCreateOrder,
		Phase: pipeline.PhasePreCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			saved, err := c.deps.Orders.Create(ctx, c.buildOrder(cc))
			if err != nil {
				return err
			}
			cc.SetOrder(saved)
			c.deps.Logger.Info("order created", "order_id", saved.ID, "order_number", saved.OrderNumber, "cart_id", saved.CartID)
			return nil
		},
		Rollback: func(ctx context.Context, cc *pipeline.Context) error {
			return FailOrder(ctx, c.deps, cc, "checkout rolled back")
		},
	}
}

func (c *Catalog) buildOrder(cc *pipeline.Context) *domain.Order {
	cart := cc.Cart()
	now := time.Now().UTC()
	currency := cart.Currency
	if currency == "" {
		currency = c.deps.Settings.Currency
	}
	storeCode := cart.StoreCode
	if storeCode == "" {
		storeCode = c.deps.Settings.StoreCode
	}
	o := &domain.Order{
		ID:          uuid.New().String(),
		OrderNumber: orderNumber(now),
		CartID:      cart.ID,
		CustomerID:  cc.CustomerID(),
		StoreCode:   storeCode,
		Currency:    currency,
		Status:      domain.OrderCreated,
		ExchangeID:  cc.ExchangeID(),
		CreatedAt:   now,
	}
	for _, cs := range cart.Shipments {
		id := cs.ID
		if id == "" {
			id = uuid.New().String()
		}
		subtotal := decimal.Zero
		for _, it := range cs.Items {
			subtotal = subtotal.Add(it.Amount())
		}
		var addr *domain.Address
		if cs.Address != nil {
			a := *cs.Address
			addr = &a
		}
		o.Shipments = append(o.Shipments, &domain.Shipment{
			ID:             id,
			Type:           cs.Type,
			Status:         domain.ShipmentCreated,
			Items:          append([]domain.LineItem(nil), cs.Items...),
			Subtotal:       subtotal,
			Tax:            cc.TaxSnapshot().ShipmentTax(cs.ID),
			ShippingCost:   cs.ShippingCost,
			Address:        addr,
			ShippingOption: cs.ShippingOption,
		})
	}
	return o
}

func orderNumber(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", t.Format("20060102"), suffix)
}

func (c *Catalog) linkCartOrder() pipeline.Step {
	return pipeline.Step{
		Name:  StepLinkCartOrder,
		Phase: pipeline.PhasePreCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			return c.deps.Carts.SetCartOrder(ctx, cc.Cart().ID, cc.Order().ID)
		},
		Rollback: func(ctx context.Context, cc *pipeline.Context) error {
			return c.deps.Carts.RemoveCartOrder(ctx, cc.Cart().ID)
		},
	}
}

// publishOrderCreated 发布失败视为步骤失败；订单失败时由 FailOrder 发布 order-failed
func (c *Catalog) publishOrderCreated() pipeline.Step {
	return pipeline.Step{
		Name:  StepPublishOrderCreated,
		Phase: pipeline.PhasePreCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			o := cc.Order()
			evt := events.New(events.OrderCreated, o.ID, o.CartID, o.CustomerID, string(o.Status))
			evt.Attributes = map[string]string{"order_number": o.OrderNumber, "total": o.Total().StringFixed(2)}
			if err := c.deps.Events.Publish(ctx, evt); err != nil {
				return fmt.Errorf("publish %s: %w", events.OrderCreated, err)
			}
			return nil
		},
	}
}

// populateTemplatePayments 按支付模板为每个有效发货单生成一条支付计划
func (c *Catalog) populateTemplatePayments() pipeline.Step {
	return pipeline.Step{
		Name:  StepPopulateTemplatePayments,
		Phase: pipeline.PhasePreCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			o := cc.Order()
			tmpl := cc.PaymentTemplate()
			needsInstrument := o.Total().IsPositive() || cc.Cart().HasRecurringItem()
			if tmpl == nil || tmpl.InstrumentID == "" {
				if needsInstrument {
					return pipeline.NewValidationFailure("a payment method is required")
				}
				return nil
			}
			method := tmpl.Method
			if method == "" {
				method = domain.MethodCard
			}
			plan := make([]domain.PaymentInstruction, 0, len(o.Shipments))
			for _, s := range o.ActiveShipments() {
				plan = append(plan, domain.PaymentInstruction{
					ShipmentID:   s.ID,
					InstrumentID: tmpl.InstrumentID,
					Method:       method,
					Amount:       s.Total(),
				})
			}
			o.PaymentPlan = plan
			return nil
		},
		Rollback: func(ctx context.Context, cc *pipeline.Context) error {
			if o := cc.Order(); o != nil {
				o.PaymentPlan = nil
			}
			return nil
		},
	}
}

func (c *Catalog) updateCouponUsage() pipeline.Step {
	return pipeline.Step{
		Name:  StepUpdateCouponUsage,
		Phase: pipeline.PhasePreCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			codes := cc.Cart().Coupons
			if len(codes) == 0 {
				return nil
			}
			if err := c.deps.Coupons.IncrementUsage(ctx, codes); err != nil {
				return err
			}
			cc.Order().Coupons = append([]string(nil), codes...)
			return nil
		},
		Rollback: func(ctx context.Context, cc *pipeline.Context) error {
			o := cc.Order()
			if o == nil || len(o.Coupons) == 0 {
				return nil
			}
			if err := c.deps.Coupons.DecrementUsage(ctx, o.Coupons); err != nil {
				return err
			}
			o.Coupons = nil
			return nil
		},
	}
}

// verifyGiftCertificates 礼品卡余额须覆盖计划中使用该卡的全部金额
func (c *Catalog) verifyGiftCertificates() pipeline.Step {
	return pipeline.Step{
		Name:  StepVerifyGiftCertificates,
		Phase: pipeline.PhasePreCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			needed := make(map[string]decimal.Decimal)
			var codes []string
			for _, in := range cc.Order().PaymentPlan {
				if in.Method != domain.MethodGiftCertificate {
					continue
				}
				if _, ok := needed[in.InstrumentID]; !ok {
					codes = append(codes, in.InstrumentID)
				}
				needed[in.InstrumentID] = needed[in.InstrumentID].Add(in.Amount)
			}
			var msgs []string
			for _, code := range codes {
				balance, err := c.deps.GiftCertificates.Balance(ctx, code)
				if pkgerrors.IsNotFound(err) {
					msgs = append(msgs, fmt.Sprintf("gift certificate %s is not valid", code))
					continue
				}
				if err != nil {
					return err
				}
				if balance.LessThan(needed[code]) {
					msgs = append(msgs, fmt.Sprintf("gift certificate %s balance %s is insufficient", code, balance.StringFixed(2)))
				}
			}
			if len(msgs) > 0 {
				return pipeline.NewValidationFailure(msgs...)
			}
			return nil
		},
	}
}
