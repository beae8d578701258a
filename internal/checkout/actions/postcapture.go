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

	"checkout-platform/internal/checkout/domain"
	"checkout-platform/internal/checkout/pipeline"
)

const (
	StepHoldOrder              = "hold_order"
	StepIssueGiftCertificates  = "issue_gift_certificates"
	StepAssignCoupons          = "assign_coupons"
	StepSavePostCaptureChanges = "save_post_capture_changes"
)

// holdOrder 附加评估得到的挂起并将订单置为 ON_HOLD
func (c *Catalog) holdOrder() pipeline.Step {
	return pipeline.Step{
		Name:  StepHoldOrder,
		Phase: pipeline.PhaseHoldEvaluation,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			o := cc.Order().Clone()
			o.Holds = cc.Holds()
			o.Status = domain.OrderOnHold
			saved, err := c.deps.Orders.Update(ctx, o)
			if err != nil {
				return err
			}
			cc.SetOrder(saved)
			c.deps.Logger.Info("order on hold", "order_id", saved.ID, "holds", len(saved.Holds))
			c.publishBestEffort(ctx, onHoldEvent(saved))
			return nil
		},
	}
}

// orderFailureHook POST_CAPTURE 失败时将订单置为 FAILED；已结算的支付不冲正
func (c *Catalog) orderFailureHook(ctx context.Context, cc *pipeline.Context) error {
	return FailOrder(ctx, c.deps, cc, "post-capture step failed")
}

// issueGiftCertificates 为本单购买的礼品卡商品签发卡号（按数量）
func (c *Catalog) issueGiftCertificates() pipeline.Step {
	return pipeline.Step{
		Name:  StepIssueGiftCertificates,
		Phase: pipeline.PhasePostCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			o := cc.Order()
			var issued []string
			for _, s := range o.ActiveShipments() {
				for _, it := range s.Items {
					if it.Kind != domain.ItemGiftCertificate {
						continue
					}
					for i := 0; i < it.Quantity; i++ {
						code, err := c.deps.GiftCertificates.Issue(ctx, o.ID, it)
						if err != nil {
							c.revokeAll(ctx, issued)
							return err
						}
						issued = append(issued, code)
					}
				}
			}
			o.GiftCertificates = append(o.GiftCertificates, issued...)
			return nil
		},
		Rollback: func(ctx context.Context, cc *pipeline.Context) error {
			o := cc.Order()
			c.revokeAll(ctx, o.GiftCertificates)
			o.GiftCertificates = nil
			return nil
		},
		OnOrderFailure: c.orderFailureHook,
	}
}

func (c *Catalog) revokeAll(ctx context.Context, codes []string) {
	for i := len(codes) - 1; i >= 0; i-- {
		if err := c.deps.GiftCertificates.Revoke(ctx, codes[i]); err != nil {
			c.deps.Logger.Error("revoke gift certificate", "code", codes[i], "error", err)
		}
	}
}

// assignCoupons 将本单使用的优惠券记到顾客名下
func (c *Catalog) assignCoupons() pipeline.Step {
	return pipeline.Step{
		Name:  StepAssignCoupons,
		Phase: pipeline.PhasePostCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			o := cc.Order()
			if len(o.Coupons) == 0 || o.CustomerID == "" {
				return nil
			}
			return c.deps.Coupons.Assign(ctx, o.CustomerID, o.Coupons)
		},
		Rollback: func(ctx context.Context, cc *pipeline.Context) error {
			o := cc.Order()
			if len(o.Coupons) == 0 || o.CustomerID == "" {
				return nil
			}
			return c.deps.Coupons.Unassign(ctx, o.CustomerID, o.Coupons)
		},
		OnOrderFailure: c.orderFailureHook,
	}
}

// savePostCaptureChanges 持久化 POST_CAPTURE 步骤对订单的修改（如签发的礼品卡）
func (c *Catalog) savePostCaptureChanges() pipeline.Step {
	return pipeline.Step{
		Name:  StepSavePostCaptureChanges,
		Phase: pipeline.PhasePostCapture,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			saved, err := c.deps.Orders.Update(ctx, cc.Order())
			if err != nil {
				return err
			}
			cc.SetOrder(saved)
			cc.MergeUnseenPayments(saved.Payments)
			return nil
		},
		OnOrderFailure: c.orderFailureHook,
	}
}
