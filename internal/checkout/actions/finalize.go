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
	"checkout-platform/internal/events"
)

const (
	StepEmptyCart        = "empty_cart"
	StepRemoveCartOrder  = "remove_cart_order"
	StepNotifyCompletion = "notify_checkout_completed"
)

func (c *Catalog) emptyCart() pipeline.Step {
	return pipeline.Step{
		Name:  StepEmptyCart,
		Phase: pipeline.PhaseFinalize,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			return c.deps.Carts.EmptyAndDeactivate(ctx, cc.Cart().ID)
		},
	}
}

func (c *Catalog) removeCartOrder() pipeline.Step {
	return pipeline.Step{
		Name:  StepRemoveCartOrder,
		Phase: pipeline.PhaseFinalize,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			return c.deps.Carts.RemoveCartOrder(ctx, cc.Cart().ID)
		},
	}
}

// notifyCompletion 发布结算结束通知，携带订单最终状态
func (c *Catalog) notifyCompletion() pipeline.Step {
	return pipeline.Step{
		Name:  StepNotifyCompletion,
		Phase: pipeline.PhaseFinalize,
		Execute: func(ctx context.Context, cc *pipeline.Context) error {
			o := cc.Order()
			evt := events.New(events.CheckoutCompleted, o.ID, o.CartID, o.CustomerID, string(o.Status))
			evt.Attributes = map[string]string{
				"order_number": o.OrderNumber,
				"total":        o.Total().StringFixed(2),
			}
			return c.deps.Events.Publish(ctx, evt)
		},
	}
}

func onHoldEvent(o *domain.Order) events.Event {
	evt := events.New(events.OrderOnHold, o.ID, o.CartID, o.CustomerID, string(o.Status))
	evt.Attributes = make(map[string]string, len(o.Holds))
	for _, h := range o.Holds {
		evt.Attributes[h.RequiredPermission] = h.Description
	}
	return evt
}

func (c *Catalog) publishBestEffort(ctx context.Context, evt events.Event) {
	if err := c.deps.Events.Publish(ctx, evt); err != nil {
		c.deps.Logger.Warn("publish event", "type", evt.Type, "order_id", evt.OrderID, "error", err)
	}
}
