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
	"checkout-platform/pkg/log"
)

// FailOrder 将上下文中的订单置为 FAILED：已持久化的订单写回存储，未持久化的仅保留内存副本。
// 上下文中的全部支付记录随订单一并写入。无订单或已是 FAILED 时不做任何事。order-failed 事件尽力发布。
// 创建订单步骤的回滚与 POST_CAPTURE 的失败钩子都通过它完成状态迁移。
func FailOrder(ctx context.Context, d Deps, cc *pipeline.Context, reason string) error {
	o := cc.Order()
	if o == nil || o.Status == domain.OrderFailed {
		return nil
	}
	failed := o.Clone()
	failed.Status = domain.OrderFailed
	failed.Payments = cc.Payments()
	if d.Logger == nil {
		d.Logger = log.Nop()
	}
	logger := d.Logger.With("order_id", failed.ID, "reason", reason)

	if failed.Persisted() {
		saved, err := d.Orders.Update(ctx, failed)
		if err != nil {
			cc.SetOrder(failed)
			logger.Error("persist failed order", "error", err)
			return err
		}
		failed = saved
	}
	cc.SetOrder(failed)
	logger.Warn("order marked failed")

	evt := events.New(events.OrderFailed, failed.ID, failed.CartID, failed.CustomerID, string(failed.Status))
	evt.Attributes = map[string]string{"reason": reason}
	if err := d.Events.Publish(ctx, evt); err != nil {
		logger.Warn("publish order failed event", "error", err)
	}
	return nil
}
