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

package hold

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"checkout-platform/internal/checkout/domain"
	"checkout-platform/internal/checkout/pipeline"
	"checkout-platform/pkg/config"
	"checkout-platform/pkg/log"
)

// Strategy 挂起策略，无需挂起时返回 nil
type Strategy interface {
	Name() string
	Evaluate(ctx context.Context, cc *pipeline.Context) (*domain.OrderHold, error)
}

type funcStrategy struct {
	name string
	fn   func(ctx context.Context, cc *pipeline.Context) (*domain.OrderHold, error)
}

func (s funcStrategy) Name() string { return s.name }

func (s funcStrategy) Evaluate(ctx context.Context, cc *pipeline.Context) (*domain.OrderHold, error) {
	return s.fn(ctx, cc)
}

// StrategyFunc 把函数包装为 Strategy
func StrategyFunc(name string, fn func(ctx context.Context, cc *pipeline.Context) (*domain.OrderHold, error)) Strategy {
	return funcStrategy{name: name, fn: fn}
}

// HoldAll 开关打开时挂起所有订单
func HoldAll() Strategy {
	return StrategyFunc("hold_all_orders", func(ctx context.Context, cc *pipeline.Context) (*domain.OrderHold, error) {
		return &domain.OrderHold{
			Description:        "All orders are held for review",
			RequiredPermission: "ORDER_HOLD_RESOLVE_ALL",
		}, nil
	})
}

// HighValue 订单总额达到阈值时挂起
func HighValue(threshold decimal.Decimal) Strategy {
	return StrategyFunc("high_value", func(ctx context.Context, cc *pipeline.Context) (*domain.OrderHold, error) {
		o := cc.Order()
		if o == nil {
			return nil, fmt.Errorf("order not created")
		}
		if o.Total().LessThan(threshold) {
			return nil, nil
		}
		return &domain.OrderHold{
			Description:        fmt.Sprintf("Order total reaches high-value threshold %s", threshold.StringFixed(2)),
			RequiredPermission: "ORDER_HOLD_RESOLVE_HIGH_VALUE",
		}, nil
	})
}

// BlockedCustomers 顾客在黑名单中时挂起
func BlockedCustomers(ids ...string) Strategy {
	blocked := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		blocked[id] = struct{}{}
	}
	return StrategyFunc("blocked_customer", func(ctx context.Context, cc *pipeline.Context) (*domain.OrderHold, error) {
		if _, ok := blocked[cc.CustomerID()]; !ok {
			return nil, nil
		}
		return &domain.OrderHold{
			Description:        "Customer is blocked from automatic fulfillment",
			RequiredPermission: "ORDER_HOLD_RESOLVE_CUSTOMER",
		}, nil
	})
}

// FromConfig 按配置组装评估器
func FromConfig(cfg config.HoldConfig, opts ...Option) (*Evaluator, error) {
	policy, err := ParsePolicy(cfg.OnError)
	if err != nil {
		return nil, err
	}
	var strategies []Strategy
	if cfg.HoldAllOrders {
		strategies = append(strategies, HoldAll())
	}
	if cfg.HighValueThreshold != "" {
		threshold, err := decimal.NewFromString(cfg.HighValueThreshold)
		if err != nil {
			return nil, fmt.Errorf("invalid high_value_threshold %q: %w", cfg.HighValueThreshold, err)
		}
		strategies = append(strategies, HighValue(threshold))
	}
	if len(cfg.BlockedCustomers) > 0 {
		strategies = append(strategies, BlockedCustomers(cfg.BlockedCustomers...))
	}
	e := NewEvaluator(policy, nil, strategies...)
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Option 评估器可选项
type Option func(*Evaluator)

// WithLogger 设置日志
func WithLogger(l *log.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStrategies 追加配置之外的策略
func WithStrategies(strategies ...Strategy) Option {
	return func(e *Evaluator) {
		e.strategies = append(e.strategies, strategies...)
	}
}
