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

// Package hold 订单挂起评估：并行语义的独立策略，结果取并集。
package hold

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"checkout-platform/internal/checkout/domain"
	"checkout-platform/internal/checkout/pipeline"
	"checkout-platform/pkg/log"
	"checkout-platform/pkg/metrics"
)

// ErrorPolicy 策略执行出错时的处理方式
type ErrorPolicy string

const (
	// PolicyHold 出错即挂起（默认）
	PolicyHold ErrorPolicy = "hold"
	// PolicyProceed 记录日志后忽略该策略
	PolicyProceed ErrorPolicy = "proceed"
	// PolicyFail 结算失败，返回 *EvaluationError
	PolicyFail ErrorPolicy = "fail"
)

// 策略出错时添加的通用挂起
const (
	EvaluationFailedDescription = "Hold evaluation failed; manual review required"
	EvaluationFailedPermission  = "ORDER_HOLD_RESOLVE"
)

// ParsePolicy 解析配置值，空值为 PolicyHold
func ParsePolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(s) {
	case "", PolicyHold:
		return PolicyHold, nil
	case PolicyProceed, PolicyFail:
		return ErrorPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown hold error policy %q", s)
	}
}

// EvaluationError 策略执行失败（PolicyFail 时返回）
type EvaluationError struct {
	Strategy string
	Err      error
}

// Error 实现 error 接口
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("hold strategy %s failed: %v", e.Strategy, e.Err)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *EvaluationError) Unwrap() error { return e.Err }

// CheckoutKind 归类为 HoldEvaluation
func (e *EvaluationError) CheckoutKind() pipeline.ErrorKind { return pipeline.KindHoldEvaluation }

// Evaluator 运行全部策略并合并结果
type Evaluator struct {
	strategies []Strategy
	policy     ErrorPolicy
	logger     *log.Logger
	now        func() time.Time
}

// NewEvaluator 创建评估器
func NewEvaluator(policy ErrorPolicy, logger *log.Logger, strategies ...Strategy) *Evaluator {
	if logger == nil {
		logger = log.Nop()
	}
	if policy == "" {
		policy = PolicyHold
	}
	return &Evaluator{strategies: strategies, policy: policy, logger: logger, now: time.Now}
}

// Evaluate 返回需挂起的集合；空集合表示放行。
// 换货订单不评估。每个策略独立执行，相同 (描述, 权限) 的挂起只保留一条，结果与策略顺序无关。
func (e *Evaluator) Evaluate(ctx context.Context, cc *pipeline.Context) ([]domain.OrderHold, error) {
	if cc.IsExchange() {
		return nil, nil
	}

	byKey := make(map[string]domain.OrderHold)
	add := func(h domain.OrderHold) {
		if _, ok := byKey[h.Key()]; !ok {
			byKey[h.Key()] = h
		}
	}
	var errs []error
	for _, s := range e.strategies {
		h, err := s.Evaluate(ctx, cc)
		if err != nil {
			e.logger.Warn("hold strategy failed", "strategy", s.Name(), "policy", e.policy, "error", err)
			switch e.policy {
			case PolicyProceed:
			case PolicyFail:
				errs = append(errs, &EvaluationError{Strategy: s.Name(), Err: err})
			default:
				add(domain.OrderHold{Description: EvaluationFailedDescription, RequiredPermission: EvaluationFailedPermission})
			}
			continue
		}
		if h != nil {
			add(*h)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(byKey) == 0 {
		return nil, nil
	}

	var orderID string
	if o := cc.Order(); o != nil {
		orderID = o.ID
	}
	holds := make([]domain.OrderHold, 0, len(byKey))
	for _, h := range byKey {
		h.ID = uuid.New().String()
		h.OrderID = orderID
		h.Status = domain.HoldActive
		h.CreatedAt = e.now()
		holds = append(holds, h)
	}
	sort.Slice(holds, func(i, j int) bool { return holds[i].Key() < holds[j].Key() })
	metrics.OrderHoldTotal.Add(float64(len(holds)))
	return holds, nil
}
