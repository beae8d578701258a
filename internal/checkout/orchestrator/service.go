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

// Package orchestrator 按 PRE_CAPTURE → HOLD_EVALUATION → CAPTURE → POST_CAPTURE → FINALIZE 编排一次结算。
package orchestrator

import (
	"context"

	"checkout-platform/internal/checkout/actions"
	"checkout-platform/internal/checkout/domain"
	"checkout-platform/internal/checkout/pipeline"
	"checkout-platform/pkg/log"
	"checkout-platform/pkg/metrics"
	"checkout-platform/pkg/tracing"
)

// HoldEvaluator 挂起评估
type HoldEvaluator interface {
	Evaluate(ctx context.Context, cc *pipeline.Context) ([]domain.OrderHold, error)
}

// Request 结算请求
type Request struct {
	Cart                    *domain.Cart
	Tax                     *domain.TaxSnapshot
	Session                 *domain.Session
	PaymentTemplate         *domain.PaymentTemplate
	IsExchange              bool
	AwaitExchangeCompletion bool
	ExchangeID              string
}

// Result 结算结果。失败时 Order 为失败后的订单（订单创建失败时为 nil）。
type Result struct {
	Order          *domain.Order
	Payments       []*domain.PaymentRecord
	Holds          []domain.OrderHold
	FinalizeErrors []error

	cc *pipeline.Context
}

// Service 结算编排
type Service struct {
	catalog   *actions.Catalog
	evaluator HoldEvaluator
	executor  *pipeline.Executor
	logger    *log.Logger
}

// NewService 创建结算服务
func NewService(catalog *actions.Catalog, evaluator HoldEvaluator, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		catalog:   catalog,
		evaluator: evaluator,
		executor:  pipeline.NewExecutor(logger),
		logger:    logger,
	}
}

// RunCheckout 执行一次结算。失败时返回 *pipeline.CheckoutError，同时返回反映失败后状态的 Result。
//   - PRE_CAPTURE 失败：仅回滚 PRE_CAPTURE
//   - 有挂起：订单 ON_HOLD，跳过 CAPTURE 与 POST_CAPTURE
//   - CAPTURE 失败：回滚 CAPTURE 后，另行回滚已完成的 PRE_CAPTURE。订单经创建步骤的回滚
//     置为 FAILED，优惠券计数等 PRE_CAPTURE 副作用随之撤销；调用方无需再调用 UnwindPreCapture
//   - 挂起评估或挂起步骤失败：同样回滚 PRE_CAPTURE
//   - POST_CAPTURE 失败：同阶段回滚并将订单置为 FAILED，不冲正已结算支付
//
// FINALIZE 在成功、挂起与 POST_CAPTURE 失败后执行，其失败只记录在 Result.FinalizeErrors。
func (s *Service) RunCheckout(ctx context.Context, req Request) (*Result, error) {
	if req.Cart == nil {
		err := pipeline.NewValidationFailure("cart is required")
		return &Result{}, pipeline.Classify(pipeline.PhasePreCapture, "", err)
	}
	cc := pipeline.NewContext(pipeline.Input{
		Cart:                    req.Cart,
		Tax:                     req.Tax,
		Session:                 req.Session,
		PaymentTemplate:         req.PaymentTemplate,
		IsExchange:              req.IsExchange,
		AwaitExchangeCompletion: req.AwaitExchangeCompletion,
		ExchangeID:              req.ExchangeID,
	})
	ctx, span := tracing.StartCheckoutSpan(ctx, req.Cart.ID, cc.CustomerID())
	logger := s.logger.With("cart_id", req.Cart.ID, "customer_id", cc.CustomerID())

	res, err := s.run(ctx, cc, logger)
	tracing.EndSpan(span, err)
	return res, err
}

func (s *Service) run(ctx context.Context, cc *pipeline.Context, logger *log.Logger) (*Result, error) {
	cat := s.catalog

	if ce := s.executor.RunPhase(ctx, pipeline.PhasePreCapture, cat.PreCapture, cc); ce != nil {
		return s.fail(cc, logger, ce)
	}

	holds, err := s.evaluator.Evaluate(ctx, cc)
	if err != nil {
		ce := pipeline.Classify(pipeline.PhaseHoldEvaluation, "evaluate_holds", err)
		if ce.Kind == pipeline.KindInternal {
			ce.Kind = pipeline.KindHoldEvaluation
		}
		s.executor.Unwind(ctx, cat.PreCapture, cc, err)
		return s.fail(cc, logger, ce)
	}
	if len(holds) > 0 {
		cc.SetHolds(holds)
		if ce := s.executor.RunPhase(ctx, pipeline.PhaseHoldEvaluation, cat.Hold, cc); ce != nil {
			s.executor.Unwind(ctx, cat.PreCapture, cc, ce.Err)
			return s.fail(cc, logger, ce)
		}
		res := s.finalize(ctx, cc)
		metrics.CheckoutTotal.WithLabelValues("on_hold").Inc()
		logger.Info("checkout held", "order_id", cc.Order().ID, "holds", len(holds))
		return res, nil
	}

	if ce := s.executor.RunPhase(ctx, pipeline.PhaseCapture, cat.Capture, cc); ce != nil {
		s.executor.Unwind(ctx, cat.PreCapture, cc, ce.Err)
		return s.fail(cc, logger, ce)
	}
	cc.MarkFinalized()

	postErr := s.executor.RunPostCapture(ctx, cat.PostCapture, cc)
	res := s.finalize(ctx, cc)
	if postErr != nil {
		metrics.CheckoutTotal.WithLabelValues("failed").Inc()
		logger.Error("post-capture failed; captured payments require reconciliation",
			"order_id", res.Order.ID, "step", postErr.Step, "error", postErr.Err)
		return res, postErr
	}
	metrics.CheckoutTotal.WithLabelValues(outcome(res.Order)).Inc()
	logger.Info("checkout completed", "order_id", res.Order.ID, "status", res.Order.Status)
	return res, nil
}

func (s *Service) finalize(ctx context.Context, cc *pipeline.Context) *Result {
	res := resultOf(cc)
	res.FinalizeErrors = s.executor.RunFinalize(ctx, s.catalog.Finalize, cc)
	return res
}

func (s *Service) fail(cc *pipeline.Context, logger *log.Logger, ce *pipeline.CheckoutError) (*Result, error) {
	metrics.CheckoutTotal.WithLabelValues("failed").Inc()
	logger.Warn("checkout failed", "kind", ce.Kind, "phase", ce.Phase, "step", ce.Step, "error", ce.Err)
	return resultOf(cc), ce
}

func resultOf(cc *pipeline.Context) *Result {
	return &Result{
		Order:    cc.Order(),
		Payments: cc.Payments(),
		Holds:    cc.Holds(),
		cc:       cc,
	}
}

func outcome(o *domain.Order) string {
	switch o.Status {
	case domain.OrderCompleted:
		return "completed"
	case domain.OrderAwaitingExchange:
		return "awaiting_exchange"
	default:
		return "in_progress"
	}
}

// UnwindPreCapture 对 res 对应的结算再次执行 PRE_CAPTURE 回滚，用于运维侧补偿重放。
// 结算已越过 CAPTURE 时不产生任何影响。
func (s *Service) UnwindPreCapture(ctx context.Context, res *Result, cause error) {
	if res == nil || res.cc == nil {
		return
	}
	s.executor.Unwind(ctx, s.catalog.PreCapture, res.cc, cause)
	res.Order = res.cc.Order()
	res.Payments = res.cc.Payments()
}
