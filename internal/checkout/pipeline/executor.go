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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "checkout-platform/pkg/errors"
	"checkout-platform/pkg/log"
	"checkout-platform/pkg/metrics"
	"checkout-platform/pkg/tracing"
)

// Executor 按列表顺序执行步骤，失败时对已执行步骤严格逆序回滚
type Executor struct {
	logger *log.Logger
}

// NewExecutor 创建执行器；logger 为 nil 时丢弃日志
func NewExecutor(logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Executor{logger: logger}
}

// RunReversible 依次执行 steps；第 i 步失败时回滚第 i-1..0 步（每步一次），
// 回滚失败只记录日志，返回的始终是原始错误。
func (e *Executor) RunReversible(ctx context.Context, steps []Step, cc *Context) error {
	executed, _, err := e.run(ctx, steps, cc)
	if err != nil {
		e.Unwind(ctx, executed, cc, err)
	}
	return err
}

// RunPhase 同 RunReversible，失败时返回按阶段与步骤分类后的 CheckoutError
func (e *Executor) RunPhase(ctx context.Context, phase Phase, steps []Step, cc *Context) *CheckoutError {
	start := time.Now()
	ctx, span := tracing.StartPhaseSpan(ctx, string(phase))
	executed, failed, err := e.run(ctx, steps, cc)
	if err != nil {
		e.Unwind(ctx, executed, cc, err)
	}
	tracing.EndSpan(span, err)
	metrics.PhaseDuration.WithLabelValues(string(phase)).Observe(time.Since(start).Seconds())
	if err != nil {
		return Classify(phase, failed, err)
	}
	return nil
}

// RunPostCapture 执行 POST_CAPTURE 步骤；失败时先做同阶段回滚，再依次调用失败步骤
// 与已执行步骤（逆序）的 OnOrderFailure 钩子。已结算的支付不会被冲正。
func (e *Executor) RunPostCapture(ctx context.Context, steps []Step, cc *Context) *CheckoutError {
	start := time.Now()
	ctx, span := tracing.StartPhaseSpan(ctx, string(PhasePostCapture))
	executed, failed, err := e.run(ctx, steps, cc)
	if err != nil {
		e.Unwind(ctx, executed, cc, err)
		hooks := make([]Step, 0, len(executed)+1)
		for _, s := range steps {
			if s.Name == failed {
				hooks = append(hooks, s)
				break
			}
		}
		for i := len(executed) - 1; i >= 0; i-- {
			hooks = append(hooks, executed[i])
		}
		for _, s := range hooks {
			if s.OnOrderFailure == nil {
				continue
			}
			if herr := e.call(ctx, s, "order_failure", s.OnOrderFailure, cc); herr != nil {
				e.logger.Error("order failure hook failed",
					"phase", s.Phase, "step", s.Name, "error", herr, "cause", err)
			}
		}
	}
	tracing.EndSpan(span, err)
	metrics.PhaseDuration.WithLabelValues(string(PhasePostCapture)).Observe(time.Since(start).Seconds())
	if err != nil {
		return Classify(PhasePostCapture, failed, err)
	}
	return nil
}

// RunFinalize 执行全部 FINALIZE 步骤，不中断、不回滚，收集各步失败
func (e *Executor) RunFinalize(ctx context.Context, steps []Step, cc *Context) []error {
	start := time.Now()
	ctx, span := tracing.StartPhaseSpan(ctx, string(PhaseFinalize))
	var errs []error
	for _, s := range steps {
		if err := e.call(ctx, s, "execute", s.Execute, cc); err != nil {
			metrics.StepFailureTotal.WithLabelValues(string(s.Phase), s.Name).Inc()
			e.logger.Warn("finalize step failed", "step", s.Name, "error", err)
			errs = append(errs, pkgerrors.Wrap(err, s.Name))
		}
	}
	tracing.EndSpan(span, errors.Join(errs...))
	metrics.PhaseDuration.WithLabelValues(string(PhaseFinalize)).Observe(time.Since(start).Seconds())
	return errs
}

// Unwind 对 executed 严格逆序调用 Rollback。无 Rollback 的步骤跳过；
// 上下文已 Finalized 时 PRE_CAPTURE/CAPTURE 步骤不再回滚。
func (e *Executor) Unwind(ctx context.Context, executed []Step, cc *Context, cause error) {
	for i := len(executed) - 1; i >= 0; i-- {
		s := executed[i]
		if !s.Reversible() {
			continue
		}
		if cc.Finalized() && s.Phase.settled() {
			e.logger.Info("skip rollback of finalized checkout", "phase", s.Phase, "step", s.Name)
			continue
		}
		if err := e.call(ctx, s, "rollback", s.Rollback, cc); err != nil {
			metrics.RollbackTotal.WithLabelValues(s.Name, "error").Inc()
			e.logger.Error("rollback failed",
				"phase", s.Phase, "step", s.Name, "error", err, "cause", cause)
			continue
		}
		metrics.RollbackTotal.WithLabelValues(s.Name, "ok").Inc()
	}
}

// run 顺序执行，返回已成功的步骤、失败步骤名与错误
func (e *Executor) run(ctx context.Context, steps []Step, cc *Context) ([]Step, string, error) {
	executed := make([]Step, 0, len(steps))
	for _, s := range steps {
		if s.Execute == nil {
			executed = append(executed, s)
			continue
		}
		if err := e.call(ctx, s, "execute", s.Execute, cc); err != nil {
			metrics.StepFailureTotal.WithLabelValues(string(s.Phase), s.Name).Inc()
			e.logger.Warn("checkout step failed", "phase", s.Phase, "step", s.Name, "error", err)
			return executed, s.Name, err
		}
		executed = append(executed, s)
	}
	return executed, "", nil
}

// call 在 span 内调用 fn；panic 转为错误
func (e *Executor) call(ctx context.Context, s Step, op string, fn ActionFunc, cc *Context) (err error) {
	ctx, span := tracing.StartStepSpan(ctx, string(s.Phase), s.Name, op)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s %s panic: %v", s.Name, op, r)
		}
		tracing.EndSpan(span, err)
	}()
	return fn(ctx, cc)
}
