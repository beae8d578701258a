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
	"errors"
	"fmt"
	"strings"

	pkgerrors "checkout-platform/pkg/errors"
)

// ErrorKind 结算错误分类
type ErrorKind string

const (
	KindValidation     ErrorKind = "VALIDATION"
	KindPayment        ErrorKind = "PAYMENT"
	KindPersistence    ErrorKind = "PERSISTENCE"
	KindHoldEvaluation ErrorKind = "HOLD_EVALUATION"
	KindPostCapture    ErrorKind = "POST_CAPTURE"
	KindInternal       ErrorKind = "INTERNAL"
)

// CheckoutError 对外暴露的结算错误：保留原始 cause，附带可展示给顾客的消息
type CheckoutError struct {
	Kind     ErrorKind
	Phase    Phase
	Step     string
	Messages []string
	Err      error
}

// Error 实现 error 接口
func (e *CheckoutError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Checkout] %s 阶段错误 (%s)", e.Phase, e.Kind)
	if e.Step != "" {
		fmt.Fprintf(&b, " step=%s", e.Step)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap 实现 errors.Unwrap 接口
func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// NewCheckoutError 创建结算错误
func NewCheckoutError(kind ErrorKind, phase Phase, step string, err error) *CheckoutError {
	return &CheckoutError{Kind: kind, Phase: phase, Step: step, Err: err}
}

// IsCheckoutError 检查是否为结算错误
func IsCheckoutError(err error) bool {
	var ce *CheckoutError
	return errors.As(err, &ce)
}

// GetCheckoutError 获取结算错误
func GetCheckoutError(err error) (*CheckoutError, bool) {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ValidationFailure 购物车校验未通过，Messages 为结构化校验消息
type ValidationFailure struct {
	Messages []string
}

// Error 实现 error 接口
func (e *ValidationFailure) Error() string {
	return "购物车校验失败: " + strings.Join(e.Messages, "; ")
}

// CheckoutKind 归类为 Validation
func (e *ValidationFailure) CheckoutKind() ErrorKind { return KindValidation }

// DisplayMessages 可展示的消息
func (e *ValidationFailure) DisplayMessages() []string { return e.Messages }

// NewValidationFailure 创建校验失败
func NewValidationFailure(messages ...string) *ValidationFailure {
	return &ValidationFailure{Messages: messages}
}

// IsValidationFailure 检查是否为校验失败
func IsValidationFailure(err error) bool {
	var vf *ValidationFailure
	return errors.As(err, &vf)
}

// kinded 由协作方错误类型实现（如支付交易失败），声明自身分类
type kinded interface {
	CheckoutKind() ErrorKind
}

// displayable 携带可展示消息的错误
type displayable interface {
	DisplayMessages() []string
}

// Classify 将步骤错误包装为 CheckoutError；已是 CheckoutError 时原样返回
func Classify(phase Phase, step string, err error) *CheckoutError {
	if err == nil {
		return nil
	}
	if ce, ok := GetCheckoutError(err); ok {
		return ce
	}
	ce := NewCheckoutError(KindInternal, phase, step, err)
	var k kinded
	switch {
	case phase == PhasePostCapture:
		ce.Kind = KindPostCapture
	case errors.As(err, &k):
		ce.Kind = k.CheckoutKind()
	case pkgerrors.IsPersistence(err):
		ce.Kind = KindPersistence
	}
	var d displayable
	if errors.As(err, &d) {
		ce.Messages = d.DisplayMessages()
	}
	return ce
}
