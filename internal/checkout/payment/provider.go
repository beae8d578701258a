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

// Package payment 支付网关契约、补偿协调器与网关实现（内存 / HTTP）。
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"checkout-platform/internal/checkout/domain"
	"checkout-platform/internal/checkout/pipeline"
)

// 网关提供方数据中的约定 key
const (
	DataAuthorization = "authorization_id"
	DataCapture       = "capture_id"
)

var (
	// ErrDeclined 网关拒绝交易
	ErrDeclined = errors.New("payment declined")
	// ErrUnsupported 网关未声明该交易类型的能力
	ErrUnsupported = errors.New("transaction type not supported by gateway")
	// ErrMissingCausalData 补偿/下游操作缺少上游提供方数据
	ErrMissingCausalData = errors.New("missing causal provider data")
)

// TransactionRequest 提交给网关的交易请求
type TransactionRequest struct {
	ID           string                 `json:"id"` // 幂等键，同时作为支付记录 ID
	Type         domain.TransactionType `json:"type"`
	ChainKey     string                 `json:"chain_key"`
	Amount       decimal.Decimal        `json:"amount"`
	Currency     string                 `json:"currency"`
	InstrumentID string                 `json:"instrument_id"`
	// ProviderData 因果输入：上游 Reserve/Modify/Charge 返回的数据
	ProviderData domain.ProviderData `json:"provider_data,omitempty"`
}

// TransactionResponse 网关响应
type TransactionResponse struct {
	Status       domain.PaymentStatus `json:"status"`
	ProviderData domain.ProviderData  `json:"provider_data,omitempty"`
	Message      string               `json:"message,omitempty"`
}

// Provider 支付网关。拒绝以 Status=FAILED 返回；error 表示调用本身失败（超时、网络等）。
type Provider interface {
	Submit(ctx context.Context, req TransactionRequest) (TransactionResponse, error)
	Capabilities() Capabilities
}

// Capabilities 网关能力声明，由构造参数注入
type Capabilities struct {
	Reserve       bool
	ModifyReserve bool
	ReverseCharge bool
	Credit        bool
}

// FullCapabilities 支持全部交易类型
func FullCapabilities() Capabilities {
	return Capabilities{Reserve: true, ModifyReserve: true, ReverseCharge: true, Credit: true}
}

// Supports 是否支持交易类型；CHARGE 总是支持
func (c Capabilities) Supports(t domain.TransactionType) bool {
	switch t {
	case domain.TxReserve, domain.TxCancelReserve:
		return c.Reserve
	case domain.TxModifyReserve:
		return c.ModifyReserve
	case domain.TxReverseCharge:
		return c.ReverseCharge
	case domain.TxCredit:
		return c.Credit
	default:
		return true
	}
}

// TransactionError 网关拒绝或调用失败
type TransactionError struct {
	Type     domain.TransactionType
	ChainKey string
	Message  string
	Err      error
}

// Error 实现 error 接口
func (e *TransactionError) Error() string {
	msg := fmt.Sprintf("[Payment] %s chain=%s 失败", e.Type, e.ChainKey)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

// Unwrap 实现 errors.Unwrap 接口
func (e *TransactionError) Unwrap() error {
	return e.Err
}

// CheckoutKind 支付错误归类为 Payment
func (e *TransactionError) CheckoutKind() pipeline.ErrorKind {
	return pipeline.KindPayment
}

// DisplayMessages 可展示给顾客的消息
func (e *TransactionError) DisplayMessages() []string {
	if e.Message == "" {
		return []string{"payment could not be processed"}
	}
	return []string{e.Message}
}

// IsTransactionError 检查是否为支付交易错误
func IsTransactionError(err error) bool {
	var te *TransactionError
	return errors.As(err, &te)
}

// Reservation Reserve 或 Modify 的结果，是 Charge/Modify/Cancel 的必需输入
type Reservation struct {
	RecordID     string
	ChainKey     string
	InstrumentID string
	Amount       decimal.Decimal
	Currency     string
	Data         domain.ProviderData
}

// Charge 扣款结果，是 ReverseCharge/Credit 的必需输入
type Charge struct {
	RecordID     string
	ChainKey     string
	InstrumentID string
	Amount       decimal.Decimal
	Currency     string
	Data         domain.ProviderData
}

// ReservationFrom 从已批准的 RESERVE / MODIFY_RESERVE 记录提取预授权
func ReservationFrom(r *domain.PaymentRecord) (Reservation, error) {
	if !r.Approved() || (r.Type != domain.TxReserve && r.Type != domain.TxModifyReserve) {
		return Reservation{}, fmt.Errorf("%w: record is not an approved reservation", ErrMissingCausalData)
	}
	if r.ProviderData[DataAuthorization] == "" {
		return Reservation{}, fmt.Errorf("%w: %s", ErrMissingCausalData, DataAuthorization)
	}
	return Reservation{
		RecordID:     r.ID,
		ChainKey:     r.ChainKey,
		InstrumentID: r.InstrumentID,
		Amount:       r.Amount,
		Currency:     r.Currency,
		Data:         r.ProviderData,
	}, nil
}

// ChargeFrom 从已批准的 CHARGE 记录提取扣款
func ChargeFrom(r *domain.PaymentRecord) (Charge, error) {
	if !r.Approved() || r.Type != domain.TxCharge {
		return Charge{}, fmt.Errorf("%w: record is not an approved charge", ErrMissingCausalData)
	}
	if r.ProviderData[DataCapture] == "" {
		return Charge{}, fmt.Errorf("%w: %s", ErrMissingCausalData, DataCapture)
	}
	return Charge{
		RecordID:     r.ID,
		ChainKey:     r.ChainKey,
		InstrumentID: r.InstrumentID,
		Amount:       r.Amount,
		Currency:     r.Currency,
		Data:         r.ProviderData,
	}, nil
}
