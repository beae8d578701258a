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

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType 支付交易类型
type TransactionType string

const (
	TxReserve       TransactionType = "RESERVE"
	TxCharge        TransactionType = "CHARGE"
	TxCredit        TransactionType = "CREDIT"
	TxModifyReserve TransactionType = "MODIFY_RESERVE"
	TxCancelReserve TransactionType = "CANCEL_RESERVE"
	TxReverseCharge TransactionType = "REVERSE_CHARGE"
)

// PaymentStatus 支付结果
type PaymentStatus string

const (
	PaymentApproved PaymentStatus = "APPROVED"
	PaymentFailed   PaymentStatus = "FAILED"
)

// PaymentMethod 支付方式
type PaymentMethod string

const (
	MethodCard            PaymentMethod = "CARD"
	MethodGiftCertificate PaymentMethod = "GIFT_CERTIFICATE"
)

// ProviderData 支付网关返回的不透明数据，用于把正向操作与其补偿因果关联
type ProviderData map[string]string

// PaymentRecord 一次支付交易的不可变事实；补偿会新建记录而不是修改原记录
type PaymentRecord struct {
	ID           string          `json:"id"`
	ChainKey     string          `json:"chain_key"` // 同一预授权链（通常为 shipment ID）
	Type         TransactionType `json:"type"`
	Status       PaymentStatus   `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	InstrumentID string          `json:"instrument_id"`
	ProviderData ProviderData    `json:"provider_data,omitempty"`
	// ParentID 因果上游记录：Charge/Modify/Cancel 指向其使用的预授权，ReverseCharge/Credit 指向扣款
	ParentID  string    `json:"parent_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Approved 交易是否成功
func (r *PaymentRecord) Approved() bool {
	return r != nil && r.Status == PaymentApproved
}
