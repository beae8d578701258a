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

package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"checkout-platform/internal/checkout/domain"
)

// DeclineRule 返回 true 时内存网关拒绝该请求
type DeclineRule func(req TransactionRequest) bool

// DeclineType 拒绝指定类型（可选限定链）的交易
func DeclineType(t domain.TransactionType, chainKey string) DeclineRule {
	return func(req TransactionRequest) bool {
		return req.Type == t && (chainKey == "" || req.ChainKey == chainKey)
	}
}

// DeclinedInstrumentPrefix 以此前缀开头的支付工具总被拒绝（开发环境演示用）
const DeclinedInstrumentPrefix = "declined-"

// MemoryGateway 内存支付网关：校验因果数据并记录全部请求，供开发与测试使用
type MemoryGateway struct {
	mu       sync.Mutex
	caps     Capabilities
	rules    []DeclineRule
	requests []TransactionRequest
	// 已签发且未撤销的 authorization / capture
	authorizations map[string]bool
	captures       map[string]bool
}

// NewMemoryGateway 创建内存网关
func NewMemoryGateway(caps Capabilities, rules ...DeclineRule) *MemoryGateway {
	return &MemoryGateway{
		caps:           caps,
		rules:          rules,
		authorizations: make(map[string]bool),
		captures:       make(map[string]bool),
	}
}

// Capabilities 实现 Provider
func (g *MemoryGateway) Capabilities() Capabilities {
	return g.caps
}

// AddRule 追加拒绝规则
func (g *MemoryGateway) AddRule(rule DeclineRule) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = append(g.rules, rule)
}

// Submit 实现 Provider
func (g *MemoryGateway) Submit(ctx context.Context, req TransactionRequest) (TransactionResponse, error) {
	if err := ctx.Err(); err != nil {
		return TransactionResponse{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)

	if strings.HasPrefix(req.InstrumentID, DeclinedInstrumentPrefix) {
		return declined("instrument declined"), nil
	}
	for _, rule := range g.rules {
		if rule(req) {
			return declined("transaction declined"), nil
		}
	}

	auth := req.ProviderData[DataAuthorization]
	capture := req.ProviderData[DataCapture]
	switch req.Type {
	case domain.TxReserve:
		id := "auth_" + uuid.New().String()
		g.authorizations[id] = true
		return approved(domain.ProviderData{DataAuthorization: id}), nil
	case domain.TxModifyReserve:
		if !g.authorizations[auth] {
			return declined("unknown authorization"), nil
		}
		// Modify 作废旧授权并签发新授权
		delete(g.authorizations, auth)
		id := "auth_" + uuid.New().String()
		g.authorizations[id] = true
		return approved(domain.ProviderData{DataAuthorization: id}), nil
	case domain.TxCancelReserve:
		if !g.authorizations[auth] {
			return declined("unknown authorization"), nil
		}
		delete(g.authorizations, auth)
		return approved(domain.ProviderData{DataAuthorization: auth}), nil
	case domain.TxCharge:
		if auth != "" {
			if !g.authorizations[auth] {
				return declined("unknown authorization"), nil
			}
			delete(g.authorizations, auth)
		}
		id := "cap_" + uuid.New().String()
		g.captures[id] = true
		return approved(domain.ProviderData{DataCapture: id, DataAuthorization: auth}), nil
	case domain.TxReverseCharge:
		if !g.captures[capture] {
			return declined("unknown capture"), nil
		}
		delete(g.captures, capture)
		return approved(domain.ProviderData{DataCapture: capture}), nil
	case domain.TxCredit:
		if !g.captures[capture] {
			return declined("unknown capture"), nil
		}
		return approved(domain.ProviderData{DataCapture: capture, "credit_id": "cr_" + uuid.New().String()}), nil
	default:
		return declined("unknown transaction type"), nil
	}
}

// Requests 已收到的请求（按顺序）
func (g *MemoryGateway) Requests() []TransactionRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]TransactionRequest(nil), g.requests...)
}

// CountType 指定类型的请求数
func (g *MemoryGateway) CountType(t domain.TransactionType) int {
	n := 0
	for _, r := range g.Requests() {
		if r.Type == t {
			n++
		}
	}
	return n
}

// OpenAuthorizations 尚未撤销或扣款的授权数
func (g *MemoryGateway) OpenAuthorizations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.authorizations)
}

// OpenCaptures 尚未冲正的扣款数
func (g *MemoryGateway) OpenCaptures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.captures)
}

func approved(data domain.ProviderData) TransactionResponse {
	return TransactionResponse{Status: domain.PaymentApproved, ProviderData: data}
}

func declined(msg string) TransactionResponse {
	return TransactionResponse{Status: domain.PaymentFailed, Message: msg}
}
