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

// Package validation 购物车结算前校验，返回结构化的可展示消息。
package validation

import (
	"context"
	"fmt"

	"checkout-platform/internal/checkout/domain"
)

// Rule 单条校验规则，返回零或多条消息
type Rule func(cart *domain.Cart, session *domain.Session, storeCode string) []string

// RuleValidator 依次执行规则并汇总消息
type RuleValidator struct {
	rules []Rule
}

// NewRuleValidator 创建校验器；不传规则时使用 DefaultRules
func NewRuleValidator(rules ...Rule) *RuleValidator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &RuleValidator{rules: rules}
}

// Validate 返回全部校验消息；空表示通过
func (v *RuleValidator) Validate(ctx context.Context, cart *domain.Cart, session *domain.Session, storeCode string) ([]string, error) {
	if cart == nil {
		return []string{"cart is required"}, nil
	}
	var msgs []string
	for _, r := range v.rules {
		msgs = append(msgs, r(cart, session, storeCode)...)
	}
	return msgs, nil
}

// DefaultRules 默认规则：有会话、有商品、数量与价格合法、店铺一致
func DefaultRules() []Rule {
	return []Rule{RequireSession, RequireItems, ValidLineItems, MatchingStore}
}

// RequireSession 顾客会话必填
func RequireSession(cart *domain.Cart, session *domain.Session, storeCode string) []string {
	if session == nil || session.CustomerID == "" {
		return []string{"customer session is required"}
	}
	return nil
}

// RequireItems 至少一件商品
func RequireItems(cart *domain.Cart, session *domain.Session, storeCode string) []string {
	for _, s := range cart.Shipments {
		if len(s.Items) > 0 {
			return nil
		}
	}
	return []string{"cart is empty"}
}

// ValidLineItems 数量为正、单价非负
func ValidLineItems(cart *domain.Cart, session *domain.Session, storeCode string) []string {
	var msgs []string
	for _, s := range cart.Shipments {
		for _, it := range s.Items {
			if it.Quantity <= 0 {
				msgs = append(msgs, fmt.Sprintf("item %s: quantity must be positive", it.SKU))
			}
			if it.UnitPrice.IsNegative() {
				msgs = append(msgs, fmt.Sprintf("item %s: price must not be negative", it.SKU))
			}
		}
	}
	return msgs
}

// MatchingStore 购物车店铺与当前店铺一致（两者均非空时）
func MatchingStore(cart *domain.Cart, session *domain.Session, storeCode string) []string {
	if cart.StoreCode != "" && storeCode != "" && cart.StoreCode != storeCode {
		return []string{fmt.Sprintf("cart belongs to store %s", cart.StoreCode)}
	}
	return nil
}
