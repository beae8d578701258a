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
	"checkout-platform/internal/checkout/pipeline"
	"checkout-platform/pkg/log"
)

// Catalog 各阶段的有序步骤列表。列表顺序即执行顺序，失败时按逆序回滚。
type Catalog struct {
	PreCapture  []pipeline.Step
	Hold        []pipeline.Step
	Capture     []pipeline.Step
	PostCapture []pipeline.Step
	Finalize    []pipeline.Step

	deps Deps
}

// NewCatalog 用依赖组装默认步骤
func NewCatalog(deps Deps) *Catalog {
	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}
	c := &Catalog{deps: deps}
	c.PreCapture = []pipeline.Step{
		c.validateCart(),
		c.checkShipping(),
		c.checkInventory(),
		c.createOrder(),
		c.linkCartOrder(),
		c.publishOrderCreated(),
		c.populateTemplatePayments(),
		c.updateCouponUsage(),
		c.verifyGiftCertificates(),
	}
	c.Hold = []pipeline.Step{
		c.holdOrder(),
	}
	c.Capture = []pipeline.Step{
		c.authorizePayments(),
		c.captureElectronic(),
		c.commitTax(),
		c.persistOrder(),
	}
	c.PostCapture = []pipeline.Step{
		c.issueGiftCertificates(),
		c.assignCoupons(),
		c.savePostCaptureChanges(),
	}
	c.Finalize = []pipeline.Step{
		c.emptyCart(),
		c.removeCartOrder(),
		c.notifyCompletion(),
	}
	return c
}

// Deps 组装时使用的依赖
func (c *Catalog) Deps() Deps {
	return c.deps
}
