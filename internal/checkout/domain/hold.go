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

import "time"

// HoldStatus 挂起状态
type HoldStatus string

const (
	HoldActive   HoldStatus = "ACTIVE"
	HoldResolved HoldStatus = "RESOLVED"
)

// OrderHold 暂停履约的挂起记录，由运营人员或自动流程解除
type OrderHold struct {
	ID                 string     `json:"id"`
	OrderID            string     `json:"order_id"`
	Description        string     `json:"description"`
	RequiredPermission string     `json:"required_permission"`
	Status             HoldStatus `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Key 挂起的身份：描述 + 所需权限，多个策略返回相同 key 时合并为一条
func (h OrderHold) Key() string {
	return h.Description + "\x00" + h.RequiredPermission
}

// TaxDocument 单个发货单已计算的税单；提交后在捕获完成前可撤销
type TaxDocument struct {
	ID           string `json:"id"`
	ShipmentID   string `json:"shipment_id"`
	Jurisdiction string `json:"jurisdiction"`
	Amount       string `json:"amount"`
}
