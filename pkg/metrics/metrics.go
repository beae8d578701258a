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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		CheckoutTotal, PhaseDuration, StepFailureTotal,
		RollbackTotal, PaymentTransactionTotal, OrderHoldTotal,
	)
}

// CheckoutTotal 结算次数（按结果）
var CheckoutTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "checkout_total",
		Help: "结算次数（按结果）",
	},
	[]string{"outcome"}, // completed | in_progress | awaiting_exchange | on_hold | failed
)

// PhaseDuration 各阶段耗时（秒）
var PhaseDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "checkout_phase_duration_seconds",
		Help:    "结算阶段耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"phase"},
)

// StepFailureTotal 步骤失败次数
var StepFailureTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "checkout_step_failures_total",
		Help: "结算步骤失败次数",
	},
	[]string{"phase", "step"},
)

// RollbackTotal 回滚次数（按结果）
var RollbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "checkout_rollbacks_total",
		Help: "步骤回滚次数",
	},
	[]string{"step", "result"}, // ok | error
)

// PaymentTransactionTotal 支付交易次数（按类型与状态）
var PaymentTransactionTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "checkout_payment_transactions_total",
		Help: "支付交易次数",
	},
	[]string{"type", "status"},
)

// OrderHoldTotal 产生的订单挂起数
var OrderHoldTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "checkout_order_holds_total",
		Help: "结算产生的订单挂起数",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
