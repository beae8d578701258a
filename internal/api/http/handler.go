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

package http

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"checkout-platform/internal/checkout/domain"
	"checkout-platform/internal/checkout/orchestrator"
	"checkout-platform/internal/checkout/pipeline"
	"checkout-platform/internal/storage/cartstore"
	pkgerrors "checkout-platform/pkg/errors"
	"checkout-platform/pkg/log"
	"checkout-platform/pkg/metrics"
)

// CheckoutRunner 执行结算
type CheckoutRunner interface {
	RunCheckout(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// Handler HTTP 处理器
type Handler struct {
	checkout CheckoutRunner
	carts    cartstore.Store
	logger   *log.Logger
}

// NewHandler 创建 HTTP 处理器；carts 为 nil 时只接受内联购物车
func NewHandler(checkout CheckoutRunner, carts cartstore.Store, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Handler{checkout: checkout, carts: carts, logger: logger}
}

// CheckoutRequest POST /api/checkout 请求体；cart 与 cart_id 二选一
type CheckoutRequest struct {
	CartID                  string                  `json:"cart_id,omitempty"`
	Cart                    *domain.Cart            `json:"cart,omitempty"`
	Tax                     *domain.TaxSnapshot     `json:"tax,omitempty"`
	Session                 *domain.Session         `json:"session"`
	PaymentTemplate         *domain.PaymentTemplate `json:"payment_template,omitempty"`
	IsExchange              bool                    `json:"is_exchange,omitempty"`
	AwaitExchangeCompletion bool                    `json:"await_exchange_completion,omitempty"`
	ExchangeID              string                  `json:"exchange_id,omitempty"`
}

// CheckoutResponse 结算结果
type CheckoutResponse struct {
	Order          *domain.Order           `json:"order,omitempty"`
	Payments       []*domain.PaymentRecord `json:"payments,omitempty"`
	Holds          []domain.OrderHold      `json:"holds,omitempty"`
	FinalizeErrors []string                `json:"finalize_errors,omitempty"`
}

// ErrorResponse 结算失败响应；order 为失败后的订单（如有）
type ErrorResponse struct {
	Error    string        `json:"error"`
	Kind     string        `json:"kind,omitempty"`
	Phase    string        `json:"phase,omitempty"`
	Step     string        `json:"step,omitempty"`
	Messages []string      `json:"messages,omitempty"`
	Order    *domain.Order `json:"order,omitempty"`
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "checkout-api",
	})
}

// Metrics Prometheus 文本格式指标
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		hlog.CtxErrorf(c, "write metrics: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to gather metrics"})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// Checkout 执行一次结算
// POST /api/checkout
func (h *Handler) Checkout(c context.Context, ctx *app.RequestContext) {
	var req CheckoutRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, ErrorResponse{Error: "invalid request"})
		return
	}

	cart := req.Cart
	if cart == nil {
		cartID := strings.TrimSpace(req.CartID)
		if cartID == "" {
			ctx.JSON(consts.StatusBadRequest, ErrorResponse{Error: "cart or cart_id is required"})
			return
		}
		if h.carts == nil {
			ctx.JSON(consts.StatusServiceUnavailable, ErrorResponse{Error: "cart store is not configured"})
			return
		}
		loaded, err := h.carts.Get(c, cartID)
		if err != nil {
			if pkgerrors.IsNotFound(err) {
				ctx.JSON(consts.StatusNotFound, ErrorResponse{Error: "cart not found"})
				return
			}
			h.logger.Error("load cart", "cart_id", cartID, "error", err)
			ctx.JSON(consts.StatusServiceUnavailable, ErrorResponse{Error: "failed to load cart"})
			return
		}
		cart = loaded
	}

	res, err := h.checkout.RunCheckout(c, orchestrator.Request{
		Cart:                    cart,
		Tax:                     req.Tax,
		Session:                 req.Session,
		PaymentTemplate:         req.PaymentTemplate,
		IsExchange:              req.IsExchange,
		AwaitExchangeCompletion: req.AwaitExchangeCompletion,
		ExchangeID:              req.ExchangeID,
	})
	if err != nil {
		h.writeError(ctx, res, err)
		return
	}

	resp := CheckoutResponse{Order: res.Order, Payments: res.Payments, Holds: res.Holds}
	for _, fe := range res.FinalizeErrors {
		resp.FinalizeErrors = append(resp.FinalizeErrors, fe.Error())
	}
	status := consts.StatusOK
	if res.Order != nil && res.Order.Status == domain.OrderOnHold {
		status = consts.StatusAccepted
	}
	ctx.JSON(status, resp)
}

func (h *Handler) writeError(ctx *app.RequestContext, res *orchestrator.Result, err error) {
	ce, ok := pipeline.GetCheckoutError(err)
	if !ok {
		h.logger.Error("checkout failed", "error", err)
		ctx.JSON(consts.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	body := ErrorResponse{
		Error:    ce.Error(),
		Kind:     string(ce.Kind),
		Phase:    string(ce.Phase),
		Step:     ce.Step,
		Messages: ce.Messages,
	}
	if res != nil {
		body.Order = res.Order
	}
	ctx.JSON(StatusForKind(ce.Kind), body)
}

// StatusForKind 结算错误分类对应的 HTTP 状态码
func StatusForKind(kind pipeline.ErrorKind) int {
	switch kind {
	case pipeline.KindValidation:
		return consts.StatusUnprocessableEntity
	case pipeline.KindPayment:
		return consts.StatusPaymentRequired
	case pipeline.KindPersistence:
		return consts.StatusServiceUnavailable
	default:
		return consts.StatusInternalServerError
	}
}
