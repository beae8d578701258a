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
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"checkout-platform/internal/checkout/domain"
)

// HTTPGatewayConfig 远程支付网关配置
type HTTPGatewayConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	RetryCount   int
	Limit        LimitConfig
	Capabilities Capabilities
}

// HTTPGateway 通过 REST 调用外部支付服务：POST {base}/v1/transactions。
// 请求带 Idempotency-Key（交易 ID），因此网络错误与 5xx 可安全重试。
type HTTPGateway struct {
	client  *resty.Client
	limiter *Limiter
	caps    Capabilities
}

type gatewayErrorBody struct {
	Message string `json:"message"`
}

// NewHTTPGateway 创建 HTTP 网关
func NewHTTPGateway(cfg HTTPGatewayConfig) (*HTTPGateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("payment gateway base_url 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/"))
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(cfg.RetryCount)
	client.SetRetryWaitTime(200 * time.Millisecond)
	client.SetRetryMaxWaitTime(2 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= http.StatusInternalServerError
	})
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &HTTPGateway{
		client:  client,
		limiter: NewLimiter(cfg.Limit),
		caps:    cfg.Capabilities,
	}, nil
}

// Capabilities 实现 Provider
func (g *HTTPGateway) Capabilities() Capabilities {
	return g.caps
}

// Submit 实现 Provider。402/422 视为拒绝；其余非 2xx 为调用失败。
func (g *HTTPGateway) Submit(ctx context.Context, req TransactionRequest) (TransactionResponse, error) {
	if err := g.limiter.Wait(ctx, req.Type); err != nil {
		return TransactionResponse{}, err
	}
	defer g.limiter.Release(req.Type)

	var result TransactionResponse
	var errBody gatewayErrorBody
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", req.ID).
		SetBody(req).
		SetResult(&result).
		SetError(&errBody).
		Post("/v1/transactions")
	if err != nil {
		return TransactionResponse{}, fmt.Errorf("调用支付网关失败: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		if result.Status == "" {
			result.Status = domain.PaymentApproved
		}
		return result, nil
	case http.StatusPaymentRequired, http.StatusUnprocessableEntity:
		msg := errBody.Message
		if msg == "" {
			msg = resp.String()
		}
		return TransactionResponse{Status: domain.PaymentFailed, Message: msg}, nil
	default:
		return TransactionResponse{}, fmt.Errorf("支付网关返回错误: %d %s", resp.StatusCode(), resp.String())
	}
}
