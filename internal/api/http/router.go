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
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"checkout-platform/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler       *Handler
	middleware    *middleware.Middleware
	enableMetrics bool
}

// NewRouter 创建 HTTP 路由器
func NewRouter(handler *Handler, middleware *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: middleware, enableMetrics: true}
}

// SetMetricsEnabled 是否暴露 /metrics
func (r *Router) SetMetricsEnabled(enabled bool) {
	r.enableMetrics = enabled
}

// Build 创建 Hertz 实例并注册路由；opts 用于追加 tracer 等服务端选项
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(opts...)
	h.Use(r.middleware.AccessLog(), r.middleware.CORS())

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.POST("/checkout", r.handler.Checkout)

	if r.enableMetrics {
		h.GET("/metrics", r.handler.Metrics)
	}
	return h
}
