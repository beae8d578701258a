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

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "checkout-platform"

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartCheckoutSpan 开始一次结算的根 span
func StartCheckoutSpan(ctx context.Context, cartID string, customerID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "checkout.run",
		trace.WithAttributes(
			attribute.String("cart.id", cartID),
			attribute.String("customer.id", customerID),
		),
	)
}

// StartPhaseSpan 开始阶段 span（pre_capture / capture / ...）
func StartPhaseSpan(ctx context.Context, phase string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "checkout.phase",
		trace.WithAttributes(attribute.String("checkout.phase", phase)),
	)
}

// StartStepSpan 开始步骤 span；op 为 execute | rollback | order_failure
func StartStepSpan(ctx context.Context, phase string, step string, op string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "checkout.step",
		trace.WithAttributes(
			attribute.String("checkout.phase", phase),
			attribute.String("checkout.step", step),
			attribute.String("checkout.op", op),
		),
	)
}

// StartPaymentSpan 开始支付网关调用 span
func StartPaymentSpan(ctx context.Context, txType string, chainKey string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "payment.submit",
		trace.WithAttributes(
			attribute.String("payment.type", txType),
			attribute.String("payment.chain", chainKey),
		),
	)
}

// EndSpan 结束 span，err 非空时记录错误状态
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
