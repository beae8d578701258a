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

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"checkout-platform/internal/checkout/actions"
	"checkout-platform/internal/checkout/hold"
	"checkout-platform/internal/checkout/orchestrator"
	"checkout-platform/internal/checkout/payment"
	"checkout-platform/internal/events"
	"checkout-platform/internal/services/giftcert"
	"checkout-platform/internal/services/inventory"
	"checkout-platform/internal/services/promotion"
	"checkout-platform/internal/services/tax"
	"checkout-platform/internal/services/validation"
	"checkout-platform/internal/storage/cartstore"
	"checkout-platform/internal/storage/orderstore"
	"checkout-platform/pkg/config"
	"checkout-platform/pkg/log"
	"checkout-platform/pkg/secrets"
	"checkout-platform/pkg/tracing"
)

// Bootstrap 统一初始化：按配置创建存储、网关、事件发布与结算服务，供 cmd 复用
type Bootstrap struct {
	Config   *config.Config
	Logger   *log.Logger
	Orders   orderstore.Store
	Carts    cartstore.Store
	Events   events.Publisher
	Gateway  payment.Provider
	Checkout *orchestrator.Service

	tracerProvider *sdktrace.TracerProvider
	closers        []func() error
}

// NewBootstrap 根据配置创建 Bootstrap；cfg 为 nil 时全部使用内存实现
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	b := &Bootstrap{Config: cfg, Logger: logger}

	if err := b.init(ctx); err != nil {
		_ = b.Close(ctx)
		return nil, err
	}
	return b, nil
}

func (b *Bootstrap) init(ctx context.Context) error {
	cfg := b.Config

	if t := cfg.Monitoring.Tracing; t.Enable && t.Provider == "otlp" {
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    serviceName(t),
			ExportEndpoint: t.ExportEndpoint,
			Insecure:       t.Insecure,
		})
		if err != nil {
			return fmt.Errorf("初始化链路追踪失败: %w", err)
		}
		b.tracerProvider = tp
	}

	orders, closeOrders, err := newOrderStore(ctx, cfg.Storage.Order)
	if err != nil {
		return fmt.Errorf("初始化订单存储失败: %w", err)
	}
	b.Orders = orders
	b.addCloser(closeOrders)

	carts, closeCarts, err := newCartStore(ctx, cfg.Storage.Cart)
	if err != nil {
		return fmt.Errorf("初始化购物车存储失败: %w", err)
	}
	b.Carts = carts
	b.addCloser(closeCarts)

	publisher, closePublisher, err := newPublisher(ctx, cfg.Events)
	if err != nil {
		return fmt.Errorf("初始化事件发布失败: %w", err)
	}
	b.Events = publisher
	b.addCloser(closePublisher)

	secretStore, err := secrets.NewStore(cfg.Secrets)
	if err != nil {
		return fmt.Errorf("初始化 secret store 失败: %w", err)
	}
	gateway, err := newGateway(ctx, cfg.Payment, secretStore)
	if err != nil {
		return fmt.Errorf("初始化支付网关失败: %w", err)
	}
	b.Gateway = gateway

	evaluator, err := hold.FromConfig(cfg.Checkout.Hold, hold.WithLogger(b.Logger))
	if err != nil {
		return fmt.Errorf("初始化挂起策略失败: %w", err)
	}

	settings, err := newSettings(cfg.Checkout)
	if err != nil {
		return err
	}
	catalog := actions.NewCatalog(actions.Deps{
		Orders:           orders,
		Carts:            carts,
		Tax:              tax.NewMemoryEngine(),
		Validator:        validation.NewRuleValidator(),
		Inventory:        inventory.NewMemoryInventory(nil),
		Events:           publisher,
		Coupons:          promotion.NewMemoryCoupons(nil),
		GiftCertificates: giftcert.NewMemoryService(nil),
		Payments:         payment.NewCoordinator(gateway, b.Logger),
		Settings:         settings,
		Logger:           b.Logger,
	})
	b.Checkout = orchestrator.NewService(catalog, evaluator, b.Logger)

	b.Logger.Info("bootstrap ready",
		"order_store", orDefault(cfg.Storage.Order.Type, "memory"),
		"cart_store", orDefault(cfg.Storage.Cart.Type, "memory"),
		"events", orDefault(cfg.Events.Type, "memory"),
		"gateway", orDefault(cfg.Payment.Gateway, "memory"),
		"hold_on_error", orDefault(cfg.Checkout.Hold.OnError, string(hold.PolicyHold)),
	)
	return nil
}

func newSettings(cfg config.CheckoutConfig) (actions.Settings, error) {
	s := actions.Settings{
		StoreCode:         cfg.StoreCode,
		Currency:          orDefault(cfg.Currency, "USD"),
		CreditCheckAmount: decimal.RequireFromString("1.00"),
	}
	if cfg.CreditCheckAmount != "" {
		amt, err := decimal.NewFromString(cfg.CreditCheckAmount)
		if err != nil {
			return s, fmt.Errorf("invalid credit_check_amount %q: %w", cfg.CreditCheckAmount, err)
		}
		if !amt.IsPositive() {
			return s, fmt.Errorf("credit_check_amount must be positive, got %s", cfg.CreditCheckAmount)
		}
		s.CreditCheckAmount = amt
	}
	return s, nil
}

func (b *Bootstrap) addCloser(fn func() error) {
	if fn != nil {
		b.closers = append(b.closers, fn)
	}
}

// Close 逆序释放连接等资源
func (b *Bootstrap) Close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	if b.tracerProvider != nil {
		if err := b.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		b.tracerProvider = nil
	}
	return errors.Join(errs...)
}

func serviceName(t config.TracingConfig) string {
	return orDefault(t.ServiceName, "checkout-api")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
