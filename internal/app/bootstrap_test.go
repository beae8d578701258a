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
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-platform/internal/checkout/domain"
	"checkout-platform/internal/checkout/orchestrator"
	"checkout-platform/internal/checkout/payment"
	"checkout-platform/pkg/config"
	"checkout-platform/pkg/secrets"
)

func TestNewBootstrap_MemoryDefaults(t *testing.T) {
	ctx := context.Background()
	b, err := NewBootstrap(ctx, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close(ctx)) }()

	require.NotNil(t, b.Checkout)
	res, err := b.Checkout.RunCheckout(ctx, orchestrator.Request{
		Cart: &domain.Cart{
			ID: "cart-1",
			Shipments: []domain.CartShipment{{
				ID:    "e1",
				Type:  domain.ShipmentElectronic,
				Items: []domain.LineItem{{SKU: "ebook", Kind: domain.ItemDigital, Quantity: 1, UnitPrice: decimal.NewFromInt(12)}},
			}},
		},
		Session:         &domain.Session{CustomerID: "cust-1"},
		PaymentTemplate: &domain.PaymentTemplate{InstrumentID: "card-1", Method: domain.MethodCard},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, res.Order.Status)
	assert.Equal(t, "USD", res.Order.Currency)

	stored, err := b.Orders.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, stored.Status)
}

func TestNewBootstrap_HoldAllOrders(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{}
	cfg.Checkout.Hold.HoldAllOrders = true
	b, err := NewBootstrap(ctx, cfg)
	require.NoError(t, err)

	res, err := b.Checkout.RunCheckout(ctx, orchestrator.Request{
		Cart: &domain.Cart{
			ID: "cart-1",
			Shipments: []domain.CartShipment{{
				ID:    "e1",
				Type:  domain.ShipmentElectronic,
				Items: []domain.LineItem{{SKU: "ebook", Kind: domain.ItemDigital, Quantity: 1, UnitPrice: decimal.NewFromInt(12)}},
			}},
		},
		Session:         &domain.Session{CustomerID: "cust-1"},
		PaymentTemplate: &domain.PaymentTemplate{InstrumentID: "card-1", Method: domain.MethodCard},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderOnHold, res.Order.Status)
}

func TestNewBootstrap_InvalidConfig(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"order store", func(c *config.Config) { c.Storage.Order.Type = "mongo" }},
		{"postgres without dsn", func(c *config.Config) { c.Storage.Order.Type = "postgres" }},
		{"cart store", func(c *config.Config) { c.Storage.Cart.Type = "etcd" }},
		{"events", func(c *config.Config) { c.Events.Type = "kafka" }},
		{"gateway", func(c *config.Config) { c.Payment.Gateway = "carrier-pigeon" }},
		{"http gateway without base url", func(c *config.Config) { c.Payment.Gateway = "http" }},
		{"secrets", func(c *config.Config) { c.Secrets.Provider = "keychain" }},
		{"hold policy", func(c *config.Config) { c.Checkout.Hold.OnError = "retry" }},
		{"credit check amount", func(c *config.Config) { c.Checkout.CreditCheckAmount = "abc" }},
		{"non-positive credit check amount", func(c *config.Config) { c.Checkout.CreditCheckAmount = "0" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			tt.mutate(cfg)
			_, err := NewBootstrap(ctx, cfg)
			require.Error(t, err)
		})
	}
}

func TestNewGateway(t *testing.T) {
	ctx := context.Background()
	store := secrets.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "PAYMENT_API_KEY", "sk_test"))

	no := false
	gw, err := newGateway(ctx, config.PaymentConfig{
		Gateway:      "http",
		BaseURL:      "http://payments.local",
		APIKeySecret: "PAYMENT_API_KEY",
		Capabilities: config.CapabilitiesConfig{ModifyReserve: &no},
	}, store)
	require.NoError(t, err)
	assert.IsType(t, &payment.HTTPGateway{}, gw)
	assert.False(t, gw.Capabilities().ModifyReserve)
	assert.True(t, gw.Capabilities().Reserve)

	_, err = newGateway(ctx, config.PaymentConfig{
		Gateway:      "http",
		BaseURL:      "http://payments.local",
		APIKeySecret: "MISSING",
	}, store)
	require.Error(t, err)

	gw, err = newGateway(ctx, config.PaymentConfig{}, store)
	require.NoError(t, err)
	assert.IsType(t, &payment.MemoryGateway{}, gw)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, "3s", parseDuration("3s", 0).String())
	assert.Equal(t, "10s", parseDuration("", 10e9).String())
	assert.Equal(t, "10s", parseDuration("soon", 10e9).String())
}
