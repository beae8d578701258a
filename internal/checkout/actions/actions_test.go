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
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-platform/internal/checkout/domain"
	"checkout-platform/internal/checkout/payment"
	"checkout-platform/internal/checkout/pipeline"
	"checkout-platform/internal/events"
	"checkout-platform/internal/services/giftcert"
	"checkout-platform/internal/services/inventory"
	"checkout-platform/internal/services/promotion"
	"checkout-platform/internal/services/tax"
	"checkout-platform/internal/services/validation"
	"checkout-platform/internal/storage/cartstore"
	"checkout-platform/internal/storage/orderstore"
	pkgerrors "checkout-platform/pkg/errors"
)

type harness struct {
	deps    Deps
	gateway *payment.MemoryGateway
	orders  *orderstore.MemoryStore
	events  *events.MemoryPublisher
	tax     *tax.MemoryEngine
	gc      *giftcert.MemoryService
}

func newHarness(caps payment.Capabilities) *harness {
	h := &harness{
		gateway: payment.NewMemoryGateway(caps),
		orders:  orderstore.NewMemoryStore(),
		events:  events.NewMemoryPublisher(),
		tax:     tax.NewMemoryEngine(),
		gc:      giftcert.NewMemoryService(map[string]decimal.Decimal{"GC-10": decimal.NewFromInt(10)}),
	}
	h.deps = Deps{
		Orders:           h.orders,
		Carts:            cartstore.NewMemoryStore(),
		Tax:              h.tax,
		Validator:        validation.NewRuleValidator(),
		Inventory:        inventory.NewMemoryInventory(map[string]int{"sku-limited": 1}),
		Events:           h.events,
		Coupons:          promotion.NewMemoryCoupons(nil),
		GiftCertificates: h.gc,
		Payments:         payment.NewCoordinator(h.gateway, nil),
		Settings: Settings{
			StoreCode:         "main",
			Currency:          "USD",
			CreditCheckAmount: decimal.RequireFromString("1.00"),
		},
	}
	return h
}

func cartWith(shipments ...domain.CartShipment) *domain.Cart {
	return &domain.Cart{ID: "cart-1", StoreCode: "main", Currency: "USD", Shipments: shipments}
}

func digital(id, price string, recurring bool) domain.CartShipment {
	return domain.CartShipment{
		ID:   id,
		Type: domain.ShipmentElectronic,
		Items: []domain.LineItem{{
			SKU: "sku-" + id, Kind: domain.ItemDigital, Quantity: 1,
			UnitPrice: decimal.RequireFromString(price), Recurring: recurring,
		}},
	}
}

func newCheckoutContext(cart *domain.Cart) *pipeline.Context {
	return pipeline.NewContext(pipeline.Input{
		Cart:            cart,
		Session:         &domain.Session{ID: "s1", CustomerID: "cust-1"},
		PaymentTemplate: &domain.PaymentTemplate{InstrumentID: "card-1"},
	})
}

// preCaptured 执行完 PRE_CAPTURE 的上下文
func preCaptured(t *testing.T, c *Catalog, cart *domain.Cart) *pipeline.Context {
	t.Helper()
	cc := newCheckoutContext(cart)
	require.NoError(t, pipeline.NewExecutor(nil).RunReversible(context.Background(), c.PreCapture, cc))
	return cc
}

func stepNamed(t *testing.T, steps []pipeline.Step, name string) pipeline.Step {
	t.Helper()
	for _, s := range steps {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("step %s not found", name)
	return pipeline.Step{}
}

func TestFailOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("no order", func(t *testing.T) {
		h := newHarness(payment.FullCapabilities())
		cc := newCheckoutContext(cartWith())
		require.NoError(t, FailOrder(ctx, h.deps, cc, "test"))
		assert.Nil(t, cc.Order())
		assert.Empty(t, h.events.Events())
	})

	t.Run("unpersisted order", func(t *testing.T) {
		h := newHarness(payment.FullCapabilities())
		cc := newCheckoutContext(cartWith())
		cc.SetOrder(&domain.Order{ID: "o1", Status: domain.OrderCreated})
		require.NoError(t, FailOrder(ctx, h.deps, cc, "test"))
		assert.Equal(t, domain.OrderFailed, cc.Order().Status)
		assert.Equal(t, 0, h.orders.Calls(orderstore.OpUpdate))
		require.Len(t, h.events.OfType(events.OrderFailed), 1)
		assert.Equal(t, "test", h.events.OfType(events.OrderFailed)[0].Attributes["reason"])
	})

	t.Run("persisted order is written once", func(t *testing.T) {
		h := newHarness(payment.FullCapabilities())
		saved, err := h.orders.Create(ctx, &domain.Order{ID: "o1", Status: domain.OrderCreated})
		require.NoError(t, err)
		cc := newCheckoutContext(cartWith())
		cc.SetOrder(saved)
		cc.AddPayment(&domain.PaymentRecord{ID: "pay-1", ChainKey: "e1", Type: domain.TxReserve, Status: domain.PaymentApproved})
		cc.AddPayment(&domain.PaymentRecord{ID: "pay-2", ChainKey: "e1", Type: domain.TxCancelReserve, Status: domain.PaymentApproved, ParentID: "pay-1"})

		require.NoError(t, FailOrder(ctx, h.deps, cc, "first"))
		require.NoError(t, FailOrder(ctx, h.deps, cc, "second"))

		stored, err := h.orders.Get(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderFailed, stored.Status)
		require.Len(t, stored.Payments, 2)
		assert.Equal(t, "pay-1", stored.Payments[0].ID)
		assert.Equal(t, "pay-2", stored.Payments[1].ID)
		assert.Equal(t, 1, h.orders.Calls(orderstore.OpUpdate))
		assert.Len(t, h.events.OfType(events.OrderFailed), 1)
	})

	t.Run("store failure keeps failed state in memory", func(t *testing.T) {
		h := newHarness(payment.FullCapabilities())
		saved, err := h.orders.Create(ctx, &domain.Order{ID: "o1", Status: domain.OrderCreated})
		require.NoError(t, err)
		h.orders.FailOn(orderstore.OpUpdate, errors.New("disk full"))
		cc := newCheckoutContext(cartWith())
		cc.SetOrder(saved)

		err = FailOrder(ctx, h.deps, cc, "test")
		require.Error(t, err)
		assert.True(t, pkgerrors.IsPersistence(err))
		assert.Equal(t, domain.OrderFailed, cc.Order().Status)
	})
}

func TestPreCapture_InventoryShortage(t *testing.T) {
	h := newHarness(payment.FullCapabilities())
	c := NewCatalog(h.deps)
	cart := cartWith(domain.CartShipment{
		ID:             "p1",
		Type:           domain.ShipmentPhysical,
		Items:          []domain.LineItem{{SKU: "sku-limited", Kind: domain.ItemPhysical, Quantity: 2, UnitPrice: decimal.NewFromInt(5)}},
		Address:        &domain.Address{Name: "Ada", Street: "1 Main St", City: "Springfield", Country: "US", Zip: "12345"},
		ShippingOption: "standard",
	})

	err := pipeline.NewExecutor(nil).RunReversible(context.Background(), c.PreCapture, newCheckoutContext(cart))
	require.Error(t, err)
	require.True(t, pipeline.IsValidationFailure(err))
	assert.Equal(t, 0, h.orders.Calls(orderstore.OpCreate))
}

func TestPreCapture_ShippingRequiredForPhysical(t *testing.T) {
	h := newHarness(payment.FullCapabilities())
	c := NewCatalog(h.deps)
	cart := cartWith(domain.CartShipment{
		ID:    "p1",
		Type:  domain.ShipmentPhysical,
		Items: []domain.LineItem{{SKU: "sku-a", Kind: domain.ItemPhysical, Quantity: 1, UnitPrice: decimal.NewFromInt(5)}},
	})

	err := pipeline.NewExecutor(nil).RunReversible(context.Background(), c.PreCapture, newCheckoutContext(cart))
	var vf *pipeline.ValidationFailure
	require.ErrorAs(t, err, &vf)
	assert.Len(t, vf.Messages, 2)
}

func TestPreCapture_GiftCertificatePayment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(payment.FullCapabilities())
	c := NewCatalog(h.deps)

	cc := newCheckoutContext(cartWith(digital("e1", "8.00", false)))
	cc.SetPaymentTemplate(&domain.PaymentTemplate{InstrumentID: "GC-10", Method: domain.MethodGiftCertificate})
	require.NoError(t, pipeline.NewExecutor(nil).RunReversible(ctx, c.PreCapture, cc))

	cc = newCheckoutContext(cartWith(digital("e1", "12.00", false)))
	cc.SetPaymentTemplate(&domain.PaymentTemplate{InstrumentID: "GC-10", Method: domain.MethodGiftCertificate})
	err := pipeline.NewExecutor(nil).RunReversible(ctx, c.PreCapture, cc)
	require.True(t, pipeline.IsValidationFailure(err))
	assert.Equal(t, domain.OrderFailed, cc.Order().Status)

	cc = newCheckoutContext(cartWith(digital("e1", "1.00", false)))
	cc.SetPaymentTemplate(&domain.PaymentTemplate{InstrumentID: "GC-unknown", Method: domain.MethodGiftCertificate})
	err = pipeline.NewExecutor(nil).RunReversible(ctx, c.PreCapture, cc)
	var vf *pipeline.ValidationFailure
	require.ErrorAs(t, err, &vf)
	assert.Contains(t, vf.Messages[0], "GC-unknown")
}

func TestAuthorizePayments_SaleWithoutReserveCapability(t *testing.T) {
	ctx := context.Background()
	h := newHarness(payment.Capabilities{ReverseCharge: true})
	c := NewCatalog(h.deps)
	cc := preCaptured(t, c, cartWith(digital("e1", "9.00", false)))

	authorize := stepNamed(t, c.Capture, StepAuthorizePayments)
	require.NoError(t, authorize.Execute(ctx, cc))
	require.Len(t, cc.Payments(), 1)
	assert.Equal(t, domain.TxCharge, cc.Payments()[0].Type)

	// 已扣款的电子发货单不再重复扣款
	require.NoError(t, stepNamed(t, c.Capture, StepCaptureElectronic).Execute(ctx, cc))
	assert.Equal(t, 1, h.gateway.CountType(domain.TxCharge))
	assert.Equal(t, domain.ShipmentShipped, cc.Order().Shipment("e1").Status)

	require.NoError(t, authorize.Rollback(ctx, cc))
	assert.Equal(t, 1, h.gateway.CountType(domain.TxReverseCharge))

	// 重复回滚不会重复冲正
	require.NoError(t, authorize.Rollback(ctx, cc))
	assert.Equal(t, 1, h.gateway.CountType(domain.TxReverseCharge))
}

func TestAuthorizePayments_CreditCheckNeedsReserveCapability(t *testing.T) {
	ctx := context.Background()
	h := newHarness(payment.Capabilities{})
	c := NewCatalog(h.deps)
	cc := preCaptured(t, c, cartWith(digital("e1", "0", true)))

	require.NoError(t, stepNamed(t, c.Capture, StepAuthorizePayments).Execute(ctx, cc))
	assert.Empty(t, h.gateway.Requests())
}

func TestAuthorizePayments_RollbackWithoutPaymentsIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(payment.FullCapabilities())
	c := NewCatalog(h.deps)
	cc := preCaptured(t, c, cartWith(digital("e1", "0", false)))

	step := stepNamed(t, c.Capture, StepAuthorizePayments)
	require.NoError(t, step.Execute(ctx, cc))
	require.NoError(t, step.Rollback(ctx, cc))
	assert.Empty(t, h.gateway.Requests())
}

func TestCommitTax_RollbackDeletesCommittedDocuments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(payment.FullCapabilities())
	c := NewCatalog(h.deps)
	cc := pipeline.NewContext(pipeline.Input{
		Cart:            cartWith(digital("e1", "5.00", false), digital("e2", "6.00", false)),
		Session:         &domain.Session{CustomerID: "cust-1"},
		PaymentTemplate: &domain.PaymentTemplate{InstrumentID: "card-1"},
		Tax: &domain.TaxSnapshot{Documents: map[string]domain.TaxDocument{
			"e1": {Jurisdiction: "NY", Amount: "0.50"},
			"e2": {Jurisdiction: "NY", Amount: "0.60"},
		}},
	})
	require.NoError(t, pipeline.NewExecutor(nil).RunReversible(ctx, c.PreCapture, cc))

	step := stepNamed(t, c.Capture, StepCommitTax)
	require.NoError(t, step.Execute(ctx, cc))
	assert.Equal(t, 2, h.tax.Committed())
	assert.Len(t, cc.TaxDocuments(), 2)

	require.NoError(t, step.Rollback(ctx, cc))
	assert.Equal(t, 0, h.tax.Committed())
	assert.Empty(t, cc.TaxDocuments())
	assert.Equal(t, 2, h.tax.Deletes())
}

func TestLatestReservation(t *testing.T) {
	approved := func(id string, typ domain.TransactionType, chain string) *domain.PaymentRecord {
		return &domain.PaymentRecord{ID: id, Type: typ, ChainKey: chain, Status: domain.PaymentApproved}
	}
	failed := &domain.PaymentRecord{ID: "f", Type: domain.TxModifyReserve, ChainKey: "a", Status: domain.PaymentFailed}

	tests := []struct {
		name    string
		records []*domain.PaymentRecord
		want    string
	}{
		{"empty", nil, ""},
		{"single reserve", []*domain.PaymentRecord{approved("r1", domain.TxReserve, "a")}, "r1"},
		{"modify supersedes", []*domain.PaymentRecord{approved("r1", domain.TxReserve, "a"), approved("m1", domain.TxModifyReserve, "a")}, "m1"},
		{"failed modify ignored", []*domain.PaymentRecord{approved("r1", domain.TxReserve, "a"), failed}, "r1"},
		{"cancelled chain", []*domain.PaymentRecord{approved("r1", domain.TxReserve, "a"), approved("c1", domain.TxCancelReserve, "a")}, ""},
		{"charged chain", []*domain.PaymentRecord{approved("r1", domain.TxReserve, "a"), approved("ch1", domain.TxCharge, "a")}, ""},
		{"other chain", []*domain.PaymentRecord{approved("r1", domain.TxReserve, "b")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := latestReservation(tt.records, "a")
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestCapturedStatus(t *testing.T) {
	shipped := &domain.Shipment{ID: "e1", Status: domain.ShipmentShipped}
	pending := &domain.Shipment{ID: "p1", Status: domain.ShipmentCreated}
	cancelled := &domain.Shipment{ID: "e2", Status: domain.ShipmentCancelled}

	cc := newCheckoutContext(cartWith())
	assert.Equal(t, domain.OrderCompleted, capturedStatus(cc, &domain.Order{Shipments: []*domain.Shipment{shipped, cancelled}}))
	assert.Equal(t, domain.OrderInProgress, capturedStatus(cc, &domain.Order{Shipments: []*domain.Shipment{shipped, pending}}))

	exchange := pipeline.NewContext(pipeline.Input{Cart: cartWith(), AwaitExchangeCompletion: true})
	assert.Equal(t, domain.OrderAwaitingExchange, capturedStatus(exchange, &domain.Order{Shipments: []*domain.Shipment{shipped}}))
}
