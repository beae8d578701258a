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
	"encoding/json"
	"errors"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-platform/internal/api/http/middleware"
	"checkout-platform/internal/checkout/domain"
	"checkout-platform/internal/checkout/orchestrator"
	"checkout-platform/internal/checkout/pipeline"
	"checkout-platform/internal/storage/cartstore"
)

type fakeRunner struct {
	got orchestrator.Request
	res *orchestrator.Result
	err error
}

func (f *fakeRunner) RunCheckout(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	f.got = req
	if f.res == nil {
		f.res = &orchestrator.Result{}
	}
	return f.res, f.err
}

func buildServer(runner CheckoutRunner, carts cartstore.Store) *server.Hertz {
	r := NewRouter(NewHandler(runner, carts, nil), middleware.NewMiddleware(nil))
	return r.Build(":0")
}

func perform(s *server.Hertz, method, path string, body []byte) *ut.ResponseRecorder {
	return ut.PerformRequest(s.Engine, method, path,
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
}

func checkoutBody(t *testing.T, req CheckoutRequest) []byte {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return b
}

func sampleCart() *domain.Cart {
	return &domain.Cart{
		ID: "cart-1",
		Shipments: []domain.CartShipment{{
			ID:    "e1",
			Type:  domain.ShipmentElectronic,
			Items: []domain.LineItem{{SKU: "ebook", Kind: domain.ItemDigital, Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
		}},
	}
}

func TestHealthCheck(t *testing.T) {
	s := buildServer(&fakeRunner{}, nil)
	w := perform(s, "GET", "/api/health", nil)
	resp := w.Result()
	assert.Equal(t, 200, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "ok")
}

func TestMetrics(t *testing.T) {
	s := buildServer(&fakeRunner{}, nil)
	w := perform(s, "GET", "/metrics", nil)
	resp := w.Result()
	assert.Equal(t, 200, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "checkout_order_holds_total")
}

func TestCheckout_InlineCart(t *testing.T) {
	runner := &fakeRunner{res: &orchestrator.Result{
		Order: &domain.Order{ID: "o1", Status: domain.OrderCompleted},
	}}
	s := buildServer(runner, nil)

	body := checkoutBody(t, CheckoutRequest{
		Cart:            sampleCart(),
		Session:         &domain.Session{CustomerID: "cust-1"},
		PaymentTemplate: &domain.PaymentTemplate{InstrumentID: "card-1"},
		ExchangeID:      "ex-1",
	})
	w := perform(s, "POST", "/api/checkout", body)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode(), string(resp.Body()))

	var out CheckoutResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &out))
	require.NotNil(t, out.Order)
	assert.Equal(t, domain.OrderCompleted, out.Order.Status)

	require.NotNil(t, runner.got.Cart)
	assert.Equal(t, "cart-1", runner.got.Cart.ID)
	assert.Equal(t, "cust-1", runner.got.Session.CustomerID)
	assert.Equal(t, "ex-1", runner.got.ExchangeID)
}

func TestCheckout_HeldOrderAccepted(t *testing.T) {
	runner := &fakeRunner{res: &orchestrator.Result{
		Order: &domain.Order{ID: "o1", Status: domain.OrderOnHold},
		Holds: []domain.OrderHold{{Description: "manual review", RequiredPermission: "ORDER_HOLD_RESOLVE"}},
	}}
	s := buildServer(runner, nil)
	w := perform(s, "POST", "/api/checkout", checkoutBody(t, CheckoutRequest{Cart: sampleCart()}))
	assert.Equal(t, 202, w.Result().StatusCode())
}

func TestCheckout_CartFromStore(t *testing.T) {
	carts := cartstore.NewMemoryStore()
	require.NoError(t, carts.Save(context.Background(), sampleCart()))
	runner := &fakeRunner{}
	s := buildServer(runner, carts)

	w := perform(s, "POST", "/api/checkout", checkoutBody(t, CheckoutRequest{CartID: "cart-1"}))
	require.Equal(t, 200, w.Result().StatusCode())
	require.NotNil(t, runner.got.Cart)
	assert.Len(t, runner.got.Cart.Shipments, 1)

	w = perform(s, "POST", "/api/checkout", checkoutBody(t, CheckoutRequest{CartID: "missing"}))
	assert.Equal(t, 404, w.Result().StatusCode())
}

func TestCheckout_BadRequest(t *testing.T) {
	s := buildServer(&fakeRunner{}, nil)

	w := perform(s, "POST", "/api/checkout", []byte("{not json"))
	assert.Equal(t, 400, w.Result().StatusCode())

	w = perform(s, "POST", "/api/checkout", []byte(`{}`))
	assert.Equal(t, 400, w.Result().StatusCode())

	w = perform(s, "POST", "/api/checkout", []byte(`{"cart_id":"c1"}`))
	assert.Equal(t, 503, w.Result().StatusCode(), "no cart store configured")
}

func TestCheckout_ErrorMapping(t *testing.T) {
	failed := &domain.Order{ID: "o1", Status: domain.OrderFailed}
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", pipeline.Classify(pipeline.PhasePreCapture, "validate_cart", pipeline.NewValidationFailure("cart is empty")), 422},
		{"payment", pipeline.NewCheckoutError(pipeline.KindPayment, pipeline.PhaseCapture, "authorize_payments", errors.New("declined")), 402},
		{"persistence", pipeline.NewCheckoutError(pipeline.KindPersistence, pipeline.PhasePreCapture, "create_order", errors.New("db down")), 503},
		{"post capture", pipeline.NewCheckoutError(pipeline.KindPostCapture, pipeline.PhasePostCapture, "assign_coupons", errors.New("boom")), 500},
		{"unclassified", errors.New("boom"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{res: &orchestrator.Result{Order: failed}, err: tt.err}
			s := buildServer(runner, nil)
			w := perform(s, "POST", "/api/checkout", checkoutBody(t, CheckoutRequest{Cart: sampleCart()}))
			resp := w.Result()
			require.Equal(t, tt.code, resp.StatusCode())

			var out ErrorResponse
			require.NoError(t, json.Unmarshal(resp.Body(), &out))
			assert.NotEmpty(t, out.Error)
			if ce, ok := pipeline.GetCheckoutError(tt.err); ok {
				assert.Equal(t, string(ce.Kind), out.Kind)
				assert.Equal(t, ce.Step, out.Step)
				require.NotNil(t, out.Order)
				assert.Equal(t, domain.OrderFailed, out.Order.Status)
			}
		})
	}
}

func TestCheckout_ValidationMessages(t *testing.T) {
	err := pipeline.Classify(pipeline.PhasePreCapture, "validate_cart", pipeline.NewValidationFailure("cart is empty", "customer session is required"))
	s := buildServer(&fakeRunner{err: err}, nil)
	w := perform(s, "POST", "/api/checkout", checkoutBody(t, CheckoutRequest{Cart: sampleCart()}))

	var out ErrorResponse
	require.NoError(t, json.Unmarshal(w.Result().Body(), &out))
	assert.Equal(t, []string{"cart is empty", "customer session is required"}, out.Messages)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, 422, StatusForKind(pipeline.KindValidation))
	assert.Equal(t, 402, StatusForKind(pipeline.KindPayment))
	assert.Equal(t, 503, StatusForKind(pipeline.KindPersistence))
	assert.Equal(t, 500, StatusForKind(pipeline.KindHoldEvaluation))
	assert.Equal(t, 500, StatusForKind(pipeline.KindPostCapture))
	assert.Equal(t, 500, StatusForKind(pipeline.KindInternal))
}
