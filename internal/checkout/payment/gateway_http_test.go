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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-platform/internal/checkout/domain"
)

func TestHTTPGateway_Submit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/transactions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))

		var req TransactionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		switch req.InstrumentID {
		case "declined":
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"message":"insufficient funds"}`))
		case "broken":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"bad request"}`))
		default:
			_, _ = w.Write([]byte(`{"status":"APPROVED","provider_data":{"authorization_id":"a-1"}}`))
		}
	}))
	defer srv.Close()

	gw, err := NewHTTPGateway(HTTPGatewayConfig{
		BaseURL:      srv.URL,
		APIKey:       "secret",
		Timeout:      time.Second,
		Capabilities: FullCapabilities(),
	})
	require.NoError(t, err)

	req := TransactionRequest{ID: "tx-1", Type: domain.TxReserve, ChainKey: "s1", Amount: decimal.NewFromInt(5), Currency: "USD", InstrumentID: "card"}
	resp, err := gw.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentApproved, resp.Status)
	assert.Equal(t, "a-1", resp.ProviderData[DataAuthorization])

	req.InstrumentID = "declined"
	resp, err = gw.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, resp.Status)
	assert.Equal(t, "insufficient funds", resp.Message)

	req.InstrumentID = "broken"
	_, err = gw.Submit(context.Background(), req)
	assert.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPGateway_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"APPROVED","provider_data":{"capture_id":"c-1"}}`))
	}))
	defer srv.Close()

	gw, err := NewHTTPGateway(HTTPGatewayConfig{BaseURL: srv.URL, RetryCount: 2, Timeout: time.Second})
	require.NoError(t, err)

	resp, err := gw.Submit(context.Background(), TransactionRequest{ID: "tx-2", Type: domain.TxCharge})
	require.NoError(t, err)
	assert.Equal(t, "c-1", resp.ProviderData[DataCapture])
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNewHTTPGateway_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPGateway(HTTPGatewayConfig{})
	assert.Error(t, err)
}

func TestLimiter_ReleaseFreesSlot(t *testing.T) {
	l := NewLimiter(LimitConfig{MaxConcurrent: 1})
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, domain.TxReserve))

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(blocked, domain.TxReserve))
	// 不同交易类型独立计数
	require.NoError(t, l.Wait(ctx, domain.TxCancelReserve))

	l.Release(domain.TxReserve)
	require.NoError(t, l.Wait(ctx, domain.TxReserve))
}
