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

package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	vault "github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T, handler http.HandlerFunc) *vault.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := vault.DefaultConfig()
	cfg.Address = srv.URL
	cfg.MaxRetries = 0
	client, err := vault.NewClient(cfg)
	require.NoError(t, err)
	client.SetToken("test-token")
	return client
}

func TestVaultStore_KV2ReadIsCached(t *testing.T) {
	var reads atomic.Int32
	client := newTestVault(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/checkout/PAYMENT_API_KEY" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		reads.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data": map[string]interface{}{"value": "sk_live"},
			},
		})
	})
	store := newVaultStore(client, "/secret/data/checkout/")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := store.Get(ctx, "PAYMENT_API_KEY")
		require.NoError(t, err)
		assert.Equal(t, "sk_live", got)
	}
	assert.Equal(t, int32(1), reads.Load())

	_, err := store.Get(ctx, "MISSING")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret not found")
}

func TestVaultStore_KV1WriteWrapsValue(t *testing.T) {
	var body map[string]interface{}
	client := newTestVault(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/secret/PAYMENT_API_KEY", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	})
	store := newVaultStore(client, "")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "PAYMENT_API_KEY", "sk_test"))
	assert.Equal(t, map[string]interface{}{"value": "sk_test"}, body)

	got, err := store.Get(ctx, "PAYMENT_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk_test", got)
}

func TestVaultStore_ExtractRejectsMissingField(t *testing.T) {
	store := &vaultStore{kv2: true}
	_, err := store.extract("k", map[string]interface{}{"value": "flat"})
	require.Error(t, err)

	store.kv2 = false
	_, err = store.extract("k", map[string]interface{}{"other": "x"})
	require.Error(t, err)
}
