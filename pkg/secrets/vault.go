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
	"fmt"
	"strings"
	"sync"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig Vault 配置
type VaultConfig struct {
	Address    string // 如 http://vault:8200
	Token      string
	PathPrefix string // KV v2 形如 "secret/data/checkout"，v1 形如 "secret"
}

// valueField secret 在 Vault 中存放值的字段名
const valueField = "value"

// vaultStore 读取结果按 key 缓存，Set 同步刷新缓存
type vaultStore struct {
	client     *vault.Client
	pathPrefix string
	kv2        bool
	mu         sync.RWMutex
	cache      map[string]string
}

// NewVaultStore 创建 Vault secret store；创建时探测一次健康状态
func NewVaultStore(config VaultConfig) (Store, error) {
	cfg := vault.DefaultConfig()
	if config.Address != "" {
		cfg.Address = config.Address
	}
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}
	if _, err := client.Sys().Health(); err != nil {
		return nil, fmt.Errorf("vault unreachable at %s: %w", cfg.Address, err)
	}
	return newVaultStore(client, config.PathPrefix), nil
}

func newVaultStore(client *vault.Client, prefix string) *vaultStore {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "secret"
	}
	return &vaultStore{
		client:     client,
		pathPrefix: prefix,
		kv2:        strings.Contains(prefix+"/", "/data/"),
		cache:      make(map[string]string),
	}
}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	v.mu.RLock()
	val, ok := v.cache[key]
	v.mu.RUnlock()
	if ok {
		return val, nil
	}

	secret, err := v.client.Logical().ReadWithContext(ctx, v.path(key))
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", key, err)
	}
	if secret == nil {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	val, err = v.extract(key, secret.Data)
	if err != nil {
		return "", err
	}
	v.mu.Lock()
	v.cache[key] = val
	v.mu.Unlock()
	return val, nil
}

func (v *vaultStore) Set(ctx context.Context, key string, value string) error {
	payload := map[string]interface{}{valueField: value}
	if v.kv2 {
		payload = map[string]interface{}{"data": payload}
	}
	if _, err := v.client.Logical().WriteWithContext(ctx, v.path(key), payload); err != nil {
		return fmt.Errorf("write secret %s: %w", key, err)
	}
	v.mu.Lock()
	v.cache[key] = value
	v.mu.Unlock()
	return nil
}

// extract 从读取结果取值；KV v2 的值嵌套在 data 字段下
func (v *vaultStore) extract(key string, data map[string]interface{}) (string, error) {
	if v.kv2 {
		inner, ok := data["data"].(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("secret %s has no data section", key)
		}
		data = inner
	}
	val, ok := data[valueField].(string)
	if !ok {
		return "", fmt.Errorf("secret %s has no %q field", key, valueField)
	}
	return val, nil
}

func (v *vaultStore) path(key string) string {
	return v.pathPrefix + "/" + strings.TrimPrefix(key, "/")
}
