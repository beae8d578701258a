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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Checkout   CheckoutConfig   `mapstructure:"checkout"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Events     EventsConfig     `mapstructure:"events"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
	Timeout string `mapstructure:"timeout"`
}

// CheckoutConfig 结算管线配置
type CheckoutConfig struct {
	Currency  string `mapstructure:"currency"` // 默认币种，如 "USD"
	StoreCode string `mapstructure:"store_code"`
	// CreditCheckAmount 零金额且含周期计费商品时用于预授权校验的金额，如 "1.00"
	CreditCheckAmount string     `mapstructure:"credit_check_amount"`
	Hold              HoldConfig `mapstructure:"hold"`
}

// HoldConfig 订单挂起策略配置
type HoldConfig struct {
	// OnError 策略执行出错时的处理：hold（默认，挂起）| proceed（放行）| fail（结算失败）
	OnError            string   `mapstructure:"on_error"`
	HoldAllOrders      bool     `mapstructure:"hold_all_orders"`
	HighValueThreshold string   `mapstructure:"high_value_threshold"` // 空表示不启用
	BlockedCustomers   []string `mapstructure:"blocked_customers"`
}

// PaymentConfig 支付网关配置
type PaymentConfig struct {
	Gateway       string             `mapstructure:"gateway"` // memory | http
	BaseURL       string             `mapstructure:"base_url"`
	Timeout       string             `mapstructure:"timeout"`     // 如 "10s"
	RetryCount    int                `mapstructure:"retry_count"` // 不含首次
	QPS           float64            `mapstructure:"qps"`
	Burst         int                `mapstructure:"burst"`
	MaxConcurrent int                `mapstructure:"max_concurrent"`
	APIKeySecret  string             `mapstructure:"api_key_secret"` // secrets store 中的 key 名
	Capabilities  CapabilitiesConfig `mapstructure:"capabilities"`
}

// CapabilitiesConfig 支付网关能力声明（构造时注入，不使用全局注册表）
type CapabilitiesConfig struct {
	Reserve       *bool `mapstructure:"reserve"`
	ModifyReserve *bool `mapstructure:"modify_reserve"`
	ReverseCharge *bool `mapstructure:"reverse_charge"`
	Credit        *bool `mapstructure:"credit"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Order OrderStoreConfig `mapstructure:"order"`
	Cart  CartStoreConfig  `mapstructure:"cart"`
}

// OrderStoreConfig 订单存储配置
type OrderStoreConfig struct {
	Type string `mapstructure:"type"` // memory | postgres
	DSN  string `mapstructure:"dsn"`  // Postgres 连接串，type=postgres 时必填
}

// CartStoreConfig 购物车存储配置
type CartStoreConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	TTL      string `mapstructure:"ttl"` // 如 "72h"，空表示不过期
}

// EventsConfig 事件发布配置
type EventsConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	Stream   string `mapstructure:"stream"`  // Redis Stream 名，空则 "checkout-events"
	MaxLen   int64  `mapstructure:"max_len"` // Stream 近似长度上限，0 不裁剪
}

// SecretsConfig Secret Store 配置
type SecretsConfig struct {
	Provider   string `mapstructure:"provider"` // env | memory | vault
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable bool `mapstructure:"enable"`
	// Provider hertz（默认，hertz-contrib provider 同时负责 HTTP 与业务 span）| otlp（仅 SDK 导出）
	Provider       string `mapstructure:"provider"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	applyDefaults(&config)
	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// replaceEnvVars 替换 ${VAR} 形式的敏感配置
func replaceEnvVars(config *Config) {
	config.Storage.Order.DSN = expandEnv(config.Storage.Order.DSN)
	config.Storage.Cart.Password = expandEnv(config.Storage.Cart.Password)
	config.Events.Password = expandEnv(config.Events.Password)
	config.Secrets.Token = expandEnv(config.Secrets.Token)
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return s
}

func applyDefaults(config *Config) {
	if config.Checkout.Currency == "" {
		config.Checkout.Currency = "USD"
	}
	if config.Checkout.CreditCheckAmount == "" {
		config.Checkout.CreditCheckAmount = "1.00"
	}
	if config.Checkout.Hold.OnError == "" {
		config.Checkout.Hold.OnError = "hold"
	}
	if config.Payment.Gateway == "" {
		config.Payment.Gateway = "memory"
	}
	if config.Events.Stream == "" {
		config.Events.Stream = "checkout-events"
	}
}

// Enabled 返回能力开关值；未配置时为 def
func Enabled(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
