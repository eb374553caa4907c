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
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port          int              `mapstructure:"port"`
	Host          string           `mapstructure:"host"`
	Timeout       string           `mapstructure:"timeout"`
	MaxUploadSize int              `mapstructure:"max_upload_size"` // 请求体上限（字节），<=0 使用默认 256MiB
	CORS          CORSConfig       `mapstructure:"cors"`
	Middleware    MiddlewareConfig `mapstructure:"middleware"`
	Grpc          GrpcConfig       `mapstructure:"grpc"`
}

// GrpcConfig gRPC 健康检查服务配置
type GrpcConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth           bool    `mapstructure:"auth"`
	RateLimit      bool    `mapstructure:"rate_limit"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	JWTKey         string  `mapstructure:"jwt_key"`         // 明文、${ENV} 或 secret://<key>
	JWTTimeout     string  `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh  string  `mapstructure:"jwt_max_refresh"` // 如 "1h"
}

// EngineConfig 批处理引擎与 worker 池配置
type EngineConfig struct {
	Workers          int    `mapstructure:"workers"`           // worker 数，<=0 使用 GOMAXPROCS
	QueueSize        int    `mapstructure:"queue_size"`        // 队列容量（Item 数），<=0 默认 4096
	OverloadPolicy   string `mapstructure:"overload_policy"`   // reject | block
	EnqueueTimeout   string `mapstructure:"enqueue_timeout"`   // block 策略下的最长等待，默认 5s
	SyncTimeout      string `mapstructure:"sync_timeout"`      // 同步接口默认等待时长，默认 30s
	DefaultAlgorithm string `mapstructure:"default_algorithm"` // 默认 sha256
	ChunkSize        int    `mapstructure:"chunk_size"`        // 读取块大小（字节），默认 4096
}

// RegistryConfig Task Registry 留存与清理配置
type RegistryConfig struct {
	Retention     string `mapstructure:"retention"`      // 完成后保留时长，默认 30m
	MaxEntries    int    `mapstructure:"max_entries"`    // 最大驻留数，<=0 不限
	SweepInterval string `mapstructure:"sweep_interval"` // 清理周期，默认 1m
	Shards        int    `mapstructure:"shards"`         // 分片数，默认 16
}

// StorageConfig 存储配置
type StorageConfig struct {
	Cache CacheConfig `mapstructure:"cache"`
}

// CacheConfig 路径摘要缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"` // "" | memory | redis | none
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	TTL      string `mapstructure:"ttl"` // 缓存项有效期，默认 1h
}

// SecretsConfig Secret 来源配置
type SecretsConfig struct {
	Provider string      `mapstructure:"provider"` // env | memory | vault
	Vault    VaultConfig `mapstructure:"vault"`
}

// VaultConfig Vault 连接配置
type VaultConfig struct {
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
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// 默认值
const (
	DefaultPort             = 8080
	DefaultQueueSize        = 4096
	DefaultChunkSize        = 4096
	DefaultAlgorithm        = "sha256"
	DefaultMaxUploadSize    = 256 << 20
	DefaultRegistryShards   = 16
	DefaultOverloadPolicy   = "reject"
	defaultEnqueueTimeout   = 5 * time.Second
	defaultSyncTimeout      = 30 * time.Second
	defaultRetention        = 30 * time.Minute
	defaultSweepInterval    = time.Minute
	defaultCacheTTL         = time.Hour
	defaultRateLimitRPS     = 50
	defaultRateLimitBurstMx = 2
)

// Default 返回填充默认值的配置（无配置文件时使用）
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults 补齐未配置项
func (c *Config) ApplyDefaults() {
	if c.API.Port <= 0 {
		c.API.Port = DefaultPort
	}
	if c.API.MaxUploadSize <= 0 {
		c.API.MaxUploadSize = DefaultMaxUploadSize
	}
	if c.API.Middleware.RateLimitRPS <= 0 {
		c.API.Middleware.RateLimitRPS = defaultRateLimitRPS
	}
	if c.API.Middleware.RateLimitBurst <= 0 {
		c.API.Middleware.RateLimitBurst = int(c.API.Middleware.RateLimitRPS) * defaultRateLimitBurstMx
	}
	if c.Engine.Workers <= 0 {
		c.Engine.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Engine.QueueSize <= 0 {
		c.Engine.QueueSize = DefaultQueueSize
	}
	if c.Engine.OverloadPolicy == "" {
		c.Engine.OverloadPolicy = DefaultOverloadPolicy
	}
	if c.Engine.DefaultAlgorithm == "" {
		c.Engine.DefaultAlgorithm = DefaultAlgorithm
	}
	if c.Engine.ChunkSize <= 0 {
		c.Engine.ChunkSize = DefaultChunkSize
	}
	if c.Registry.Shards <= 0 {
		c.Registry.Shards = DefaultRegistryShards
	}
	if c.Secrets.Provider == "" {
		c.Secrets.Provider = "env"
	}
}

// EnqueueTimeoutDuration block 策略下入队的最长等待
func (e EngineConfig) EnqueueTimeoutDuration() time.Duration {
	return ParseDuration(e.EnqueueTimeout, defaultEnqueueTimeout)
}

// SyncTimeoutDuration 同步接口默认等待时长
func (e EngineConfig) SyncTimeoutDuration() time.Duration {
	return ParseDuration(e.SyncTimeout, defaultSyncTimeout)
}

// RetentionDuration 完成后保留时长
func (r RegistryConfig) RetentionDuration() time.Duration {
	return ParseDuration(r.Retention, defaultRetention)
}

// SweepIntervalDuration 清理周期
func (r RegistryConfig) SweepIntervalDuration() time.Duration {
	return ParseDuration(r.SweepInterval, defaultSweepInterval)
}

// TTLDuration 缓存项有效期
func (c CacheConfig) TTLDuration() time.Duration {
	return ParseDuration(c.TTL, defaultCacheTTL)
}

// ParseDuration 解析时长字符串，无效、空或非正时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
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

	// 替换环境变量
	replaceEnvVars(&config)
	config.ApplyDefaults()

	return &config, nil
}

// replaceEnvVars 替换 ${VAR} 形式的敏感配置
func replaceEnvVars(config *Config) {
	for _, p := range []*string{
		&config.API.Middleware.JWTKey,
		&config.Storage.Cache.Password,
		&config.Secrets.Vault.Token,
	} {
		*p = expandEnv(*p)
	}
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s
	}
	envVar := strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return s
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）；FILEHASH_CONFIG 可覆盖路径
func LoadAPIConfig() (*Config, error) {
	path := "configs/api.yaml"
	if p := os.Getenv("FILEHASH_CONFIG"); p != "" {
		path = p
	}
	return LoadConfig(path)
}
