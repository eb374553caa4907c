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
	"fmt"

	"filehash-platform/internal/engine"
	"filehash-platform/internal/pool"
	"filehash-platform/internal/storage/cache"
	"filehash-platform/internal/task"
	"filehash-platform/internal/verify"
	"filehash-platform/pkg/config"
	"filehash-platform/pkg/log"
	"filehash-platform/pkg/secrets"
)

// Bootstrap 统一初始化：装配 Registry、worker 池、缓存与引擎，cmd 只负责进程生命周期
type Bootstrap struct {
	Config   *config.Config
	Logger   *log.Logger
	Secrets  secrets.Store
	Cache    cache.Store
	Registry *task.Registry
	Pool     *pool.Pool
	Engine   *engine.Engine
	Verifier *verify.Service
	Sweeper  *task.Sweeper
	JWTKey   string
}

// NewBootstrap 根据配置创建 Bootstrap；cfg 为 nil 时使用默认配置
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	store, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.Vault.Address,
			Token:      cfg.Secrets.Vault.Token,
			PathPrefix: cfg.Secrets.Vault.PathPrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 secret store 失败: %w", err)
	}
	jwtKey, err := secrets.Resolve(ctx, store, cfg.API.Middleware.JWTKey)
	if err != nil {
		return nil, fmt.Errorf("解析 jwt_key 失败: %w", err)
	}
	cacheCfg := cfg.Storage.Cache
	if cacheCfg.Password, err = secrets.Resolve(ctx, store, cacheCfg.Password); err != nil {
		return nil, fmt.Errorf("解析缓存密码失败: %w", err)
	}

	digestCache, err := cache.NewCache(ctx, cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化摘要缓存失败: %w", err)
	}

	registry := task.NewRegistry(task.Options{
		Shards:     cfg.Registry.Shards,
		Retention:  cfg.Registry.RetentionDuration(),
		MaxEntries: cfg.Registry.MaxEntries,
	})
	p := pool.New(pool.Config{
		Workers:        cfg.Engine.Workers,
		QueueSize:      cfg.Engine.QueueSize,
		Policy:         pool.ParsePolicy(cfg.Engine.OverloadPolicy),
		EnqueueTimeout: cfg.Engine.EnqueueTimeoutDuration(),
	}, logger)

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithDefaultAlgorithm(cfg.Engine.DefaultAlgorithm),
		engine.WithChunkSize(cfg.Engine.ChunkSize),
		engine.WithSyncTimeout(cfg.Engine.SyncTimeoutDuration()),
	}
	if digestCache != nil {
		opts = append(opts, engine.WithCache(digestCache, cacheCfg.TTLDuration()))
	}
	eng := engine.New(registry, p, opts...)

	logger.Info("bootstrap 完成",
		"workers", cfg.Engine.Workers,
		"queue_size", cfg.Engine.QueueSize,
		"overload_policy", cfg.Engine.OverloadPolicy,
		"cache", cacheCfg.Type,
		"secrets", cfg.Secrets.Provider,
	)

	return &Bootstrap{
		Config:   cfg,
		Logger:   logger,
		Secrets:  store,
		Cache:    digestCache,
		Registry: registry,
		Pool:     p,
		Engine:   eng,
		Verifier: verify.NewService(eng),
		Sweeper:  task.NewSweeper(registry, cfg.Registry.SweepIntervalDuration(), logger),
		JWTKey:   jwtKey,
	}, nil
}

// Close 停止引擎与清理器并释放缓存连接
func (b *Bootstrap) Close(ctx context.Context) error {
	b.Sweeper.Stop()
	err := b.Engine.Shutdown(ctx)
	if b.Cache != nil {
		if cerr := b.Cache.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	_ = b.Logger.Close()
	return err
}
