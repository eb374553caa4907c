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

package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"

	apigrpc "filehash-platform/internal/api/grpc"
	"filehash-platform/internal/api/http"
	"filehash-platform/internal/api/http/middleware"
	"filehash-platform/internal/app"
	appconfig "filehash-platform/pkg/config"
	"filehash-platform/pkg/log"
	"filehash-platform/pkg/tracing"
)

const defaultJWTTimeout = time.Hour

// App API 应用（装配 HTTP Router、Handler、Middleware 与可选 gRPC 健康检查）
type App struct {
	bootstrap    *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	grpcServer   *grpcRun
	health       *apigrpc.Server
	otelProvider *sdktrace.TracerProvider
	cancel       context.CancelFunc
}

// grpcRun 持有 gRPC Server 与 Listener，用于 GracefulStop 时关闭
type grpcRun struct {
	srv *grpc.Server
	lis net.Listener
}

func (g *grpcRun) GracefulStop() {
	if g.srv != nil {
		g.srv.GracefulStop()
	}
	if g.lis != nil {
		_ = g.lis.Close()
	}
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	handler := http.NewHandler(bootstrap.Engine, bootstrap.Verifier)

	mw := middleware.NewMiddleware(middleware.WithAllowOrigins(cfg.API.CORS.AllowOrigins))
	router := http.NewRouter(handler, mw)
	router.SetCORS(cfg.API.CORS.Enable)
	router.SetMaxRequestBodySize(cfg.API.MaxUploadSize)
	if cfg.API.Middleware.RateLimit {
		router.SetRateLimit(cfg.API.Middleware.RateLimitRPS, cfg.API.Middleware.RateLimitBurst)
	}

	if cfg.API.Middleware.Auth {
		if bootstrap.JWTKey == "" {
			return nil, fmt.Errorf("api.middleware.auth 已开启但 jwt_key 为空")
		}
		timeout := appconfig.ParseDuration(cfg.API.Middleware.JWTTimeout, defaultJWTTimeout)
		maxRefresh := appconfig.ParseDuration(cfg.API.Middleware.JWTMaxRefresh, defaultJWTTimeout)
		jwtAuth, err := middleware.NewJWTAuth([]byte(bootstrap.JWTKey), timeout, maxRefresh)
		if err != nil {
			return nil, fmt.Errorf("JWT 初始化失败: %w", err)
		}
		router.SetJWT(jwtAuth)
		bootstrap.Logger.Info("JWT 认证已启用")
	}

	appObj := &App{
		bootstrap: bootstrap,
		router:    router,
	}
	if cfg.API.Grpc.Enable && cfg.API.Grpc.Port > 0 {
		appObj.health = apigrpc.NewServer(bootstrap.Engine, 0, bootstrap.Logger)
		gs, err := startGRPC(appObj.health, cfg.API.Grpc.Port)
		if err != nil {
			bootstrap.Logger.Warn("gRPC 服务启动失败", "error", err)
			appObj.health = nil
		} else {
			appObj.grpcServer = gs
			bootstrap.Logger.Info("gRPC 健康检查已启动", "port", cfg.API.Grpc.Port)
		}
	}
	return appObj, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"；阻塞直到服务关闭
func (a *App) Run(addr string) error {
	cfg := a.bootstrap.Config
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	output := os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.bootstrap.Sweeper.Start(ctx)
	if a.health != nil {
		a.health.Start(ctx)
	}

	var opts []config.Option
	var tracerCfg *hertztracing.Config
	// 可选：启用链路追踪（OpenTelemetry）
	if t := cfg.Monitoring.Tracing; t.Enable {
		serviceName := t.ServiceName
		if serviceName == "" {
			serviceName = "filehash-api"
		}
		endpoint := t.ExportEndpoint
		if endpoint == "" {
			endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if endpoint != "" {
			tp, err := tracing.InitTracer(tracing.OTelConfig{
				ServiceName:    serviceName,
				ExportEndpoint: endpoint,
				Insecure:       t.Insecure,
			})
			if err != nil {
				a.bootstrap.Logger.Warn("链路追踪初始化失败", "error", err)
			} else {
				a.otelProvider = tp
				var tracerOpt config.Option
				tracerOpt, tracerCfg = hertztracing.NewServerTracer()
				opts = append(opts, tracerOpt)
				a.bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", endpoint)
			}
		}
	}

	a.hertz = a.router.Build(addr, opts...)
	if tracerCfg != nil {
		a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭：先停止接收请求，再等待排队中的 Item 处理完毕（传入 ctx 以支持超时）
func (a *App) Shutdown(ctx context.Context) error {
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			a.bootstrap.Logger.Warn("HTTP 服务关闭失败", "error", err)
		}
	}
	if a.health != nil {
		a.health.Shutdown()
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	err := a.bootstrap.Close(ctx)
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	return err
}

// startGRPC 创建并启动 gRPC 服务（在 goroutine 中 Serve），返回 grpcRun 以便 Shutdown 时 GracefulStop
func startGRPC(health *apigrpc.Server, port int) (*grpcRun, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	srv := grpc.NewServer()
	health.Register(srv)
	go func() {
		_ = srv.Serve(lis)
	}()
	return &grpcRun{srv: srv, lis: lis}, nil
}
