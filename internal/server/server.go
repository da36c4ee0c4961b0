package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	kratoshttp "github.com/go-kratos/kratos/v2/transport/http"
	swaggerUI "github.com/tx7do/kratos-swagger-ui"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	_ "github.com/go-tangra/go-tangra-sysinfo/internal/codec" // wire and CBOR codecs
	"github.com/go-tangra/go-tangra-sysinfo/internal/config"
	"github.com/go-tangra/go-tangra-sysinfo/internal/protocol"
	"github.com/go-tangra/go-tangra-sysinfo/internal/store"
	"github.com/go-tangra/go-tangra-sysinfo/internal/viewer"
)

// NewGRPCServer builds the agent-facing gRPC server with client-secret auth
// interceptors (unary + stream).
func NewGRPCServer(h *Handler, clientSecret string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(ClientSecretInterceptor(clientSecret)),
		grpc.ChainStreamInterceptor(ClientSecretStreamInterceptor(clientSecret)),
	)
	protocol.RegisterCollectorServiceServer(srv, h)
	return srv
}

// NewHTTPServer builds the REST server. Options are applied after the
// defaults, so tests can add kratoshttp.Listener.
func NewHTTPServer(api *API, apiSecret string, opts ...kratoshttp.ServerOption) *kratoshttp.Server {
	mw := []middleware.Middleware{
		recovery.Recovery(),
		tracing.Server(),
		ApiSecretMiddleware(apiSecret),
	}
	srv := kratoshttp.NewServer(append([]kratoshttp.ServerOption{kratoshttp.Middleware(mw...)}, opts...)...)
	api.Register(srv)
	return srv
}

// Run starts the gRPC and HTTP servers and blocks until the context is cancelled.
func Run(ctx context.Context, cfg *config.ViewerConfig, reg *category.Registry, openApiData []byte) error {
	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	cmdReg := NewCommandRegistry()
	handler := NewHandler(db, cmdReg)
	api := NewAPI(db, viewer.New(reg, db), handler)

	grpcSrv := NewGRPCServer(handler, cfg.ClientSecret)

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen gRPC on %s: %w", cfg.Listen, err)
	}

	// Graceful shutdown when the caller cancels the context.
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down")
		grpcSrv.GracefulStop()
	}()

	// Optional retention purge goroutine.
	if cfg.RetentionDays > 0 {
		go runPurgeLoop(ctx, db, cfg.RetentionDays, cfg.PurgeInterval)
	}

	httpSrv := NewHTTPServer(api, cfg.ApiSecret, kratoshttp.Address(cfg.HTTPListen))

	// Swagger UI (registered via HandlePrefix, so it bypasses the middleware chain).
	if cfg.EnableSwagger && len(openApiData) > 0 {
		swaggerUI.RegisterSwaggerUIServerWithOption(
			httpSrv,
			swaggerUI.WithTitle("Sysinfo Viewer"),
			swaggerUI.WithMemoryData(openApiData, "yaml"),
		)
		zap.L().Info("swagger UI available", zap.String("url", "http://"+cfg.HTTPListen+"/docs/"))
	}

	go func() {
		if err := httpSrv.Start(ctx); err != nil {
			zap.L().Error("HTTP server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		_ = httpSrv.Stop(context.Background())
	}()

	zap.L().Info("sysinfo viewer listening",
		zap.String("grpc", cfg.Listen),
		zap.String("http", cfg.HTTPListen),
		zap.String("db", cfg.DatabasePath),
		zap.Int("categories", reg.Len()),
	)
	if cfg.RetentionDays > 0 {
		zap.L().Info("retention enabled",
			zap.Int("days", cfg.RetentionDays),
			zap.Duration("purge_interval", cfg.PurgeInterval),
		)
	}

	return grpcSrv.Serve(lis)
}

func runPurgeLoop(ctx context.Context, db *store.Store, retentionDays int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeOnce(ctx, db, retentionDays)
		}
	}
}

func purgeOnce(ctx context.Context, db *store.Store, retentionDays int) {
	olderThan := time.Duration(retentionDays) * 24 * time.Hour
	n, err := db.Purge(ctx, olderThan)
	if err != nil {
		zap.L().Error("purge failed", zap.Error(err))
	} else if n > 0 {
		zap.L().Info("purged old snapshots", zap.Int64("rows", n), zap.Int("retention_days", retentionDays))
	}
}
