package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/janisto/hello-eks/internal/http/routes"
	"github.com/janisto/hello-eks/internal/platform/config"
	applog "github.com/janisto/hello-eks/internal/platform/logging"
	"github.com/janisto/hello-eks/internal/platform/metrics"
	appmiddleware "github.com/janisto/hello-eks/internal/platform/middleware"
	"github.com/janisto/hello-eks/internal/platform/respond"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

func main() {
	os.Exit(realMain())
}

func realMain() int {
	defer func() {
		// Sync on a stdout-backed logger reports EINVAL on some platforms; nothing to act on.
		_ = applog.Sync()
	}()
	ctx := context.Background()
	if err := applog.Err(); err != nil {
		applog.LogError(ctx, "logger init error", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		applog.LogError(ctx, "invalid configuration", err)
		return 1
	}
	if err := applog.SetLevel(cfg.Log.Level); err != nil {
		applog.LogError(ctx, "invalid log level", err)
		return 1
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		applog.LogError(ctx, "listen failed", err, zap.String("addr", cfg.Addr()))
		return 1
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, ln); err != nil {
		applog.LogError(ctx, "server error", err)
		return 1
	}
	return 0
}

// run serves on ln until ctx is cancelled, then drains in-flight requests
// within the configured shutdown timeout.
func run(ctx context.Context, cfg config.Config, ln net.Listener) error {
	srv := newServer(cfg, newRouter(cfg))

	serveErr := make(chan error, 1)
	go func() {
		applog.LogInfo(ctx, "server listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("version", Version),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		applog.LogInfo(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	applog.LogInfo(context.Background(), "server exited")
	return nil
}

func newServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeout),
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout),
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeout),
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}
}

func newRouter(cfg config.Config) http.Handler {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	stack := []func(http.Handler) http.Handler{
		appmiddleware.Security(cfg.Docs.Path),
		appmiddleware.Vary(),
		appmiddleware.CORS(),
		appmiddleware.RequestID(),
		// RealIP trusts X-Forwarded-For / X-Real-IP. The service is meant to run
		// behind the cluster load balancer; do not expose it directly.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(cfg.Server.MaxBodyBytes),
	}
	if cfg.Metrics.Enabled {
		stack = append(stack, metrics.Middleware())
	}
	stack = append(stack,
		applog.RequestLogger(),
		applog.AccessLogger(cfg.Metrics.Path),
		respond.Recoverer(),
	)
	router.Use(stack...)

	api := humachi.New(router, routes.APIConfig(Version, cfg.Docs.Path))
	api.OpenAPI().OnAddOperation = append(api.OpenAPI().OnAddOperation, addCBORContent)
	routes.Register(api)

	if cfg.Metrics.Enabled {
		metrics.SetBuildInfo(Version)
		router.Method(http.MethodGet, cfg.Metrics.Path, metrics.Handler())
	}
	return router
}

// addCBORContent advertises application/cbor next to every JSON body in the
// OpenAPI document, since huma serves both formats for the same schema.
func addCBORContent(_ *huma.OpenAPI, op *huma.Operation) {
	if op.RequestBody != nil && op.RequestBody.Content != nil {
		if jsonContent, ok := op.RequestBody.Content["application/json"]; ok {
			op.RequestBody.Content["application/cbor"] = jsonContent
		}
	}
	for _, resp := range op.Responses {
		if resp.Content == nil {
			continue
		}
		if jsonContent, ok := resp.Content["application/json"]; ok {
			resp.Content["application/cbor"] = jsonContent
		}
	}
}
