package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/obsidianstack/statusroll/pkg/report"
	"github.com/obsidianstack/statusroll/pkg/tree"
	"github.com/obsidianstack/statusroll/server/internal/alerts"
	"github.com/obsidianstack/statusroll/server/internal/api"
	"github.com/obsidianstack/statusroll/server/internal/auth"
	"github.com/obsidianstack/statusroll/server/internal/config"
	"github.com/obsidianstack/statusroll/server/internal/metrics"
	"github.com/obsidianstack/statusroll/server/internal/receiver"
	"github.com/obsidianstack/statusroll/server/internal/store"
	"github.com/obsidianstack/statusroll/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "server.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "debug | info | warn | error")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	slog.Info("statusroll-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"tree_config", cfg.Server.TreeConfig,
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"staleness_ttl", cfg.Server.Staleness.TTL,
		"workers", cfg.Server.Compute.Workers,
	)

	treeOpts := []tree.Option{
		tree.WithWorkers(cfg.Server.Compute.Workers),
		tree.WithLogger(logger),
	}
	t := tree.New(treeOpts...)
	if err := t.LoadFile(cfg.Server.TreeConfig); err != nil {
		slog.Error("failed to load tree", "path", cfg.Server.TreeConfig, "err", err)
		os.Exit(1)
	}
	slog.Info("tree loaded", "nodes", t.Len(), "leaves", len(t.Leaves()), "levels", t.Levels(), "roots", t.Roots())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Store with background staleness expiry.
	st := store.New(t, cfg.Server.Staleness.TTL)
	go st.Run(ctx)

	m := metrics.New()
	st.OnCompute(m.ObserveCompute)
	m.Sync(st.Snapshot())

	alertEngine, err := alerts.New(cfg.Server.Alerts)
	if err != nil {
		slog.Error("failed to build alert rules", "err", err)
		os.Exit(1)
	}
	alertEngine.Prime(st.Snapshot())

	hub := ws.New(st, cfg.Server.Stream.Interval)
	go hub.Run(ctx)

	st.Subscribe(m.ObserveChanges)
	st.Subscribe(alertEngine.Evaluate)
	st.Subscribe(hub.Publish)

	// Tree hot reload: a broken file keeps the running tree.
	go func() {
		err := config.WatchTree(ctx, cfg.Server.TreeConfig, treeOpts, func(next *tree.Tree, err error) {
			m.ObserveReload(err)
			if err != nil {
				return
			}
			st.Reload(next)
			m.Sync(st.Snapshot())
		})
		if err != nil {
			slog.Error("tree watcher stopped", "err", err)
		}
	}()

	// gRPC server with optional API key authentication interceptor.
	header, key := cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key()
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(auth.APIKeyInterceptor(cfg.Server.Auth.Mode, header, key)))
	report.RegisterReportServiceServer(grpcSrv, receiver.New(st, receiver.WithRecorder(m.ObserveReport)))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port",
			"port", cfg.Server.GRPCPort, "err", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("gRPC receiver listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	// Combined HTTP server: REST API, WebSocket stream and metrics on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", auth.RequireKey(cfg.Server.Auth.Mode, header, key, api.New(st, alertEngine)))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", m.Handler())

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("statusroll-server shutting down", "root_status", st.RootStatus())
	grpcSrv.GracefulStop()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
