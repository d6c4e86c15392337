package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/obsidianstack/statusroll/agent/internal/compute"
	"github.com/obsidianstack/statusroll/agent/internal/config"
	"github.com/obsidianstack/statusroll/agent/internal/runner"
	"github.com/obsidianstack/statusroll/agent/internal/shipper"
)

func main() {
	configPath := flag.String("config", "agent.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "debug | info | warn | error")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	slog.Info("statusroll-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"id", cfg.Agent.ID,
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"probes", len(cfg.Agent.Probes),
		"probe_interval", cfg.Agent.ProbeInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ship := shipper.New(cfg.Agent)
	go ship.Run(ctx)

	run := runner.New(compute.NewEngine(cfg.Agent.ShipInterval), ship)
	if err := run.Apply(cfg.Agent.Probes); err != nil {
		slog.Warn("some probes were not registered", "err", err)
	}
	if run.Len() == 0 {
		slog.Warn("no probes configured, agent will idle")
	}

	// Probe changes apply on reload; endpoint, auth and intervals need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			if err := run.Apply(updated.Agent.Probes); err != nil {
				slog.Warn("some probes were not registered", "err", err)
			}
			slog.Info("probes reloaded", "probes", run.Len())
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	go run.Run(ctx, cfg.Agent.ProbeInterval)

	<-ctx.Done()
	slog.Info("statusroll-agent shutting down", "root_status", ship.RootStatus())
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
