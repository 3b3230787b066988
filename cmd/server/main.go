package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spai/internal/api"
	"spai/internal/app/bootstrap"
	"spai/internal/platform/config"
	applog "spai/internal/platform/log"
	"spai/internal/provider"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}

	applog.Init(applog.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	defer applog.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, closeStore, err := bootstrap.BuildStore(ctx, cfg)
	if err != nil {
		applog.Fatalf("❌ Failed to initialize summary store (%s): %v", cfg.Store.Backend, err)
	}
	defer closeStore()

	registry := provider.NewRegistry()
	if err := bootstrap.RegisterLLMProviders(registry, cfg); err != nil {
		applog.Fatalf("❌ Failed to register LLM provider: %v", err)
	}

	engine := bootstrap.BuildEngine(cfg, registry, store)
	engine.StartJanitor(ctx, cfg.Session.JanitorInterval(), cfg.Session.MaxIdle())

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	serverConfig.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	serverConfig.MaxBodyBytes = cfg.Server.MaxBodyBytes
	serverConfig.JWTSecret = cfg.Auth.JWTSecret
	serverConfig.JWTIssuer = cfg.Auth.JWTIssuer
	server := api.NewServer(serverConfig, engine)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		applog.Info("🔄 Shutting down...")
		stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()

		if err := server.Stop(shutdownCtx); err != nil {
			applog.Errorf("❌ Server shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		applog.Fatalf("❌ Server error: %v", err)
	}

	applog.Info("👋 Server stopped")
}
