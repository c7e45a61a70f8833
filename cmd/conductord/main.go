// Package main is Conductor's daemon entry point: a single long-running
// process wiring the registry store, session sidecar, supervisor, and RPC
// server together behind one Unix domain socket. There is no
// split-service mode; one binary, one socket, one SQLite database per
// workstation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/conductor-dev/conductor/internal/common/config"
	"github.com/conductor-dev/conductor/internal/common/logger"
	"github.com/conductor-dev/conductor/internal/db"
	"github.com/conductor-dev/conductor/internal/events"
	"github.com/conductor-dev/conductor/internal/rpc"
	"github.com/conductor-dev/conductor/internal/store"
	"github.com/conductor-dev/conductor/internal/supervisor"
	"github.com/conductor-dev/conductor/internal/tracing"
	"github.com/conductor-dev/conductor/internal/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("starting conductord",
		zap.String("socket", cfg.Server.SocketPath),
		zap.String("db", cfg.Store.DBPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracing.Configure(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown error", zap.Error(err))
		}
	}()

	eventBus, closeBus, err := events.Provide(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize event bus", zap.Error(err))
	}
	defer closeBus()

	st, err := store.Connect(ctx, cfg.Store.DBPath, db.Options{
		BusyTimeout: time.Duration(cfg.Store.BusyTimeoutMS) * time.Millisecond,
		ReaderConns: cfg.Store.ReaderConnections,
	}, log)
	if err != nil {
		log.Fatal("failed to open workspace store", zap.Error(err))
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("store close error", zap.Error(err))
		}
	}()

	if err := store.EnsureHomeDirs(cfg.Store.HomeDir); err != nil {
		log.Fatal("failed to prepare home directories", zap.Error(err))
	}
	lifecycle := workspace.NewManager(st, cfg.Store.HomeDir, log)

	sup := supervisor.New(log, supervisor.Options{
		BroadcastBuffer: cfg.Supervisor.BroadcastBufferSize,
		StopGrace:       cfg.Supervisor.StopGrace(),
	})
	sup.SetEventBus(eventBus)
	if cfg.Supervisor.EnginesConfigPath != "" {
		if err := sup.LoadEngines(cfg.Supervisor.EnginesConfigPath); err != nil {
			log.Warn("failed to load engines config, using defaults",
				zap.String("path", cfg.Supervisor.EnginesConfigPath), zap.Error(err))
		}
	}

	server := rpc.NewServer(rpc.Config{
		SocketPath:     cfg.Server.SocketPath,
		SocketPermMode: os.FileMode(cfg.Server.SocketPermMode),
		DefaultEngine:  cfg.Supervisor.DefaultEngine,
	}, lifecycle, sup, eventBus, log)

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- server.ListenAndServe(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serveErrCh:
		if err != nil {
			log.Error("rpc surface stopped unexpectedly", zap.Error(err))
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace()+5*time.Second)
	defer shutdownCancel()

	sup.Shutdown(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("rpc surface shutdown error", zap.Error(err))
	}

	log.Info("conductord stopped")
}
