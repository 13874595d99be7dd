// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// chatflow-consumer hosts the delivery side of the pipeline: the partitioned
// consumer pool draining the per-room queues, Redis deduplication, the
// retrying delivery router, and the health surface.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chatflow "github.com/jennnyren/ChatFlow-2"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "chatflow-consumer",
		Short:        "Partitioned consumer pool with deduplication and fan-out routing",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	return cmd
}

func run(configPath string) error {
	cfg, err := chatflow.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := chatflow.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("chat consumer starting")

	manager, err := chatflow.NewConnManager(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Error("broker connection failed", zap.Error(err))
		return err
	}
	defer func() { _ = manager.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := manager.DeclareTopology(ctx, cfg.Consumer.Rooms); err != nil {
		logger.Error("topology declaration failed", zap.Error(err))
		return err
	}

	dedup := chatflow.NewDedupStore(cfg.Redis, logger)
	defer func() { _ = dedup.Close() }()

	gateway := chatflow.NewBroadcastGateway(cfg.Broadcast, logger)
	router := chatflow.NewRouter(gateway, cfg.Consumer.RetryMax, cfg.Consumer.RetryDelay, logger)

	promReg := prometheus.NewRegistry()
	metrics := chatflow.NewPipelineMetrics(promReg)

	pool := chatflow.NewConsumerPool(cfg.Consumer, cfg.RabbitMQ.ReconnectDelay,
		manager, dedup, router, metrics, logger)
	if err := pool.Start(ctx, cfg.Consumer.Rooms); err != nil {
		return err
	}

	health := chatflow.NewHealthServer(pool, promReg, logger)
	healthSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Consumer.HealthPort),
		Handler: health.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := healthSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("chat consumer running",
		zap.Strings("rooms", cfg.Consumer.Rooms),
		zap.String("broadcastURL", cfg.Broadcast.URL),
		zap.Int("healthPort", cfg.Consumer.HealthPort))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("health server failed", zap.Error(err))
		return err
	}

	if err := pool.Shutdown(); err != nil {
		logger.Warn("consumer pool shutdown", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	logger.Info("chat consumer stopped")
	return nil
}
