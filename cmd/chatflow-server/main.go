// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// chatflow-server hosts the client-facing side of the pipeline: the
// WebSocket ingress where clients connect and publish, and the internal
// fan-out receiver the consumer tier calls to push delivered messages back
// to those clients.
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
		Use:           "chatflow-server",
		Short:         "WebSocket ingress and internal fan-out receiver",
		SilenceUsage:  true,
		SilenceErrors: false,
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

	logger.Info("chat server starting")

	// Broker unreachable after bounded retries is a fatal startup error.
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

	registry := chatflow.NewRegistry()
	ingress := chatflow.NewIngressServer(registry, manager, nil, logger)
	fanout := chatflow.NewFanoutServer(registry, logger)

	wsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.WebSocketPort),
		Handler: ingress.Handler(),
	}
	fanoutSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.BroadcastPort),
		Handler: fanout.Handler(),
	}

	errCh := make(chan error, 2)
	go func() {
		if err := wsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := fanoutSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("chat server running",
		zap.String("serverId", ingress.ServerID()),
		zap.Int("webSocketPort", cfg.Server.WebSocketPort),
		zap.Int("broadcastPort", cfg.Server.BroadcastPort))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = wsSrv.Shutdown(shutdownCtx)
	_ = fanoutSrv.Shutdown(shutdownCtx)

	logger.Info("chat server stopped")
	return nil
}
