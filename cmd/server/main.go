/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"delegated-pay-go/internal/accounts"
	"delegated-pay-go/internal/api"
	"delegated-pay-go/internal/common"
	"delegated-pay-go/internal/config"
	"delegated-pay-go/internal/history"
	"delegated-pay-go/internal/identity"
	"delegated-pay-go/internal/ledger"
	"delegated-pay-go/internal/payments"
	"delegated-pay-go/internal/registry"

	"go.uber.org/zap"
)

func main() {
	addrFlag := flag.String("addr", "", "Listen address (overrides SERVER_ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting delegated payment server")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	resolver, err := identity.NewJWTResolver(cfg.Auth)
	if err != nil {
		zap.L().Fatal("Failed to initialize token resolver", zap.Error(err))
	}

	recorder := ledger.NewRecorder(services.Usage)

	paymentSvc := payments.NewService(payments.Deps{
		Chain:    services.Chain,
		Accounts: services.DbService,
		Registry: registry.New(services.DbService),
		Recorder: recorder,
		Locker:   services.Locker,
		Tokens:   services.Tokens,
	}).WithObserver(func(runId string, from, to payments.State) {
		zap.L().Debug("Payment state changed",
			zap.String("run_id", runId),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	})

	aggregator := history.NewAggregator(services.Explorer, services.Chain)
	accountSvc := accounts.NewService(services.DbService, recorder, aggregator, services.Rotator).
		WithBalances(services.Chain)

	handlers := api.NewHandlers(paymentSvc, accountSvc, services.DbService)
	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     api.Routes(handlers, resolver, cfg.Server.RequestTimeout),
		ReadTimeout: cfg.Server.RequestTimeout,
		// Payment handlers block on receipts for up to the tx timeout.
		WriteTimeout: cfg.Server.RequestTimeout + cfg.Chain.TxTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received, draining requests...")
	case err := <-serverErr:
		if err != nil {
			zap.L().Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
	} else {
		zap.L().Info("Server stopped gracefully")
	}

	if failures := recorder.FailureCount(); failures > 0 {
		zap.L().Warn("Usage recording failures during this run", zap.Int64("failures", failures))
	}
}
