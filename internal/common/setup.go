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

package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"delegated-pay-go/internal/chain"
	"delegated-pay-go/internal/database"
	"delegated-pay-go/internal/formance"
	"delegated-pay-go/internal/locks"
	"delegated-pay-go/internal/models"
	"delegated-pay-go/internal/store"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService *database.Service
	Usage     store.UsageStore
	Rotator   store.UsageRotator
	Chain     *chain.Client
	Explorer  *chain.Explorer
	Tokens    *TokenRegistry
	Locker    locks.Locker

	closers []func()
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices builds everything the HTTP server needs. On error,
// whatever was already opened is closed.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	services := &Services{}
	fail := func(err error) (*Services, error) {
		services.Close()
		return nil, err
	}

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	services.DbService = dbService
	services.closers = append(services.closers, dbService.Close)

	services.Usage, services.Rotator, err = InitializeUsageStore(ctx, cfg.Usage, dbService)
	if err != nil {
		return fail(err)
	}

	zap.L().Info("Loading token registry", zap.String("file", cfg.TokensFile))
	services.Tokens, err = LoadTokenRegistry(cfg.TokensFile)
	if err != nil {
		return fail(err)
	}

	services.Chain, err = chain.Dial(ctx, cfg.Chain, services.Tokens)
	if err != nil {
		return fail(err)
	}
	services.closers = append(services.closers, services.Chain.Close)

	services.Explorer, err = chain.NewExplorer(cfg.Explorer)
	if err != nil {
		return fail(err)
	}

	locker, closeLocker, err := InitializeLocker(ctx, cfg.Locks)
	if err != nil {
		return fail(err)
	}
	services.Locker = locker
	services.closers = append(services.closers, closeLocker)

	zap.L().Info("Services initialized",
		zap.String("usage_backend", cfg.Usage.Backend),
		zap.String("lock_backend", cfg.Locks.Backend),
		zap.Int("tokens", len(services.Tokens.Tokens())))
	return services, nil
}

// InitializeDatabaseOnly initializes just the database service without chain access
// Useful for administrative commands like adding a business
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

// InitializeUsageStore picks the usage backend. The SQLite store keeps usage
// next to the keys, so only the Formance backend needs an explicit rotator.
func InitializeUsageStore(ctx context.Context, cfg models.UsageConfig, db *database.Service) (store.UsageStore, store.UsageRotator, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return db, nil, nil
	case "formance":
		svc, err := formance.NewService(ctx, cfg.Formance)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to initialize formance usage store: %w", err)
		}
		return svc, svc, nil
	default:
		return nil, nil, fmt.Errorf("unknown usage backend %q", cfg.Backend)
	}
}

// InitializeLocker returns the wallet locker and a func releasing its resources.
func InitializeLocker(ctx context.Context, cfg models.LockConfig) (locks.Locker, func(), error) {
	switch cfg.Backend {
	case "", "local":
		return locks.NewLocalLocker(), func() {}, nil
	case "none":
		zap.L().Warn("Wallet locking disabled; concurrent payments rely on on-chain rejection")
		return locks.NoopLocker{}, func() {}, nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("unable to reach redis: %w", err)
		}
		zap.L().Info("Using redis wallet locks", zap.String("addr", opts.Addr))
		closeClient := func() {
			if err := client.Close(); err != nil {
				zap.L().Warn("Failed to close redis client", zap.Error(err))
			}
		}
		return locks.NewRedisLocker(client, cfg.KeyPrefix, cfg.TTL), closeClient, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}

func (cs *Services) Close() {
	for i := len(cs.closers) - 1; i >= 0; i-- {
		cs.closers[i]()
	}
	cs.closers = nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
