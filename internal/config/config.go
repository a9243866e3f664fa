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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"delegated-pay-go/internal/models"
)

func Load() (*models.Config, error) {
	var (
		connMaxLifetime, connMaxIdleTime, pingTimeout time.Duration
		requestTimeout, shutdownTimeout               time.Duration
		readTimeout, txTimeout                        time.Duration
		explorerBaseDelay, tokenTTL, lockTTL          time.Duration
	)
	var err error
	if connMaxLifetime, err = getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, err
	}
	if connMaxIdleTime, err = getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second); err != nil {
		return nil, err
	}
	if pingTimeout, err = getEnvDuration("DB_PING_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if requestTimeout, err = getEnvDuration("SERVER_REQUEST_TIMEOUT", 90*time.Second); err != nil {
		return nil, err
	}
	if shutdownTimeout, err = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if readTimeout, err = getEnvDuration("CHAIN_READ_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if txTimeout, err = getEnvDuration("CHAIN_TX_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if explorerBaseDelay, err = getEnvDuration("EXPLORER_BASE_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if tokenTTL, err = getEnvDuration("AUTH_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if lockTTL, err = getEnvDuration("LOCK_TTL", 90*time.Second); err != nil {
		return nil, err
	}

	chainId, err := getEnvInt64("CHAIN_ID", 0)
	if err != nil {
		return nil, err
	}

	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "payments.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("SERVER_ADDR", ":8080"),
			RequestTimeout:  requestTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
		Chain: models.ChainConfig{
			RpcURL:      getEnvString("CHAIN_RPC_URL", "http://127.0.0.1:8545"),
			ChainId:     chainId,
			ReadTimeout: readTimeout,
			TxTimeout:   txTimeout,
		},
		Explorer: models.ExplorerConfig{
			BaseURL:     getEnvString("EXPLORER_API_URL", "https://api.etherscan.io/api"),
			ApiKey:      getEnvString("EXPLORER_API_KEY", ""),
			MaxAttempts: getEnvInt("EXPLORER_MAX_ATTEMPTS", 4),
			BaseDelay:   explorerBaseDelay,
		},
		Auth: models.AuthConfig{
			JwtSecret: getEnvString("AUTH_JWT_SECRET", ""),
			JwtIssuer: getEnvString("AUTH_JWT_ISSUER", "delegated-pay"),
			TokenTTL:  tokenTTL,
		},
		Locks: models.LockConfig{
			Backend:   getEnvString("LOCK_BACKEND", "local"),
			RedisURL:  getEnvString("REDIS_URL", "redis://127.0.0.1:6379/0"),
			KeyPrefix: getEnvString("LOCK_KEY_PREFIX", "delegated-pay:lock"),
			TTL:       lockTTL,
		},
		Usage: models.UsageConfig{
			Backend: getEnvString("USAGE_BACKEND", "sqlite"),
			Formance: models.FormanceConfig{
				StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
				ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
				ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
				LedgerName:   getEnvString("FORMANCE_LEDGER", "delegated-pay-usage"),
			},
		},
		TokensFile: getEnvString("TOKENS_FILE", ""),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *models.Config) error {
	switch cfg.Locks.Backend {
	case "local", "redis", "none":
	default:
		return fmt.Errorf("invalid LOCK_BACKEND %q (want local, redis or none)", cfg.Locks.Backend)
	}
	switch cfg.Usage.Backend {
	case "sqlite", "formance":
	default:
		return fmt.Errorf("invalid USAGE_BACKEND %q (want sqlite or formance)", cfg.Usage.Backend)
	}
	if cfg.Explorer.MaxAttempts < 1 {
		return fmt.Errorf("EXPLORER_MAX_ATTEMPTS must be at least 1, got %d", cfg.Explorer.MaxAttempts)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %q (%w)", key, value, err)
		}
		return intValue, nil
	}
	return defaultValue, nil
}
