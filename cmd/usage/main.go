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
	"flag"
	"fmt"
	"sort"

	"delegated-pay-go/internal/accounts"
	"delegated-pay-go/internal/common"
	"delegated-pay-go/internal/config"
	"delegated-pay-go/internal/database"
	"delegated-pay-go/internal/ledger"
	"delegated-pay-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type usageStats struct {
	totalUsers    int
	totalKeys     int
	keysWithUsage int
}

// keyUsage is the summed usage of one API key.
type keyUsage struct {
	uses      decimal.Decimal
	transfers decimal.Decimal
	fees      decimal.Decimal
	lastDay   string
}

func (u keyUsage) empty() bool {
	return u.lastDay == ""
}

func summarize(series ...map[string]decimal.Decimal) (totals []decimal.Decimal, lastDay string) {
	totals = make([]decimal.Decimal, len(series))
	for i, s := range series {
		for day, amount := range s {
			totals[i] = totals[i].Add(amount)
			if day > lastDay {
				lastDay = day
			}
		}
	}
	return totals, lastDay
}

func loadKeyUsage(ctx context.Context, recorder *ledger.Recorder, apiKey string) (keyUsage, error) {
	uses, err := recorder.GetUseCounts(ctx, apiKey)
	if err != nil {
		return keyUsage{}, fmt.Errorf("failed to get use counts: %w", err)
	}
	transfers, err := recorder.GetTransferAmounts(ctx, apiKey)
	if err != nil {
		return keyUsage{}, fmt.Errorf("failed to get transfer amounts: %w", err)
	}
	fees, err := recorder.GetFeeAmounts(ctx, apiKey)
	if err != nil {
		return keyUsage{}, fmt.Errorf("failed to get fee amounts: %w", err)
	}

	totals, lastDay := summarize(uses, transfers, fees)
	return keyUsage{uses: totals[0], transfers: totals[1], fees: totals[2], lastDay: lastDay}, nil
}

func printKeyUsage(key models.ApiKey, usage keyUsage, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	wallet := "unbound"
	if key.BoundWalletName != nil {
		wallet = *key.BoundWalletName
	}

	fmt.Printf("%s %-15s %s (wallet: %s)\n", symbol, key.Name, accounts.MaskKey(key.Key), wallet)
	if usage.empty() {
		fmt.Printf("%s   no usage recorded\n", common.BoxDetailPrefix(isLast))
		return
	}
	fmt.Printf("%s   uses: %s, transferred: %s, fees: %s (last: %s)\n",
		common.BoxDetailPrefix(isLast),
		usage.uses.String(),
		usage.transfers.String(),
		usage.fees.String(),
		usage.lastDay)
}

func printUserHeader(user models.BusinessUser, keyCount int) {
	common.PrintSection("Business: "+user.Email,
		"ID: "+user.Id,
		fmt.Sprintf("Wallets: %d, API keys: %d", len(user.Wallets), keyCount))
}

func processUser(ctx context.Context, user models.BusinessUser, dbService *database.Service, recorder *ledger.Recorder, logger *zap.Logger) (int, int, error) {
	keys, err := dbService.ListApiKeys(ctx, user.Id)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list api keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, 0, nil
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	printUserHeader(user, len(keys))

	withUsage := 0
	for i, key := range keys {
		usage, err := loadKeyUsage(ctx, recorder, key.Key)
		if err != nil {
			logger.Error("Failed to load key usage",
				zap.String("user_id", user.Id),
				zap.String("key_name", key.Name),
				zap.Error(err))
			continue
		}
		if !usage.empty() {
			withUsage++
		}
		printKeyUsage(key, usage, i == len(keys)-1)
	}
	return len(keys), withUsage, nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	filterFlag := flag.String("business", "", "Filter by business id or email (optional)")
	flag.Parse()

	logger.Info("Starting usage report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	usageStore, _, err := common.InitializeUsageStore(ctx, cfg.Usage, dbService)
	if err != nil {
		logger.Fatal("Failed to initialize usage store", zap.Error(err))
	}
	recorder := ledger.NewRecorder(usageStore)

	users, err := common.InitializeBusinesses(ctx, dbService, *filterFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize businesses", zap.Error(err))
	}

	common.PrintHeader("API KEY USAGE REPORT", common.DefaultWidth)

	stats := usageStats{}
	for _, user := range users {
		stats.totalUsers++
		keyCount, withUsage, err := processUser(ctx, user, dbService, recorder, logger)
		if err != nil {
			logger.Error("Failed to process business",
				zap.String("user_id", user.Id),
				zap.Error(err))
			continue
		}
		stats.totalKeys += keyCount
		stats.keysWithUsage += withUsage
	}

	summary := fmt.Sprintf("SUMMARY: %d of %d API keys have usage (%d businesses queried, backend: %s)",
		stats.keysWithUsage, stats.totalKeys, stats.totalUsers, cfg.Usage.Backend)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Usage report completed",
		zap.Int("businesses_queried", stats.totalUsers),
		zap.Int("api_keys", stats.totalKeys),
		zap.Int("api_keys_with_usage", stats.keysWithUsage))
}
