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
	"strings"
	"time"

	"delegated-pay-go/internal/accounts"
	"delegated-pay-go/internal/chain"
	"delegated-pay-go/internal/common"
	"delegated-pay-go/internal/config"
	"delegated-pay-go/internal/history"
	"delegated-pay-go/internal/ledger"
	"delegated-pay-go/internal/models"

	"go.uber.org/zap"
)

// resolveToken accepts a configured symbol or a raw contract address.
// An empty value selects the native currency.
func resolveToken(tokens *common.TokenRegistry, value string) (contract, label string, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "native", nil
	}
	for _, t := range tokens.Tokens() {
		if strings.EqualFold(t.Symbol, value) {
			return t.Address, t.Symbol, nil
		}
	}
	if strings.HasPrefix(value, "0x") {
		if t, ok := tokens.Lookup(value); ok {
			return t.Address, t.Symbol, nil
		}
		return value, value, nil
	}
	return "", "", fmt.Errorf("unknown token %q (use a configured symbol or a contract address)", value)
}

func printHistory(wallet models.BusinessWallet, label string, points []models.BalanceHistoryPoint) {
	common.PrintSection(fmt.Sprintf("Wallet: %s (%s)", wallet.Name, common.ShortAddress(wallet.Address)),
		fmt.Sprintf("Asset: %s, Points: %d", label, len(points)))

	for i, p := range points {
		isLast := i == len(points)-1
		fmt.Printf("%s %s  %30s\n",
			common.BoxPrefix(isLast),
			time.UnixMilli(p.TimestampMillis).UTC().Format("2006-01-02 15:04:05"),
			p.Balance.String())
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	businessFlag := flag.String("business", "", "Business id or email (required)")
	walletFlag := flag.String("wallet", "", "Wallet name (default: every wallet of the business)")
	tokenFlag := flag.String("token", "", "Token symbol or contract address (default: native currency)")
	flag.Parse()

	if *businessFlag == "" {
		logger.Fatal("The --business flag is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	tokens, err := common.LoadTokenRegistry(cfg.TokensFile)
	if err != nil {
		logger.Fatal("Failed to load token registry", zap.Error(err))
	}

	contract, label, err := resolveToken(tokens, *tokenFlag)
	if err != nil {
		logger.Fatal("Invalid token", zap.Error(err))
	}

	client, err := chain.Dial(ctx, cfg.Chain, tokens)
	if err != nil {
		logger.Fatal("Failed to connect to chain", zap.Error(err))
	}
	defer client.Close()

	explorer, err := chain.NewExplorer(cfg.Explorer)
	if err != nil {
		logger.Fatal("Failed to initialize explorer client", zap.Error(err))
	}

	users, err := common.InitializeBusinesses(ctx, dbService, *businessFlag, logger)
	if err != nil {
		logger.Fatal("Failed to find business", zap.Error(err))
	}
	user := users[0]

	svc := accounts.NewService(dbService, ledger.NewRecorder(dbService), history.NewAggregator(explorer, client), nil)

	wallets := user.Wallets
	if *walletFlag != "" {
		w := user.WalletByName(*walletFlag)
		if w == nil {
			logger.Fatal("Wallet not found", zap.String("wallet", *walletFlag))
		}
		wallets = []models.BusinessWallet{*w}
	}

	common.PrintHeader("WALLET BALANCE HISTORY", common.DefaultWidth)

	failed := 0
	for _, wallet := range wallets {
		points, err := svc.BalanceHistory(ctx, user.Id, wallet.Name, contract)
		if err != nil {
			failed++
			logger.Error("Failed to build balance history",
				zap.String("wallet", wallet.Name),
				zap.String("asset", label),
				zap.Error(err))
			continue
		}
		printHistory(wallet, label, points)
	}

	summary := fmt.Sprintf("SUMMARY: %d wallets queried for %s (%d failed)", len(wallets), label, failed)
	common.PrintFooter(summary, common.DefaultWidth)
}
