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
	"os"
	"regexp"

	"delegated-pay-go/internal/accounts"
	"delegated-pay-go/internal/common"
	"delegated-pay-go/internal/config"
	"delegated-pay-go/internal/identity"
	"delegated-pay-go/internal/ledger"
	"delegated-pay-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// walletFlags describes an optional settlement wallet given on the command line.
type walletFlags struct {
	name    string
	address string
	key     string
}

func (w walletFlags) provided() bool {
	return w.name != "" || w.address != "" || w.key != ""
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Business contact email (required)")
	idFlag := flag.String("id", "", "Business user id (default: generated UUID)")
	keyNameFlag := flag.String("key-name", "default", "Name of the API key to create")
	walletNameFlag := flag.String("wallet-name", "", "Settlement wallet name (optional)")
	walletAddressFlag := flag.String("wallet-address", "", "Settlement wallet address")
	tokenFlag := flag.Bool("token", false, "Also issue a dashboard bearer token")
	flag.Parse()

	if err := validateEmail(*emailFlag); err != nil {
		zap.L().Fatal("Invalid email", zap.Error(err))
	}

	wallet := walletFlags{
		name:    *walletNameFlag,
		address: *walletAddressFlag,
		// Read from the environment so the key never lands in shell history.
		key: os.Getenv("WALLET_PRIVATE_KEY"),
	}

	userId := *idFlag
	if userId == "" {
		userId = uuid.New().String()
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	svc := accounts.NewService(dbService, ledger.NewRecorder(dbService), nil, nil)

	user, err := svc.EnsureBusinessUser(ctx, userId, *emailFlag)
	if err != nil {
		zap.L().Fatal("Failed to create business user", zap.Error(err))
	}

	if wallet.provided() {
		err := svc.AddWallet(ctx, user.Id, models.AddWalletRequest{
			Name:    wallet.name,
			Address: wallet.address,
			Key:     wallet.key,
		})
		if err != nil {
			zap.L().Fatal("Failed to add wallet",
				zap.String("wallet_name", wallet.name),
				zap.Error(err))
		}
	}

	apiKey, err := svc.CreateApiKey(ctx, user.Id, *keyNameFlag)
	if err != nil {
		zap.L().Fatal("Failed to create API key", zap.String("key_name", *keyNameFlag), zap.Error(err))
	}

	var bearer string
	if *tokenFlag {
		resolver, err := identity.NewJWTResolver(cfg.Auth)
		if err != nil {
			zap.L().Fatal("Failed to initialize token issuer", zap.Error(err))
		}
		if bearer, err = resolver.IssueToken(user.Id); err != nil {
			zap.L().Fatal("Failed to issue token", zap.Error(err))
		}
	}

	fmt.Println()
	common.PrintHeader("BUSINESS CREATED", common.DefaultWidth)
	common.PrintField("ID", user.Id)
	common.PrintField("Email", user.Email)
	if wallet.provided() {
		common.PrintField("Wallet", fmt.Sprintf("%s (%s)", wallet.name, common.ShortAddress(wallet.address)))
	}
	common.PrintField("API Key", fmt.Sprintf("%s (%s)", apiKey, *keyNameFlag))
	if bearer != "" {
		common.PrintField("Token", bearer)
	}
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	if !wallet.provided() {
		fmt.Println("No wallet configured; the API key is unbound.")
		fmt.Println("Add one with WALLET_PRIVATE_KEY set and --wallet-name/--wallet-address,")
		fmt.Println("then bind it from the dashboard.")
	}

	zap.L().Info("Business created successfully",
		zap.String("id", user.Id),
		zap.String("key_name", *keyNameFlag),
		zap.Bool("wallet", wallet.provided()))
}
