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

// Package api exposes the payment and dashboard operations over HTTP.
package api

import (
	"context"
	"fmt"

	"delegated-pay-go/internal/models"
)

// PaymentService is the business-facing API, authenticated by API key.
type PaymentService interface {
	GetWalletAddress(ctx context.Context, apiKey string) (*models.WalletAddressResponse, error)
	ApproveSpending(ctx context.Context, apiKey string, req models.ApproveSpendingRequest) (*models.MessageResponse, error)
	RequestPayment(ctx context.Context, apiKey string, req models.RequestPaymentRequest) (*models.PaymentResponse, error)
	PermitSpending(ctx context.Context, apiKey string, req models.PermitSpendingRequest) (*models.PermitSpendingResponse, error)
	ReceivePayment(ctx context.Context, apiKey string, req models.ReceivePaymentRequest) (*models.ReceivePaymentResponse, error)
}

// AccountService is the dashboard API, authenticated by bearer token.
type AccountService interface {
	CreateApiKey(ctx context.Context, ownerId, name string) (string, error)
	ListApiKeys(ctx context.Context, ownerId string) ([]models.ApiKeyView, error)
	DeleteApiKey(ctx context.Context, ownerId, name string) error
	RotateApiKey(ctx context.Context, ownerId, name string) (string, error)
	SetBoundWallet(ctx context.Context, ownerId, keyName, walletName string) error
	AddWallet(ctx context.Context, ownerId string, req models.AddWalletRequest) error
	ListWallets(ctx context.Context, ownerId string) ([]models.WalletView, error)
	RemoveWallet(ctx context.Context, ownerId, name string) error
	BalanceHistory(ctx context.Context, ownerId, walletName, contract string) ([]models.BalanceHistoryPoint, error)
	WalletBalance(ctx context.Context, ownerId, walletName, contract string) (*models.WalletBalanceResponse, error)
	Usage(ctx context.Context, ownerId, keyName string, kind models.UsageKind) (models.UsageSeries, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	payments PaymentService
	accounts AccountService
	db       Pinger
}

func NewHandlers(payments PaymentService, accounts AccountService, db Pinger) *Handlers {
	return &Handlers{
		payments: payments,
		accounts: accounts,
		db:       db,
	}
}

func (h *Handlers) HealthCheck(ctx context.Context) error {
	if err := h.db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
