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

// Package accounts manages what a business configures from its dashboard:
// API keys, settlement wallets, and the usage and balance views over them.
package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"delegated-pay-go/internal/apperr"
	"delegated-pay-go/internal/models"
	"delegated-pay-go/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const apiKeyBytes = 32

type Store interface {
	store.KeyStore
	store.UserStore
}

type UsageReader interface {
	GetUseCounts(ctx context.Context, apiKey string) (map[string]decimal.Decimal, error)
	GetTransferAmounts(ctx context.Context, apiKey string) (map[string]decimal.Decimal, error)
	GetFeeAmounts(ctx context.Context, apiKey string) (map[string]decimal.Decimal, error)
}

type HistoryReader interface {
	BalanceHistory(ctx context.Context, wallet common.Address, token *common.Address) ([]models.BalanceHistoryPoint, error)
}

// BalanceReader formats a live token balance, or a placeholder when the
// node cannot be read.
type BalanceReader interface {
	Balance(ctx context.Context, owner, token common.Address) string
}

type Service struct {
	store   Store
	usage   UsageReader
	history HistoryReader
	rotator store.UsageRotator

	balances BalanceReader
}

// NewService wires the dashboard operations. rotator is only needed when
// usage lives outside store and must follow a rotated key; it may be nil.
func NewService(s Store, usage UsageReader, history HistoryReader, rotator store.UsageRotator) *Service {
	return &Service{store: s, usage: usage, history: history, rotator: rotator}
}

// WithBalances enables live wallet balance lookups.
func (s *Service) WithBalances(b BalanceReader) *Service {
	s.balances = b
	return s
}

// EnsureBusinessUser creates the business user on first sight.
func (s *Service) EnsureBusinessUser(ctx context.Context, id, email string) (*models.BusinessUser, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("user id is required")
	}
	user, err := s.store.CreateBusinessUser(ctx, id, email)
	if err != nil {
		return nil, apperr.Internal(err, "unable to create business user")
	}
	return user, nil
}

// ---------- API keys ----------

// CreateApiKey issues a new key for owner, bound to the owner's first wallet if any.
func (s *Service) CreateApiKey(ctx context.Context, ownerId, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("Key name required")
	}
	user, err := s.owner(ctx, ownerId)
	if err != nil {
		return "", err
	}

	key, err := generateApiKey()
	if err != nil {
		return "", apperr.Internal(err, "unable to generate API key")
	}

	params := store.CreateApiKeyParams{Key: key, OwnerId: ownerId, Name: name}
	if len(user.Wallets) > 0 {
		params.BoundWalletName = &user.Wallets[0].Name
	}

	if _, err := s.store.CreateApiKey(ctx, params); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			return "", apperr.Validation("Key name already in use")
		}
		return "", apperr.Internal(err, "unable to create API key")
	}

	zap.L().Info("API key created", zap.String("owner_id", ownerId), zap.String("name", name))
	return key, nil
}

// ListApiKeys returns owner's keys with the secret masked.
func (s *Service) ListApiKeys(ctx context.Context, ownerId string) ([]models.ApiKeyView, error) {
	if _, err := s.owner(ctx, ownerId); err != nil {
		return nil, err
	}
	keys, err := s.store.ListApiKeys(ctx, ownerId)
	if err != nil {
		return nil, apperr.Internal(err, "unable to list API keys")
	}

	views := make([]models.ApiKeyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, models.ApiKeyView{Name: k.Name, Key: MaskKey(k.Key), Wallet: k.BoundWalletName})
	}
	return views, nil
}

func (s *Service) DeleteApiKey(ctx context.Context, ownerId, name string) error {
	key, err := s.keyByName(ctx, ownerId, name)
	if err != nil {
		return err
	}
	if err := s.store.DeleteApiKey(ctx, key.Key); err != nil {
		return apperr.Internal(err, "unable to delete API key")
	}
	zap.L().Info("API key deleted", zap.String("owner_id", ownerId), zap.String("name", name))
	return nil
}

// RotateApiKey replaces the secret of a named key. Usage and end-user
// authorizations move to the new secret; the old one stops working.
func (s *Service) RotateApiKey(ctx context.Context, ownerId, name string) (string, error) {
	key, err := s.keyByName(ctx, ownerId, name)
	if err != nil {
		return "", err
	}
	newKey, err := generateApiKey()
	if err != nil {
		return "", apperr.Internal(err, "unable to generate API key")
	}

	if s.rotator != nil {
		if err := s.rotator.RotateUsage(ctx, key.Key, newKey); err != nil {
			return "", apperr.Internal(err, "unable to move usage history")
		}
	}
	if err := s.store.RotateApiKey(ctx, key.Key, newKey); err != nil {
		return "", apperr.Internal(err, "unable to rotate API key")
	}

	zap.L().Info("API key rotated", zap.String("owner_id", ownerId), zap.String("name", name))
	return newKey, nil
}

// SetBoundWallet binds the named key to one of the owner's wallets.
func (s *Service) SetBoundWallet(ctx context.Context, ownerId, keyName, walletName string) error {
	if strings.TrimSpace(walletName) == "" {
		return apperr.Validation("Wallet name required")
	}
	user, err := s.owner(ctx, ownerId)
	if err != nil {
		return err
	}
	if user.WalletByName(walletName) == nil {
		return apperr.NotFound("Wallet not found")
	}
	key, err := s.keyByName(ctx, ownerId, keyName)
	if err != nil {
		return err
	}
	if err := s.store.SetBoundWallet(ctx, key.Key, &walletName); err != nil {
		return apperr.Internal(err, "unable to set wallet")
	}
	return nil
}

// ---------- wallets ----------

// AddWallet registers a settlement wallet. The signing key must control address.
func (s *Service) AddWallet(ctx context.Context, ownerId string, req models.AddWalletRequest) error {
	name := strings.TrimSpace(req.Name)
	address := strings.TrimSpace(req.Address)
	signingKey := strings.TrimPrefix(strings.TrimSpace(req.Key), "0x")
	if name == "" || address == "" || signingKey == "" {
		return apperr.Validation("Wallet name, address, and private key are required")
	}
	if !common.IsHexAddress(address) {
		return apperr.Validation("invalid wallet address: %s", address)
	}
	privateKey, err := crypto.HexToECDSA(signingKey)
	if err != nil {
		return apperr.Validation("invalid private key")
	}
	if crypto.PubkeyToAddress(privateKey.PublicKey) != common.HexToAddress(address) {
		return apperr.Validation("Private key does not match wallet address")
	}
	if _, err := s.owner(ctx, ownerId); err != nil {
		return err
	}

	err = s.store.AddWallet(ctx, ownerId, models.BusinessWallet{
		Name:       name,
		Address:    common.HexToAddress(address).Hex(),
		SigningKey: signingKey,
	})
	switch {
	case errors.Is(err, store.ErrDuplicateName):
		return apperr.Validation("Wallet name already in use")
	case errors.Is(err, store.ErrDuplicateAddress):
		return apperr.Validation("Wallet address already in use")
	case err != nil:
		return apperr.Internal(err, "unable to add wallet")
	}

	zap.L().Info("Wallet added", zap.String("owner_id", ownerId), zap.String("name", name))
	return nil
}

// ListWallets returns owner's wallets without key material.
func (s *Service) ListWallets(ctx context.Context, ownerId string) ([]models.WalletView, error) {
	user, err := s.owner(ctx, ownerId)
	if err != nil {
		return nil, err
	}
	views := make([]models.WalletView, 0, len(user.Wallets))
	for _, w := range user.Wallets {
		views = append(views, models.WalletView{Name: w.Name, Address: w.Address})
	}
	return views, nil
}

// RemoveWallet unbinds every key using the wallet, then drops it.
func (s *Service) RemoveWallet(ctx context.Context, ownerId, name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("Wallet name required")
	}
	user, err := s.owner(ctx, ownerId)
	if err != nil {
		return err
	}
	if user.WalletByName(name) == nil {
		return apperr.NotFound("Wallet not found")
	}

	keys, err := s.store.ListApiKeys(ctx, ownerId)
	if err != nil {
		return apperr.Internal(err, "unable to list API keys")
	}
	for _, k := range keys {
		if k.BoundWalletName != nil && *k.BoundWalletName == name {
			if err := s.store.SetBoundWallet(ctx, k.Key, nil); err != nil {
				return apperr.Internal(err, "unable to unbind API key")
			}
		}
	}

	remaining := make([]models.BusinessWallet, 0, len(user.Wallets))
	for _, w := range user.Wallets {
		if w.Name != name {
			remaining = append(remaining, w)
		}
	}
	if err := s.store.ReplaceWallets(ctx, ownerId, remaining); err != nil {
		return apperr.Internal(err, "unable to remove wallet")
	}

	zap.L().Info("Wallet removed", zap.String("owner_id", ownerId), zap.String("name", name))
	return nil
}

// BalanceHistory reconstructs the named wallet's balance of contract, or of
// the native currency when contract is empty.
func (s *Service) BalanceHistory(ctx context.Context, ownerId, walletName, contract string) ([]models.BalanceHistoryPoint, error) {
	user, err := s.owner(ctx, ownerId)
	if err != nil {
		return nil, err
	}
	wallet := user.WalletByName(walletName)
	if wallet == nil {
		return nil, apperr.NotFound("Wallet not found")
	}

	var token *common.Address
	if contract = strings.TrimSpace(contract); contract != "" {
		if !common.IsHexAddress(contract) {
			return nil, apperr.Validation("invalid contract address: %s", contract)
		}
		addr := common.HexToAddress(contract)
		token = &addr
	}
	return s.history.BalanceHistory(ctx, common.HexToAddress(wallet.Address), token)
}

// WalletBalance returns the named wallet's current balance of contract.
func (s *Service) WalletBalance(ctx context.Context, ownerId, walletName, contract string) (*models.WalletBalanceResponse, error) {
	user, err := s.owner(ctx, ownerId)
	if err != nil {
		return nil, err
	}
	wallet := user.WalletByName(walletName)
	if wallet == nil {
		return nil, apperr.NotFound("Wallet not found")
	}
	contract = strings.TrimSpace(contract)
	if !common.IsHexAddress(contract) {
		return nil, apperr.Validation("contractAddress must be a hex address")
	}
	if s.balances == nil {
		return nil, apperr.Internal(errors.New("no balance reader configured"), "balance lookup unavailable")
	}

	token := common.HexToAddress(contract)
	return &models.WalletBalanceResponse{
		Wallet:          wallet.Name,
		Address:         wallet.Address,
		ContractAddress: token.Hex(),
		Balance:         s.balances.Balance(ctx, common.HexToAddress(wallet.Address), token),
	}, nil
}

// ---------- usage ----------

// Usage returns the daily series of kind for the named key.
func (s *Service) Usage(ctx context.Context, ownerId, keyName string, kind models.UsageKind) (models.UsageSeries, error) {
	key, err := s.keyByName(ctx, ownerId, keyName)
	if err != nil {
		return nil, err
	}

	var series map[string]decimal.Decimal
	switch kind {
	case models.UsageUses:
		series, err = s.usage.GetUseCounts(ctx, key.Key)
	case models.UsageTransfers:
		series, err = s.usage.GetTransferAmounts(ctx, key.Key)
	case models.UsageFees:
		series, err = s.usage.GetFeeAmounts(ctx, key.Key)
	default:
		return nil, apperr.Validation("unknown usage kind: %s", kind)
	}
	if err != nil {
		return nil, apperr.Internal(err, "unable to read usage")
	}
	return models.UsageSeries(series), nil
}

// ---------- helpers ----------

func (s *Service) owner(ctx context.Context, ownerId string) (*models.BusinessUser, error) {
	user, err := s.store.GetBusinessUser(ctx, ownerId)
	if errors.Is(err, store.ErrBusinessUserNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "unable to read business user")
	}
	return user, nil
}

func (s *Service) keyByName(ctx context.Context, ownerId, name string) (*models.ApiKey, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Validation("API key name required")
	}
	keys, err := s.store.ListApiKeys(ctx, ownerId)
	if err != nil {
		return nil, apperr.Internal(err, "unable to list API keys")
	}
	for i := range keys {
		if keys[i].Name == name {
			return &keys[i], nil
		}
	}
	return nil, apperr.NotFound("API key not found")
}

func generateApiKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("unable to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// MaskKey shows only the first and last four characters of a key.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}
