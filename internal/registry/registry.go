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

// Package registry tracks which end-user wallets have authorized a business
// (identified by API key) to pull tokens on their behalf.
package registry

import (
	"context"
	"strings"

	"delegated-pay-go/internal/apperr"
	"delegated-pay-go/internal/store"

	"github.com/ethereum/go-ethereum/common"
)

type Registry struct {
	store store.AuthorizationStore
}

func New(s store.AuthorizationStore) *Registry {
	return &Registry{store: s}
}

// EnsureKeySlot creates an empty slot for (endUserId, apiKey) if none exists.
func (r *Registry) EnsureKeySlot(ctx context.Context, endUserId, apiKey string) error {
	if strings.TrimSpace(endUserId) == "" {
		return apperr.Validation("userId is required")
	}
	if err := r.store.EnsureKeySlot(ctx, endUserId, apiKey); err != nil {
		return apperr.Internal(err, "unable to update authorizations")
	}
	return nil
}

// AddAuthorizedWallet appends address to the slot unless already present.
// Addresses are stored in checksummed form so letter case never duplicates.
func (r *Registry) AddAuthorizedWallet(ctx context.Context, endUserId, apiKey, address string) error {
	if strings.TrimSpace(endUserId) == "" {
		return apperr.Validation("userId is required")
	}
	normalized, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	if err := r.store.AddAuthorizedWallet(ctx, endUserId, apiKey, normalized); err != nil {
		return apperr.Internal(err, "unable to update authorizations")
	}
	return nil
}

// ListAuthorizedWallets returns the slot's addresses in insertion order;
// found is false when the end user never approved anything under apiKey.
func (r *Registry) ListAuthorizedWallets(ctx context.Context, endUserId, apiKey string) ([]common.Address, bool, error) {
	raw, found, err := r.store.ListAuthorizedWallets(ctx, endUserId, apiKey)
	if err != nil {
		return nil, false, apperr.Internal(err, "unable to read authorizations")
	}
	if !found {
		return nil, false, nil
	}

	addresses := make([]common.Address, 0, len(raw))
	for _, a := range raw {
		addresses = append(addresses, common.HexToAddress(a))
	}
	return addresses, true, nil
}

// NormalizeAddress validates a hex address and returns its EIP-55 form.
func NormalizeAddress(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	if !common.IsHexAddress(trimmed) {
		return "", apperr.Validation("invalid wallet address: %s", address)
	}
	return common.HexToAddress(trimmed).Hex(), nil
}
