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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

func (s *Service) EnsureKeySlot(ctx context.Context, endUserId, apiKey string) error {
	if _, err := s.db.ExecContext(ctx, queryInsertSlot, endUserId, apiKey); err != nil {
		return fmt.Errorf("unable to create authorization slot: %w", err)
	}
	return nil
}

func (s *Service) AddAuthorizedWallet(ctx context.Context, endUserId, apiKey, address string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, queryInsertSlot, endUserId, apiKey); err != nil {
			return fmt.Errorf("unable to create authorization slot: %w", err)
		}
		result, err := tx.ExecContext(ctx, queryInsertAuthorizedWallet, endUserId, apiKey, address)
		if err != nil {
			return fmt.Errorf("unable to add authorized wallet: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n > 0 {
			zap.L().Info("Wallet authorized",
				zap.String("end_user_id", endUserId),
				zap.String("address", address))
		}
		return nil
	})
}

func (s *Service) ListAuthorizedWallets(ctx context.Context, endUserId, apiKey string) ([]string, bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, querySlotExists, endUserId, apiKey).Scan(&count); err != nil {
		return nil, false, fmt.Errorf("unable to check authorization slot: %w", err)
	}
	if count == 0 {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx, queryListAuthorizedWallets, endUserId, apiKey)
	if err != nil {
		return nil, false, fmt.Errorf("unable to query authorized wallets: %w", err)
	}
	defer closeRows(rows)

	addresses := []string{}
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, false, fmt.Errorf("unable to scan authorized wallet: %w", err)
		}
		addresses = append(addresses, address)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating authorized wallets: %w", err)
	}
	return addresses, true, nil
}
