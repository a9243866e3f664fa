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
	"errors"
	"fmt"

	"delegated-pay-go/internal/models"
	"delegated-pay-go/internal/store"

	"go.uber.org/zap"
)

func (s *Service) GetApiKey(ctx context.Context, key string) (*models.ApiKey, error) {
	var apiKey models.ApiKey
	var walletName sql.NullString
	err := s.db.QueryRowContext(ctx, queryGetApiKey, key).Scan(
		&apiKey.Key, &apiKey.OwnerId, &apiKey.Name, &walletName, &apiKey.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrApiKeyNotFound
		}
		zap.L().Error("Failed to query api key", zap.Error(err))
		return nil, fmt.Errorf("unable to query api key: %w", err)
	}
	if walletName.Valid {
		apiKey.BoundWalletName = &walletName.String
	}
	return &apiKey, nil
}

func (s *Service) ListApiKeys(ctx context.Context, ownerId string) ([]models.ApiKey, error) {
	rows, err := s.db.QueryContext(ctx, queryListApiKeys, ownerId)
	if err != nil {
		zap.L().Error("Failed to query api keys", zap.String("owner_id", ownerId), zap.Error(err))
		return nil, fmt.Errorf("unable to query api keys: %w", err)
	}
	defer closeRows(rows)

	var keys []models.ApiKey
	for rows.Next() {
		var apiKey models.ApiKey
		var walletName sql.NullString
		if err := rows.Scan(&apiKey.Key, &apiKey.OwnerId, &apiKey.Name, &walletName, &apiKey.CreatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan api key row: %w", err)
		}
		if walletName.Valid {
			name := walletName.String
			apiKey.BoundWalletName = &name
		}
		keys = append(keys, apiKey)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api key rows: %w", err)
	}
	return keys, nil
}

func (s *Service) CreateApiKey(ctx context.Context, params store.CreateApiKeyParams) (*models.ApiKey, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, queryApiKeyNameExists, params.OwnerId, params.Name).Scan(&count); err != nil {
			return fmt.Errorf("unable to check api key name: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: key %s", store.ErrDuplicateName, params.Name)
		}

		if _, err := tx.ExecContext(ctx, queryInsertApiKey, params.Key, params.OwnerId, params.Name, nullableString(params.BoundWalletName)); err != nil {
			return fmt.Errorf("unable to insert api key: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Api key created", zap.String("owner_id", params.OwnerId), zap.String("name", params.Name))
	return s.GetApiKey(ctx, params.Key)
}

// DeleteApiKey removes the key and its usage series.
func (s *Service) DeleteApiKey(ctx context.Context, key string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, queryDeleteApiKey, key)
		if err != nil {
			return fmt.Errorf("unable to delete api key: %w", err)
		}
		if err := requireAffected(result, store.ErrApiKeyNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, queryDeleteUsage, key); err != nil {
			return fmt.Errorf("unable to delete usage: %w", err)
		}
		return nil
	})
}

func (s *Service) SetBoundWallet(ctx context.Context, key string, walletName *string) error {
	result, err := s.db.ExecContext(ctx, querySetBoundWallet, nullableString(walletName), key)
	if err != nil {
		return fmt.Errorf("unable to set bound wallet: %w", err)
	}
	return requireAffected(result, store.ErrApiKeyNotFound)
}

func (s *Service) RotateApiKey(ctx context.Context, oldKey, newKey string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, queryRotateApiKey, newKey, oldKey)
		if err != nil {
			return fmt.Errorf("unable to rotate api key: %w", err)
		}
		if err := requireAffected(result, store.ErrApiKeyNotFound); err != nil {
			return err
		}
		for _, q := range []string{queryRotateUsage, queryRotateSlots, queryRotateAuthorizedWallets} {
			if _, err := tx.ExecContext(ctx, q, newKey, oldKey); err != nil {
				return fmt.Errorf("unable to move records to rotated key: %w", err)
			}
		}
		return nil
	})
}

func requireAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
