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
	"strings"

	"delegated-pay-go/internal/models"
	"delegated-pay-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) GetBusinessUser(ctx context.Context, id string) (*models.BusinessUser, error) {
	zap.L().Debug("Querying business user", zap.String("owner_id", id))

	var user models.BusinessUser
	err := s.db.QueryRowContext(ctx, queryGetBusinessUser, id).Scan(&user.Id, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrBusinessUserNotFound, id)
		}
		zap.L().Error("Failed to query business user", zap.String("owner_id", id), zap.Error(err))
		return nil, fmt.Errorf("unable to query business user: %w", err)
	}

	wallets, err := queryWallets(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	user.Wallets = wallets
	return &user, nil
}

// ListBusinessUsers returns every business user with its wallets, oldest first.
func (s *Service) ListBusinessUsers(ctx context.Context) ([]models.BusinessUser, error) {
	rows, err := s.db.QueryContext(ctx, queryListBusinessUsers)
	if err != nil {
		zap.L().Error("Failed to query business users", zap.Error(err))
		return nil, fmt.Errorf("unable to query business users: %w", err)
	}
	defer closeRows(rows)

	var users []models.BusinessUser
	for rows.Next() {
		var user models.BusinessUser
		if err := rows.Scan(&user.Id, &user.Email, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan business user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating business users: %w", err)
	}

	for i := range users {
		wallets, err := queryWallets(ctx, s.db, users[i].Id)
		if err != nil {
			return nil, err
		}
		users[i].Wallets = wallets
	}
	return users, nil
}

func (s *Service) CreateBusinessUser(ctx context.Context, id, email string) (*models.BusinessUser, error) {
	result, err := s.db.ExecContext(ctx, queryInsertBusinessUser, id, email)
	if err != nil {
		zap.L().Error("Failed to insert business user", zap.String("owner_id", id), zap.Error(err))
		return nil, fmt.Errorf("unable to insert business user: %w", err)
	}

	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected > 0 {
		zap.L().Info("Business user created", zap.String("owner_id", id), zap.String("email", email))
	}

	return s.GetBusinessUser(ctx, id)
}

func (s *Service) AddWallet(ctx context.Context, ownerId string, wallet models.BusinessWallet) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireBusinessUser(ctx, tx, ownerId); err != nil {
			return err
		}

		existing, err := queryWallets(ctx, tx, ownerId)
		if err != nil {
			return err
		}
		if err := checkWalletConflicts(append(existing, wallet)); err != nil {
			return err
		}

		var position int
		if err := tx.QueryRowContext(ctx, queryMaxWalletPosition, ownerId).Scan(&position); err != nil {
			return fmt.Errorf("unable to read wallet position: %w", err)
		}

		if err := insertWallet(ctx, tx, ownerId, position+1, wallet); err != nil {
			return err
		}

		zap.L().Info("Wallet added",
			zap.String("owner_id", ownerId),
			zap.String("wallet_name", wallet.Name),
			zap.String("address", wallet.Address))
		return nil
	})
}

func (s *Service) ReplaceWallets(ctx context.Context, ownerId string, wallets []models.BusinessWallet) error {
	if err := checkWalletConflicts(wallets); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireBusinessUser(ctx, tx, ownerId); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, queryDeleteWallets, ownerId); err != nil {
			return fmt.Errorf("unable to clear wallets: %w", err)
		}
		for i, wallet := range wallets {
			if err := insertWallet(ctx, tx, ownerId, i, wallet); err != nil {
				return err
			}
		}

		zap.L().Info("Wallet list replaced", zap.String("owner_id", ownerId), zap.Int("count", len(wallets)))
		return nil
	})
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryWallets(ctx context.Context, q querier, ownerId string) ([]models.BusinessWallet, error) {
	rows, err := q.QueryContext(ctx, queryGetWallets, ownerId)
	if err != nil {
		zap.L().Error("Failed to query wallets", zap.String("owner_id", ownerId), zap.Error(err))
		return nil, fmt.Errorf("unable to query wallets: %w", err)
	}
	defer closeRows(rows)

	var wallets []models.BusinessWallet
	for rows.Next() {
		var w models.BusinessWallet
		if err := rows.Scan(&w.Id, &w.OwnerId, &w.Name, &w.Address, &w.SigningKey, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}
	return wallets, nil
}

func requireBusinessUser(ctx context.Context, q querier, ownerId string) error {
	var count int
	if err := q.QueryRowContext(ctx, queryBusinessUserExists, ownerId).Scan(&count); err != nil {
		return fmt.Errorf("unable to check business user: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", store.ErrBusinessUserNotFound, ownerId)
	}
	return nil
}

func insertWallet(ctx context.Context, tx *sql.Tx, ownerId string, position int, wallet models.BusinessWallet) error {
	id := wallet.Id
	if id == "" {
		id = uuid.New().String()
	}
	_, err := tx.ExecContext(ctx, queryInsertWallet, id, ownerId, position, wallet.Name, wallet.Address, wallet.SigningKey)
	if err != nil {
		return fmt.Errorf("unable to insert wallet %s: %w", wallet.Name, err)
	}
	return nil
}

// checkWalletConflicts rejects duplicate names and case-insensitively duplicate addresses.
func checkWalletConflicts(wallets []models.BusinessWallet) error {
	names := make(map[string]struct{}, len(wallets))
	addresses := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		if _, ok := names[w.Name]; ok {
			return fmt.Errorf("%w: wallet %s", store.ErrDuplicateName, w.Name)
		}
		addr := strings.ToLower(w.Address)
		if _, ok := addresses[addr]; ok {
			return fmt.Errorf("%w: %s", store.ErrDuplicateAddress, w.Address)
		}
		names[w.Name] = struct{}{}
		addresses[addr] = struct{}{}
	}
	return nil
}
