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

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AddUsage adds amount to the (apiKey, kind, day) bucket, creating it at zero.
func (s *Service) AddUsage(ctx context.Context, apiKey string, kind models.UsageKind, day string, amount decimal.Decimal) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current := decimal.Zero
		var raw string
		err := tx.QueryRowContext(ctx, queryGetUsageBucket, apiKey, string(kind), day).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("unable to read usage bucket: %w", err)
		default:
			current, err = decimal.NewFromString(raw)
			if err != nil {
				return fmt.Errorf("corrupt usage bucket %s/%s/%s: %w", kind, day, raw, err)
			}
		}

		next := current.Add(amount)
		if _, err := tx.ExecContext(ctx, queryUpsertUsageBucket, apiKey, string(kind), day, next.String()); err != nil {
			return fmt.Errorf("unable to write usage bucket: %w", err)
		}

		zap.L().Debug("Usage bucket updated",
			zap.String("kind", string(kind)),
			zap.String("day", day),
			zap.String("amount", next.String()))
		return nil
	})
}

func (s *Service) GetUsage(ctx context.Context, apiKey string, kind models.UsageKind) (map[string]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUsageSeries, apiKey, string(kind))
	if err != nil {
		zap.L().Error("Failed to query usage", zap.String("kind", string(kind)), zap.Error(err))
		return nil, fmt.Errorf("unable to query usage: %w", err)
	}
	defer closeRows(rows)

	series := make(map[string]decimal.Decimal)
	for rows.Next() {
		var day, raw string
		if err := rows.Scan(&day, &raw); err != nil {
			return nil, fmt.Errorf("unable to scan usage row: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt usage bucket %s/%s/%s: %w", kind, day, raw, err)
		}
		series[day] = amount
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage rows: %w", err)
	}
	return series, nil
}
