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

package formance

import (
	"context"
	"fmt"
	"math/big"

	"delegated-pay-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const numscriptAddUsage = `vars {
  asset $asset
  number $amount
  account $bucket
  string $kind
  string $day
}

send [$asset $amount] (
  source = @world
  destination = $bucket
)

set_tx_meta("event_type", "usage_recorded")
set_tx_meta("kind", $kind)
set_tx_meta("day", $day)
`

const numscriptMoveUsage = `vars {
  asset $asset
  account $from
  account $to
}

send [$asset *] (
  source = $from
  destination = $to
)

set_tx_meta("event_type", "usage_rotated")
`

// AddUsage credits the bucket account with amount of the kind's asset.
func (s *Service) AddUsage(ctx context.Context, apiKey string, kind models.UsageKind, day string, amount decimal.Decimal) error {
	fAsset, ok := kindAssets[kind]
	if !ok {
		return fmt.Errorf("unknown usage kind %q", kind)
	}
	smallAmt := amount.Shift(assetPrecision(fAsset)).BigInt()
	if smallAmt.Sign() <= 0 {
		return nil
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: s.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(uuid.New().String()),
			Script: &shared.V2PostTransactionScript{
				Plain: numscriptAddUsage,
				Vars: map[string]string{
					"asset":  fAsset,
					"amount": smallAmt.String(),
					"bucket": bucketAccount(apiKey, kind, day),
					"kind":   string(kind),
					"day":    day,
				},
			},
		},
	})
	if err != nil {
		if isConflictError(err) {
			return nil
		}
		return fmt.Errorf("error recording usage: %w", err)
	}

	zap.L().Debug("Usage recorded in Formance",
		zap.String("kind", string(kind)),
		zap.String("day", day),
		zap.String("amount", amount.String()))
	return nil
}

// GetUsage lists every bucket account of the series and reads its balance.
func (s *Service) GetUsage(ctx context.Context, apiKey string, kind models.UsageKind) (map[string]decimal.Decimal, error) {
	fAsset, ok := kindAssets[kind]
	if !ok {
		return nil, fmt.Errorf("unknown usage kind %q", kind)
	}

	accounts, err := s.listSeriesAccounts(ctx, seriesPrefix(apiKey, kind))
	if err != nil {
		return nil, err
	}

	series := make(map[string]decimal.Decimal, len(accounts))
	for _, acct := range accounts {
		bal := volumeBalance(acct.Volumes, fAsset)
		if bal == nil {
			continue
		}
		series[dayFromAccount(acct.Address)] = decimal.NewFromBigInt(bal, -assetPrecision(fAsset))
	}
	return series, nil
}

// RotateUsage drains every bucket of oldKey into the matching bucket of newKey.
func (s *Service) RotateUsage(ctx context.Context, oldKey, newKey string) error {
	for kind, fAsset := range kindAssets {
		accounts, err := s.listSeriesAccounts(ctx, seriesPrefix(oldKey, kind))
		if err != nil {
			return err
		}
		for _, acct := range accounts {
			bal := volumeBalance(acct.Volumes, fAsset)
			if bal == nil || bal.Sign() <= 0 {
				continue
			}
			day := dayFromAccount(acct.Address)
			_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
				Ledger: s.ledger,
				V2PostTransaction: shared.V2PostTransaction{
					Reference: strPtr(fmt.Sprintf("rotate-%s-%s-%s", keySegment(oldKey), kind, day)),
					Script: &shared.V2PostTransactionScript{
						Plain: numscriptMoveUsage,
						Vars: map[string]string{
							"asset": fAsset,
							"from":  acct.Address,
							"to":    bucketAccount(newKey, kind, day),
						},
					},
				},
			})
			if err != nil && !isConflictError(err) {
				return fmt.Errorf("error moving usage bucket %s: %w", acct.Address, err)
			}
		}
	}

	zap.L().Info("Usage moved to rotated key in Formance")
	return nil
}

func (s *Service) listSeriesAccounts(ctx context.Context, prefix string) ([]shared.V2Account, error) {
	var (
		accounts []shared.V2Account
		cursor   *string
	)
	for {
		resp, err := s.client.Ledger.V2.ListAccounts(ctx, operations.V2ListAccountsRequest{
			Ledger:   s.ledger,
			PageSize: v3.Pointer(int64(100)),
			Cursor:   cursor,
			Expand:   v3.Pointer("volumes"),
			RequestBody: map[string]any{
				"$match": map[string]any{"address": prefix},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list usage accounts: %w", err)
		}

		page := resp.V2AccountsCursorResponse.Cursor
		accounts = append(accounts, page.Data...)
		if !page.HasMore || page.Next == nil {
			return accounts, nil
		}
		cursor = page.Next
	}
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}
