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

// Package history reconstructs a wallet's balance over time from its
// explorer transaction list, ending with the live on-chain balance.
package history

import (
	"context"
	"math/big"
	"sort"
	"time"

	"delegated-pay-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const nativeDecimals = 18

type Explorer interface {
	FetchTransactions(ctx context.Context, address common.Address, token *common.Address) ([]models.ExplorerTx, error)
}

type Chain interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	BalanceOf(ctx context.Context, owner, token common.Address) (*big.Int, error)
	NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error)
}

type Aggregator struct {
	explorer Explorer
	chain    Chain
	now      func() time.Time
}

func NewAggregator(explorer Explorer, chain Chain) *Aggregator {
	return &Aggregator{explorer: explorer, chain: chain, now: time.Now}
}

// WithClock replaces the time source used for the reconciliation point.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// BalanceHistory returns one point per transaction of wallet, oldest first,
// plus a final point carrying the live balance. A nil token selects the
// native currency.
func (a *Aggregator) BalanceHistory(ctx context.Context, wallet common.Address, token *common.Address) ([]models.BalanceHistoryPoint, error) {
	decimals := uint8(nativeDecimals)
	if token != nil {
		d, err := a.chain.Decimals(ctx, *token)
		if err != nil {
			return nil, err
		}
		decimals = d
	}

	txs, err := a.explorer.FetchTransactions(ctx, wallet, token)
	if err != nil {
		return nil, err
	}

	points := Replay(wallet, txs, token == nil, decimals)

	live, err := a.liveBalance(ctx, wallet, token)
	if err != nil {
		zap.L().Warn("Live balance unavailable, omitting reconciliation point",
			zap.String("wallet", wallet.Hex()),
			zap.Error(err))
		return points, nil
	}

	return append(points, models.BalanceHistoryPoint{
		TimestampMillis: a.now().UnixMilli(),
		Balance:         decimal.NewFromBigInt(live, -int32(decimals)),
	}), nil
}

func (a *Aggregator) liveBalance(ctx context.Context, wallet common.Address, token *common.Address) (*big.Int, error) {
	if token == nil {
		return a.chain.NativeBalance(ctx, wallet)
	}
	return a.chain.BalanceOf(ctx, wallet, *token)
}

// Replay walks txs in chronological order from a zero balance. Incoming
// value is added and outgoing value subtracted; for the native currency the
// sender also pays the fee, and a failed transaction costs only the fee.
func Replay(wallet common.Address, txs []models.ExplorerTx, native bool, decimals uint8) []models.BalanceHistoryPoint {
	ordered := make([]models.ExplorerTx, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	balance := new(big.Int)
	points := make([]models.BalanceHistoryPoint, 0, len(ordered)+1)
	for _, tx := range ordered {
		outgoing := tx.From == wallet
		incoming := tx.To == wallet

		if !(native && tx.Failed) && tx.Value != nil {
			if incoming {
				balance.Add(balance, tx.Value)
			}
			if outgoing {
				balance.Sub(balance, tx.Value)
			}
		}
		if native && outgoing && tx.Fee != nil {
			balance.Sub(balance, tx.Fee)
		}

		points = append(points, models.BalanceHistoryPoint{
			TimestampMillis: tx.Timestamp * 1000,
			Balance:         decimal.NewFromBigInt(new(big.Int).Set(balance), -int32(decimals)),
		})
	}
	return points
}
