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

package payments

import (
	"math/big"

	"delegated-pay-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

// Allocation assigns part of a payment to one funding wallet.
type Allocation struct {
	Wallet common.Address
	Amount *big.Int
}

// TotalAllowance sums the positive allowances in snapshots.
func TotalAllowance(snapshots []models.AllowanceSnapshot) *big.Int {
	total := new(big.Int)
	for _, s := range snapshots {
		if s.Allowance != nil && s.Allowance.Sign() > 0 {
			total.Add(total, s.Allowance)
		}
	}
	return total
}

// Allocate splits amount across snapshots first-fit, in the order given,
// taking min(remaining, allowance) from each wallet with a positive allowance.
// It returns ErrInsufficientSpendingLimit when the allowances cannot cover amount.
func Allocate(amount *big.Int, snapshots []models.AllowanceSnapshot) ([]Allocation, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil
	}
	if amount.Cmp(TotalAllowance(snapshots)) > 0 {
		return nil, ErrInsufficientSpendingLimit
	}

	remaining := new(big.Int).Set(amount)
	var allocations []Allocation
	for _, s := range snapshots {
		if remaining.Sign() == 0 {
			break
		}
		if s.Allowance == nil || s.Allowance.Sign() <= 0 {
			continue
		}

		share := new(big.Int).Set(s.Allowance)
		if share.Cmp(remaining) > 0 {
			share.Set(remaining)
		}
		allocations = append(allocations, Allocation{Wallet: s.Wallet, Amount: share})
		remaining.Sub(remaining, share)
	}
	return allocations, nil
}
