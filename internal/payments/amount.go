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
	"strings"

	"delegated-pay-go/internal/apperr"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the precision of the chain's native currency, in which fees are paid.
const NativeDecimals = 18

// ParseAmount converts a positive display amount such as "12.5" into the
// token's smallest unit.
func ParseAmount(value string, decimals uint8) (*big.Int, error) {
	amount, err := parseDisplay(value)
	if err != nil {
		return nil, err
	}

	scaled := amount.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, apperr.Validation("amount has more than %d decimal places", decimals)
	}
	return scaled.BigInt(), nil
}

func parseDisplay(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, apperr.Validation("amount is required")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, apperr.Validation("invalid amount: %s", value)
	}
	if !amount.IsPositive() {
		return decimal.Zero, apperr.Validation("amount must be greater than zero")
	}
	return amount, nil
}

// ToDisplay converts a smallest-unit amount to display units.
func ToDisplay(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}
