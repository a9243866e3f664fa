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

package signature

import (
	"math/big"
	"strings"

	"delegated-pay-go/internal/apperr"
	"delegated-pay-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParsePermit validates a wire permit and converts it to its typed form.
func ParsePermit(p models.PermitPayload) (models.Permit, error) {
	var permit models.Permit
	var err error

	if permit.Owner, err = parseAddress("permit.owner", p.Owner); err != nil {
		return permit, err
	}
	if permit.Spender, err = parseAddress("permit.spender", p.Spender); err != nil {
		return permit, err
	}
	if permit.Value, err = parseUint("permit.value", p.Value); err != nil {
		return permit, err
	}
	if permit.Nonce, err = parseUint("permit.nonce", p.Nonce); err != nil {
		return permit, err
	}
	if permit.Deadline, err = parseUint("permit.deadline", p.Deadline); err != nil {
		return permit, err
	}
	if permit.R, err = parseWord("permit.r", p.R); err != nil {
		return permit, err
	}
	if permit.S, err = parseWord("permit.s", p.S); err != nil {
		return permit, err
	}
	permit.V = p.V
	return permit, nil
}

// ParseReceiveAuthorization validates a wire authorization and converts it to its typed form.
func ParseReceiveAuthorization(a models.ReceiveAuthorizationPayload) (models.ReceiveAuthorization, error) {
	var auth models.ReceiveAuthorization
	var err error

	if auth.From, err = parseAddress("authorization.from", a.From); err != nil {
		return auth, err
	}
	if auth.To, err = parseAddress("authorization.to", a.To); err != nil {
		return auth, err
	}
	if auth.Value, err = parseUint("authorization.value", a.Value); err != nil {
		return auth, err
	}
	if auth.ValidAfter, err = parseUint("authorization.validAfter", a.ValidAfter); err != nil {
		return auth, err
	}
	if auth.ValidBefore, err = parseUint("authorization.validBefore", a.ValidBefore); err != nil {
		return auth, err
	}
	if auth.Nonce, err = parseWord("authorization.nonce", a.Nonce); err != nil {
		return auth, err
	}
	if auth.R, err = parseWord("authorization.r", a.R); err != nil {
		return auth, err
	}
	if auth.S, err = parseWord("authorization.s", a.S); err != nil {
		return auth, err
	}
	auth.V = a.V
	return auth, nil
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, apperr.Validation("%s must be a hex address", field)
	}
	return common.HexToAddress(value), nil
}

// parseUint reads decimal, or hex with an explicit 0x prefix. Leading zeros
// stay decimal.
func parseUint(field, value string) (*big.Int, error) {
	digits, base := strings.TrimSpace(value), 10
	if lower := strings.ToLower(digits); strings.HasPrefix(lower, "0x") {
		digits, base = digits[2:], 16
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok || n.Sign() < 0 || n.BitLen() > 256 {
		return nil, apperr.Validation("%s must be an unsigned 256-bit integer", field)
	}
	return n, nil
}

func parseWord(field, value string) ([32]byte, error) {
	var word [32]byte
	raw, err := hexutil.Decode(value)
	if err != nil || len(raw) != 32 {
		return word, apperr.Validation("%s must be 32 bytes of 0x-prefixed hex", field)
	}
	copy(word[:], raw)
	return word, nil
}
