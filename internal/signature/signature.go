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

// Package signature verifies EIP-712 signatures over EIP-2612 permits and
// EIP-3009 receive authorizations.
package signature

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"delegated-pay-go/internal/apperr"
	"delegated-pay-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain is the EIP-712 domain of a token contract.
type Domain struct {
	Name              string
	Version           string
	ChainId           *big.Int
	VerifyingContract common.Address
}

func (d Domain) typedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           (*math.HexOrDecimal256)(d.ChainId),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// PermitTypedData builds the EIP-2612 Permit message signed by the owner.
func PermitTypedData(d Domain, p models.Permit) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"Permit": {
				{Name: "owner", Type: "address"},
				{Name: "spender", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "Permit",
		Domain:      d.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"owner":    p.Owner.Hex(),
			"spender":  p.Spender.Hex(),
			"value":    bigString(p.Value),
			"nonce":    bigString(p.Nonce),
			"deadline": bigString(p.Deadline),
		},
	}
}

// ReceiveTypedData builds the EIP-3009 ReceiveWithAuthorization message signed by the payer.
func ReceiveTypedData(d Domain, a models.ReceiveAuthorization) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"ReceiveWithAuthorization": {
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "ReceiveWithAuthorization",
		Domain:      d.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"from":        a.From.Hex(),
			"to":          a.To.Hex(),
			"value":       bigString(a.Value),
			"validAfter":  bigString(a.ValidAfter),
			"validBefore": bigString(a.ValidBefore),
			"nonce":       hexutil.Encode(a.Nonce[:]),
		},
	}
}

// Recover returns the address that produced sig over the typed data.
// sig is r || s || v with v in {0, 1, 27, 28}.
func Recover(typed apitypes.TypedData, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, apperr.Validation("signature must be %d bytes", crypto.SignatureLength)
	}

	hash, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return common.Address{}, apperr.Validation("invalid typed data: %v", err)
	}

	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, apperr.Validation("invalid signature recovery id")
	}

	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, apperr.InvalidSignature("unable to recover signer")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyPermit fails with InvalidSignature unless the permit was signed by its owner.
func VerifyPermit(d Domain, p models.Permit) error {
	signer, err := Recover(PermitTypedData(d, p), Join(p.V, p.R, p.S))
	if err != nil {
		return err
	}
	if !AddressesEqual(signer.Hex(), p.Owner.Hex()) {
		return apperr.InvalidSignature("Invalid signature")
	}
	return nil
}

// VerifyReceive fails with InvalidSignature unless the authorization was signed by its payer.
func VerifyReceive(d Domain, a models.ReceiveAuthorization) error {
	signer, err := Recover(ReceiveTypedData(d, a), Join(a.V, a.R, a.S))
	if err != nil {
		return err
	}
	if !AddressesEqual(signer.Hex(), a.From.Hex()) {
		return apperr.InvalidSignature("Invalid signature")
	}
	return nil
}

// Sign produces v, r, s over the typed data with v in {27, 28}.
func Sign(typed apitypes.TypedData, key *ecdsa.PrivateKey) (uint8, [32]byte, [32]byte, error) {
	var r, s [32]byte
	hash, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return 0, r, s, fmt.Errorf("unable to hash typed data: %w", err)
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return 0, r, s, fmt.Errorf("unable to sign typed data: %w", err)
	}
	copy(r[:], sig[:32])
	copy(s[:], sig[32:64])
	return sig[64] + 27, r, s, nil
}

// Join packs v, r, s into the 65-byte r || s || v form.
func Join(v uint8, r, s [32]byte) []byte {
	sig := make([]byte, 0, crypto.SignatureLength)
	sig = append(sig, r[:]...)
	sig = append(sig, s[:]...)
	return append(sig, v)
}

// AddressesEqual compares EVM addresses ignoring EIP-55 checksum casing.
func AddressesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
