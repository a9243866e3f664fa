package signature

import (
	"crypto/ecdsa"
	"math/big"
	"strings"
	"testing"

	"delegated-pay-go/internal/apperr"
	"delegated-pay-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var testDomain = Domain{
	Name:              "USD Coin",
	Version:           "2",
	ChainId:           big.NewInt(8453),
	VerifyingContract: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
}

func newKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

func signedPermit(t *testing.T, signer *ecdsa.PrivateKey, owner common.Address) models.Permit {
	permit := models.Permit{
		Owner:    owner,
		Spender:  common.HexToAddress("0x00000000000000000000000000000000000000b1"),
		Value:    big.NewInt(1_000_000),
		Nonce:    big.NewInt(0),
		Deadline: big.NewInt(1893456000),
	}
	v, r, s, err := Sign(PermitTypedData(testDomain, permit), signer)
	require.NoError(t, err)
	permit.V, permit.R, permit.S = v, r, s
	return permit
}

func TestVerifyPermit(t *testing.T) {
	key, owner := newKey(t)
	permit := signedPermit(t, key, owner)

	require.NoError(t, VerifyPermit(testDomain, permit))
}

func TestVerifyPermitOwnerCaseInsensitive(t *testing.T) {
	key, owner := newKey(t)
	permit := signedPermit(t, key, owner)

	require.True(t, AddressesEqual(strings.ToLower(owner.Hex()), owner.Hex()))
	require.NoError(t, VerifyPermit(testDomain, permit))
}

func TestVerifyPermitRejectsWrongSigner(t *testing.T) {
	_, owner := newKey(t)
	otherKey, _ := newKey(t)
	permit := signedPermit(t, otherKey, owner)

	err := VerifyPermit(testDomain, permit)
	require.Error(t, err)
	require.Equal(t, apperr.KindInvalidSignature, apperr.KindOf(err))
}

func TestVerifyPermitRejectsTamperedValue(t *testing.T) {
	key, owner := newKey(t)
	permit := signedPermit(t, key, owner)
	permit.Value = big.NewInt(2_000_000)

	err := VerifyPermit(testDomain, permit)
	require.Equal(t, apperr.KindInvalidSignature, apperr.KindOf(err))
}

func TestVerifyPermitRejectsOtherDomain(t *testing.T) {
	key, owner := newKey(t)
	permit := signedPermit(t, key, owner)

	other := testDomain
	other.ChainId = big.NewInt(1)
	err := VerifyPermit(other, permit)
	require.Equal(t, apperr.KindInvalidSignature, apperr.KindOf(err))
}

func TestVerifyReceive(t *testing.T) {
	key, from := newKey(t)
	auth := models.ReceiveAuthorization{
		From:        from,
		To:          common.HexToAddress("0x00000000000000000000000000000000000000b1"),
		Value:       big.NewInt(250_000),
		ValidAfter:  big.NewInt(0),
		ValidBefore: big.NewInt(1893456000),
		Nonce:       [32]byte{1, 2, 3},
	}
	v, r, s, err := Sign(ReceiveTypedData(testDomain, auth), key)
	require.NoError(t, err)
	auth.V, auth.R, auth.S = v, r, s

	require.NoError(t, VerifyReceive(testDomain, auth))

	auth.To = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	require.Equal(t, apperr.KindInvalidSignature, apperr.KindOf(VerifyReceive(testDomain, auth)))
}

func TestRecoverAcceptsBothRecoveryIdForms(t *testing.T) {
	key, owner := newKey(t)
	permit := signedPermit(t, key, owner)
	typed := PermitTypedData(testDomain, permit)

	recovered, err := Recover(typed, Join(permit.V, permit.R, permit.S))
	require.NoError(t, err)
	require.Equal(t, owner, recovered)

	recovered, err = Recover(typed, Join(permit.V-27, permit.R, permit.S))
	require.NoError(t, err)
	require.Equal(t, owner, recovered)

	_, err = Recover(typed, Join(5, permit.R, permit.S))
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = Recover(typed, []byte{1, 2, 3})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestParsePermit(t *testing.T) {
	word := hexutil.Encode(make([]byte, 32))
	valid := models.PermitPayload{
		Owner:    "0x00000000000000000000000000000000000000a1",
		Spender:  "0x00000000000000000000000000000000000000b1",
		Value:    "1000000",
		Nonce:    "0",
		Deadline: "0x70dbd880",
		V:        27,
		R:        word,
		S:        word,
	}

	permit, err := ParsePermit(valid)
	require.NoError(t, err)
	require.Equal(t, int64(1893456000), permit.Deadline.Int64())

	tests := []struct {
		name   string
		mutate func(p *models.PermitPayload)
	}{
		{"bad owner", func(p *models.PermitPayload) { p.Owner = "alice" }},
		{"negative value", func(p *models.PermitPayload) { p.Value = "-1" }},
		{"non numeric nonce", func(p *models.PermitPayload) { p.Nonce = "abc" }},
		{"short r", func(p *models.PermitPayload) { p.R = "0x1234" }},
		{"underscore nonce", func(p *models.PermitPayload) { p.Nonce = "1_000" }},
		{"binary deadline", func(p *models.PermitPayload) { p.Deadline = "0b11" }},
		{"octal value", func(p *models.PermitPayload) { p.Value = "0o17" }},
		{"bare hex prefix", func(p *models.PermitPayload) { p.Value = "0x" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := valid
			tt.mutate(&payload)
			_, err := ParsePermit(payload)
			require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestParseUintIsDecimalUnlessHexPrefixed(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"010", 10},
		{"0", 0},
		{" 42 ", 42},
		{"0x10", 16},
		{"0X1f", 31},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n, err := parseUint("value", tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, n.Int64())
		})
	}
}
