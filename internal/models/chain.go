package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// AllowanceSnapshot is a point-in-time allowance read; never persisted
type AllowanceSnapshot struct {
	Wallet    common.Address
	Allowance *big.Int
}

// TransferReceipt describes a confirmed transferFrom
type TransferReceipt struct {
	TxHash  string
	FeePaid *big.Int
}

// Permit is an EIP-2612 approval signed off-chain by Owner
type Permit struct {
	Owner    common.Address
	Spender  common.Address
	Value    *big.Int
	Nonce    *big.Int
	Deadline *big.Int
	V        uint8
	R        [32]byte
	S        [32]byte
}

// ReceiveAuthorization is an EIP-3009 transfer authorization signed by From
type ReceiveAuthorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
	V           uint8
	R           [32]byte
	S           [32]byte
}

// ExplorerTx is one entry of an address's transaction list from the block explorer
type ExplorerTx struct {
	Hash      string
	From      common.Address
	To        common.Address
	Value     *big.Int
	Fee       *big.Int
	Timestamp int64 // unix seconds
	Failed    bool
}

// BalanceHistoryPoint is the wallet balance after a given moment
type BalanceHistoryPoint struct {
	TimestampMillis int64           `json:"timestamp"`
	Balance         decimal.Decimal `json:"balance"`
}

// TokenConfig is a supported token contract with optional EIP-712 domain overrides
type TokenConfig struct {
	Symbol        string `yaml:"symbol"`
	Address       string `yaml:"address"`
	DomainName    string `yaml:"domain_name"`
	DomainVersion string `yaml:"domain_version"`
}
