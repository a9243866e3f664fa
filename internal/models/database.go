package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApiKey is a credential issued by a business; it may be bound to one of the
// owner's wallets by name.
type ApiKey struct {
	Key             string    `db:"key"`
	OwnerId         string    `db:"owner_id"`
	Name            string    `db:"name"`
	BoundWalletName *string   `db:"wallet_name"`
	CreatedAt       time.Time `db:"created_at"`
}

// BusinessUser owns API keys and custodial wallets
type BusinessUser struct {
	Id        string           `db:"id"`
	Email     string           `db:"email"`
	Wallets   []BusinessWallet `db:"-"`
	CreatedAt time.Time        `db:"created_at"`
}

// BusinessWallet is a named wallet whose signing key the service holds
type BusinessWallet struct {
	Id         string    `db:"id"`
	OwnerId    string    `db:"owner_id"`
	Name       string    `db:"name"`
	Address    string    `db:"address"`
	SigningKey string    `db:"signing_key"`
	CreatedAt  time.Time `db:"created_at"`
}

// WalletByName returns the named wallet or nil
func (u *BusinessUser) WalletByName(name string) *BusinessWallet {
	for i := range u.Wallets {
		if u.Wallets[i].Name == name {
			return &u.Wallets[i]
		}
	}
	return nil
}

// UsageKind names one of the per-key daily usage series
type UsageKind string

const (
	UsageUses      UsageKind = "uses"
	UsageTransfers UsageKind = "transfers"
	UsageFees      UsageKind = "fees"
)

// UsageBucket is a single day of a usage series
type UsageBucket struct {
	ApiKey string          `db:"api_key"`
	Kind   UsageKind       `db:"kind"`
	Day    string          `db:"day"`
	Amount decimal.Decimal `db:"amount"`
}
