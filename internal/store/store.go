package store

import (
	"context"
	"errors"

	"delegated-pay-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrApiKeyNotFound       = errors.New("api key not found")
	ErrBusinessUserNotFound = errors.New("business user not found")
	ErrDuplicateName        = errors.New("name already in use")
	ErrDuplicateAddress     = errors.New("wallet address already registered")
)

// CreateApiKeyParams contains the parameters for issuing an API key.
type CreateApiKeyParams struct {
	Key             string
	OwnerId         string
	Name            string
	BoundWalletName *string
}

// KeyStore persists API keys.
type KeyStore interface {
	GetApiKey(ctx context.Context, key string) (*models.ApiKey, error)
	ListApiKeys(ctx context.Context, ownerId string) ([]models.ApiKey, error)
	CreateApiKey(ctx context.Context, params CreateApiKeyParams) (*models.ApiKey, error)
	DeleteApiKey(ctx context.Context, key string) error
	SetBoundWallet(ctx context.Context, key string, walletName *string) error
	// RotateApiKey moves every record keyed by oldKey (usage, authorizations) to newKey.
	RotateApiKey(ctx context.Context, oldKey, newKey string) error
}

// UserStore persists business users and their ordered wallet lists.
type UserStore interface {
	GetBusinessUser(ctx context.Context, id string) (*models.BusinessUser, error)
	ListBusinessUsers(ctx context.Context) ([]models.BusinessUser, error)
	// CreateBusinessUser is idempotent: an existing user is returned unchanged.
	CreateBusinessUser(ctx context.Context, id, email string) (*models.BusinessUser, error)
	AddWallet(ctx context.Context, ownerId string, wallet models.BusinessWallet) error
	ReplaceWallets(ctx context.Context, ownerId string, wallets []models.BusinessWallet) error
}

// AuthorizationStore persists the end-user wallets authorized per API key.
type AuthorizationStore interface {
	EnsureKeySlot(ctx context.Context, endUserId, apiKey string) error
	// AddAuthorizedWallet creates the slot if needed and appends address once.
	AddAuthorizedWallet(ctx context.Context, endUserId, apiKey, address string) error
	// ListAuthorizedWallets returns found=false when no slot exists.
	ListAuthorizedWallets(ctx context.Context, endUserId, apiKey string) (addresses []string, found bool, err error)
}

// UsageStore persists per-key daily usage buckets.
type UsageStore interface {
	AddUsage(ctx context.Context, apiKey string, kind models.UsageKind, day string, amount decimal.Decimal) error
	GetUsage(ctx context.Context, apiKey string, kind models.UsageKind) (map[string]decimal.Decimal, error)
}

// UsageRotator is implemented by usage backends kept outside the key store;
// their series must be moved explicitly when a key is rotated.
type UsageRotator interface {
	RotateUsage(ctx context.Context, oldKey, newKey string) error
}

// Store is the full contract satisfied by the SQLite backend.
type Store interface {
	KeyStore
	UserStore
	AuthorizationStore
	UsageStore

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}
