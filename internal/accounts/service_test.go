package accounts

import (
	"context"
	"encoding/hex"
	"path/filepath"
	"testing"
	"time"

	"delegated-pay-go/internal/apperr"
	"delegated-pay-go/internal/database"
	"delegated-pay-go/internal/ledger"
	"delegated-pay-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	wallet common.Address
	token  *common.Address
}

func (f *fakeHistory) BalanceHistory(_ context.Context, wallet common.Address, token *common.Address) ([]models.BalanceHistoryPoint, error) {
	f.wallet, f.token = wallet, token
	return []models.BalanceHistoryPoint{{TimestampMillis: 1, Balance: decimal.NewFromInt(5)}}, nil
}

type fakeBalances struct {
	owner, token common.Address
}

func (f *fakeBalances) Balance(_ context.Context, owner, token common.Address) string {
	f.owner, f.token = owner, token
	return "7.25"
}

type testEnv struct {
	svc      *Service
	db       *database.Service
	recorder *ledger.Recorder
	history  *fakeHistory
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "accounts.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	recorder := ledger.NewRecorder(db)
	history := &fakeHistory{}
	svc := NewService(db, recorder, history, nil)

	_, err = svc.EnsureBusinessUser(context.Background(), "biz-1", "ops@example.com")
	require.NoError(t, err)
	return &testEnv{svc: svc, db: db, recorder: recorder, history: history}
}

func newWallet(t *testing.T, name string) models.AddWalletRequest {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return models.AddWalletRequest{
		Name:    name,
		Address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Key:     "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
	}
}

func TestCreateApiKeyBindsFirstWallet(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	require.NoError(t, env.svc.AddWallet(ctx, "biz-1", newWallet(t, "main")))
	require.NoError(t, env.svc.AddWallet(ctx, "biz-1", newWallet(t, "backup")))

	key, err := env.svc.CreateApiKey(ctx, "biz-1", "prod")
	require.NoError(t, err)
	assert.Len(t, key, 64)

	stored, err := env.db.GetApiKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, stored.BoundWalletName)
	assert.Equal(t, "main", *stored.BoundWalletName)

	_, err = env.svc.CreateApiKey(ctx, "biz-1", "prod")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "Key name already in use", apperr.Message(err))
}

func TestCreateApiKeyWithoutWalletIsUnbound(t *testing.T) {
	env := setup(t)
	key, err := env.svc.CreateApiKey(context.Background(), "biz-1", "dev")
	require.NoError(t, err)

	stored, err := env.db.GetApiKey(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, stored.BoundWalletName)
}

func TestListApiKeysMasksSecret(t *testing.T) {
	env := setup(t)
	key, err := env.svc.CreateApiKey(context.Background(), "biz-1", "prod")
	require.NoError(t, err)

	views, err := env.svc.ListApiKeys(context.Background(), "biz-1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, key[:4]+"..."+key[60:], views[0].Key)
	assert.NotContains(t, views[0].Key, key[4:60])
}

func TestRotateApiKeyKeepsUsage(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	oldKey, err := env.svc.CreateApiKey(ctx, "biz-1", "prod")
	require.NoError(t, err)
	require.NoError(t, env.recorder.IncrementUseCount(ctx, oldKey))

	newKey, err := env.svc.RotateApiKey(ctx, "biz-1", "prod")
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, newKey)

	_, err = env.db.GetApiKey(ctx, oldKey)
	assert.Error(t, err)

	series, err := env.svc.Usage(ctx, "biz-1", "prod", models.UsageUses)
	require.NoError(t, err)
	assert.True(t, series[ledger.Day(time.Now())].Equal(decimal.NewFromInt(1)))
}

func TestDeleteApiKey(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	_, err := env.svc.CreateApiKey(ctx, "biz-1", "prod")
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteApiKey(ctx, "biz-1", "prod"))
	err = env.svc.DeleteApiKey(ctx, "biz-1", "prod")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSetBoundWallet(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	require.NoError(t, env.svc.AddWallet(ctx, "biz-1", newWallet(t, "main")))
	require.NoError(t, env.svc.AddWallet(ctx, "biz-1", newWallet(t, "backup")))
	key, err := env.svc.CreateApiKey(ctx, "biz-1", "prod")
	require.NoError(t, err)

	require.NoError(t, env.svc.SetBoundWallet(ctx, "biz-1", "prod", "backup"))
	stored, err := env.db.GetApiKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "backup", *stored.BoundWalletName)

	err = env.svc.SetBoundWallet(ctx, "biz-1", "prod", "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	err = env.svc.SetBoundWallet(ctx, "biz-1", "nope", "main")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAddWalletValidation(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	good := newWallet(t, "main")
	other := newWallet(t, "other")

	tests := []struct {
		name string
		req  models.AddWalletRequest
	}{
		{"missing name", models.AddWalletRequest{Address: good.Address, Key: good.Key}},
		{"bad address", models.AddWalletRequest{Name: "x", Address: "nope", Key: good.Key}},
		{"bad key", models.AddWalletRequest{Name: "x", Address: good.Address, Key: "zz"}},
		{"key mismatch", models.AddWalletRequest{Name: "x", Address: good.Address, Key: other.Key}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.svc.AddWallet(ctx, "biz-1", tt.req)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	require.NoError(t, env.svc.AddWallet(ctx, "biz-1", good))
	dupName := newWallet(t, "main")
	assert.Equal(t, "Wallet name already in use", apperr.Message(env.svc.AddWallet(ctx, "biz-1", dupName)))
	good.Name = "again"
	assert.Equal(t, "Wallet address already in use", apperr.Message(env.svc.AddWallet(ctx, "biz-1", good)))

	err := env.svc.AddWallet(ctx, "nobody", other)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestListWalletsHidesKeys(t *testing.T) {
	env := setup(t)
	w := newWallet(t, "main")
	require.NoError(t, env.svc.AddWallet(context.Background(), "biz-1", w))

	views, err := env.svc.ListWallets(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.Equal(t, []models.WalletView{{Name: "main", Address: w.Address}}, views)
}

func TestRemoveWalletUnbindsKeys(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	require.NoError(t, env.svc.AddWallet(ctx, "biz-1", newWallet(t, "main")))
	require.NoError(t, env.svc.AddWallet(ctx, "biz-1", newWallet(t, "backup")))
	key, err := env.svc.CreateApiKey(ctx, "biz-1", "prod")
	require.NoError(t, err)

	require.NoError(t, env.svc.RemoveWallet(ctx, "biz-1", "main"))

	stored, err := env.db.GetApiKey(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, stored.BoundWalletName)

	views, err := env.svc.ListWallets(ctx, "biz-1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "backup", views[0].Name)

	err = env.svc.RemoveWallet(ctx, "biz-1", "main")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestBalanceHistory(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	w := newWallet(t, "main")
	require.NoError(t, env.svc.AddWallet(ctx, "biz-1", w))
	token := "0x00000000000000000000000000000000000000cc"

	points, err := env.svc.BalanceHistory(ctx, "biz-1", "main", token)
	require.NoError(t, err)
	assert.Len(t, points, 1)
	assert.Equal(t, common.HexToAddress(w.Address), env.history.wallet)
	require.NotNil(t, env.history.token)
	assert.Equal(t, common.HexToAddress(token), *env.history.token)

	_, err = env.svc.BalanceHistory(ctx, "biz-1", "main", "")
	require.NoError(t, err)
	assert.Nil(t, env.history.token)

	_, err = env.svc.BalanceHistory(ctx, "biz-1", "main", "bogus")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = env.svc.BalanceHistory(ctx, "biz-1", "ghost", "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestWalletBalance(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	w := newWallet(t, "main")
	require.NoError(t, env.svc.AddWallet(ctx, "biz-1", w))
	token := "0x00000000000000000000000000000000000000cc"

	_, err := env.svc.WalletBalance(ctx, "biz-1", "main", token)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	balances := &fakeBalances{}
	env.svc.WithBalances(balances)

	resp, err := env.svc.WalletBalance(ctx, "biz-1", "main", token)
	require.NoError(t, err)
	assert.Equal(t, "7.25", resp.Balance)
	assert.Equal(t, "main", resp.Wallet)
	assert.Equal(t, common.HexToAddress(w.Address), balances.owner)
	assert.Equal(t, common.HexToAddress(token), balances.token)

	_, err = env.svc.WalletBalance(ctx, "biz-1", "main", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = env.svc.WalletBalance(ctx, "biz-1", "ghost", token)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "abcd...wxyz", MaskKey("abcdefghijklmnopqrstuvwxyz"))
	assert.Equal(t, "****", MaskKey("abcd"))
}
