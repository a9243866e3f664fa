package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"delegated-pay-go/internal/models"
	"delegated-pay-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	service := &Service{db: db}
	if err := service.initSchema(context.Background()); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}
	return service, cleanup
}

func strPtr(s string) *string { return &s }

func TestCreateBusinessUserIsIdempotent(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first, err := service.CreateBusinessUser(ctx, "biz1", "ops@example.com")
	if err != nil {
		t.Fatalf("CreateBusinessUser failed: %v", err)
	}
	second, err := service.CreateBusinessUser(ctx, "biz1", "other@example.com")
	if err != nil {
		t.Fatalf("second CreateBusinessUser failed: %v", err)
	}
	if first.Id != second.Id || second.Email != "ops@example.com" {
		t.Errorf("expected existing user to be returned unchanged, got %+v", second)
	}
}

func TestGetBusinessUserNotFound(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := service.GetBusinessUser(context.Background(), "missing")
	if !errors.Is(err, store.ErrBusinessUserNotFound) {
		t.Errorf("expected ErrBusinessUserNotFound, got %v", err)
	}
}

func TestListBusinessUsers(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for _, id := range []string{"biz1", "biz2"} {
		if _, err := service.CreateBusinessUser(ctx, id, id+"@example.com"); err != nil {
			t.Fatalf("CreateBusinessUser failed: %v", err)
		}
	}
	wallet := models.BusinessWallet{Name: "main", Address: "0x00000000000000000000000000000000000000b1", SigningKey: "k"}
	if err := service.AddWallet(ctx, "biz2", wallet); err != nil {
		t.Fatalf("AddWallet failed: %v", err)
	}

	users, err := service.ListBusinessUsers(ctx)
	if err != nil {
		t.Fatalf("ListBusinessUsers failed: %v", err)
	}
	if len(users) != 2 || users[0].Id != "biz1" || users[1].Id != "biz2" {
		t.Fatalf("unexpected users %+v", users)
	}
	if len(users[0].Wallets) != 0 || len(users[1].Wallets) != 1 {
		t.Errorf("expected wallets to be loaded per user, got %+v", users)
	}
}

func TestAddWalletPreservesOrderAndRejectsDuplicates(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := service.CreateBusinessUser(ctx, "biz1", "ops@example.com"); err != nil {
		t.Fatalf("CreateBusinessUser failed: %v", err)
	}

	wallets := []models.BusinessWallet{
		{Name: "main", Address: "0xAbC0000000000000000000000000000000000001", SigningKey: "k1"},
		{Name: "treasury", Address: "0xabc0000000000000000000000000000000000002", SigningKey: "k2"},
	}
	for _, w := range wallets {
		if err := service.AddWallet(ctx, "biz1", w); err != nil {
			t.Fatalf("AddWallet(%s) failed: %v", w.Name, err)
		}
	}

	tests := []struct {
		name    string
		wallet  models.BusinessWallet
		wantErr error
	}{
		{"duplicate name", models.BusinessWallet{Name: "main", Address: "0x0000000000000000000000000000000000000003", SigningKey: "k3"}, store.ErrDuplicateName},
		{"duplicate address different case", models.BusinessWallet{Name: "other", Address: "0xABC0000000000000000000000000000000000001", SigningKey: "k3"}, store.ErrDuplicateAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.AddWallet(ctx, "biz1", tt.wallet)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	user, err := service.GetBusinessUser(ctx, "biz1")
	if err != nil {
		t.Fatalf("GetBusinessUser failed: %v", err)
	}
	if len(user.Wallets) != 2 || user.Wallets[0].Name != "main" || user.Wallets[1].Name != "treasury" {
		t.Errorf("unexpected wallets: %+v", user.Wallets)
	}
}

func TestAddWalletUnknownOwner(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	err := service.AddWallet(context.Background(), "nobody", models.BusinessWallet{Name: "w", Address: "0x1", SigningKey: "k"})
	if !errors.Is(err, store.ErrBusinessUserNotFound) {
		t.Errorf("expected ErrBusinessUserNotFound, got %v", err)
	}
}

func TestReplaceWallets(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	service.CreateBusinessUser(ctx, "biz1", "ops@example.com")
	service.AddWallet(ctx, "biz1", models.BusinessWallet{Name: "a", Address: "0x01", SigningKey: "k"})
	service.AddWallet(ctx, "biz1", models.BusinessWallet{Name: "b", Address: "0x02", SigningKey: "k"})

	user, _ := service.GetBusinessUser(ctx, "biz1")
	remaining := []models.BusinessWallet{user.Wallets[1]}
	if err := service.ReplaceWallets(ctx, "biz1", remaining); err != nil {
		t.Fatalf("ReplaceWallets failed: %v", err)
	}

	user, _ = service.GetBusinessUser(ctx, "biz1")
	if len(user.Wallets) != 1 || user.Wallets[0].Name != "b" {
		t.Errorf("unexpected wallets after replace: %+v", user.Wallets)
	}
}

func TestApiKeyLifecycle(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	created, err := service.CreateApiKey(ctx, store.CreateApiKeyParams{Key: "k1", OwnerId: "biz1", Name: "prod", BoundWalletName: strPtr("main")})
	if err != nil {
		t.Fatalf("CreateApiKey failed: %v", err)
	}
	if created.BoundWalletName == nil || *created.BoundWalletName != "main" {
		t.Errorf("expected bound wallet main, got %v", created.BoundWalletName)
	}

	if _, err := service.CreateApiKey(ctx, store.CreateApiKeyParams{Key: "k2", OwnerId: "biz1", Name: "prod"}); !errors.Is(err, store.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
	// names are only unique per owner
	if _, err := service.CreateApiKey(ctx, store.CreateApiKeyParams{Key: "k3", OwnerId: "biz2", Name: "prod"}); err != nil {
		t.Errorf("expected other owner to reuse name, got %v", err)
	}

	if err := service.SetBoundWallet(ctx, "k1", nil); err != nil {
		t.Fatalf("SetBoundWallet failed: %v", err)
	}
	got, _ := service.GetApiKey(ctx, "k1")
	if got.BoundWalletName != nil {
		t.Errorf("expected unbound key, got %v", *got.BoundWalletName)
	}

	if err := service.SetBoundWallet(ctx, "missing", strPtr("main")); !errors.Is(err, store.ErrApiKeyNotFound) {
		t.Errorf("expected ErrApiKeyNotFound, got %v", err)
	}

	if err := service.DeleteApiKey(ctx, "k1"); err != nil {
		t.Fatalf("DeleteApiKey failed: %v", err)
	}
	if _, err := service.GetApiKey(ctx, "k1"); !errors.Is(err, store.ErrApiKeyNotFound) {
		t.Errorf("expected deleted key to be gone, got %v", err)
	}
	if err := service.DeleteApiKey(ctx, "k1"); !errors.Is(err, store.ErrApiKeyNotFound) {
		t.Errorf("expected ErrApiKeyNotFound on second delete, got %v", err)
	}
}

func TestUsageBucketsAccumulate(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	steps := []struct {
		day    string
		amount string
	}{
		{"2024-05-01", "1.5"},
		{"2024-05-01", "2.25"},
		{"2024-05-02", "10"},
	}
	for _, step := range steps {
		if err := service.AddUsage(ctx, "k1", models.UsageTransfers, step.day, decimal.RequireFromString(step.amount)); err != nil {
			t.Fatalf("AddUsage failed: %v", err)
		}
	}

	series, err := service.GetUsage(ctx, "k1", models.UsageTransfers)
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if !series["2024-05-01"].Equal(decimal.RequireFromString("3.75")) {
		t.Errorf("expected 3.75 on 2024-05-01, got %s", series["2024-05-01"])
	}
	if !series["2024-05-02"].Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected 10 on 2024-05-02, got %s", series["2024-05-02"])
	}

	// kinds are independent
	uses, _ := service.GetUsage(ctx, "k1", models.UsageUses)
	if len(uses) != 0 {
		t.Errorf("expected no use counts, got %v", uses)
	}
}

func TestAuthorizedWallets(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, found, err := service.ListAuthorizedWallets(ctx, "u1", "k1")
	if err != nil || found {
		t.Fatalf("expected no slot, got found=%v err=%v", found, err)
	}

	if err := service.EnsureKeySlot(ctx, "u1", "k1"); err != nil {
		t.Fatalf("EnsureKeySlot failed: %v", err)
	}
	addrs, found, _ := service.ListAuthorizedWallets(ctx, "u1", "k1")
	if !found || len(addrs) != 0 {
		t.Fatalf("expected empty slot, got found=%v addrs=%v", found, addrs)
	}

	for _, a := range []string{"0xW1", "0xW2", "0xW1"} {
		if err := service.AddAuthorizedWallet(ctx, "u1", "k1", a); err != nil {
			t.Fatalf("AddAuthorizedWallet failed: %v", err)
		}
	}
	addrs, _, _ = service.ListAuthorizedWallets(ctx, "u1", "k1")
	if len(addrs) != 2 || addrs[0] != "0xW1" || addrs[1] != "0xW2" {
		t.Errorf("expected [0xW1 0xW2], got %v", addrs)
	}
}

func TestRotateApiKeyMovesRecords(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	service.CreateApiKey(ctx, store.CreateApiKeyParams{Key: "old", OwnerId: "biz1", Name: "prod"})
	service.AddUsage(ctx, "old", models.UsageUses, "2024-05-01", decimal.NewFromInt(3))
	service.AddAuthorizedWallet(ctx, "u1", "old", "0xW1")

	if err := service.RotateApiKey(ctx, "old", "new"); err != nil {
		t.Fatalf("RotateApiKey failed: %v", err)
	}

	if _, err := service.GetApiKey(ctx, "old"); !errors.Is(err, store.ErrApiKeyNotFound) {
		t.Errorf("expected old key gone, got %v", err)
	}
	key, err := service.GetApiKey(ctx, "new")
	if err != nil || key.Name != "prod" {
		t.Fatalf("expected rotated key, got %+v err=%v", key, err)
	}
	uses, _ := service.GetUsage(ctx, "new", models.UsageUses)
	if !uses["2024-05-01"].Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected usage to move, got %v", uses)
	}
	addrs, found, _ := service.ListAuthorizedWallets(ctx, "u1", "new")
	if !found || len(addrs) != 1 {
		t.Errorf("expected authorizations to move, got %v", addrs)
	}
}
