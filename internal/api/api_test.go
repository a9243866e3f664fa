package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"delegated-pay-go/internal/apperr"
	"delegated-pay-go/internal/models"
	"delegated-pay-go/internal/payments"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayments struct {
	lastKey string
	lastReq models.RequestPaymentRequest
	payErr  error
}

func (f *fakePayments) GetWalletAddress(_ context.Context, apiKey string) (*models.WalletAddressResponse, error) {
	f.lastKey = apiKey
	return &models.WalletAddressResponse{Address: "0x00000000000000000000000000000000000000b0"}, nil
}

func (f *fakePayments) ApproveSpending(_ context.Context, apiKey string, _ models.ApproveSpendingRequest) (*models.MessageResponse, error) {
	f.lastKey = apiKey
	return &models.MessageResponse{Message: "Spending approved successfully"}, nil
}

func (f *fakePayments) RequestPayment(_ context.Context, apiKey string, req models.RequestPaymentRequest) (*models.PaymentResponse, error) {
	f.lastKey, f.lastReq = apiKey, req
	if f.payErr != nil {
		return nil, f.payErr
	}
	return &models.PaymentResponse{
		Message:  "Processed payment successfully",
		TxHashes: []string{"0xaa", "0xbb"},
		Amount:   decimal.NewFromInt(90),
	}, nil
}

func (f *fakePayments) PermitSpending(context.Context, string, models.PermitSpendingRequest) (*models.PermitSpendingResponse, error) {
	return nil, apperr.InvalidSignature("Invalid signature")
}

func (f *fakePayments) ReceivePayment(context.Context, string, models.ReceivePaymentRequest) (*models.ReceivePaymentResponse, error) {
	return &models.ReceivePaymentResponse{Message: "Received payment successfully", Amount: decimal.NewFromInt(1)}, nil
}

type fakeAccounts struct {
	owner     string
	usageKind models.UsageKind
	keyName   string
}

func (f *fakeAccounts) CreateApiKey(_ context.Context, ownerId, name string) (string, error) {
	f.owner, f.keyName = ownerId, name
	if name == "taken" {
		return "", apperr.Validation("Key name already in use")
	}
	return "new-key", nil
}

func (f *fakeAccounts) ListApiKeys(_ context.Context, ownerId string) ([]models.ApiKeyView, error) {
	f.owner = ownerId
	return []models.ApiKeyView{{Name: "prod", Key: "abcd...wxyz"}}, nil
}

func (f *fakeAccounts) DeleteApiKey(context.Context, string, string) error {
	return apperr.NotFound("API key not found")
}

func (f *fakeAccounts) RotateApiKey(context.Context, string, string) (string, error) {
	return "rotated", nil
}

func (f *fakeAccounts) SetBoundWallet(_ context.Context, _, keyName, _ string) error {
	f.keyName = keyName
	return nil
}

func (f *fakeAccounts) AddWallet(context.Context, string, models.AddWalletRequest) error {
	return nil
}

func (f *fakeAccounts) ListWallets(context.Context, string) ([]models.WalletView, error) {
	return []models.WalletView{}, nil
}

func (f *fakeAccounts) RemoveWallet(context.Context, string, string) error {
	return nil
}

func (f *fakeAccounts) BalanceHistory(context.Context, string, string, string) ([]models.BalanceHistoryPoint, error) {
	return []models.BalanceHistoryPoint{{TimestampMillis: 1000, Balance: decimal.NewFromInt(7)}}, nil
}

func (f *fakeAccounts) WalletBalance(_ context.Context, _, walletName, contract string) (*models.WalletBalanceResponse, error) {
	if contract == "" {
		return nil, apperr.Validation("contractAddress must be a hex address")
	}
	return &models.WalletBalanceResponse{Wallet: walletName, ContractAddress: contract, Balance: "12.5"}, nil
}

func (f *fakeAccounts) Usage(_ context.Context, _, keyName string, kind models.UsageKind) (models.UsageSeries, error) {
	f.keyName, f.usageKind = keyName, kind
	return models.UsageSeries{"2024-05-01": decimal.NewFromInt(3)}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeResolver struct{}

func (fakeResolver) ResolveCaller(_ context.Context, token string) (string, bool) {
	if token == "good-token" {
		return "biz-1", true
	}
	return "", false
}

type testServer struct {
	payments *fakePayments
	accounts *fakeAccounts
	handler  http.Handler
}

func newTestServer(pingErr error) *testServer {
	p := &fakePayments{}
	a := &fakeAccounts{}
	h := NewHandlers(p, a, fakePinger{err: pingErr})
	return &testServer{payments: p, accounts: a, handler: Routes(h, fakeResolver{}, 5*time.Second)}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

var (
	withKey    = map[string]string{"x-api-key": "key-1"}
	withBearer = map[string]string{"Authorization": "Bearer good-token"}
)

func TestHealth(t *testing.T) {
	rec := newTestServer(nil).do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["message"])

	rec = newTestServer(errors.New("db gone")).do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPaymentRoutesRequireApiKey(t *testing.T) {
	s := newTestServer(nil)
	rec := s.do(t, http.MethodGet, "/get-wallet-address", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "API key required", decodeBody(t, rec)["message"])
	assert.Empty(t, s.payments.lastKey)
}

func TestGetWalletAddress(t *testing.T) {
	s := newTestServer(nil)
	rec := s.do(t, http.MethodGet, "/get-wallet-address", "", withKey)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "key-1", s.payments.lastKey)
	assert.NotEmpty(t, decodeBody(t, rec)["address"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRequestPayment(t *testing.T) {
	s := newTestServer(nil)
	rec := s.do(t, http.MethodPost, "/request-payment",
		`{"userId":"u1","amount":"90","contractAddress":"0x00000000000000000000000000000000000000c0"}`, withKey)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", s.payments.lastReq.UserId)
	assert.Equal(t, "90", s.payments.lastReq.Amount)

	body := decodeBody(t, rec)
	assert.Equal(t, "Processed payment successfully", body["message"])
	assert.Equal(t, []any{"0xaa", "0xbb"}, body["txHashes"])
}

func TestRequestPaymentErrors(t *testing.T) {
	completed := []payments.Transfer{{
		Wallet: common.HexToAddress("0x0000000000000000000000000000000000000a01"),
		Amount: big.NewInt(40),
		TxHash: "0xdone",
	}}
	transferErr := &payments.TransferError{
		Wallet:    common.HexToAddress("0x0000000000000000000000000000000000000a02"),
		Completed: completed,
		Err:       apperr.ChainCall(errors.New("execution reverted"), "Transfer failed"),
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
		wantHashes bool
	}{
		{"insufficient limit", payments.ErrInsufficientSpendingLimit, http.StatusBadRequest, "Insufficient spending limit", false},
		{"invalid key", apperr.Unauthorized("Invalid API key"), http.StatusUnauthorized, "Invalid API key", false},
		{"unbound key", apperr.NotFound("No wallet set for API key"), http.StatusNotFound, "No wallet set for API key", false},
		{"chain timeout", apperr.ChainTimeout(errors.New("context deadline exceeded"), "chain call timed out"), http.StatusInternalServerError, "chain call timed out", false},
		{"foreign error", errors.New("sql: connection refused"), http.StatusInternalServerError, "internal server error", false},
		{"aborted transfer", transferErr, http.StatusInternalServerError, "Transfer failed", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(nil)
			s.payments.payErr = tt.err
			rec := s.do(t, http.MethodPost, "/request-payment", `{"userId":"u1","amount":"1","contractAddress":"0x1"}`, withKey)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantMsg, body["message"])
			if tt.wantHashes {
				assert.Equal(t, []any{"0xdone"}, body["txHashes"])
			} else {
				assert.NotContains(t, body, "txHashes")
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(nil)
	rec := s.do(t, http.MethodPost, "/approve-spending", `{"userId":`, withKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decodeBody(t, rec)["message"])

	rec = s.do(t, http.MethodPost, "/approve-spending", ``, withKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPermitSpendingInvalidSignature(t *testing.T) {
	rec := newTestServer(nil).do(t, http.MethodPost, "/permit-spending", `{"userId":"u1"}`, withKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid signature", decodeBody(t, rec)["message"])
}

func TestDashboardRequiresBearer(t *testing.T) {
	s := newTestServer(nil)

	rec := s.do(t, http.MethodGet, "/api-keys", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api-keys", "", map[string]string{"Authorization": "Bearer bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token", decodeBody(t, rec)["message"])

	rec = s.do(t, http.MethodGet, "/api-keys", "", withKey)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateApiKey(t *testing.T) {
	s := newTestServer(nil)

	rec := s.do(t, http.MethodPost, "/api-keys", `{"name":"prod"}`, withBearer)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "new-key", decodeBody(t, rec)["apiKey"])
	assert.Equal(t, "biz-1", s.accounts.owner)

	rec = s.do(t, http.MethodPost, "/api-keys", `{"name":"taken"}`, withBearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Key name already in use", decodeBody(t, rec)["message"])
}

func TestDashboardRoutes(t *testing.T) {
	s := newTestServer(nil)

	rec := s.do(t, http.MethodGet, "/api-keys", "", withBearer)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api-keys/prod", "", withBearer)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api-keys/prod/rotate", "", withBearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rotated", decodeBody(t, rec)["apiKey"])

	rec = s.do(t, http.MethodPut, "/api-keys/prod/wallet", `{"walletName":"main"}`, withBearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "prod", s.accounts.keyName)

	rec = s.do(t, http.MethodPost, "/wallets", `{"name":"main","address":"0x1","key":"k"}`, withBearer)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/wallets", "", withBearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/wallets/main", "", withBearer)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/wallets/main/history?contractAddress=0xc0", "", withBearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"timestamp":1000`)

	rec = s.do(t, http.MethodGet, "/wallets/main/balance?contractAddress=0xc0", "", withBearer)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "main", body["wallet"])
	assert.Equal(t, "12.5", body["balance"])

	rec = s.do(t, http.MethodGet, "/wallets/main/balance", "", withBearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsageRoutes(t *testing.T) {
	tests := []struct {
		path string
		kind models.UsageKind
	}{
		{"/api-keys/prod/usage", models.UsageUses},
		{"/api-keys/prod/transfers", models.UsageTransfers},
		{"/api-keys/prod/fees", models.UsageFees},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			s := newTestServer(nil)
			rec := s.do(t, http.MethodGet, tt.path, "", withBearer)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.kind, s.accounts.usageKind)
			assert.Equal(t, "prod", s.accounts.keyName)
			assert.Equal(t, "3", decodeBody(t, rec)["2024-05-01"])
		})
	}
}
