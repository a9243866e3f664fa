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

// Package payments runs the delegated payment flows: registering funding
// wallets, pulling a payment across them, and relaying signed permits and
// receive authorizations.
package payments

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"delegated-pay-go/internal/apperr"
	"delegated-pay-go/internal/chain"
	"delegated-pay-go/internal/ledger"
	"delegated-pay-go/internal/locks"
	"delegated-pay-go/internal/models"
	"delegated-pay-go/internal/signature"
	"delegated-pay-go/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Chain is the on-chain surface the flows need.
type Chain interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	Allowance(ctx context.Context, owner, spender, token common.Address) *big.Int
	TransferFrom(ctx context.Context, p chain.TransferParams) (*models.TransferReceipt, error)
	SubmitPermit(ctx context.Context, permit models.Permit, signingKey string, token common.Address) (*big.Int, error)
	SubmitReceiveWithAuthorization(ctx context.Context, auth models.ReceiveAuthorization, signingKey string, token common.Address) (*big.Int, error)
}

// Accounts resolves API keys to the owning business and its wallets.
type Accounts interface {
	GetApiKey(ctx context.Context, key string) (*models.ApiKey, error)
	GetBusinessUser(ctx context.Context, id string) (*models.BusinessUser, error)
}

type Registry interface {
	EnsureKeySlot(ctx context.Context, endUserId, apiKey string) error
	AddAuthorizedWallet(ctx context.Context, endUserId, apiKey, address string) error
	ListAuthorizedWallets(ctx context.Context, endUserId, apiKey string) ([]common.Address, bool, error)
}

type Recorder interface {
	Record(ctx context.Context, apiKey string, u ledger.Usage)
}

// TokenPolicy restricts which token contracts may be used.
type TokenPolicy interface {
	Allowed(address string) bool
}

// Transfer is one settled leg of a payment, in smallest units.
type Transfer struct {
	Wallet common.Address
	Amount *big.Int
	TxHash string
	Fee    *big.Int
}

// Deps are the collaborators of a Service; all live for the whole process.
type Deps struct {
	Chain    Chain
	Accounts Accounts
	Registry Registry
	Recorder Recorder
	Locker   locks.Locker
	Tokens   TokenPolicy
}

type Service struct {
	chain    Chain
	accounts Accounts
	registry Registry
	recorder Recorder
	locker   locks.Locker
	tokens   TokenPolicy
	observer Observer
}

func NewService(deps Deps) *Service {
	locker := deps.Locker
	if locker == nil {
		locker = locks.NoopLocker{}
	}
	return &Service{
		chain:    deps.Chain,
		accounts: deps.Accounts,
		registry: deps.Registry,
		recorder: deps.Recorder,
		locker:   locker,
		tokens:   deps.Tokens,
	}
}

// WithObserver registers a callback for payment state changes.
func (s *Service) WithObserver(o Observer) *Service {
	s.observer = o
	return s
}

// business is a resolved API key with its settlement wallet.
type business struct {
	key    *models.ApiKey
	wallet *models.BusinessWallet
}

func (b *business) address() common.Address {
	return common.HexToAddress(b.wallet.Address)
}

// GetWalletAddress returns the address of the wallet bound to apiKey.
func (s *Service) GetWalletAddress(ctx context.Context, apiKey string) (*models.WalletAddressResponse, error) {
	b, err := s.resolveBusiness(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &models.WalletAddressResponse{Address: b.wallet.Address}, nil
}

// ApproveSpending registers req.Wallet as a funding source of req.UserId for
// apiKey. The on-chain approve happens out of band.
func (s *Service) ApproveSpending(ctx context.Context, apiKey string, req models.ApproveSpendingRequest) (*models.MessageResponse, error) {
	key, err := s.resolveKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserId) == "" || strings.TrimSpace(req.Wallet) == "" || strings.TrimSpace(req.Amount) == "" {
		return nil, apperr.Validation("User ID, wallet address, and approve amount required")
	}
	if _, err := parseDisplay(req.Amount); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, req.UserId, key.Key, req.Wallet); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, key.Key, ledger.Usage{Uses: 1})

	zap.L().Info("Spending approved",
		zap.String("user_id", req.UserId),
		zap.String("wallet", req.Wallet))
	return &models.MessageResponse{Message: "Spending approved successfully"}, nil
}

// RequestPayment pulls req.Amount from the end user's authorized wallets into
// the business wallet, first-fit in authorization order.
func (s *Service) RequestPayment(ctx context.Context, apiKey string, req models.RequestPaymentRequest) (*models.PaymentResponse, error) {
	r := s.newRun()
	log := r.log.With(zap.String("user_id", req.UserId))
	r.log = log

	// Validating
	b, err := s.resolveBusiness(ctx, apiKey)
	if err != nil {
		return nil, r.abort(err)
	}
	if strings.TrimSpace(req.UserId) == "" || strings.TrimSpace(req.Amount) == "" {
		return nil, r.abort(apperr.Validation("User ID and payment amount required"))
	}
	token, err := s.parseToken(req.ContractAddress)
	if err != nil {
		return nil, r.abort(err)
	}
	decimals, err := s.chain.Decimals(ctx, token)
	if err != nil {
		return nil, r.abort(err)
	}
	amount, err := ParseAmount(req.Amount, decimals)
	if err != nil {
		return nil, r.abort(err)
	}

	// Collecting allowances
	r.advance(StateCollectingAllowances)
	wallets, found, err := s.registry.ListAuthorizedWallets(ctx, req.UserId, b.key.Key)
	if err != nil {
		return nil, r.abort(err)
	}
	if !found || len(wallets) == 0 {
		return nil, r.abort(ErrNoSpendingApproved)
	}

	lockKeys := make([]string, 0, len(wallets))
	for _, w := range wallets {
		lockKeys = append(lockKeys, locks.WalletKey(w, token))
	}
	unlock, err := s.locker.Lock(ctx, lockKeys...)
	if err != nil {
		return nil, r.abort(apperr.Internal(err, "unable to lock funding wallets"))
	}
	defer unlock()

	spender := b.address()
	snapshots := make([]models.AllowanceSnapshot, 0, len(wallets))
	for _, w := range wallets {
		allowance := s.chain.Allowance(ctx, w, spender, token)
		snapshots = append(snapshots, models.AllowanceSnapshot{Wallet: w, Allowance: allowance})
	}

	// Allocating
	r.advance(StateAllocating)
	allocations, err := Allocate(amount, snapshots)
	if err != nil {
		log.Info("Payment exceeds spending limit",
			zap.String("amount", amount.String()),
			zap.String("total_allowance", TotalAllowance(snapshots).String()))
		return nil, r.abort(err)
	}

	// Executing transfers
	r.advance(StateExecutingTransfers)
	completed := make([]Transfer, 0, len(allocations))
	for _, a := range allocations {
		receipt, err := s.chain.TransferFrom(ctx, chain.TransferParams{
			From:       a.Wallet,
			To:         spender,
			SigningKey: b.wallet.SigningKey,
			Amount:     a.Amount,
			Token:      token,
		})
		if err != nil {
			r.advance(StateRecording)
			s.recordTransfers(ctx, log, b.key.Key, amount, completed, decimals)
			return nil, r.abort(newTransferError(a.Wallet, completed, err))
		}
		completed = append(completed, Transfer{
			Wallet: a.Wallet,
			Amount: a.Amount,
			TxHash: receipt.TxHash,
			Fee:    receipt.FeePaid,
		})
	}

	// Recording
	r.advance(StateRecording)
	s.recordTransfers(ctx, log, b.key.Key, amount, completed, decimals)
	r.advance(StateCompleted)

	return buildPaymentResponse(completed, decimals), nil
}

// PermitSpending relays an EIP-2612 permit whose spender is the business
// wallet, then registers the owner as a funding source.
func (s *Service) PermitSpending(ctx context.Context, apiKey string, req models.PermitSpendingRequest) (*models.PermitSpendingResponse, error) {
	b, err := s.resolveBusiness(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserId) == "" {
		return nil, apperr.Validation("User ID required")
	}
	token, err := s.parseToken(req.ContractAddress)
	if err != nil {
		return nil, err
	}
	permit, err := signature.ParsePermit(req.Permit)
	if err != nil {
		return nil, err
	}
	if permit.Spender != b.address() {
		return nil, apperr.Validation("Permit spender must be the wallet bound to the API key")
	}

	fee, err := s.chain.SubmitPermit(ctx, permit, b.wallet.SigningKey, token)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, req.UserId, b.key.Key, permit.Owner.Hex()); err != nil {
		return nil, err
	}

	feeDisplay := ToDisplay(fee, NativeDecimals)
	s.recorder.Record(ctx, b.key.Key, ledger.Usage{Uses: 1, Fees: feeDisplay})

	zap.L().Info("Permit spending registered",
		zap.String("user_id", req.UserId),
		zap.String("owner", permit.Owner.Hex()),
		zap.String("fee", feeDisplay.String()))
	return &models.PermitSpendingResponse{Message: "Permit submitted successfully", Fee: feeDisplay}, nil
}

// ReceivePayment relays an EIP-3009 receiveWithAuthorization paying the
// business wallet directly.
func (s *Service) ReceivePayment(ctx context.Context, apiKey string, req models.ReceivePaymentRequest) (*models.ReceivePaymentResponse, error) {
	b, err := s.resolveBusiness(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	token, err := s.parseToken(req.ContractAddress)
	if err != nil {
		return nil, err
	}
	auth, err := signature.ParseReceiveAuthorization(req.Authorization)
	if err != nil {
		return nil, err
	}
	if auth.To != b.address() {
		return nil, apperr.Validation("Authorization recipient must be the wallet bound to the API key")
	}
	if auth.Value.Sign() <= 0 {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	decimals, err := s.chain.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}

	fee, err := s.chain.SubmitReceiveWithAuthorization(ctx, auth, b.wallet.SigningKey, token)
	if err != nil {
		return nil, err
	}

	amount := ToDisplay(auth.Value, decimals)
	feeDisplay := ToDisplay(fee, NativeDecimals)
	s.recorder.Record(ctx, b.key.Key, ledger.Usage{Uses: 1, Transferred: amount, Fees: feeDisplay})

	zap.L().Info("Payment received",
		zap.String("from", auth.From.Hex()),
		zap.String("amount", amount.String()),
		zap.String("fee", feeDisplay.String()))
	return &models.ReceivePaymentResponse{
		Message: "Received payment successfully",
		Amount:  amount,
		Fee:     feeDisplay,
	}, nil
}

func (s *Service) newRun() *run {
	id := uuid.New().String()
	return &run{
		id:       id,
		state:    StateValidating,
		observer: s.observer,
		log:      zap.L().With(zap.String("run_id", id)),
	}
}

func (s *Service) resolveKey(ctx context.Context, apiKey string) (*models.ApiKey, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperr.Unauthorized("API key required")
	}
	key, err := s.accounts.GetApiKey(ctx, apiKey)
	if errors.Is(err, store.ErrApiKeyNotFound) {
		return nil, apperr.Unauthorized("Invalid API key")
	}
	if err != nil {
		return nil, apperr.Internal(err, "unable to read API key")
	}
	return key, nil
}

func (s *Service) resolveBusiness(ctx context.Context, apiKey string) (*business, error) {
	key, err := s.resolveKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if key.BoundWalletName == nil {
		return nil, apperr.NotFound("No wallet set for API key")
	}

	owner, err := s.accounts.GetBusinessUser(ctx, key.OwnerId)
	if errors.Is(err, store.ErrBusinessUserNotFound) {
		return nil, apperr.NotFound("No wallet set for API key")
	}
	if err != nil {
		return nil, apperr.Internal(err, "unable to read business user")
	}

	wallet := owner.WalletByName(*key.BoundWalletName)
	if wallet == nil {
		return nil, apperr.NotFound("No wallet set for API key")
	}
	return &business{key: key, wallet: wallet}, nil
}

func (s *Service) parseToken(contractAddress string) (common.Address, error) {
	trimmed := strings.TrimSpace(contractAddress)
	if trimmed == "" {
		return common.Address{}, apperr.Validation("contractAddress is required")
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, apperr.Validation("invalid contract address: %s", contractAddress)
	}
	if s.tokens != nil && !s.tokens.Allowed(trimmed) {
		return common.Address{}, apperr.Validation("unsupported token: %s", contractAddress)
	}
	return common.HexToAddress(trimmed), nil
}

func (s *Service) authorize(ctx context.Context, endUserId, apiKey, wallet string) error {
	if err := s.registry.EnsureKeySlot(ctx, endUserId, apiKey); err != nil {
		return err
	}
	return s.registry.AddAuthorizedWallet(ctx, endUserId, apiKey, wallet)
}

// recordTransfers books what actually moved. Nothing is recorded when no leg settled.
func (s *Service) recordTransfers(ctx context.Context, log *zap.Logger, apiKey string, attempted *big.Int, completed []Transfer, decimals uint8) {
	if len(completed) == 0 {
		return
	}
	transferred, fees := totals(completed)
	if transferred.Cmp(attempted) != 0 {
		log.Warn("Recording partial payment",
			zap.String("attempted", ToDisplay(attempted, decimals).String()),
			zap.String("transferred", ToDisplay(transferred, decimals).String()))
	}
	s.recorder.Record(ctx, apiKey, ledger.Usage{
		Uses:        1,
		Transferred: ToDisplay(transferred, decimals),
		Fees:        ToDisplay(fees, NativeDecimals),
	})
}

func totals(transfers []Transfer) (amount, fees *big.Int) {
	amount, fees = new(big.Int), new(big.Int)
	for _, t := range transfers {
		amount.Add(amount, t.Amount)
		if t.Fee != nil {
			fees.Add(fees, t.Fee)
		}
	}
	return amount, fees
}

func buildPaymentResponse(transfers []Transfer, decimals uint8) *models.PaymentResponse {
	amount, fees := totals(transfers)
	resp := &models.PaymentResponse{
		Message:   "Processed payment successfully",
		TxHashes:  make([]string, 0, len(transfers)),
		Transfers: make([]models.TransferRecord, 0, len(transfers)),
		Amount:    ToDisplay(amount, decimals),
		Fees:      ToDisplay(fees, NativeDecimals),
	}
	for _, t := range transfers {
		resp.TxHashes = append(resp.TxHashes, t.TxHash)
		resp.Transfers = append(resp.Transfers, models.TransferRecord{
			Wallet: t.Wallet.Hex(),
			Amount: ToDisplay(t.Amount, decimals),
			TxHash: t.TxHash,
			Fee:    ToDisplay(t.Fee, NativeDecimals),
		})
	}
	return resp
}
