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

// Package chain talks to an EVM node and a block explorer on behalf of the
// payment flows. Every call is bounded by a timeout; timeouts surface as
// apperr.KindChainTimeout and other failures as apperr.KindChainCall.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"delegated-pay-go/internal/apperr"
	"delegated-pay-go/internal/models"
	"delegated-pay-go/internal/signature"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceUnknown is returned by Balance when the token balance cannot be read.
const BalanceUnknown = "???"

// Backend is the subset of ethclient.Client the adapter needs.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// TokenDirectory supplies optional per-token EIP-712 domain overrides.
type TokenDirectory interface {
	Lookup(address string) (models.TokenConfig, bool)
}

// TransferParams describes a delegated transferFrom signed by the business wallet.
type TransferParams struct {
	From       common.Address
	To         common.Address
	SigningKey string
	Amount     *big.Int
	Token      common.Address
}

type Client struct {
	backend     Backend
	tokens      TokenDirectory
	readTimeout time.Duration
	txTimeout   time.Duration

	mu       sync.Mutex
	chainId  *big.Int
	domains  map[common.Address]signature.Domain
	decimals map[common.Address]uint8
}

// Dial connects to the configured JSON-RPC endpoint over the shared http2 transport.
func Dial(ctx context.Context, cfg models.ChainConfig, tokens TokenDirectory) (*Client, error) {
	if cfg.RpcURL == "" {
		return nil, fmt.Errorf("chain rpc url cannot be empty")
	}

	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	zap.L().Info("Connecting to chain node", zap.String("rpc_url", cfg.RpcURL))
	rpcClient, err := rpc.DialOptions(ctx, cfg.RpcURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to dial chain node: %w", err)
	}

	client := NewClient(ethclient.NewClient(rpcClient), cfg, tokens)

	idCtx, cancel := context.WithTimeout(ctx, cfg.ReadTimeout)
	defer cancel()
	chainId, err := client.ChainID(idCtx)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}

	zap.L().Info("Chain adapter initialized", zap.String("chain_id", chainId.String()))
	return client, nil
}

func NewClient(backend Backend, cfg models.ChainConfig, tokens TokenDirectory) *Client {
	c := &Client{
		backend:     backend,
		tokens:      tokens,
		readTimeout: cfg.ReadTimeout,
		txTimeout:   cfg.TxTimeout,
		domains:     make(map[common.Address]signature.Domain),
		decimals:    make(map[common.Address]uint8),
	}
	if cfg.ChainId != 0 {
		c.chainId = big.NewInt(cfg.ChainId)
	}
	return c
}

// Close releases the node connection.
func (c *Client) Close() {
	if closer, ok := c.backend.(interface{ Close() }); ok {
		closer.Close()
	}
}

// ChainID returns the configured chain id, asking the node once if unset.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainId != nil {
		return c.chainId, nil
	}

	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, classify(ctx, err, "chain id lookup")
	}
	c.chainId = id
	return id, nil
}

// Decimals returns the token's decimals() value.
func (c *Client) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	c.mu.Lock()
	cached, ok := c.decimals[token]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	out, err := c.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, apperr.ChainCall(fmt.Errorf("unexpected decimals type %T", out[0]), "unable to read token decimals")
	}

	c.mu.Lock()
	c.decimals[token] = decimals
	c.mu.Unlock()
	return decimals, nil
}

// BalanceOf returns the raw token balance of owner.
func (c *Client) BalanceOf(ctx context.Context, owner, token common.Address) (*big.Int, error) {
	out, err := c.call(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return bigResult(out, "balanceOf")
}

// Balance returns the display balance of owner, or BalanceUnknown on failure.
func (c *Client) Balance(ctx context.Context, owner, token common.Address) string {
	decimals, err := c.Decimals(ctx, token)
	if err != nil {
		zap.L().Warn("Unable to read token decimals", zap.String("token", token.Hex()), zap.Error(err))
		return BalanceUnknown
	}
	raw, err := c.BalanceOf(ctx, owner, token)
	if err != nil {
		zap.L().Warn("Unable to read token balance",
			zap.String("owner", owner.Hex()),
			zap.String("token", token.Hex()),
			zap.Error(err))
		return BalanceUnknown
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// NativeBalance returns owner's balance of the chain's native currency in wei.
func (c *Client) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	balance, err := c.backend.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, classify(ctx, err, "native balance read")
	}
	return balance, nil
}

// Allowance returns how much spender may pull from owner, or zero when the
// read fails so that a broken wallet is never selected for allocation.
func (c *Client) Allowance(ctx context.Context, owner, spender, token common.Address) *big.Int {
	out, err := c.call(ctx, token, "allowance", owner, spender)
	if err != nil {
		zap.L().Warn("Allowance read failed, treating as zero",
			zap.String("owner", owner.Hex()),
			zap.String("spender", spender.Hex()),
			zap.String("token", token.Hex()),
			zap.Error(err))
		return new(big.Int)
	}
	allowance, err := bigResult(out, "allowance")
	if err != nil {
		return new(big.Int)
	}
	return allowance
}

// TransferFrom moves Amount from From to To using the spender key, after
// checking From still holds enough tokens. It waits for confirmation.
func (c *Client) TransferFrom(ctx context.Context, p TransferParams) (*models.TransferReceipt, error) {
	balance, err := c.BalanceOf(ctx, p.From, p.Token)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(p.Amount) < 0 {
		return nil, apperr.InsufficientFunds(fmt.Sprintf("wallet %s has insufficient balance", p.From.Hex()))
	}

	receipt, fee, err := c.transact(ctx, p.SigningKey, p.Token, "transferFrom", p.From, p.To, p.Amount)
	if err != nil {
		return nil, err
	}

	zap.L().Info("transferFrom confirmed",
		zap.String("from", p.From.Hex()),
		zap.String("to", p.To.Hex()),
		zap.String("amount", p.Amount.String()),
		zap.String("tx_hash", receipt.TxHash.Hex()))

	return &models.TransferReceipt{TxHash: receipt.TxHash.Hex(), FeePaid: fee}, nil
}

// SubmitPermit verifies and submits an EIP-2612 permit, returning the fee paid.
func (c *Client) SubmitPermit(ctx context.Context, permit models.Permit, signingKey string, token common.Address) (*big.Int, error) {
	domain, err := c.Domain(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := signature.VerifyPermit(domain, permit); err != nil {
		return nil, err
	}

	receipt, fee, err := c.transact(ctx, signingKey, token, "permit",
		permit.Owner, permit.Spender, permit.Value, permit.Deadline, permit.V, permit.R, permit.S)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Permit submitted",
		zap.String("owner", permit.Owner.Hex()),
		zap.String("spender", permit.Spender.Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()))
	return fee, nil
}

// SubmitReceiveWithAuthorization verifies and submits an EIP-3009 authorization, returning the fee paid.
func (c *Client) SubmitReceiveWithAuthorization(ctx context.Context, auth models.ReceiveAuthorization, signingKey string, token common.Address) (*big.Int, error) {
	domain, err := c.Domain(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := signature.VerifyReceive(domain, auth); err != nil {
		return nil, err
	}

	receipt, fee, err := c.transact(ctx, signingKey, token, "receiveWithAuthorization",
		auth.From, auth.To, auth.Value, auth.ValidAfter, auth.ValidBefore, auth.Nonce, auth.V, auth.R, auth.S)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Receive authorization submitted",
		zap.String("from", auth.From.Hex()),
		zap.String("to", auth.To.Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()))
	return fee, nil
}

// Domain resolves the token's EIP-712 domain from the token directory or the contract.
func (c *Client) Domain(ctx context.Context, token common.Address) (signature.Domain, error) {
	c.mu.Lock()
	cached, ok := c.domains[token]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	chainId, err := c.ChainID(ctx)
	if err != nil {
		return signature.Domain{}, err
	}

	var name, version string
	if c.tokens != nil {
		if cfg, found := c.tokens.Lookup(token.Hex()); found {
			name, version = cfg.DomainName, cfg.DomainVersion
		}
	}
	if name == "" {
		out, err := c.call(ctx, token, "name")
		if err != nil {
			return signature.Domain{}, err
		}
		name, _ = out[0].(string)
	}
	if version == "" {
		version = "1"
		if out, err := c.call(ctx, token, "version"); err == nil {
			if v, ok := out[0].(string); ok && v != "" {
				version = v
			}
		}
	}

	domain := signature.Domain{Name: name, Version: version, ChainId: chainId, VerifyingContract: token}
	c.mu.Lock()
	c.domains[token] = domain
	c.mu.Unlock()
	return domain, nil
}

func (c *Client) call(ctx context.Context, token common.Address, method string, args ...any) ([]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	contract := bind.NewBoundContract(token, erc20ABI, c.backend, c.backend, c.backend)
	var out []any
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, classify(ctx, err, method)
	}
	if len(out) == 0 {
		return nil, apperr.ChainCall(fmt.Errorf("%s returned no values", method), method+" failed")
	}
	return out, nil
}

// transact signs with a key parsed for this call only, submits, and waits for the receipt.
func (c *Client) transact(ctx context.Context, signingKey string, token common.Address, method string, args ...any) (*types.Receipt, *big.Int, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(signingKey, "0x"))
	if err != nil {
		return nil, nil, apperr.Internal(err, "business wallet signing key is invalid")
	}

	ctx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()

	chainId, err := c.ChainID(ctx)
	if err != nil {
		return nil, nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainId)
	if err != nil {
		return nil, nil, apperr.Internal(err, "unable to build transactor")
	}
	opts.Context = ctx

	contract := bind.NewBoundContract(token, erc20ABI, c.backend, c.backend, c.backend)
	tx, err := contract.Transact(opts, method, args...)
	if err != nil {
		return nil, nil, classify(ctx, err, method)
	}

	zap.L().Debug("Transaction submitted, waiting for receipt",
		zap.String("method", method),
		zap.String("tx_hash", tx.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, nil, classify(ctx, err, method+" confirmation")
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, nil, apperr.ChainCall(fmt.Errorf("transaction %s reverted", tx.Hash().Hex()), method+" transaction reverted")
	}
	return receipt, feePaid(receipt, tx), nil
}

// feePaid is gasUsed times the effective gas price, falling back to the tx gas price.
func feePaid(receipt *types.Receipt, tx *types.Transaction) *big.Int {
	price := receipt.EffectiveGasPrice
	if price == nil && tx != nil {
		price = tx.GasPrice()
	}
	if price == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price)
}

func bigResult(out []any, method string) (*big.Int, error) {
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, apperr.ChainCall(fmt.Errorf("unexpected %s type %T", method, out[0]), method+" failed")
	}
	return v, nil
}

// classify maps a chain error to ChainTimeout when the call's deadline passed.
func classify(ctx context.Context, err error, op string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.ChainTimeout(err, op+" timed out")
	}
	return apperr.ChainCall(err, op+" failed")
}
