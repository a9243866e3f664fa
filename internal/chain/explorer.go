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

package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"delegated-pay-go/internal/apperr"
	"delegated-pay-go/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Explorer reads address histories from an Etherscan-compatible API.
type Explorer struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
}

type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type explorerTx struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	GasPrice  string `json:"gasPrice"`
	GasUsed   string `json:"gasUsed"`
	TimeStamp string `json:"timeStamp"`
	IsError   string `json:"isError"`
}

// errTransient marks failures worth retrying.
var errTransient = errors.New("transient explorer failure")

func NewExplorer(cfg models.ExplorerConfig) (*Explorer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("explorer base url cannot be empty")
	}
	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}
	return newExplorer(cfg, httpClient), nil
}

func newExplorer(cfg models.ExplorerConfig, httpClient *http.Client) *Explorer {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Explorer{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.ApiKey,
		httpClient:  httpClient,
		maxAttempts: maxAttempts,
		baseDelay:   cfg.BaseDelay,
	}
}

// FetchTransactions returns address's transactions in ascending order: native
// transfers when token is nil, token transfers of that contract otherwise.
// Transient failures are retried with exponential backoff.
func (e *Explorer) FetchTransactions(ctx context.Context, address common.Address, token *common.Address) ([]models.ExplorerTx, error) {
	query := url.Values{}
	query.Set("module", "account")
	query.Set("address", address.Hex())
	query.Set("startblock", "0")
	query.Set("endblock", "99999999")
	query.Set("sort", "asc")
	if token == nil {
		query.Set("action", "txlist")
	} else {
		query.Set("action", "tokentx")
		query.Set("contractaddress", token.Hex())
	}
	if e.apiKey != "" {
		query.Set("apikey", e.apiKey)
	}
	requestURL := e.baseURL + "?" + query.Encode()

	bckoff := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(e.baseDelay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
	policy := backoff.WithContext(backoff.WithMaxRetries(bckoff, uint64(e.maxAttempts-1)), ctx)

	var txs []models.ExplorerTx
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		result, err := e.fetchOnce(ctx, requestURL)
		if err != nil {
			if errors.Is(err, errTransient) {
				return err
			}
			return backoff.Permanent(err)
		}
		txs = result
		return nil
	}, policy, func(err error, next time.Duration) {
		zap.L().Warn("Explorer request failed, retrying",
			zap.String("address", address.Hex()),
			zap.Int("attempt", attempt),
			zap.Duration("next_delay", next),
			zap.Error(err))
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.ChainTimeout(err, "transaction history request timed out")
		}
		return nil, apperr.ChainCall(err, "unable to fetch transaction history")
	}

	zap.L().Debug("Fetched transaction history",
		zap.String("address", address.Hex()),
		zap.Int("count", len(txs)),
		zap.Int("attempts", attempt))
	return txs, nil
}

func (e *Explorer) fetchOnce(ctx context.Context, requestURL string) ([]models.ExplorerTx, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build explorer request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", errTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", errTransient, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", errTransient, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer returned status %d: %s", resp.StatusCode, body)
	}

	var parsed explorerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unable to decode explorer response: %w", err)
	}

	if parsed.Status != "1" {
		var detail string
		_ = json.Unmarshal(parsed.Result, &detail)
		switch {
		case strings.Contains(strings.ToLower(parsed.Message), "no transactions found"):
			return []models.ExplorerTx{}, nil
		case strings.Contains(strings.ToLower(detail), "rate limit"):
			return nil, fmt.Errorf("%w: %s", errTransient, detail)
		default:
			return nil, fmt.Errorf("explorer error: %s %s", parsed.Message, detail)
		}
	}

	var raw []explorerTx
	if err := json.Unmarshal(parsed.Result, &raw); err != nil {
		return nil, fmt.Errorf("unable to decode explorer transactions: %w", err)
	}

	txs := make([]models.ExplorerTx, 0, len(raw))
	for _, r := range raw {
		tx, err := r.toModel()
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (r explorerTx) toModel() (models.ExplorerTx, error) {
	value, ok := new(big.Int).SetString(r.Value, 10)
	if !ok {
		return models.ExplorerTx{}, fmt.Errorf("invalid value %q in tx %s", r.Value, r.Hash)
	}
	ts, err := strconv.ParseInt(r.TimeStamp, 10, 64)
	if err != nil {
		return models.ExplorerTx{}, fmt.Errorf("invalid timestamp %q in tx %s", r.TimeStamp, r.Hash)
	}

	fee := new(big.Int)
	gasUsed, okUsed := new(big.Int).SetString(r.GasUsed, 10)
	gasPrice, okPrice := new(big.Int).SetString(r.GasPrice, 10)
	if okUsed && okPrice {
		fee.Mul(gasUsed, gasPrice)
	}

	return models.ExplorerTx{
		Hash:      r.Hash,
		From:      common.HexToAddress(r.From),
		To:        common.HexToAddress(r.To),
		Value:     value,
		Fee:       fee,
		Timestamp: ts,
		Failed:    r.IsError == "1",
	}, nil
}
