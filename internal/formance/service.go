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

package formance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"delegated-pay-go/internal/models"
	"delegated-pay-go/internal/store"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.UsageStore and store.UsageRotator.
var (
	_ store.UsageStore   = (*Service)(nil)
	_ store.UsageRotator = (*Service)(nil)
)

// kindAssets maps usage kinds to Formance UMN assets. Transfer and fee
// totals are display amounts scaled by 18 so any token's precision fits.
var kindAssets = map[models.UsageKind]string{
	models.UsageUses:      "USES/0",
	models.UsageTransfers: "TRANSFER/18",
	models.UsageFees:      "FEE/18",
}

// Service implements store.UsageStore backed by a Formance Stack ledger.
// Each (key, kind, day) bucket is an account funded from @world.
type Service struct {
	client *v3.Formance
	ledger string
}

// NewService creates a Formance-backed UsageStore.
// It connects to the stack, creates the ledger if it doesn't already exist, and returns ready to use.
func NewService(ctx context.Context, cfg models.FormanceConfig) (*Service, error) {
	if cfg.StackURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("formance config requires StackURL, ClientID, and ClientSecret")
	}
	if cfg.LedgerName == "" {
		cfg.LedgerName = "delegated-pay-usage"
	}

	zap.L().Info("Connecting to Formance Stack",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", cfg.LedgerName))

	client := v3.New(
		v3.WithServerURL(cfg.StackURL),
		v3.WithSecurity(shared.Security{
			ClientID:     v3.Pointer(cfg.ClientID),
			ClientSecret: v3.Pointer(cfg.ClientSecret),
		}),
	)

	svc := &Service{client: client, ledger: cfg.LedgerName}

	if err := svc.ensureLedger(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger exists: %w", err)
	}

	zap.L().Info("Formance service initialized", zap.String("ledger", cfg.LedgerName))
	return svc, nil
}

// ensureLedger creates the ledger if it does not already exist.
func (s *Service) ensureLedger(ctx context.Context) error {
	_, err := s.client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: s.ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: map[string]string{
				"application": "delegated-pay",
			},
		},
	})
	if err != nil {
		var apiErr *sdkerrors.V2ErrorResponse
		if errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumLedgerAlreadyExists {
			zap.L().Info("Ledger already exists", zap.String("ledger", s.ledger))
			return nil
		}
		return err
	}
	zap.L().Info("Ledger created", zap.String("ledger", s.ledger))
	return nil
}

// Close is a no-op for the Formance backend (HTTP client needs no teardown).
func (s *Service) Close() {}

// ---------- helpers ----------

// keySegment derives a stable account segment from an API key so the raw
// credential never appears in ledger account names.
func keySegment(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:16])
}

// seriesPrefix is the account prefix shared by every bucket of one series.
func seriesPrefix(apiKey string, kind models.UsageKind) string {
	return fmt.Sprintf("usage:%s:%s:", keySegment(apiKey), kind)
}

// bucketAccount returns the account for one day, e.g. usage:ab12..:uses:2024_05_01.
func bucketAccount(apiKey string, kind models.UsageKind, day string) string {
	return seriesPrefix(apiKey, kind) + strings.ReplaceAll(day, "-", "_")
}

// dayFromAccount recovers YYYY-MM-DD from a bucket account address.
func dayFromAccount(address string) string {
	idx := strings.LastIndex(address, ":")
	if idx < 0 {
		return ""
	}
	return strings.ReplaceAll(address[idx+1:], "_", "-")
}

// assetPrecision extracts the precision from a Formance asset like "FEE/18".
func assetPrecision(fAsset string) int32 {
	idx := strings.Index(fAsset, "/")
	if idx < 0 {
		return 0
	}
	var p int32
	for _, c := range fAsset[idx+1:] {
		if c < '0' || c > '9' {
			return 0
		}
		p = p*10 + int32(c-'0')
	}
	return p
}

func strPtr(s string) *string { return &s }

// isConflictError checks whether a Formance SDK error is a CONFLICT (duplicate reference).
func isConflictError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumConflict
}
