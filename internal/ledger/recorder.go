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

// Package ledger keeps per-key daily usage series: how often a key was used,
// how much it moved, and how much gas it paid.
package ledger

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"delegated-pay-go/internal/models"
	"delegated-pay-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DayFormat is the UTC bucket key layout.
const DayFormat = "2006-01-02"

// Day returns the UTC bucket key for t.
func Day(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// Usage is what one payment run adds to a key's series.
type Usage struct {
	Uses        int64
	Transferred decimal.Decimal
	Fees        decimal.Decimal
}

type Recorder struct {
	usage    store.UsageStore
	now      func() time.Time
	failures atomic.Int64
}

func NewRecorder(usage store.UsageStore) *Recorder {
	return &Recorder{usage: usage, now: time.Now}
}

// WithClock replaces the time source used to pick the day bucket.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

func (r *Recorder) IncrementUseCount(ctx context.Context, apiKey string) error {
	return r.add(ctx, apiKey, models.UsageUses, decimal.NewFromInt(1))
}

func (r *Recorder) AddTransferAmount(ctx context.Context, apiKey string, amount decimal.Decimal) error {
	return r.add(ctx, apiKey, models.UsageTransfers, amount)
}

func (r *Recorder) AddFeeAmount(ctx context.Context, apiKey string, amount decimal.Decimal) error {
	return r.add(ctx, apiKey, models.UsageFees, amount)
}

func (r *Recorder) GetUseCounts(ctx context.Context, apiKey string) (map[string]decimal.Decimal, error) {
	return r.usage.GetUsage(ctx, apiKey, models.UsageUses)
}

func (r *Recorder) GetTransferAmounts(ctx context.Context, apiKey string) (map[string]decimal.Decimal, error) {
	return r.usage.GetUsage(ctx, apiKey, models.UsageTransfers)
}

func (r *Recorder) GetFeeAmounts(ctx context.Context, apiKey string) (map[string]decimal.Decimal, error) {
	return r.usage.GetUsage(ctx, apiKey, models.UsageFees)
}

func (r *Recorder) add(ctx context.Context, apiKey string, kind models.UsageKind, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("usage amount cannot be negative: %s", amount)
	}
	return r.usage.AddUsage(ctx, apiKey, kind, Day(r.now()), amount)
}

// Record applies u after on-chain work already happened. Each increment is
// attempted independently; failures are logged and counted, never returned,
// so a bookkeeping error cannot turn a completed payment into a failed one.
func (r *Recorder) Record(ctx context.Context, apiKey string, u Usage) {
	ctx = context.WithoutCancel(ctx)

	for i := int64(0); i < u.Uses; i++ {
		if err := r.IncrementUseCount(ctx, apiKey); err != nil {
			r.logFailure(models.UsageUses, decimal.NewFromInt(1), err)
		}
	}
	if u.Transferred.IsPositive() {
		if err := r.AddTransferAmount(ctx, apiKey, u.Transferred); err != nil {
			r.logFailure(models.UsageTransfers, u.Transferred, err)
		}
	}
	if u.Fees.IsPositive() {
		if err := r.AddFeeAmount(ctx, apiKey, u.Fees); err != nil {
			r.logFailure(models.UsageFees, u.Fees, err)
		}
	}
}

// FailureCount reports how many increments Record has dropped since start.
func (r *Recorder) FailureCount() int64 {
	return r.failures.Load()
}

func (r *Recorder) logFailure(kind models.UsageKind, amount decimal.Decimal, err error) {
	r.failures.Add(1)
	zap.L().Error("Failed to record usage",
		zap.String("kind", string(kind)),
		zap.String("amount", amount.String()),
		zap.Bool("reconciliation_gap", true),
		zap.Error(err))
}
