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

package payments

import (
	"errors"
	"fmt"

	"delegated-pay-go/internal/apperr"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientSpendingLimit rejects a payment larger than the sum of
	// live allowances before any transfer is attempted.
	ErrInsufficientSpendingLimit = apperr.InsufficientFunds("Insufficient spending limit")

	// ErrNoSpendingApproved is returned when the end user never registered a wallet for the key.
	ErrNoSpendingApproved = apperr.Validation("No spending approved")

	// ErrTransferAborted matches every *TransferError.
	ErrTransferAborted = errors.New("transfer aborted")
)

// TransferError reports a transfer that failed mid-sequence. Completed holds
// the legs that already settled on-chain; they are final and not reversed.
type TransferError struct {
	Wallet    common.Address
	Completed []Transfer
	Err       error
}

func newTransferError(wallet common.Address, completed []Transfer, cause error) *TransferError {
	message := fmt.Sprintf("Transfer from %s failed after %d completed transfer(s): %s",
		wallet.Hex(), len(completed), apperr.Message(cause))
	return &TransferError{
		Wallet:    wallet,
		Completed: completed,
		Err:       apperr.Wrap(apperr.KindOf(cause), cause, message),
	}
}

func (e *TransferError) Error() string {
	return e.Err.Error()
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *TransferError) Is(target error) bool {
	return target == ErrTransferAborted
}

// TxHashes lists the hashes of the transfers that settled before the failure.
func (e *TransferError) TxHashes() []string {
	hashes := make([]string, 0, len(e.Completed))
	for _, t := range e.Completed {
		hashes = append(hashes, t.TxHash)
	}
	return hashes
}
