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

package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindNotFound, http.StatusNotFound},
		{KindInsufficientFunds, http.StatusBadRequest},
		{KindInvalidSignature, http.StatusBadRequest},
		{KindChainCall, http.StatusInternalServerError},
		{KindChainTimeout, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.kind.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := ChainTimeout(context.DeadlineExceeded, "chain call timed out")
	wrapped := fmt.Errorf("transfer: %w", base)

	if got := KindOf(wrapped); got != KindChainTimeout {
		t.Errorf("KindOf = %s, want chain_timeout", got)
	}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Error("expected cause to be reachable through Unwrap")
	}
	if Message(wrapped) != "chain call timed out" {
		t.Errorf("unexpected message %q", Message(wrapped))
	}
}

func TestMessageHidesForeignErrors(t *testing.T) {
	err := errors.New("sql: connection refused at 10.0.0.3")
	if KindOf(err) != KindInternal {
		t.Error("expected internal kind for plain errors")
	}
	if Message(err) != "internal server error" {
		t.Errorf("unexpected message %q", Message(err))
	}
	if Is(nil, KindInternal) {
		t.Error("nil must not match any kind")
	}
}
