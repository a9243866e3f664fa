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

package api

import (
	"net/http"

	"delegated-pay-go/internal/models"

	"go.uber.org/zap"
)

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.HealthCheck(r.Context()); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "unhealthy")
		return
	}
	writeMessage(w, http.StatusOK, "healthy")
}

func (h *Handlers) GetWalletAddress(w http.ResponseWriter, r *http.Request) {
	resp, err := h.payments.GetWalletAddress(r.Context(), caller(r).ApiKey)
	respond(w, r, http.StatusOK, resp, err)
}

func (h *Handlers) ApproveSpending(w http.ResponseWriter, r *http.Request) {
	var req models.ApproveSpendingRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.payments.ApproveSpending(r.Context(), caller(r).ApiKey, req)
	respond(w, r, http.StatusOK, resp, err)
}

func (h *Handlers) RequestPayment(w http.ResponseWriter, r *http.Request) {
	var req models.RequestPaymentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.payments.RequestPayment(r.Context(), caller(r).ApiKey, req)
	respond(w, r, http.StatusOK, resp, err)
}

func (h *Handlers) PermitSpending(w http.ResponseWriter, r *http.Request) {
	var req models.PermitSpendingRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.payments.PermitSpending(r.Context(), caller(r).ApiKey, req)
	respond(w, r, http.StatusOK, resp, err)
}

func (h *Handlers) ReceivePayment(w http.ResponseWriter, r *http.Request) {
	var req models.ReceivePaymentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.payments.ReceivePayment(r.Context(), caller(r).ApiKey, req)
	respond(w, r, http.StatusOK, resp, err)
}
