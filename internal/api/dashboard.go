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

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) ListApiKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.accounts.ListApiKeys(r.Context(), caller(r).OwnerId)
	respond(w, r, http.StatusOK, keys, err)
}

func (h *Handlers) CreateApiKey(w http.ResponseWriter, r *http.Request) {
	var req models.CreateApiKeyRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	key, err := h.accounts.CreateApiKey(r.Context(), caller(r).OwnerId, req.Name)
	respond(w, r, http.StatusCreated, models.CreateApiKeyResponse{ApiKey: key}, err)
}

func (h *Handlers) DeleteApiKey(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteApiKey(r.Context(), caller(r).OwnerId, chi.URLParam(r, "name")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "API key deleted successfully")
}

func (h *Handlers) RotateApiKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.accounts.RotateApiKey(r.Context(), caller(r).OwnerId, chi.URLParam(r, "name"))
	respond(w, r, http.StatusOK, models.CreateApiKeyResponse{ApiKey: key}, err)
}

func (h *Handlers) SetBoundWallet(w http.ResponseWriter, r *http.Request) {
	var req models.SetWalletRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.accounts.SetBoundWallet(r.Context(), caller(r).OwnerId, chi.URLParam(r, "name"), req.WalletName); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Set wallet successfully")
}

func (h *Handlers) usageHandler(kind models.UsageKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		series, err := h.accounts.Usage(r.Context(), caller(r).OwnerId, chi.URLParam(r, "name"), kind)
		respond(w, r, http.StatusOK, series, err)
	}
}

func (h *Handlers) ListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.accounts.ListWallets(r.Context(), caller(r).OwnerId)
	respond(w, r, http.StatusOK, wallets, err)
}

func (h *Handlers) AddWallet(w http.ResponseWriter, r *http.Request) {
	var req models.AddWalletRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.accounts.AddWallet(r.Context(), caller(r).OwnerId, req); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Successfully added wallet!")
}

func (h *Handlers) RemoveWallet(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.RemoveWallet(r.Context(), caller(r).OwnerId, chi.URLParam(r, "name")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Wallet removed successfully")
}

func (h *Handlers) BalanceHistory(w http.ResponseWriter, r *http.Request) {
	points, err := h.accounts.BalanceHistory(r.Context(), caller(r).OwnerId,
		chi.URLParam(r, "name"), r.URL.Query().Get("contractAddress"))
	respond(w, r, http.StatusOK, points, err)
}

func (h *Handlers) WalletBalance(w http.ResponseWriter, r *http.Request) {
	resp, err := h.accounts.WalletBalance(r.Context(), caller(r).OwnerId,
		chi.URLParam(r, "name"), r.URL.Query().Get("contractAddress"))
	respond(w, r, http.StatusOK, resp, err)
}
