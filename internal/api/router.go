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
	"time"

	"delegated-pay-go/internal/identity"
	"delegated-pay-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the HTTP router for payments and the business dashboard.
func Routes(h *Handlers, resolver identity.Resolver, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", h.Health)

	// Payment endpoints, authenticated by API key
	r.Group(func(r chi.Router) {
		r.Use(RequireApiKey)

		r.Get("/get-wallet-address", h.GetWalletAddress)
		r.Post("/approve-spending", h.ApproveSpending)
		r.Post("/request-payment", h.RequestPayment)
		r.Post("/permit-spending", h.PermitSpending)
		r.Post("/receive-payment", h.ReceivePayment)
	})

	// Dashboard endpoints, authenticated by bearer token
	r.Group(func(r chi.Router) {
		r.Use(RequireBearer(resolver))

		r.Route("/api-keys", func(r chi.Router) {
			r.Get("/", h.ListApiKeys)
			r.Post("/", h.CreateApiKey)
			r.Route("/{name}", func(r chi.Router) {
				r.Delete("/", h.DeleteApiKey)
				r.Post("/rotate", h.RotateApiKey)
				r.Put("/wallet", h.SetBoundWallet)
				r.Get("/usage", h.usageHandler(models.UsageUses))
				r.Get("/transfers", h.usageHandler(models.UsageTransfers))
				r.Get("/fees", h.usageHandler(models.UsageFees))
			})
		})

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/", h.ListWallets)
			r.Post("/", h.AddWallet)
			r.Delete("/{name}", h.RemoveWallet)
			r.Get("/{name}/history", h.BalanceHistory)
			r.Get("/{name}/balance", h.WalletBalance)
		})
	})

	return r
}
