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
	"strings"
	"time"

	"delegated-pay-go/internal/apperr"
	"delegated-pay-go/internal/identity"
	"delegated-pay-go/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	apiKeyHeader    = "x-api-key"
	requestIdHeader = "X-Request-Id"
)

// RequireApiKey attaches the x-api-key credential to the request context.
// The key itself is validated by the payment service.
func RequireApiKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(apiKeyHeader))
		if key == "" {
			writeError(w, r, apperr.Unauthorized("API key required"))
			return
		}
		ctx := models.WithCaller(r.Context(), &models.Caller{ApiKey: key})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireBearer resolves the Authorization bearer token to a business user.
func RequireBearer(resolver identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if authHeader == "" || tokenString == authHeader {
				writeError(w, r, apperr.Unauthorized("Unauthorized"))
				return
			}

			userId, ok := resolver.ResolveCaller(r.Context(), tokenString)
			if !ok {
				writeError(w, r, apperr.Unauthorized("Invalid or expired token"))
				return
			}
			ctx := models.WithCaller(r.Context(), &models.Caller{OwnerId: userId})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger tags each request with an id and logs its outcome.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get(requestIdHeader)
		if requestId == "" {
			requestId = uuid.New().String()
		}
		w.Header().Set(requestIdHeader, requestId)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		zap.L().Info("HTTP request",
			zap.String("request_id", requestId),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}

func caller(r *http.Request) *models.Caller {
	if c := models.GetCaller(r.Context()); c != nil {
		return c
	}
	return &models.Caller{}
}
