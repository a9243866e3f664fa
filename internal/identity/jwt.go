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

// Package identity resolves dashboard bearer tokens to business user ids.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"delegated-pay-go/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Resolver turns an opaque bearer credential into a user id.
type Resolver interface {
	ResolveCaller(ctx context.Context, bearerToken string) (userId string, ok bool)
}

// JWTResolver validates HS256 tokens whose subject is the business user id.
type JWTResolver struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTResolver(cfg models.AuthConfig) (*JWTResolver, error) {
	if cfg.JwtSecret == "" {
		return nil, errors.New("jwt secret cannot be empty")
	}
	return &JWTResolver{
		secret: []byte(cfg.JwtSecret),
		issuer: cfg.JwtIssuer,
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}, nil
}

func (r *JWTResolver) ResolveCaller(_ context.Context, bearerToken string) (string, bool) {
	tokenString := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(bearerToken), "Bearer "))
	if tokenString == "" {
		return "", false
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
		jwt.WithExpirationRequired(),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		zap.L().Debug("Rejected bearer token", zap.Error(err))
		return "", false
	}
	if claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

// IssueToken signs a token for userId, valid for the configured TTL.
func (r *JWTResolver) IssueToken(userId string) (string, error) {
	if userId == "" {
		return "", errors.New("user id cannot be empty")
	}
	now := r.now()
	claims := jwt.RegisteredClaims{
		Subject:   userId,
		Issuer:    r.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("unable to sign token: %w", err)
	}
	return signed, nil
}
