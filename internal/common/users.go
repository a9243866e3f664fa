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

package common

import (
	"context"
	"fmt"
	"strings"

	"delegated-pay-go/internal/models"
	"delegated-pay-go/internal/store"

	"go.uber.org/zap"
)

// InitializeBusinesses retrieves business users based on an optional filter.
// If filter is provided, returns the user whose id or email matches it.
// If filter is empty, returns all users.
func InitializeBusinesses(ctx context.Context, users store.UserStore, filter string, logger *zap.Logger) ([]models.BusinessUser, error) {
	allUsers, err := users.ListBusinessUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get business users: %w", err)
	}

	if filter == "" {
		logger.Info("Retrieved business users", zap.Int("count", len(allUsers)))
		return allUsers, nil
	}

	logger.Info("Looking up business user", zap.String("filter", filter))
	for _, u := range allUsers {
		if u.Id == filter || strings.EqualFold(u.Email, filter) {
			return []models.BusinessUser{u}, nil
		}
	}
	return nil, fmt.Errorf("business user not found: %s", filter)
}
