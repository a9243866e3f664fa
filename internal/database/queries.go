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

package database

const (
	schema = `
	-- Businesses that own API keys and custodial wallets
	CREATE TABLE IF NOT EXISTS business_users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Ordered wallet list per business; position preserves insertion order
	CREATE TABLE IF NOT EXISTS business_wallets (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES business_users(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		signing_key TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (owner_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_business_wallets_owner ON business_wallets(owner_id, position);

	CREATE TABLE IF NOT EXISTS api_keys (
		key TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		wallet_name TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (owner_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_api_keys_owner ON api_keys(owner_id);

	-- Daily usage series per key; amount is a decimal string
	CREATE TABLE IF NOT EXISTS usage_buckets (
		api_key TEXT NOT NULL,
		kind TEXT NOT NULL,
		day TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (api_key, kind, day)
	);

	-- An end user's slot under an API key exists once approval was attempted
	CREATE TABLE IF NOT EXISTS authorization_slots (
		end_user_id TEXT NOT NULL,
		api_key TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (end_user_id, api_key)
	);

	-- Authorized wallets in insertion order (id)
	CREATE TABLE IF NOT EXISTS authorized_wallets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		end_user_id TEXT NOT NULL,
		api_key TEXT NOT NULL,
		address TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (end_user_id, api_key, address)
	);
	`

	// Business user queries
	queryInsertBusinessUser = `
		INSERT OR IGNORE INTO business_users (id, email) VALUES (?, ?)`

	queryGetBusinessUser = `
		SELECT id, email, created_at
		FROM business_users
		WHERE id = ?`

	queryListBusinessUsers = `
		SELECT id, email, created_at
		FROM business_users
		ORDER BY created_at, id`

	queryBusinessUserExists = `
		SELECT COUNT(1) FROM business_users WHERE id = ?`

	// Wallet queries
	queryGetWallets = `
		SELECT id, owner_id, name, address, signing_key, created_at
		FROM business_wallets
		WHERE owner_id = ?
		ORDER BY position`

	queryMaxWalletPosition = `
		SELECT COALESCE(MAX(position), -1) FROM business_wallets WHERE owner_id = ?`

	queryInsertWallet = `
		INSERT INTO business_wallets (id, owner_id, position, name, address, signing_key)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryDeleteWallets = `
		DELETE FROM business_wallets WHERE owner_id = ?`

	// API key queries
	queryGetApiKey = `
		SELECT key, owner_id, name, wallet_name, created_at
		FROM api_keys
		WHERE key = ?`

	queryListApiKeys = `
		SELECT key, owner_id, name, wallet_name, created_at
		FROM api_keys
		WHERE owner_id = ?
		ORDER BY created_at, rowid`

	queryApiKeyNameExists = `
		SELECT COUNT(1) FROM api_keys WHERE owner_id = ? AND name = ?`

	queryInsertApiKey = `
		INSERT INTO api_keys (key, owner_id, name, wallet_name) VALUES (?, ?, ?, ?)`

	queryDeleteApiKey = `
		DELETE FROM api_keys WHERE key = ?`

	querySetBoundWallet = `
		UPDATE api_keys SET wallet_name = ? WHERE key = ?`

	queryRotateApiKey = `
		UPDATE api_keys SET key = ? WHERE key = ?`

	// Usage queries
	queryGetUsageBucket = `
		SELECT amount FROM usage_buckets WHERE api_key = ? AND kind = ? AND day = ?`

	queryUpsertUsageBucket = `
		INSERT INTO usage_buckets (api_key, kind, day, amount) VALUES (?, ?, ?, ?)
		ON CONFLICT (api_key, kind, day) DO UPDATE SET amount = excluded.amount`

	queryGetUsageSeries = `
		SELECT day, amount FROM usage_buckets
		WHERE api_key = ? AND kind = ?
		ORDER BY day`

	queryDeleteUsage = `
		DELETE FROM usage_buckets WHERE api_key = ?`

	queryRotateUsage = `
		UPDATE usage_buckets SET api_key = ? WHERE api_key = ?`

	// Authorization queries
	queryInsertSlot = `
		INSERT OR IGNORE INTO authorization_slots (end_user_id, api_key) VALUES (?, ?)`

	querySlotExists = `
		SELECT COUNT(1) FROM authorization_slots WHERE end_user_id = ? AND api_key = ?`

	queryInsertAuthorizedWallet = `
		INSERT OR IGNORE INTO authorized_wallets (end_user_id, api_key, address) VALUES (?, ?, ?)`

	queryListAuthorizedWallets = `
		SELECT address FROM authorized_wallets
		WHERE end_user_id = ? AND api_key = ?
		ORDER BY id`

	queryRotateSlots = `
		UPDATE authorization_slots SET api_key = ? WHERE api_key = ?`

	queryRotateAuthorizedWallets = `
		UPDATE authorized_wallets SET api_key = ? WHERE api_key = ?`
)
