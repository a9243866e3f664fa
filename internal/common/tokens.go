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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"delegated-pay-go/internal/models"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

type TokensConfig struct {
	Tokens []models.TokenConfig `yaml:"tokens"`
}

// TokenRegistry is the set of token contracts the service accepts, keyed by
// lowercased address. An empty registry accepts any contract.
type TokenRegistry struct {
	tokens map[string]models.TokenConfig
	order  []models.TokenConfig
}

func NewTokenRegistry(tokens []models.TokenConfig) *TokenRegistry {
	r := &TokenRegistry{tokens: make(map[string]models.TokenConfig, len(tokens))}
	for _, t := range tokens {
		r.tokens[strings.ToLower(t.Address)] = t
		r.order = append(r.order, t)
	}
	return r
}

// LoadTokenRegistry reads tokensFile; an empty path yields an empty registry.
func LoadTokenRegistry(tokensFile string) (*TokenRegistry, error) {
	if tokensFile == "" {
		return NewTokenRegistry(nil), nil
	}

	var tokensPath string
	if filepath.IsAbs(tokensFile) {
		tokensPath = tokensFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		tokensPath = filepath.Join(wd, tokensFile)
	}

	data, err := os.ReadFile(tokensPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", tokensFile, err)
	}

	var config TokensConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", tokensFile, err)
	}

	seen := make(map[string]struct{}, len(config.Tokens))
	for i, token := range config.Tokens {
		if token.Symbol == "" {
			return nil, fmt.Errorf("token at index %d missing symbol", i)
		}
		if !ethcommon.IsHexAddress(token.Address) {
			return nil, fmt.Errorf("token %s has invalid address %q", token.Symbol, token.Address)
		}
		key := strings.ToLower(token.Address)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("token %s listed twice", token.Address)
		}
		seen[key] = struct{}{}
	}

	return NewTokenRegistry(config.Tokens), nil
}

// Lookup returns the configuration for address, if listed.
func (r *TokenRegistry) Lookup(address string) (models.TokenConfig, bool) {
	if r == nil {
		return models.TokenConfig{}, false
	}
	t, ok := r.tokens[strings.ToLower(address)]
	return t, ok
}

// Allowed reports whether payments in address are accepted.
func (r *TokenRegistry) Allowed(address string) bool {
	if r == nil || len(r.tokens) == 0 {
		return true
	}
	_, ok := r.tokens[strings.ToLower(address)]
	return ok
}

// Tokens returns the listed tokens in file order.
func (r *TokenRegistry) Tokens() []models.TokenConfig {
	if r == nil {
		return nil
	}
	return r.order
}
