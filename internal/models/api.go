package models

import (
	"github.com/shopspring/decimal"
)

// MessageResponse is the body of every error and of plain acknowledgements
type MessageResponse struct {
	Message string `json:"message"`
}

type WalletAddressResponse struct {
	Address string `json:"address"`
}

type ApproveSpendingRequest struct {
	UserId string `json:"userId"`
	Wallet string `json:"wallet"`
	Amount string `json:"amount"`
}

type RequestPaymentRequest struct {
	UserId          string `json:"userId"`
	Amount          string `json:"amount"`
	ContractAddress string `json:"contractAddress"`
}

// TransferRecord is one completed leg of a payment
type TransferRecord struct {
	Wallet string          `json:"wallet"`
	Amount decimal.Decimal `json:"amount"`
	TxHash string          `json:"txHash"`
	Fee    decimal.Decimal `json:"fee"`
}

type PaymentResponse struct {
	Message   string           `json:"message"`
	TxHashes  []string         `json:"txHashes"`
	Transfers []TransferRecord `json:"transfers"`
	Amount    decimal.Decimal  `json:"amount"`
	Fees      decimal.Decimal  `json:"fees"`
}

// PermitPayload carries EIP-2612 fields as decimal strings and 0x-prefixed hex
type PermitPayload struct {
	Owner    string `json:"owner"`
	Spender  string `json:"spender"`
	Value    string `json:"value"`
	Nonce    string `json:"nonce"`
	Deadline string `json:"deadline"`
	V        uint8  `json:"v"`
	R        string `json:"r"`
	S        string `json:"s"`
}

type PermitSpendingRequest struct {
	UserId          string        `json:"userId"`
	ContractAddress string        `json:"contractAddress"`
	Permit          PermitPayload `json:"permit"`
}

type PermitSpendingResponse struct {
	Message string          `json:"message"`
	Fee     decimal.Decimal `json:"fee"`
}

// ReceiveAuthorizationPayload carries EIP-3009 fields
type ReceiveAuthorizationPayload struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
	V           uint8  `json:"v"`
	R           string `json:"r"`
	S           string `json:"s"`
}

type ReceivePaymentRequest struct {
	ContractAddress string                      `json:"contractAddress"`
	Authorization   ReceiveAuthorizationPayload `json:"authorization"`
}

type ReceivePaymentResponse struct {
	Message string          `json:"message"`
	Amount  decimal.Decimal `json:"amount"`
	Fee     decimal.Decimal `json:"fee"`
}

// Dashboard payloads

type CreateApiKeyRequest struct {
	Name string `json:"name"`
}

type CreateApiKeyResponse struct {
	ApiKey string `json:"apiKey"`
}

// ApiKeyView is an API key as shown to its owner, with the key itself masked
type ApiKeyView struct {
	Name   string  `json:"name"`
	Key    string  `json:"key"`
	Wallet *string `json:"wallet"`
}

type SetWalletRequest struct {
	WalletName string `json:"walletName"`
}

type AddWalletRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Key     string `json:"key"`
}

// WalletView is a business wallet without its signing key
type WalletView struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// WalletBalanceResponse carries a display balance, "???" when it could not be read
type WalletBalanceResponse struct {
	Wallet          string `json:"wallet"`
	Address         string `json:"address"`
	ContractAddress string `json:"contractAddress"`
	Balance         string `json:"balance"`
}

// UsageSeries maps YYYY-MM-DD to the day's total
type UsageSeries map[string]decimal.Decimal
