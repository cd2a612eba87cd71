package payment

import (
	"context"
	"errors"
)

var (
	// ErrProcessorUnavailable means the processor could not be reached or
	// timed out. Callers may retry.
	ErrProcessorUnavailable = errors.New("payment processor unavailable")
	// ErrProcessorRejected means the processor answered but refused the
	// request or returned a body we cannot use.
	ErrProcessorRejected = errors.New("payment processor rejected request")
)

// Gateway defines the operations used against the payment processor.
type Gateway interface {
	// CreatePayment submits a payment request and returns the URL the payer
	// should be sent to.
	CreatePayment(ctx context.Context, req PaymentRequest) (string, error)
	// LookupToken asks the processor for the authoritative record of an IPN token.
	LookupToken(ctx context.Context, token string) (*TokenInfo, error)
}

// PaymentRequest is the merchant form posted to create a payment.
type PaymentRequest struct {
	MerchantUsername string
	ItemDescription  string
	Amount           string
	Currency         string
	// Custom is echoed back in the IPN and is the only correlation to the payer.
	Custom      string
	CallbackURL string
	SuccessURL  string
	CancelURL   string
	APIKey      string
}

// TokenInfo is the processor's answer to a token lookup.
type TokenInfo struct {
	Valid            bool   `json:"valid"`
	MerchantUsername string `json:"merchant_username"`
	Status           string `json:"status,omitempty"`
	TransactionID    string `json:"transaction_id,omitempty"`
	Amount           string `json:"amount1,omitempty"`
	Currency         string `json:"currency1,omitempty"`
	Custom           string `json:"custom,omitempty"`
}
