package domain

import (
	"fmt"
	"net/http"
)

// StatusCompleted is the only IPN status that grants an entitlement.
const StatusCompleted = "completed"

// Notification is an instant payment notification as posted by the processor.
type Notification struct {
	MerchantUsername string
	Custom           string
	Status           string
	TransactionID    string
	Amount           string
	Currency         string
	Token            string
}

// VerifiedPayment is a notification that passed every validation stage.
type VerifiedPayment struct {
	UserID        int64
	Amount        string
	Currency      string
	TransactionID string
	Status        string
}

// Event converts the payment into its ledger row.
func (p *VerifiedPayment) Event() *PaymentEvent {
	return &PaymentEvent{
		TransactionID: p.TransactionID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        p.Status,
	}
}

// RejectReason classifies why a notification did not grant an entitlement.
type RejectReason string

const (
	InvalidMerchant  RejectReason = "invalid_merchant"
	TokenInvalid     RejectReason = "token_invalid"
	BenignStatus     RejectReason = "benign_status"
	InvalidReference RejectReason = "invalid_reference"
	AmountMismatch   RejectReason = "amount_mismatch"
)

// Rejection is returned by the IPN validator when a stage fails.
type Rejection struct {
	Reason RejectReason
	Detail string
}

func Reject(reason RejectReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("ipn rejected (%s): %s", r.Reason, r.Detail)
}

// Authentication reports whether the rejection means the notification could
// not be trusted, as opposed to a genuine notification that grants nothing.
func (r *Rejection) Authentication() bool {
	return r.Reason == InvalidMerchant || r.Reason == TokenInvalid
}

// HTTPStatus is the status answered to the processor for this rejection.
func (r *Rejection) HTTPStatus() int {
	if r.Authentication() {
		return http.StatusBadRequest
	}
	return http.StatusOK
}
