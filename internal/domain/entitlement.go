package domain

import "time"

// Entitlement is a user's paid state. An absent record means unpaid.
type Entitlement struct {
	UserID int64      `json:"userId"`
	Paid   bool       `json:"paid"`
	PaidAt *time.Time `json:"paidAt,omitempty"`
}

// Decision is the outcome of a gated command check.
type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// PaymentEvent is a ledger row recorded together with an entitlement grant.
type PaymentEvent struct {
	TransactionID string    `json:"transactionId"`
	UserID        int64     `json:"userId"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	ReceivedAt    time.Time `json:"receivedAt"`
}

// Stats is the admin overview of the entitlement tables.
type Stats struct {
	PaidUsers      int64 `json:"paidUsers"`
	RecordedEvents int64 `json:"recordedEvents"`
}
