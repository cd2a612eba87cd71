package handler

import (
	"context"
	"net/http"

	"github.com/randgate/backend/internal/domain"
	"github.com/randgate/backend/internal/service"
)

const maxIPNBody = 64 << 10

type ipnService interface {
	HandleIPN(ctx context.Context, n *domain.Notification) (service.IPNOutcome, error)
}

// IPNHandler receives payment notifications from the processor.
type IPNHandler struct {
	svc ipnService
}

// NewIPNHandler creates a new IPNHandler.
func NewIPNHandler(svc ipnService) *IPNHandler {
	return &IPNHandler{svc: svc}
}

// Receive handles POST /faucetpay_ipn.
func (h *IPNHandler) Receive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIPNBody)
	if err := r.ParseForm(); err != nil {
		Error(w, domain.ErrBadRequest("invalid form body"))
		return
	}

	n := &domain.Notification{
		MerchantUsername: r.PostForm.Get("merchant_username"),
		Custom:           r.PostForm.Get("custom"),
		Status:           r.PostForm.Get("status"),
		TransactionID:    r.PostForm.Get("transaction_id"),
		Amount:           r.PostForm.Get("amount1"),
		Currency:         r.PostForm.Get("currency1"),
		Token:            r.PostForm.Get("token"),
	}

	out, err := h.svc.HandleIPN(r.Context(), n)
	if err != nil {
		Error(w, domain.ErrUnavailable("entitlement store unavailable", err))
		return
	}
	if !out.Accepted() {
		JSON(w, out.Rejection.HTTPStatus(), map[string]string{"error": string(out.Rejection.Reason)})
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
