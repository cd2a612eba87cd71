package service

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/randgate/backend/internal/domain"
	"github.com/randgate/backend/pkg/payment"
)

// IPNValidatorConfig holds what a notification is checked against.
type IPNValidatorConfig struct {
	MerchantUsername string
	Amount           string
	Currency         string
	EnforceAmount    bool
	LookupTimeout    time.Duration
}

// IPNValidator authenticates and parses payment notifications.
type IPNValidator struct {
	cfg     IPNValidatorConfig
	gateway payment.Gateway
}

// NewIPNValidator creates a new IPNValidator.
func NewIPNValidator(cfg IPNValidatorConfig, gateway payment.Gateway) *IPNValidator {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 15 * time.Second
	}
	return &IPNValidator{cfg: cfg, gateway: gateway}
}

// Validate runs the notification through every stage in order and stops at
// the first failure. A failure is always a *domain.Rejection.
func (v *IPNValidator) Validate(ctx context.Context, n *domain.Notification) (*domain.VerifiedPayment, error) {
	if n.MerchantUsername != v.cfg.MerchantUsername {
		return nil, domain.Reject(domain.InvalidMerchant, "unexpected merchant %q", n.MerchantUsername)
	}

	if err := v.checkToken(ctx, n); err != nil {
		return nil, err
	}

	if !strings.EqualFold(strings.TrimSpace(n.Status), domain.StatusCompleted) {
		return nil, domain.Reject(domain.BenignStatus, "status %q does not grant access", n.Status)
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(n.Custom), 10, 64)
	if err != nil || userID == 0 {
		return nil, domain.Reject(domain.InvalidReference, "custom %q is not a user id", n.Custom)
	}

	if v.cfg.EnforceAmount {
		if !sameAmount(n.Amount, v.cfg.Amount) || !strings.EqualFold(n.Currency, v.cfg.Currency) {
			return nil, domain.Reject(domain.AmountMismatch, "paid %s %s, expected %s %s",
				n.Amount, n.Currency, v.cfg.Amount, v.cfg.Currency)
		}
	}

	return &domain.VerifiedPayment{
		UserID:        userID,
		Amount:        n.Amount,
		Currency:      n.Currency,
		TransactionID: n.TransactionID,
		Status:        strings.ToLower(n.Status),
	}, nil
}

func (v *IPNValidator) checkToken(ctx context.Context, n *domain.Notification) error {
	if strings.TrimSpace(n.Token) == "" {
		return domain.Reject(domain.TokenInvalid, "missing token")
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.LookupTimeout)
	defer cancel()

	info, err := v.gateway.LookupToken(ctx, n.Token)
	if err != nil {
		if errors.Is(err, payment.ErrProcessorUnavailable) {
			return domain.Reject(domain.TokenInvalid, "token lookup unavailable: %v", err)
		}
		return domain.Reject(domain.TokenInvalid, "token lookup failed: %v", err)
	}
	if !info.Valid {
		return domain.Reject(domain.TokenInvalid, "processor reports token invalid")
	}
	if info.MerchantUsername != "" && info.MerchantUsername != v.cfg.MerchantUsername {
		return domain.Reject(domain.TokenInvalid, "token belongs to merchant %q", info.MerchantUsername)
	}
	return matchTokenRecord(info, n)
}

// matchTokenRecord binds the posted fields to the processor's record of the
// token. Fields the processor leaves empty are not compared.
func matchTokenRecord(info *payment.TokenInfo, n *domain.Notification) error {
	if info.Status != "" && !strings.EqualFold(strings.TrimSpace(info.Status), strings.TrimSpace(n.Status)) {
		return domain.Reject(domain.TokenInvalid, "token status %q, notification says %q", info.Status, n.Status)
	}
	if info.Custom != "" && strings.TrimSpace(info.Custom) != strings.TrimSpace(n.Custom) {
		return domain.Reject(domain.TokenInvalid, "token issued for custom %q, notification says %q", info.Custom, n.Custom)
	}
	if info.TransactionID != "" && info.TransactionID != n.TransactionID {
		return domain.Reject(domain.TokenInvalid, "token issued for transaction %q, notification says %q", info.TransactionID, n.TransactionID)
	}
	if info.Amount != "" && !sameAmount(info.Amount, n.Amount) {
		return domain.Reject(domain.TokenInvalid, "token amount %s, notification says %s", info.Amount, n.Amount)
	}
	if info.Currency != "" && !strings.EqualFold(info.Currency, n.Currency) {
		return domain.Reject(domain.TokenInvalid, "token currency %s, notification says %s", info.Currency, n.Currency)
	}
	return nil
}

func sameAmount(got, want string) bool {
	g, ok := new(big.Rat).SetString(strings.TrimSpace(got))
	if !ok {
		return false
	}
	w, ok := new(big.Rat).SetString(strings.TrimSpace(want))
	if !ok {
		return false
	}
	return g.Cmp(w) == 0
}
