package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/randgate/backend/internal/domain"
	"github.com/randgate/backend/internal/metrics"
	"github.com/randgate/backend/pkg/payment"
	"go.uber.org/zap"
)

// User-facing texts. Internal error detail never reaches the user.
const (
	MsgPleasePay     = "Please pay first. Use /pay to get a payment link."
	MsgTryAgainLater = "The payment service is unavailable right now. Please try again later."
)

// PaymentConfirmedText is sent to the payer once a payment is verified.
func PaymentConfirmedText(amount, currency string) string {
	if amount == "" {
		return "Payment received. /random is now unlocked."
	}
	return fmt.Sprintf("Payment of %s %s received. /random is now unlocked.", amount, currency)
}

// EntitlementStore is the durable paid/unpaid mapping.
type EntitlementStore interface {
	IsPaid(ctx context.Context, userID int64) (bool, error)
	Find(ctx context.Context, userID int64) (*domain.Entitlement, error)
	MarkPaid(ctx context.Context, userID int64, evt *domain.PaymentEvent) (bool, error)
}

// Notifier pushes a text message to a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// Validator checks an inbound payment notification.
type Validator interface {
	Validate(ctx context.Context, n *domain.Notification) (*domain.VerifiedPayment, error)
}

// PaymentSettings describes the single payment offered to users.
type PaymentSettings struct {
	MerchantUsername string
	ItemDescription  string
	Amount           string
	Currency         string
	APIKey           string
	CallbackURL      string
	SuccessURL       string
	CancelURL        string
	Timeout          time.Duration
}

// IPNOutcome is the classified result of one notification.
type IPNOutcome struct {
	DeliveryID string
	Granted    bool
	UserID     int64
	Rejection  *domain.Rejection
}

// Accepted reports whether the processor should receive a success answer.
func (o IPNOutcome) Accepted() bool {
	return o.Rejection == nil || !o.Rejection.Authentication()
}

// EntitlementService gates commands on payment and applies verified payments.
type EntitlementService struct {
	store         EntitlementStore
	validator     Validator
	gateway       payment.Gateway
	notifier      Notifier
	settings      PaymentSettings
	notifyTimeout time.Duration
	log           *zap.Logger

	// notifications tracks confirmations still being delivered.
	notifications sync.WaitGroup
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(
	store EntitlementStore,
	validator Validator,
	gateway payment.Gateway,
	notifier Notifier,
	settings PaymentSettings,
	notifyTimeout time.Duration,
	log *zap.Logger,
) *EntitlementService {
	if settings.Timeout <= 0 {
		settings.Timeout = 15 * time.Second
	}
	if notifyTimeout <= 0 {
		notifyTimeout = 10 * time.Second
	}
	return &EntitlementService{
		store:         store,
		validator:     validator,
		gateway:       gateway,
		notifier:      notifier,
		settings:      settings,
		notifyTimeout: notifyTimeout,
		log:           log.Named("entitlement"),
	}
}

// SetNotifier replaces the notification sink. The bot is built after the
// service, so main wires it late.
func (s *EntitlementService) SetNotifier(n Notifier) {
	s.notifier = n
}

// IsPaid reports the user's paid state. Store failures deny access.
func (s *EntitlementService) IsPaid(ctx context.Context, userID int64) bool {
	paid, err := s.store.IsPaid(ctx, userID)
	if err != nil {
		s.log.Error("entitlement read failed, denying", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return paid
}

// HandleGatedCommand decides whether the user may run a gated command.
func (s *EntitlementService) HandleGatedCommand(ctx context.Context, userID int64) domain.Decision {
	decision := domain.Denied
	if s.IsPaid(ctx, userID) {
		decision = domain.Allowed
	}
	metrics.GatedDecisions.WithLabelValues(decision.String()).Inc()
	return decision
}

// Status returns the entitlement record of a user.
func (s *EntitlementService) Status(ctx context.Context, userID int64) (*domain.Entitlement, error) {
	ent, err := s.store.Find(ctx, userID)
	if err != nil {
		return nil, domain.ErrUnavailable("entitlement store unavailable", err)
	}
	return ent, nil
}

// CreatePayment asks the processor for a payment URL referencing the user.
// It never touches the store.
func (s *EntitlementService) CreatePayment(ctx context.Context, userID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	url, err := s.gateway.CreatePayment(ctx, payment.PaymentRequest{
		MerchantUsername: s.settings.MerchantUsername,
		ItemDescription:  s.settings.ItemDescription,
		Amount:           s.settings.Amount,
		Currency:         s.settings.Currency,
		Custom:           strconv.FormatInt(userID, 10),
		CallbackURL:      s.settings.CallbackURL,
		SuccessURL:       s.settings.SuccessURL,
		CancelURL:        s.settings.CancelURL,
		APIKey:           s.settings.APIKey,
	})
	if err != nil {
		result := "rejected"
		if errors.Is(err, payment.ErrProcessorUnavailable) {
			result = "unavailable"
		}
		metrics.PaymentsCreated.WithLabelValues(result).Inc()
		s.log.Warn("payment creation failed", zap.Int64("user_id", userID), zap.String("result", result), zap.Error(err))
		return "", fmt.Errorf("create payment for user %d: %w", userID, err)
	}

	metrics.PaymentsCreated.WithLabelValues("ok").Inc()
	s.log.Info("payment created", zap.Int64("user_id", userID))
	return url, nil
}

// HandleIPN validates a notification and, when verified, grants the
// entitlement and tells the user. Only a store failure is returned as an
// error; every other outcome is described by the IPNOutcome.
func (s *EntitlementService) HandleIPN(ctx context.Context, n *domain.Notification) (IPNOutcome, error) {
	out := IPNOutcome{DeliveryID: uuid.NewString()}
	log := s.log.With(
		zap.String("delivery_id", out.DeliveryID),
		zap.String("transaction_id", n.TransactionID),
	)

	verified, err := s.validator.Validate(ctx, n)
	if err != nil {
		var rej *domain.Rejection
		if !errors.As(err, &rej) {
			rej = domain.Reject(domain.TokenInvalid, "%v", err)
		}
		out.Rejection = rej
		metrics.IPNReceived.WithLabelValues(string(rej.Reason)).Inc()

		fields := []zap.Field{zap.String("reason", string(rej.Reason)), zap.String("detail", rej.Detail)}
		if rej.Authentication() {
			log.Warn("ipn rejected", fields...)
		} else {
			log.Info("ipn acknowledged without grant", fields...)
		}
		return out, nil
	}

	out.UserID = verified.UserID
	log = log.With(zap.Int64("user_id", verified.UserID))

	granted, err := s.store.MarkPaid(ctx, verified.UserID, verified.Event())
	if err != nil {
		metrics.IPNReceived.WithLabelValues("store_error").Inc()
		log.Error("failed to record entitlement", zap.Error(err))
		return out, fmt.Errorf("record entitlement for user %d: %w", verified.UserID, err)
	}
	out.Granted = granted
	metrics.IPNReceived.WithLabelValues("verified").Inc()
	if granted {
		metrics.EntitlementsGranted.Inc()
		log.Info("entitlement granted")
	} else {
		log.Info("entitlement already held")
	}

	s.notifyAsync(ctx, log, verified.UserID, PaymentConfirmedText(verified.Amount, verified.Currency))
	return out, nil
}

// Wait blocks until every pending notification has been delivered or has
// timed out.
func (s *EntitlementService) Wait() {
	s.notifications.Wait()
}

// notifyAsync delivers text in the background. The send outlives the request.
func (s *EntitlementService) notifyAsync(ctx context.Context, log *zap.Logger, userID int64, text string) {
	notifier := s.notifier
	if notifier == nil {
		log.Warn("no notifier configured, user not informed")
		return
	}
	ctx = context.WithoutCancel(ctx)

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()

		if err := notifier.Notify(ctx, userID, text); err != nil {
			metrics.NotificationsFailed.Inc()
			log.Warn("failed to notify user", zap.Error(err))
		}
	}()
}
