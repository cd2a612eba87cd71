package bot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/randgate/backend/internal/domain"
	"github.com/randgate/backend/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const callbackPay = "pay"

// SecretTokenHeader carries the secret registered with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const (
	msgWelcome = "Welcome! This bot generates random numbers from 1 to 100.\n" +
		"Access costs a one-time payment. Tap the button below or send /pay."
	msgHelp = "/pay - get a payment link\n" +
		"/random - get a random number (after payment)\n" +
		"/status - show your access status"
	msgUnknown = "Unknown command. Send /help to see available commands."
)

// Sender is the part of the Telegram API the bot talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Entitlements is what the bot needs from the entitlement service.
type Entitlements interface {
	HandleGatedCommand(ctx context.Context, userID int64) domain.Decision
	CreatePayment(ctx context.Context, userID int64) (string, error)
	Status(ctx context.Context, userID int64) (*domain.Entitlement, error)
}

// Bot routes Telegram updates to the entitlement service and doubles as the
// service's notification sink.
type Bot struct {
	api         Sender
	svc         Entitlements
	sem         *semaphore.Weighted
	sendTimeout time.Duration
	random      func() int
	log         *zap.Logger
}

// New creates a Bot. workers bounds concurrently handled updates.
func New(api Sender, svc Entitlements, workers int64, sendTimeout time.Duration, log *zap.Logger) *Bot {
	if workers < 1 {
		workers = 1
	}
	return &Bot{
		api:         api,
		svc:         svc,
		sem:         semaphore.NewWeighted(workers),
		sendTimeout: sendTimeout,
		random:      func() int { return rand.Intn(100) + 1 },
		log:         log.Named("bot"),
	}
}

// Notify sends text to the user's private chat.
func (b *Bot) Notify(ctx context.Context, userID int64, text string) error {
	return b.send(ctx, tgbotapi.NewMessage(userID, text))
}

// Poll dispatches updates until ctx is cancelled or the channel closes.
func (b *Bot) Poll(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := b.sem.Acquire(ctx, 1); err != nil {
				return
			}
			go func() {
				defer b.sem.Release(1)
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// Wait blocks until every in-flight update has been handled.
func (b *Bot) Wait(ctx context.Context, workers int64) error {
	if err := b.sem.Acquire(ctx, workers); err != nil {
		return err
	}
	b.sem.Release(workers)
	return nil
}

// WebhookHandler handles POST /telegram/webhook. Updates without the
// registered secret token are rejected before they are decoded.
func (b *Bot) WebhookHandler(secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(SecretTokenHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			b.log.Warn("rejected webhook update", zap.Bool("secret_present", got != ""), zap.String("remote", r.RemoteAddr))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "invalid update", http.StatusBadRequest)
			return
		}
		if err := b.sem.Acquire(r.Context(), 1); err != nil {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		defer b.sem.Release(1)

		b.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleUpdate processes a single Telegram update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	userID := msg.From.ID
	log := b.log.With(zap.Int64("user_id", userID), zap.String("command", msg.Command()))

	var reply tgbotapi.MessageConfig
	switch msg.Command() {
	case "start":
		reply = tgbotapi.NewMessage(msg.Chat.ID, msgWelcome)
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Pay", callbackPay)),
		)
	case "help":
		reply = tgbotapi.NewMessage(msg.Chat.ID, msgHelp)
	case "pay":
		reply = tgbotapi.NewMessage(msg.Chat.ID, b.paymentText(ctx, userID))
	case "random":
		reply = tgbotapi.NewMessage(msg.Chat.ID, b.randomText(ctx, userID))
	case "status":
		reply = tgbotapi.NewMessage(msg.Chat.ID, b.statusText(ctx, userID))
	default:
		reply = tgbotapi.NewMessage(msg.Chat.ID, msgUnknown)
	}

	if err := b.send(ctx, reply); err != nil {
		log.Warn("failed to reply", zap.Error(err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		return
	}
	log := b.log.With(zap.Int64("user_id", cb.From.ID), zap.String("callback", cb.Data))

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Debug("failed to answer callback", zap.Error(err))
	}
	if cb.Data != callbackPay {
		return
	}

	chatID := cb.From.ID
	if cb.Message != nil && cb.Message.Chat != nil {
		chatID = cb.Message.Chat.ID
	}
	if err := b.send(ctx, tgbotapi.NewMessage(chatID, b.paymentText(ctx, cb.From.ID))); err != nil {
		log.Warn("failed to reply", zap.Error(err))
	}
}

func (b *Bot) paymentText(ctx context.Context, userID int64) string {
	url, err := b.svc.CreatePayment(ctx, userID)
	if err != nil {
		return service.MsgTryAgainLater
	}
	return "Pay here to unlock /random:\n" + url
}

func (b *Bot) randomText(ctx context.Context, userID int64) string {
	if b.svc.HandleGatedCommand(ctx, userID) != domain.Allowed {
		return service.MsgPleasePay
	}
	return fmt.Sprintf("Your random number: %d", b.random())
}

func (b *Bot) statusText(ctx context.Context, userID int64) string {
	ent, err := b.svc.Status(ctx, userID)
	if err != nil {
		return service.MsgTryAgainLater
	}
	if !ent.Paid {
		return "You have not paid yet. Use /pay to get access."
	}
	if ent.PaidAt != nil {
		return "Access active since " + ent.PaidAt.UTC().Format("2006-01-02 15:04 MST") + "."
	}
	return "Access active."
}

// send delivers c, giving up when ctx or the send timeout expires.
func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) error {
	if b.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.sendTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		_, err := b.api.Send(c)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("telegram send: %w", ctx.Err())
	}
}
