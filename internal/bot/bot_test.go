package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/randgate/backend/internal/domain"
	"github.com/randgate/backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	err      error
	block    chan struct{}
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (s *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *fakeSender) messages() []tgbotapi.MessageConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), s.sent...)
}

type fakeEntitlements struct {
	paid      map[int64]time.Time
	url       string
	createErr error
	statusErr error
	payers    []int64
}

func (f *fakeEntitlements) HandleGatedCommand(_ context.Context, userID int64) domain.Decision {
	if _, ok := f.paid[userID]; ok {
		return domain.Allowed
	}
	return domain.Denied
}

func (f *fakeEntitlements) CreatePayment(_ context.Context, userID int64) (string, error) {
	f.payers = append(f.payers, userID)
	return f.url, f.createErr
}

func (f *fakeEntitlements) Status(_ context.Context, userID int64) (*domain.Entitlement, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	at, ok := f.paid[userID]
	if !ok {
		return &domain.Entitlement{UserID: userID}, nil
	}
	return &domain.Entitlement{UserID: userID, Paid: true, PaidAt: &at}, nil
}

func newTestBot(t *testing.T) (*Bot, *fakeSender, *fakeEntitlements) {
	t.Helper()
	sender := &fakeSender{}
	ents := &fakeEntitlements{paid: map[int64]time.Time{}, url: "https://faucetpay.io/pay/xyz"}
	b := New(sender, ents, 4, time.Second, zaptest.NewLogger(t))
	b.random = func() int { return 7 }
	return b, sender, ents
}

func command(userID int64, text string) tgbotapi.Update {
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: userID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func TestBot_RandomIsGated(t *testing.T) {
	b, sender, ents := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, command(42, "/random"))
	ents.paid[42] = time.Now()
	b.HandleUpdate(ctx, command(42, "/random"))

	msgs := sender.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, service.MsgPleasePay, msgs[0].Text)
	assert.Equal(t, "Your random number: 7", msgs[1].Text)
	assert.Equal(t, int64(42), msgs[1].ChatID)
}

func TestBot_RandomRange(t *testing.T) {
	b := New(&fakeSender{}, &fakeEntitlements{}, 1, 0, zaptest.NewLogger(t))
	for i := 0; i < 1000; i++ {
		n := b.random()
		require.True(t, n >= 1 && n <= 100, "got %d", n)
	}
}

func TestBot_Pay(t *testing.T) {
	b, sender, ents := newTestBot(t)

	b.HandleUpdate(context.Background(), command(42, "/pay"))
	ents.createErr = errors.New("processor down")
	b.HandleUpdate(context.Background(), command(42, "/pay"))

	msgs := sender.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Text, "https://faucetpay.io/pay/xyz")
	assert.Equal(t, service.MsgTryAgainLater, msgs[1].Text)
	assert.Equal(t, []int64{42, 42}, ents.payers)
}

func TestBot_StartOffersPayButton(t *testing.T) {
	b, sender, _ := newTestBot(t)

	b.HandleUpdate(context.Background(), command(42, "/start"))

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	markup, ok := msgs[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 1)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, callbackPay, *markup.InlineKeyboard[0][0].CallbackData)
}

func TestBot_PayCallback(t *testing.T) {
	b, sender, ents := newTestBot(t)

	b.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 42},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}},
		Data:    callbackPay,
	}})

	assert.Len(t, sender.requests, 1, "callback must be answered")
	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, ents.url)
}

func TestBot_Status(t *testing.T) {
	b, sender, ents := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, command(42, "/status"))
	ents.paid[42] = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	b.HandleUpdate(ctx, command(42, "/status"))
	ents.statusErr = errors.New("locked")
	b.HandleUpdate(ctx, command(42, "/status"))

	msgs := sender.messages()
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0].Text, "not paid")
	assert.Equal(t, "Access active since 2026-03-01 10:30 UTC.", msgs[1].Text)
	assert.Equal(t, service.MsgTryAgainLater, msgs[2].Text)
}

func TestBot_IgnoresPlainTextAndAnswersUnknown(t *testing.T) {
	b, sender, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "hello", From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1},
	}})
	b.HandleUpdate(ctx, command(1, "/dance"))

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, msgUnknown, msgs[0].Text)
}

func TestBot_NotifyTimesOut(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	defer close(sender.block)
	b := New(sender, &fakeEntitlements{}, 1, 20*time.Millisecond, zaptest.NewLogger(t))

	err := b.Notify(context.Background(), 42, "hi")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBot_NotifyPropagatesSendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("bot was blocked by the user")}
	b := New(sender, &fakeEntitlements{}, 1, time.Second, zaptest.NewLogger(t))

	assert.Error(t, b.Notify(context.Background(), 42, "hi"))
}

const testWebhookSecret = "s3cret-token_for-tests"

func webhookRequest(t *testing.T, update tgbotapi.Update, secret string) *http.Request {
	t.Helper()
	body, err := json.Marshal(update)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewReader(body))
	if secret != "" {
		req.Header.Set(SecretTokenHeader, secret)
	}
	return req
}

func TestBot_Webhook(t *testing.T) {
	b, sender, _ := newTestBot(t)
	h := b.WebhookHandler(testWebhookSecret)

	rec := httptest.NewRecorder()
	h(rec, webhookRequest(t, command(42, "/help"), testWebhookSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sender.messages(), 1)
	assert.Equal(t, msgHelp, sender.messages()[0].Text)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewReader([]byte("{")))
	req.Header.Set(SecretTokenHeader, testWebhookSecret)
	h(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBot_WebhookRejectsUnsignedUpdates(t *testing.T) {
	b, sender, ents := newTestBot(t)
	ents.paid[42] = time.Now()

	// A paid user's id with someone else's chat must not leak a number.
	forged := command(42, "/random")
	forged.Message.Chat = &tgbotapi.Chat{ID: 999}

	tests := []struct {
		name    string
		handler http.HandlerFunc
		secret  string
	}{
		{"no secret header", b.WebhookHandler(testWebhookSecret), ""},
		{"wrong secret", b.WebhookHandler(testWebhookSecret), "not-the-secret-token"},
		{"secret prefix", b.WebhookHandler(testWebhookSecret), testWebhookSecret[:8]},
		{"handler without secret", b.WebhookHandler(""), "anything"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, webhookRequest(t, forged, tt.secret))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
	assert.Empty(t, sender.messages())
}

func TestBot_PollDispatchesUntilClosed(t *testing.T) {
	b, sender, _ := newTestBot(t)
	updates := make(chan tgbotapi.Update, 3)
	for i := int64(1); i <= 3; i++ {
		updates <- command(i, "/help")
	}
	close(updates)

	b.Poll(context.Background(), updates)
	require.NoError(t, b.Wait(context.Background(), 4))
	assert.Len(t, sender.messages(), 3)
}
