package service

import (
	"context"
	"sync"

	"github.com/randgate/backend/internal/domain"
	"github.com/randgate/backend/pkg/payment"
)

type fakeGateway struct {
	mu        sync.Mutex
	url       string
	createErr error
	tokens    map[string]*payment.TokenInfo
	lookupErr error
	requests  []payment.PaymentRequest
	lookups   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{url: "https://faucetpay.io/pay/abc", tokens: map[string]*payment.TokenInfo{}}
}

func (g *fakeGateway) CreatePayment(_ context.Context, req payment.PaymentRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.createErr != nil {
		return "", g.createErr
	}
	return g.url, nil
}

func (g *fakeGateway) LookupToken(ctx context.Context, token string) (*payment.TokenInfo, error) {
	g.mu.Lock()
	g.lookups++
	err := g.lookupErr
	info, ok := g.tokens[token]
	g.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return &payment.TokenInfo{Valid: false}, nil
	}
	return info, nil
}

type fakeStore struct {
	mu       sync.Mutex
	paid     map[int64]bool
	events   []*domain.PaymentEvent
	readErr  error
	writeErr error
	writes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{paid: map[int64]bool{}}
}

func (s *fakeStore) IsPaid(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return false, s.readErr
	}
	return s.paid[userID], nil
}

func (s *fakeStore) Find(_ context.Context, userID int64) (*domain.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return &domain.Entitlement{UserID: userID, Paid: s.paid[userID]}, nil
}

func (s *fakeStore) MarkPaid(_ context.Context, userID int64, evt *domain.PaymentEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return false, s.writeErr
	}
	s.writes++
	if evt != nil {
		s.events = append(s.events, evt)
	}
	was := s.paid[userID]
	s.paid[userID] = true
	return !was, nil
}

type sentMessage struct {
	userID int64
	text   string
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []sentMessage
	err   error
	block chan struct{}
	ctxs  []error
}

func (n *fakeNotifier) Notify(ctx context.Context, userID int64, text string) error {
	if n.block != nil {
		<-n.block
	}
	n.mu.Lock()
	n.ctxs = append(n.ctxs, ctx.Err())
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{userID: userID, text: text})
	return nil
}

func (n *fakeNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}
