package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/randgate/backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

type stubReader struct {
	ent    *domain.Entitlement
	events []*domain.PaymentEvent
	stats  *domain.Stats
	err    error
}

func (s *stubReader) Find(_ context.Context, userID int64) (*domain.Entitlement, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.ent != nil {
		return s.ent, nil
	}
	return &domain.Entitlement{UserID: userID}, nil
}

func (s *stubReader) Events(context.Context, int64) ([]*domain.PaymentEvent, error) {
	return s.events, s.err
}

func (s *stubReader) Stats(context.Context) (*domain.Stats, error) {
	return s.stats, s.err
}

func adminRouter(h *AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/admin/entitlements/{userID}", h.GetEntitlement)
	r.Get("/api/admin/stats", h.GetStats)
	return r
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAdminHandler_GetEntitlement(t *testing.T) {
	paidAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	h := adminRouter(NewAdminHandler(&stubReader{
		ent: &domain.Entitlement{UserID: 42, Paid: true, PaidAt: &paidAt},
		events: []*domain.PaymentEvent{{
			TransactionID: "tx1", UserID: 42, Amount: "0.0005", Currency: "BTC",
			Status: "completed", ReceivedAt: paidAt,
		}},
	}))

	rec := get(h, "/api/admin/entitlements/42")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"entitlement": {"userId": 42, "paid": true, "paidAt": "2026-05-01T12:00:00Z"},
		"events": [{"transactionId": "tx1", "userId": 42, "amount": "0.0005", "currency": "BTC",
			"status": "completed", "receivedAt": "2026-05-01T12:00:00Z"}]
	}`, rec.Body.String())
}

func TestAdminHandler_UnknownUserIsUnpaid(t *testing.T) {
	rec := get(adminRouter(NewAdminHandler(&stubReader{})), "/api/admin/entitlements/9")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entitlement": {"userId": 9, "paid": false}, "events": []}`, rec.Body.String())
}

func TestAdminHandler_Errors(t *testing.T) {
	h := adminRouter(NewAdminHandler(&stubReader{err: errors.New("locked")}))

	assert.Equal(t, http.StatusBadRequest, get(h, "/api/admin/entitlements/abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/api/admin/entitlements/0").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(h, "/api/admin/entitlements/1").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(h, "/api/admin/stats").Code)
}

func TestAdminHandler_GetStats(t *testing.T) {
	h := adminRouter(NewAdminHandler(&stubReader{stats: &domain.Stats{PaidUsers: 3, RecordedEvents: 5}}))
	rec := get(h, "/api/admin/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"paidUsers":3,"recordedEvents":5}`, rec.Body.String())
}

func TestHealthHandler(t *testing.T) {
	ok := PingerFunc(func(context.Context) error { return nil })
	down := PingerFunc(func(context.Context) error { return errors.New("down") })

	tests := []struct {
		name     string
		db       Pinger
		cache    Pinger
		wantCode int
		wantBody string
	}{
		{"db only", ok, nil, http.StatusOK, `{"status":"ok","database":"ok"}`},
		{"db and cache", ok, ok, http.StatusOK, `{"status":"ok","database":"ok","cache":"ok"}`},
		{"db down", down, nil, http.StatusServiceUnavailable, `{"status":"degraded","database":"error"}`},
		{"cache down", ok, down, http.StatusServiceUnavailable, `{"status":"degraded","database":"ok","cache":"error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.db, tt.cache).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestPages(t *testing.T) {
	for path, h := range map[string]http.HandlerFunc{
		"/":        Index,
		"/success": PaymentSuccess,
		"/cancel":  PaymentCancel,
	} {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"), path)
	}
}
