package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/randgate/backend/internal/domain"
)

type entitlementReader interface {
	Find(ctx context.Context, userID int64) (*domain.Entitlement, error)
	Events(ctx context.Context, userID int64) ([]*domain.PaymentEvent, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}

// AdminHandler serves the read-only admin API.
type AdminHandler struct {
	store entitlementReader
}

func NewAdminHandler(store entitlementReader) *AdminHandler {
	return &AdminHandler{store: store}
}

// GetEntitlement handles GET /api/admin/entitlements/{userID}.
func (h *AdminHandler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID == 0 {
		Error(w, domain.ErrBadRequest("invalid user id"))
		return
	}

	ent, err := h.store.Find(r.Context(), userID)
	if err != nil {
		Error(w, domain.ErrUnavailable("failed to read entitlement", err))
		return
	}
	events, err := h.store.Events(r.Context(), userID)
	if err != nil {
		Error(w, domain.ErrUnavailable("failed to read payment events", err))
		return
	}
	if events == nil {
		events = []*domain.PaymentEvent{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"entitlement": ent,
		"events":      events,
	})
}

// GetStats returns entitlement counters.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		Error(w, domain.ErrUnavailable("failed to read stats", err))
		return
	}
	JSON(w, http.StatusOK, stats)
}
