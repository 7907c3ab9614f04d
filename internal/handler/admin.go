package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/levpay/qris-promo/internal/domain/promo"
	"github.com/levpay/qris-promo/internal/service"
)

// promoReason maps a promo rule rejection to its wire reason code.
func promoReason(err error) (string, bool) {
	for _, sentinel := range []error{
		promo.ErrPromoNotFound,
		promo.ErrPromoExpired,
		promo.ErrDeviceRequired,
		promo.ErrPromoAlreadyUsed,
	} {
		if errors.Is(err, sentinel) {
			return promo.ReasonCode(err), true
		}
	}
	return "", false
}

// setPromoRequest is the admin custom promo body. Numeric fields missing
// from the request coerce to zero; active defaults to true unless
// explicitly false. expiresAt accepts RFC 3339 or is ignored when empty.
type setPromoRequest struct {
	Code      string      `json:"code"`
	Percent   json.Number `json:"percent"`
	Fixed     json.Number `json:"fixed"`
	ExpiresAt string      `json:"expiresAt"`
	Active    *bool       `json:"active"`
}

// numberOrZero coerces a missing or malformed JSON number to zero, the same
// lenient handling the original admin API had.
func numberOrZero(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func activeOrDefault(b *bool) bool {
	return b == nil || *b
}

func (h *Handler) adminSetPromo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !h.security.RequireAdmin(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req setPromoRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "expiresAt invalid")
			return
		}
		utc := t.UTC()
		expiresAt = &utc
	}

	p, err := h.admin.UpsertCustomPromo(r.Context(), service.UpsertCustomPromoInput{
		Code:      req.Code,
		Percent:   numberOrZero(req.Percent),
		Fixed:     numberOrZero(req.Fixed),
		ExpiresAt: expiresAt,
		Active:    activeOrDefault(req.Active),
	})
	if err != nil {
		if errors.Is(err, promo.ErrEmptyCode) {
			writeError(w, http.StatusBadRequest, "code required")
			return
		}
		logProviderError(r, "admin_setpromo", err)
		writeError(w, http.StatusInternalServerError, "admin_setpromo error")
		return
	}

	writeData(w, p)
}

func (h *Handler) adminSetMonthly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !h.security.RequireAdmin(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req setPromoRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	m, err := h.admin.SetMonthlyPromo(r.Context(), service.SetMonthlyPromoInput{
		Percent: numberOrZero(req.Percent),
		Fixed:   numberOrZero(req.Fixed),
		Active:  activeOrDefault(req.Active),
	})
	if err != nil {
		logProviderError(r, "admin_setmonthly", err)
		writeError(w, http.StatusInternalServerError, "admin_setmonthly error")
		return
	}

	writeData(w, m)
}

func (h *Handler) adminPromos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !h.security.RequireAdmin(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	catalog, err := h.admin.ListPromos(r.Context())
	if err != nil {
		logProviderError(r, "admin_promos", err)
		writeError(w, http.StatusInternalServerError, "admin_promos error")
		return
	}

	writeData(w, map[string]any{
		"monthly": catalog.Monthly,
		"custom":  catalog.Custom,
	})
}
