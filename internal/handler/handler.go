// Package handler exposes the checkout and admin flows over HTTP. The API
// is a single endpoint dispatched on the action query parameter, mirroring
// the frontend contract: createqr, status, cancel, qr, setstatus, and the
// admin promo actions.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/levpay/qris-promo/internal/provider"
	"github.com/levpay/qris-promo/internal/service"
)

// ProviderProxy is the pass-through surface of the payment provider used by
// the status, cancel, qr, and setstatus actions.
type ProviderProxy interface {
	Status(ctx context.Context, transactionID string) (*provider.Proxied, error)
	Cancel(ctx context.Context, transactionID string) (*provider.Proxied, error)
	SetStatus(ctx context.Context, r provider.SetStatusRequest) (*provider.Proxied, error)
	FetchQR(ctx context.Context, transactionID string) ([]byte, error)
	BaseURL() string
}

// Handler routes promo API actions to the checkout and admin services.
type Handler struct {
	checkout *service.Checkout
	admin    *service.Admin
	provider ProviderProxy
	security *Security
}

// New constructs the Handler.
func New(checkout *service.Checkout, admin *service.Admin, p ProviderProxy, security *Security) *Handler {
	return &Handler{
		checkout: checkout,
		admin:    admin,
		provider: p,
		security: security,
	}
}

// ServeHTTP dispatches on the action query parameter.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("action")))

	switch action {
	case "", "ping":
		h.ping(w, r)
	case "createqr":
		h.createQR(w, r)
	case "status":
		h.status(w, r)
	case "cancel":
		h.cancel(w, r)
	case "qr":
		h.qr(w, r)
	case "setstatus":
		h.setStatus(w, r)
	case "admin_setpromo":
		h.adminSetPromo(w, r)
	case "admin_setmonthly":
		h.adminSetMonthly(w, r)
	case "admin_promos":
		h.adminPromos(w, r)
	default:
		writeError(w, http.StatusNotFound, "Unknown action")
	}
}

// envelope is the wire response wrapper shared by every JSON action.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

// writeProxied forwards a provider response verbatim.
func writeProxied(w http.ResponseWriter, p *provider.Proxied) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(p.StatusCode)
	_, _ = w.Write(p.Body)
}

// decodeBody decodes a JSON request body; an empty body decodes to the
// zero value, matching the lenient parsing of the original frontend proxy.
func decodeBody(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (h *Handler) ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"service": "qris-promo",
		"routes": []string{
			"POST /api/orkut?action=createqr",
			"GET  /api/orkut?action=status&idTransaksi=...",
			"POST /api/orkut?action=cancel",
			"GET  /api/orkut?action=qr&idTransaksi=...",
			"POST /api/orkut?action=setstatus",
			"POST /api/orkut?action=admin_setpromo",
			"POST /api/orkut?action=admin_setmonthly",
			"GET  /api/orkut?action=admin_promos",
		},
	})
}

// logProviderError logs a provider call failure before the error response.
func logProviderError(r *http.Request, action string, err error) {
	zctx.From(r.Context()).Error("provider call failed",
		zap.String("action", action),
		zap.Error(err),
	)
}
