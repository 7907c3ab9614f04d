package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/levpay/qris-promo/internal/provider"
	"github.com/levpay/qris-promo/internal/service"
)

// createQRRequest is the checkout request body. Amount stays a raw JSON
// number until validated so non-numeric input can be rejected cleanly.
type createQRRequest struct {
	Amount    json.Number `json:"amount"`
	Theme     string      `json:"theme"`
	DeviceID  string      `json:"deviceId"`
	PromoCode string      `json:"promoCode"`
}

func (h *Handler) createQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req createQRRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil || amount.LessThan(decimal.NewFromInt(1)) {
		writeError(w, http.StatusBadRequest, "amount invalid")
		return
	}

	res, err := h.checkout.CreateQR(r.Context(), service.CreateQRInput{
		Amount:    amount,
		Theme:     req.Theme,
		DeviceID:  strings.TrimSpace(req.DeviceID),
		PromoCode: strings.TrimSpace(req.PromoCode),
	})
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.createQRPayload(r, res))
}

// createQRPayload merges the provider's response with the discount summary,
// overlaying the data object the way the original proxy does.
func (h *Handler) createQRPayload(r *http.Request, res *service.CreateQRResult) map[string]any {
	payload := map[string]any{}
	if len(res.ProviderRaw) > 0 {
		_ = json.Unmarshal(res.ProviderRaw, &payload)
	}
	if payload == nil {
		payload = map[string]any{}
	}

	data, _ := payload["data"].(map[string]any)
	if data == nil {
		data = map[string]any{}
	}

	var qrURL, qrVpsURL any
	if res.TransactionID != "" {
		qrURL = baseURLFromRequest(r) + "/api/orkut?action=qr&idTransaksi=" + url.QueryEscape(res.TransactionID)
		if res.PNGPath != "" {
			qrVpsURL = h.provider.BaseURL() + res.PNGPath
		}
	}

	var promoCode any
	if res.PromoCode != "" {
		promoCode = res.PromoCode
	}

	data["idTransaksi"] = res.TransactionID
	data["qrUrl"] = qrURL
	data["qrVpsUrl"] = qrVpsURL
	data["originalAmount"] = json.Number(res.OriginalAmount.String())
	data["finalAmount"] = json.Number(res.FinalAmount.String())
	data["discount"] = json.Number(res.Discount.String())
	data["promoType"] = string(res.PromoType)
	data["promoCode"] = promoCode

	payload["data"] = data
	return payload
}

// writeCheckoutError maps checkout failures: promo rule rejections become
// 400 responses with their stable reason code, everything else is a 502
// toward the caller since the upstream collaborators failed.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrInvalidAmount) {
		writeError(w, http.StatusBadRequest, "amount invalid")
		return
	}
	if reason, ok := promoReason(err); ok {
		writeError(w, http.StatusBadRequest, reason)
		return
	}
	logProviderError(r, "createqr", err)
	writeError(w, http.StatusBadGateway, "createqr failed")
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("idTransaksi"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "idTransaksi required")
		return
	}

	res, err := h.provider.Status(r.Context(), id)
	if err != nil {
		logProviderError(r, "status", err)
		writeError(w, http.StatusBadGateway, "status failed")
		return
	}
	writeProxied(w, res)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var body struct {
		IDTransaksi string `json:"idTransaksi"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := strings.TrimSpace(body.IDTransaksi)
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("idTransaksi"))
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "idTransaksi required")
		return
	}

	res, err := h.provider.Cancel(r.Context(), id)
	if err != nil {
		logProviderError(r, "cancel", err)
		writeError(w, http.StatusBadGateway, "cancel failed")
		return
	}
	writeProxied(w, res)
}

func (h *Handler) qr(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("idTransaksi"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "idTransaksi required")
		return
	}

	png, err := h.provider.FetchQR(r.Context(), id)
	if err != nil {
		if errors.Is(err, provider.ErrQRNotFound) {
			writeError(w, http.StatusNotFound, "QR not found")
			return
		}
		logProviderError(r, "qr", err)
		writeError(w, http.StatusBadGateway, "qr failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !h.security.AllowCallback(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body provider.SetStatusRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.IDTransaksi == "" || body.Status == "" {
		writeError(w, http.StatusBadRequest, "idTransaksi & status required")
		return
	}

	res, err := h.provider.SetStatus(r.Context(), body)
	if err != nil {
		logProviderError(r, "setstatus", err)
		writeError(w, http.StatusBadGateway, "setstatus failed")
		return
	}
	writeProxied(w, res)
}

// baseURLFromRequest rebuilds the externally visible base URL from forwarded
// headers, falling back to the host the request arrived on.
func baseURLFromRequest(r *http.Request) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i > 0 {
		proto = proto[:i]
	}
	proto = strings.TrimSpace(proto)
	if proto == "" {
		proto = "https"
	}

	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return proto + "://" + host
}
