// Package provider is the client for the remote payment/QR service: QR
// creation and cancellation, transaction status, the paid-status callback
// forward, and QR PNG retrieval. The engine treats this service as an
// external collaborator; responses are passed through with only the fields
// the checkout flow needs lifted out.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrQRNotFound is returned by FetchQR when the provider has no PNG for the
// transaction.
var ErrQRNotFound = errors.New("qr image not found")

// Themes accepted by the provider. Anything else is coerced to ThemeDefault.
const (
	ThemeDefault = "theme1"
	ThemeAlt     = "theme2"
)

// NormalizeTheme coerces unknown theme names to the default.
func NormalizeTheme(theme string) string {
	if theme == ThemeAlt {
		return ThemeAlt
	}
	return ThemeDefault
}

// Client calls the payment provider's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a provider client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   20 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// BaseURL returns the provider base URL, used to build provider-side QR
// links in responses.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateQRResponse is the provider's QR creation payload. Some deployments
// nest the transaction fields under data, others return them flat, so both
// shapes are decoded and the accessors pick whichever is populated.
type CreateQRResponse struct {
	Success bool            `json:"success"`
	Raw     json.RawMessage `json:"-"`

	IDTransaksi string `json:"idTransaksi"`
	QRPngURL    string `json:"qrPngUrl"`

	Data struct {
		IDTransaksi string `json:"idTransaksi"`
		QRPngURL    string `json:"qrPngUrl"`
	} `json:"data"`
}

// TransactionID returns the provider-issued transaction identifier, or ""
// when the provider did not return one.
func (r *CreateQRResponse) TransactionID() string {
	if r.Data.IDTransaksi != "" {
		return r.Data.IDTransaksi
	}
	return r.IDTransaksi
}

// PNGPath returns the provider-relative QR PNG path. Falls back to the
// conventional path when the provider omits it but issued a transaction.
func (r *CreateQRResponse) PNGPath() string {
	if r.Data.QRPngURL != "" {
		return r.Data.QRPngURL
	}
	if r.QRPngURL != "" {
		return r.QRPngURL
	}
	if id := r.TransactionID(); id != "" {
		return "/api/qr/" + id + ".png"
	}
	return ""
}

// CreateQR asks the provider to issue a payment QR for the (already
// discounted) amount.
func (c *Client) CreateQR(ctx context.Context, amount decimal.Decimal, theme string) (*CreateQRResponse, error) {
	// decimal.Decimal marshals as a quoted string; the provider wants a
	// plain JSON number.
	body, err := json.Marshal(map[string]any{
		"amount": json.Number(amount.String()),
		"theme":  NormalizeTheme(theme),
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode createqr request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/createqr", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build createqr request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "createqr")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read createqr response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("createqr: status %d: %s", resp.StatusCode, raw)
	}

	var out CreateQRResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "decode createqr response")
	}
	out.Raw = raw
	return &out, nil
}

// Proxied is a provider response forwarded verbatim to the caller.
type Proxied struct {
	StatusCode int
	Body       json.RawMessage
}

// Status fetches the transaction status, passing the provider's response
// through untouched.
func (c *Client) Status(ctx context.Context, transactionID string) (*Proxied, error) {
	u := fmt.Sprintf("%s/api/status?idTransaksi=%s", c.baseURL, url.QueryEscape(transactionID))
	return c.proxy(ctx, http.MethodGet, u, nil, 15*time.Second)
}

// Cancel asks the provider to cancel a pending transaction.
func (c *Client) Cancel(ctx context.Context, transactionID string) (*Proxied, error) {
	body := map[string]any{"idTransaksi": transactionID}
	return c.proxyJSON(ctx, c.baseURL+"/api/cancel", body, 15*time.Second)
}

// SetStatusRequest carries a payment status update from the callback layer.
type SetStatusRequest struct {
	IDTransaksi string `json:"idTransaksi"`
	Status      string `json:"status"`
	PaidAt      string `json:"paidAt,omitempty"`
	Note        string `json:"note,omitempty"`
	PaidVia     string `json:"paidVia,omitempty"`
}

// SetStatus forwards a status update to the provider.
func (c *Client) SetStatus(ctx context.Context, r SetStatusRequest) (*Proxied, error) {
	return c.proxyJSON(ctx, c.baseURL+"/api/status", r, 15*time.Second)
}

// FetchQR retrieves the QR PNG for a transaction.
func (c *Client) FetchQR(ctx context.Context, transactionID string) ([]byte, error) {
	u := fmt.Sprintf("%s/api/qr/%s.png", c.baseURL, url.PathEscape(transactionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build qr request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch qr")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrQRNotFound
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

func (c *Client) proxyJSON(ctx context.Context, u string, body any, timeout time.Duration) (*Proxied, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	return c.proxy(ctx, http.MethodPost, u, raw, timeout)
}

func (c *Client) proxy(ctx context.Context, method, u string, body []byte, timeout time.Duration) (*Proxied, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call provider")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read provider response")
	}

	return &Proxied{StatusCode: resp.StatusCode, Body: respBody}, nil
}
