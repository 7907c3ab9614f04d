// Package githubstore persists the promo store as a single JSON document in
// a GitHub repository, using the contents API. The file's blob SHA acts as
// an optimistic version token: saves are compare-and-swap writes that fail
// with ErrVersionConflict when the document changed since it was loaded.
package githubstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/levpay/qris-promo/internal/domain/promo"
)

const (
	defaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"
	requestTimeout = 20 * time.Second
)

// ErrVersionConflict is returned by Save when the provided version token is
// stale, i.e. another writer updated the document after it was loaded. The
// caller must reload and retry.
var ErrVersionConflict = errors.New("store document version conflict")

// Config identifies the repository file holding the store document.
type Config struct {
	Owner  string
	Repo   string
	Branch string
	Path   string
	Token  string
}

// Client is a GitHub contents API client for the store document.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the GitHub API base URL. Used in tests and for
// GitHub Enterprise deployments.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New creates a store client. Outbound requests are instrumented and carry
// a 20 second timeout.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// contentsResponse is the subset of the contents API GET payload we read.
type contentsResponse struct {
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

// putResponse is the subset of the contents API PUT payload we read. The
// new blob SHA lives under content; the commit SHA is a fallback only.
type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// putContents is the request body for a contents API write.
type putContents struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

func (c *Client) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.baseURL, c.cfg.Owner, c.cfg.Repo, url.PathEscape(c.cfg.Path))
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
}

// Load fetches the store document and its version token. A missing document
// is not an error: it returns a fresh empty store with an empty token, and
// the first Save will then create the file. A document that fails to decode
// is likewise treated as empty rather than wedging every request.
func (c *Client) Load(ctx context.Context) (*promo.Store, string, error) {
	u := c.contentsURL() + "?ref=" + url.QueryEscape(c.cfg.Branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "build load request")
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", errors.Wrap(err, "load store document")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return (&promo.Store{}).EnsureShape(), "", nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", errors.Errorf("load store document: status %d: %s", resp.StatusCode, body)
	}

	var cr contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, "", errors.Wrap(err, "decode contents response")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(cr.Content, "\n", ""))
	if err != nil {
		return nil, "", errors.Wrap(err, "decode document content")
	}

	s := &promo.Store{}
	if err := json.Unmarshal(raw, s); err != nil {
		s = &promo.Store{}
	}
	return s.EnsureShape(), cr.SHA, nil
}

// Save writes the store document with the given change description. A
// non-empty versionToken makes the write a compare-and-swap against that
// blob SHA; an empty token creates the file. On success the new version
// token is returned.
func (c *Client) Save(ctx context.Context, s *promo.Store, versionToken, message string) (string, error) {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encode store document")
	}

	if message == "" {
		message = "update " + c.cfg.Path
	}
	body, err := json.Marshal(putContents{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(raw),
		Branch:  c.cfg.Branch,
		SHA:     versionToken,
	})
	if err != nil {
		return "", errors.Wrap(err, "encode save request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(), bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build save request")
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "save store document")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict, http.StatusUnprocessableEntity:
		// GitHub reports a stale sha as 409 (or 422 on some paths).
		return "", ErrVersionConflict
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", errors.Errorf("save store document: status %d: %s", resp.StatusCode, respBody)
	}

	var pr putResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", errors.Wrap(err, "decode save response")
	}
	if pr.Content.SHA == "" {
		return pr.Commit.SHA, nil
	}
	return pr.Content.SHA, nil
}

// Ping verifies the repository is reachable with the configured credentials.
// Used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	u := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, c.cfg.Owner, c.cfg.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "build ping request")
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "ping repository")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("ping repository: status %d", resp.StatusCode)
	}
	return nil
}
