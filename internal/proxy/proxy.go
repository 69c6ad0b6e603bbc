package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/errors"
	"github.com/medstack-ops/envctl/internal/logging"
	"github.com/medstack-ops/envctl/internal/retry"
)

// DefaultTimeout bounds each control-plane request.
const DefaultTimeout = 15 * time.Second

// Credentials identify a control-plane user.
type Credentials struct {
	Identity string
	Secret   string
}

// DefaultCredentials are the credentials of a fresh install.
var DefaultCredentials = Credentials{
	Identity: config.DefaultProxyIdentity,
	Secret:   config.DefaultProxySecret,
}

// Client is a control-plane API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authPolicy retry.Policy
	fallback   Credentials
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAuthPolicy sets the retry policy for the configured credentials.
func WithAuthPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.authPolicy = p
	}
}

// WithFallback sets the credentials tried after the configured ones fail.
func WithFallback(creds Credentials) Option {
	return func(c *Client) {
		c.fallback = creds
	}
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the control plane at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		authPolicy: retry.Fixed(5, 2*time.Second),
		fallback:   DefaultCredentials,
		logger:     logging.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx control-plane response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, strings.TrimSpace(e.Body))
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(msg)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

type tokenRequest struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

type tokenResponse struct {
	Token   string `json:"token"`
	Expires string `json:"expires"`
}

func (c *Client) login(ctx context.Context, creds Credentials) (string, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/tokens", "", tokenRequest(creds), &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("control plane returned an empty token")
	}
	return resp.Token, nil
}

// Authenticate obtains a bearer token. The given credentials are retried
// under the client's auth policy. When they keep failing, the fallback
// credentials get a single attempt. The returned error is an auth error.
func (c *Client) Authenticate(ctx context.Context, identity, secret string) (string, error) {
	primary := Credentials{Identity: identity, Secret: secret}

	policy := c.authPolicy
	policy.OnRetry = func(attempt int, err error) {
		c.logger.Warn("control plane login failed, retrying", "attempt", attempt, "of", policy.Attempts, "error", err)
	}

	token, err := retry.DoValue(ctx, policy, func(ctx context.Context, attempt int) (string, error) {
		return c.login(ctx, primary)
	})
	if err == nil {
		return token, nil
	}
	if ctx.Err() != nil {
		return "", errors.AuthError("control plane login interrupted", ctx.Err())
	}

	if c.fallback != primary && c.fallback.Identity != "" {
		c.logger.Warn("configured credentials rejected, trying default credentials", "identity", c.fallback.Identity)
		token, fbErr := c.login(ctx, c.fallback)
		if fbErr == nil {
			return token, nil
		}
		err = errors.Join(err, fbErr)
	}
	return "", errors.AuthError("control plane login failed", err)
}

// Host is a proxy host as stored by the control plane.
type Host struct {
	ID                    int      `json:"id,omitempty"`
	DomainNames           []string `json:"domain_names"`
	ForwardScheme         string   `json:"forward_scheme"`
	ForwardHost           string   `json:"forward_host"`
	ForwardPort           int      `json:"forward_port"`
	AccessListID          int      `json:"access_list_id"`
	CertificateID         int      `json:"certificate_id"`
	SSLForced             bool     `json:"ssl_forced"`
	CachingEnabled        bool     `json:"caching_enabled"`
	BlockExploits         bool     `json:"block_exploits"`
	AllowWebsocketUpgrade bool     `json:"allow_websocket_upgrade"`
	HTTP2Support          bool     `json:"http2_support"`
	HSTSEnabled           bool     `json:"hsts_enabled"`
	HSTSSubdomains        bool     `json:"hsts_subdomains"`
	AdvancedConfig        string   `json:"advanced_config"`
	Enabled               *bool    `json:"enabled,omitempty"`
	Meta                  HostMeta `json:"meta"`
	Locations             []any    `json:"locations"`
}

// HostMeta holds certificate request flags.
type HostMeta struct {
	LetsencryptAgree bool `json:"letsencrypt_agree"`
	DNSChallenge     bool `json:"dns_challenge"`
}

// Serves reports whether the host answers for domain.
func (h Host) Serves(domain string) bool {
	want := normalizeDomain(domain)
	for _, d := range h.DomainNames {
		if normalizeDomain(d) == want {
			return true
		}
	}
	return false
}

func normalizeDomain(d string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
}

// Record is a route to publish. Domain identifies it.
type Record struct {
	Domain      string
	ForwardHost string
	ForwardPort int
	Websocket   bool
}

// ListProxyHosts returns every proxy host.
func (c *Client) ListProxyHosts(ctx context.Context, token string) ([]Host, error) {
	var hosts []Host
	if err := c.do(ctx, http.MethodGet, "/api/nginx/proxy-hosts", token, nil, &hosts); err != nil {
		return nil, err
	}
	return hosts, nil
}

// CreateProxyHostIfAbsent creates a proxy host for the record unless one
// already serves its domain. created is false when the host existed.
func (c *Client) CreateProxyHostIfAbsent(ctx context.Context, token string, rec Record) (bool, error) {
	hosts, err := c.ListProxyHosts(ctx, token)
	if err != nil {
		return false, err
	}
	for _, h := range hosts {
		if h.Serves(rec.Domain) {
			c.logger.Debug("proxy host exists", "domain", rec.Domain, "id", h.ID, "forward", fmt.Sprintf("%s:%d", h.ForwardHost, h.ForwardPort))
			return false, nil
		}
	}

	host := Host{
		DomainNames:           []string{normalizeDomain(rec.Domain)},
		ForwardScheme:         "http",
		ForwardHost:           rec.ForwardHost,
		ForwardPort:           rec.ForwardPort,
		SSLForced:             true,
		BlockExploits:         true,
		AllowWebsocketUpgrade: rec.Websocket,
		HTTP2Support:          true,
		HSTSEnabled:           false,
		Locations:             []any{},
	}
	if err := c.do(ctx, http.MethodPost, "/api/nginx/proxy-hosts", token, host, nil); err != nil {
		return false, err
	}
	c.logger.Info("created proxy host", "domain", rec.Domain, "forward", fmt.Sprintf("%s:%d", rec.ForwardHost, rec.ForwardPort))
	return true, nil
}
