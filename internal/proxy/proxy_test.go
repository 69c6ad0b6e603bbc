package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/errors"
	"github.com/medstack-ops/envctl/internal/network"
	"github.com/medstack-ops/envctl/internal/retry"
	"github.com/medstack-ops/envctl/internal/runtime"
)

// fakeControlPlane serves the token and proxy-host endpoints from memory.
type fakeControlPlane struct {
	mu sync.Mutex

	// accept maps identity to secret.
	accept map[string]string
	// failLogins rejects this many logins before honoring accept.
	failLogins int

	logins  []string
	hosts   []Host
	creates int
}

func newFakeControlPlane() *fakeControlPlane {
	return &fakeControlPlane{accept: map[string]string{"ops@clinic.test": "s3cret"}}
}

func (f *fakeControlPlane) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/tokens":
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.logins = append(f.logins, req.Identity)
		if f.failLogins > 0 {
			f.failLogins--
			http.Error(w, `{"error":"not ready"}`, http.StatusBadGateway)
			return
		}
		if secret, ok := f.accept[req.Identity]; !ok || secret != req.Secret {
			http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(tokenResponse{Token: "tok-" + req.Identity, Expires: "2030-01-01T00:00:00Z"})

	case r.URL.Path == "/api/nginx/proxy-hosts":
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-") {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(f.hosts)
		case http.MethodPost:
			var h Host
			if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.creates++
			h.ID = len(f.hosts) + 1
			f.hosts = append(f.hosts, h)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(h)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeControlPlane, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	opts = append([]Option{
		WithHTTPClient(srv.Client()),
		WithAuthPolicy(retry.Fixed(3, 0)),
	}, opts...)
	return NewClient(srv.URL+"/", opts...)
}

func TestAuthenticate(t *testing.T) {
	t.Run("configured credentials", func(t *testing.T) {
		fake := newFakeControlPlane()
		c := newTestClient(t, fake)

		token, err := c.Authenticate(context.Background(), "ops@clinic.test", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, "tok-ops@clinic.test", token)
		assert.Len(t, fake.logins, 1)
	})

	t.Run("retries until the control plane answers", func(t *testing.T) {
		fake := newFakeControlPlane()
		fake.failLogins = 2
		c := newTestClient(t, fake)

		token, err := c.Authenticate(context.Background(), "ops@clinic.test", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, "tok-ops@clinic.test", token)
		assert.Len(t, fake.logins, 3)
	})

	t.Run("falls back to default credentials", func(t *testing.T) {
		fake := newFakeControlPlane()
		fake.accept = map[string]string{DefaultCredentials.Identity: DefaultCredentials.Secret}
		c := newTestClient(t, fake)

		token, err := c.Authenticate(context.Background(), "ops@clinic.test", "wrong")
		require.NoError(t, err)
		assert.Equal(t, "tok-"+DefaultCredentials.Identity, token)
		assert.Equal(t, []string{
			"ops@clinic.test", "ops@clinic.test", "ops@clinic.test",
			DefaultCredentials.Identity,
		}, fake.logins)
	})

	t.Run("fallback is skipped when it matches the configured credentials", func(t *testing.T) {
		fake := newFakeControlPlane()
		fake.accept = map[string]string{}
		c := newTestClient(t, fake)

		_, err := c.Authenticate(context.Background(), DefaultCredentials.Identity, DefaultCredentials.Secret)
		require.Error(t, err)
		assert.Len(t, fake.logins, 3)
	})

	t.Run("auth error when every attempt fails", func(t *testing.T) {
		fake := newFakeControlPlane()
		fake.accept = map[string]string{}
		c := newTestClient(t, fake)

		_, err := c.Authenticate(context.Background(), "ops@clinic.test", "s3cret")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindAuth))
		assert.Equal(t, errors.ExitAuthError, errors.GetExitCode(err))

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	})

	t.Run("cancelled context", func(t *testing.T) {
		fake := newFakeControlPlane()
		c := newTestClient(t, fake)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Authenticate(ctx, "ops@clinic.test", "s3cret")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindAuth))
	})
}

func TestCreateProxyHostIfAbsent(t *testing.T) {
	fake := newFakeControlPlane()
	c := newTestClient(t, fake)
	ctx := context.Background()
	token, err := c.Authenticate(ctx, "ops@clinic.test", "s3cret")
	require.NoError(t, err)

	rec := Record{Domain: "vc-dev.clinic.localhost", ForwardHost: "clinic-dev-jitsi-web-1", ForwardPort: 80, Websocket: true}

	created, err := c.CreateProxyHostIfAbsent(ctx, token, rec)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.CreateProxyHostIfAbsent(ctx, token, rec)
	require.NoError(t, err)
	assert.False(t, created, "second call must not create a duplicate")

	rec.Domain = "VC-DEV.Clinic.Localhost."
	created, err = c.CreateProxyHostIfAbsent(ctx, token, rec)
	require.NoError(t, err)
	assert.False(t, created, "domain match ignores case and trailing dot")

	require.Len(t, fake.hosts, 1)
	h := fake.hosts[0]
	assert.Equal(t, []string{"vc-dev.clinic.localhost"}, h.DomainNames)
	assert.Equal(t, "http", h.ForwardScheme)
	assert.Equal(t, "clinic-dev-jitsi-web-1", h.ForwardHost)
	assert.Equal(t, 80, h.ForwardPort)
	assert.True(t, h.AllowWebsocketUpgrade)
	assert.True(t, h.SSLForced)
	assert.True(t, h.BlockExploits)
	assert.False(t, h.HSTSEnabled)
}

func TestCreateProxyHostIfAbsent_DoesNotMatchSubstring(t *testing.T) {
	fake := newFakeControlPlane()
	fake.hosts = []Host{{ID: 1, DomainNames: []string{"www.vc-dev.clinic.localhost"}}}
	c := newTestClient(t, fake)

	created, err := c.CreateProxyHostIfAbsent(context.Background(), "tok-x", Record{Domain: "vc-dev.clinic.localhost", ForwardHost: "web", ForwardPort: 80})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestListProxyHosts_Unauthorized(t *testing.T) {
	c := newTestClient(t, newFakeControlPlane())

	_, err := c.ListProxyHosts(context.Background(), "bogus")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "/api/nginx/proxy-hosts")
}

func TestHostServes(t *testing.T) {
	h := Host{DomainNames: []string{"a.example.com", "B.Example.com."}}

	tests := []struct {
		domain string
		want   bool
	}{
		{"a.example.com", true},
		{"b.example.com", true},
		{" A.EXAMPLE.COM. ", true},
		{"c.example.com", false},
		{"example.com", false},
	}
	for _, tt := range tests {
		if got := h.Serves(tt.domain); got != tt.want {
			t.Errorf("Serves(%q) = %v, want %v", tt.domain, got, tt.want)
		}
	}
}

func TestPublishRoutes(t *testing.T) {
	cfg, err := config.Resolve("clinic", "dev", "localhost")
	require.NoError(t, err)

	rt := runtime.NewMockRuntime()
	for _, svc := range []struct {
		comp    config.Component
		service string
	}{
		{config.ComponentEMR, "openemr"},
		{config.ComponentTelehealth, "app"},
		{config.ComponentJitsi, "web"},
		{config.ComponentJitsi, "prosody"},
	} {
		labels := cfg.ComponentLabels(svc.comp)
		labels[config.LabelService] = svc.service
		name := cfg.ComposeProject(svc.comp) + "-" + svc.service + "-1"
		rt.AddContainer("", name, runtime.StateRunning, labels)
	}

	fake := newFakeControlPlane()
	c := newTestClient(t, fake)
	ctx := context.Background()

	results := PublishRoutes(ctx, c, "tok-ops", cfg, network.NewManager(rt))
	require.Len(t, results, 5)
	assert.Empty(t, Failed(results))

	byRoute := make(map[config.Route]RouteResult)
	for _, r := range results {
		byRoute[r.Route] = r
	}
	assert.True(t, byRoute[config.RouteCMS].Skipped, "cms has no running container")
	assert.True(t, byRoute[config.RouteVC].Created)
	assert.Equal(t, cfg.ComposeProject(config.ComponentJitsi)+"-web-1", byRoute[config.RouteVC].Target)
	assert.Len(t, fake.hosts, 4)

	// A second pass creates nothing.
	again := PublishRoutes(ctx, c, "tok-ops", cfg, network.NewManager(rt))
	for _, r := range again {
		assert.False(t, r.Created, "route %s", r.Route)
	}
	assert.Equal(t, 4, fake.creates)
}

func TestPublishRoutes_ContinuesAfterFailure(t *testing.T) {
	cfg, err := config.Resolve("clinic", "dev", "localhost")
	require.NoError(t, err)

	rt := runtime.NewMockRuntime()
	labels := cfg.ComponentLabels(config.ComponentEMR)
	labels[config.LabelService] = "openemr"
	rt.AddContainer("", "clinic-emr", runtime.StateRunning, labels)

	fake := newFakeControlPlane()
	c := newTestClient(t, fake)

	// The token is rejected, so every create fails without aborting the pass.
	results := PublishRoutes(context.Background(), c, "expired", cfg, network.NewManager(rt))
	require.Len(t, results, 5)
	failed := Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, config.RouteEMR, failed[0].Route)
}
