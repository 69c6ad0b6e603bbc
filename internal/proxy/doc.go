// Package proxy talks to the reverse proxy's control-plane API to publish
// an environment's public routes.
//
// The control plane is Nginx Proxy Manager's REST API:
//
//   - POST /api/tokens exchanges an identity and secret for a bearer token
//   - GET /api/nginx/proxy-hosts lists existing proxy hosts
//   - POST /api/nginx/proxy-hosts creates one
//
// # Authentication
//
// Authenticate retries the configured credentials under a fixed-delay
// retry policy, then makes a single attempt with the credentials a fresh
// install ships with, then gives up with an auth error.
//
// # Route Creation
//
// Proxy hosts are keyed by domain. CreateProxyHostIfAbsent compares the
// requested domain against every existing host's domain_names, ignoring
// case and a trailing dot, and creates nothing when it is already served.
// Existing hosts are never updated.
//
// Usage:
//
//	client := proxy.NewClient(settings.ControlPlaneURL(cfg))
//	token, err := client.Authenticate(ctx, identity, secret)
//	if err != nil {
//	    return err
//	}
//	results := proxy.PublishRoutes(ctx, client, token, cfg, networkManager)
package proxy
