// Package testutil provides test fixtures and utilities.
//
// # Fixtures
//
// Fake upstream checkouts for every component are embedded under
// fixtures/sources, one directory per source name:
//
//	fixtures/sources/nginx-proxy-manager
//	fixtures/sources/openemr
//	fixtures/sources/telehealth
//	fixtures/sources/docker-jitsi-meet
//	fixtures/sources/wordpress
//
// # Test Environment
//
// NewTestEnv builds a temporary root with settings pointing into it, a
// MockRuntime, a MockComposer that starts labelled containers on Up, and a
// fake control plane behind httptest. The app is installed as app.Default
// so commands run against it:
//
//	env := testutil.NewTestEnv(t)
//	defer env.Cleanup()
//	env.AddSources("wordpress")
//
//	// run commands, then inspect env.Runtime, env.Composer and
//	// env.ControlPlane.Domains()
package testutil
