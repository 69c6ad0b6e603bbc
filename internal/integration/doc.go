// Package integration provides a test harness for integration tests
// that require actual container runtime support.
//
// Integration tests are skipped unless the ENVCTL_INTEGRATION_TESTS
// environment variable is set. These tests require a docker or podman
// engine the current user can reach. ENVCTL_RUNTIME selects the back end
// as it does for the CLI.
//
// # Test Harness
//
// TestHarness manages one throwaway environment:
//
//	func TestMyIntegration(t *testing.T) {
//	    h := integration.NewHarness(t) // Skips if env var not set
//
//	    ctrl := h.Controller()
//	    err := ctrl.Networks().EnsureNetworks(ctx, h.Config())
//
//	    // Cleanup is automatic via t.Cleanup
//	}
//
// Each harness uses a unique project name of the "test" kind, so runs do
// not collide with each other or with real environments. Cleanup tears
// the environment down with volumes and without a snapshot.
//
// # Running Integration Tests
//
//	ENVCTL_INTEGRATION_TESTS=1 go test -v ./internal/integration/...
package integration
