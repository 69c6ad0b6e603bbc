// Package lifecycle brings environments up and tears them down.
//
// # State Machine
//
// The environment directory decides what Up does:
//
//	Absent  -> Materializing -> Ready
//	Present -> UpdateInPlace -> Ready
//	Present -> Reconciling -> Materializing -> Ready
//
// On Present the injected Decider picks update-in-place, reconcile or
// abort. The controller itself never prompts; interactive and flag-driven
// decisions are supplied by the caller.
//
// # Bring-up
//
// Up ensures the networks, then for each component locates its source,
// syncs it into the environment tree, writes the env file, selects and
// prepares the compose files and starts the stack. After a fixed
// readiness delay the running containers are wired to their networks,
// and after the proxy startup delay the public routes are published.
//
// # Teardown
//
// Down snapshots the tree, stops and removes the environment's
// containers, removes its networks, optionally removes its volumes and
// finally removes the tree with RemoveSafely.
//
// # Errors
//
// Every step is recorded in the Report. Only configuration errors and a
// directory that cannot be removed end a run with an error; everything
// else degrades into failed or warning steps.
package lifecycle
