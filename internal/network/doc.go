// Package network creates an environment's container networks and wires
// running containers into them.
//
// Every environment owns three bridge networks named after its slug:
//
//   - {project}-{kind}-proxy: the reverse proxy reaches every routed service
//   - {project}-{kind}-frontend: telehealth talks to the video stack
//   - {project}-{kind}-shared: telehealth talks to the EMR
//
// Compose stacks start on their own default networks; ConnectContainers
// attaches the services listed in the component topology afterwards.
//
// All operations are idempotent. "Already exists" and "already connected"
// answers from the engine count as success, and a container that is not
// running is logged and skipped.
//
// Usage:
//
//	mgr := network.NewManager(rt)
//	if err := mgr.EnsureNetworks(ctx, cfg); err != nil {
//	    logging.Warn("network setup incomplete", "error", err)
//	}
//	result := mgr.ConnectContainers(ctx, cfg)
package network
