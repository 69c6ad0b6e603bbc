// Package health reports the runtime state of an environment.
//
// # Component Status
//
// Each component's containers are listed by label and summarized as:
//
//	StatusRunning - every container is running
//	StatusPartial - some containers are running
//	StatusStopped - containers exist but none is running
//	StatusAbsent  - no containers at all
//
// # Check Functions
//
//	report := health.Check(ctx, rt, cfg)
//	// report.Components, report.Networks
//
//	health.CheckControlPlane(ctx, url) // proxy API reachable
package health
