// Package port inspects the host ports an environment publishes.
//
// Every environment kind has a fixed port table, so two projects of the
// same kind claim the same host ports. Conflicts scans the environments
// already materialized on this host for such overlaps before a new one
// is brought up:
//
//	existing, err := port.Existing(fsys, settings.EnvironmentsDir, settings.DomainBase)
//	for _, c := range port.Conflicts(cfg, existing) {
//	    fmt.Println(c)
//	}
//
// Probe reports which ports currently accept connections on 127.0.0.1.
package port
