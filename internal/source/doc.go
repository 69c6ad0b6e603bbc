// Package source locates the upstream checkouts each component is
// materialized from and optionally fast-forwards them.
//
// Checkouts live under the sources root, one directory per component:
//
//	sources/
//	├── nginx-proxy-manager/
//	├── openemr/
//	├── telehealth/
//	├── docker-jitsi-meet/
//	└── wordpress/
//
// A checkout may be a jj repository, a git work tree, or a plain
// directory. Update only touches version-controlled checkouts, and only
// with operations that cannot discard local work.
package source
