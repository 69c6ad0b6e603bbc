// Package backup snapshots an environment's materialized tree before it is
// torn down or reconciled, and restores it on request.
//
// A snapshot lives in its own directory under the environment's backup
// root, named by creation time:
//
//	backups/clinic-dev/
//	└── 2026-10-18_143005/
//	    ├── manifest.toml
//	    ├── openemr/
//	    ├── telehealth/
//	    ├── jitsi/
//	    └── jitsi-web-config.tar
//
// The manifest records what was captured. Configuration that the video
// conferencing web container generates at runtime is copied out of the
// running container as a tar stream and copied back in on restore.
// Snapshots are never modified after creation.
package backup
