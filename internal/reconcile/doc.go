// Package reconcile removes environment directories that other processes
// may still be holding.
//
// A materialized environment tree is bind-mounted into containers, and
// some upstream images write files back into it as a different user or
// with read-only modes. A plain recursive delete then fails halfway or
// leaves the directory behind. RemoveSafely retries the removal under a
// fixed-delay policy; each attempt restores write permission across the
// tree, runs a release hook that stops containers mounting the path,
// deletes the tree and verifies it is gone.
package reconcile
