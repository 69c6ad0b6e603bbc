// Package errors provides typed errors with exit codes for envctl.
//
// # Error Types
//
// EnvError is the base error type that wraps an error with an exit code
// and a Kind used to decide whether a failure aborts the run:
//
//	type EnvError struct {
//	    Code    int    // Exit code
//	    Kind    Kind   // Classification
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// # Exit Codes
//
//	ExitSuccess          = 0  // Success
//	ExitGeneralError     = 1  // General/unknown errors
//	ExitConfigError      = 2  // Invalid environment or project input
//	ExitSourceMissing    = 3  // Upstream checkout absent
//	ExitTemplateMissing  = 4  // No env template (recovered locally)
//	ExitAuthError        = 5  // Control-plane login failed
//	ExitNetworkOpError   = 6  // Network operation failed
//	ExitDirectoryRemoval = 7  // Directory could not be removed
//	ExitRuntimeCommand   = 8  // Runtime command exited non-zero
//
// Only ExitConfigError and ExitDirectoryRemoval reach the process exit
// status in normal operation. The others are collected into the run report.
//
// # Extracting Exit Codes
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
