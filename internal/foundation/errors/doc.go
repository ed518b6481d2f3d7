// Package errors provides the classified error primitives used across docs2static.
//
// Key features:
//   - ErrorCategory: broad classification (reference, rate_limit, remote, asset, backend, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - RetryStrategy: retry behavior (never, backoff, rate_limit, user)
//   - ClassifiedError: structured error with category, severity, and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - CLIErrorAdapter: exit codes and user-facing messages
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryRemote, "fetch children failed").
//		WithContext("doc_id", id).
//		Build()
package errors
