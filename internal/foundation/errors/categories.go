package errors

import (
	"log/slog"
	"maps"
	"slices"
)

// ErrorCategory routes an error to an exit code and a log message.
type ErrorCategory string

// User input.
const (
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryReference  ErrorCategory = "reference"
	CategoryNotFound   ErrorCategory = "not_found"
)

// Docs API and publishing remotes.
const (
	CategoryNetwork   ErrorCategory = "network"
	CategoryRemote    ErrorCategory = "remote"
	CategoryRateLimit ErrorCategory = "rate_limit"
	CategoryGit       ErrorCategory = "git"
)

// Local output: mirrored files, assets, cache and site generators.
const (
	CategoryAsset      ErrorCategory = "asset"
	CategoryBackend    ErrorCategory = "backend"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryCache      ErrorCategory = "cache"
)

const (
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // aborts the command
	SeverityError   ErrorSeverity = "error"   // abandons the current document subtree
	SeverityWarning ErrorSeverity = "warning" // the document is kept, degraded
	SeverityInfo    ErrorSeverity = "info"
)

// RetryStrategy tells callers whether repeating the operation can help.
type RetryStrategy string

const (
	RetryNever     RetryStrategy = "never"
	RetryBackoff   RetryStrategy = "backoff"
	RetryRateLimit RetryStrategy = "rate_limit"
)

// ErrorContext carries structured fields such as doc_id, url or path.
type ErrorContext map[string]any

// Merge combines two contexts, with other taking precedence.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	if len(c) == 0 {
		return other
	}
	if len(other) == 0 {
		return c
	}
	result := make(ErrorContext, len(c)+len(other))
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}

// Attrs renders the context as slog attributes sorted by key.
func (c ErrorContext) Attrs() []slog.Attr {
	keys := slices.Sorted(maps.Keys(c))
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, c[k]))
	}
	return attrs
}
