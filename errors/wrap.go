package errors

import stderrors "errors"

// Re-exports of the standard helpers, so callers that import this package
// never need a second errors import for chain inspection.

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain matching target's type and, if
// found, assigns it to target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Unwrap returns err's wrapped error, or nil when there is none.
func Unwrap(err error) error { return stderrors.Unwrap(err) }

// Join wraps the given errors into one, discarding nils.
func Join(errs ...error) error { return stderrors.Join(errs...) }
