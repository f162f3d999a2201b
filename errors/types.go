package errors

// Constructors for the failure classes this kit actually produces.

func Invalid(format string, args ...any) *Error {
	return New(CodeInvalid, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

func Corrupt(format string, args ...any) *Error {
	return New(CodeCorrupt, format, args...)
}

func Storage(format string, args ...any) *Error {
	return New(CodeStorage, format, args...)
}

func Unreachable(format string, args ...any) *Error {
	return New(CodeUnreachable, format, args...)
}

func Expired(format string, args ...any) *Error {
	return New(CodeExpired, format, args...)
}

func Exhausted(format string, args ...any) *Error {
	return New(CodeExhausted, format, args...)
}
