package errors

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrNoSuchProvider = &Error{Code: ErrCodeNoSuchProvider}
	ErrMissingConfig  = &Error{Code: ErrCodeMissingConfig}
	ErrInvalidConfig  = &Error{Code: ErrCodeInvalidConfig}
	ErrNotConfigured  = &Error{Code: ErrCodeNotConfigured}
)

// NoSuchProvider reports that no plugin is registered for a category or capability.
func NoSuchProvider(message string) *Error {
	return New(CategoryCore, ErrCodeNoSuchProvider, message)
}

// NoSuchProviderf is NoSuchProvider with a formatted message.
func NoSuchProviderf(format string, args ...any) *Error {
	return Newf(CategoryCore, ErrCodeNoSuchProvider, format, args...)
}

// NoSuchProviderWithCause reports a missing provider caused by a lower-layer failure.
func NoSuchProviderWithCause(message string, cause error) *Error {
	return Wrap(cause, CategoryCore, ErrCodeNoSuchProvider, message)
}

// NoSuchProviderFromCause reports a missing provider using the cause's message.
func NoSuchProviderFromCause(cause error) *Error {
	return FromCause(CategoryCore, ErrCodeNoSuchProvider, cause)
}

// Analytics creates an analytics error with a recovery suggestion.
func Analytics(code ErrorCode, message, suggestion string) *Error {
	return NewWithSuggestion(CategoryAnalytics, code, message, suggestion)
}

// Storage creates a storage error with a recovery suggestion.
func Storage(code ErrorCode, message, suggestion string) *Error {
	return NewWithSuggestion(CategoryStorage, code, message, suggestion)
}

// Predictions creates a predictions error with a recovery suggestion.
func Predictions(code ErrorCode, message, suggestion string) *Error {
	return NewWithSuggestion(CategoryPredictions, code, message, suggestion)
}

// DataStore creates a datastore error with a recovery suggestion.
func DataStore(code ErrorCode, message, suggestion string) *Error {
	return NewWithSuggestion(CategoryDataStore, code, message, suggestion)
}

// FaceLivenessSessionTimeout reports an expired face liveness session.
// The cause may be nil.
func FaceLivenessSessionTimeout(cause error) *Error {
	e := Predictions(ErrCodeSessionTimeout,
		"Session timed out.",
		"Retry the face liveness check and prompt user to follow the on screen instructions.")
	e.Cause = cause
	return e
}

// IsNoSuchProvider reports whether err is a missing-provider error.
func IsNoSuchProvider(err error) bool {
	return CodeOf(err) == ErrCodeNoSuchProvider
}

// IsConfiguration reports whether err concerns configuration content rather
// than plugin resolution.
func IsConfiguration(err error) bool {
	switch CodeOf(err) {
	case ErrCodeMissingConfig, ErrCodeInvalidConfig, ErrCodeNotConfigured:
		return true
	default:
		return false
	}
}
