package catalog

import (
	"errors"
	"fmt"
)

// Error codes used by the remote service.
const (
	CodeAuthenticationRequired = "AuthenticationRequiredError"
	CodeForbidden              = "ForbiddenError"
	CodeUserNotActive          = "UserNotActiveError"
	CodeWrongCredentials       = "WrongCredentialsError"
	CodeQuotaExceeded          = "QuotaExceededError"
	CodeTooManyRequests        = "TooManyRequestsError"
	CodeNotFound               = "NotFoundError"
)

// APIError is an error reported by the remote catalog.
type APIError struct {
	Code    string
	Message string
	Status  int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog: %s (HTTP %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("catalog: %s: %s (HTTP %d)", e.Code, e.Message, e.Status)
}

// Severity decides how a failure affects the enclosing pipeline stage.
type Severity int

const (
	// SeverityTransient logs at error level and skips the single item.
	SeverityTransient Severity = iota
	// SeveritySkip logs at warn level and treats the item as absent.
	SeveritySkip
	// SeverityFatal aborts the enclosing stage immediately.
	SeverityFatal
)

// Classify maps a catalog failure onto the three-tier severity taxonomy.
// Authentication, account-state and quota failures are fatal; not-found is a
// per-item skip; everything else, including malformed responses and local
// errors, is transient.
func Classify(err error) Severity {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return SeverityTransient
	}

	switch apiErr.Code {
	case CodeAuthenticationRequired, CodeForbidden, CodeUserNotActive, CodeWrongCredentials,
		CodeQuotaExceeded, CodeTooManyRequests:
		return SeverityFatal
	case CodeNotFound:
		return SeveritySkip
	}
	return SeverityTransient
}

// FatalMessage returns the operator-facing explanation logged for a fatal
// failure, distinguishing credential problems from quota exhaustion.
func FatalMessage(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "request failed"
	}

	switch apiErr.Code {
	case CodeAuthenticationRequired, CodeForbidden, CodeUserNotActive, CodeWrongCredentials:
		return "the API key is not valid for this service, or there is a problem with the user account"
	case CodeQuotaExceeded, CodeTooManyRequests:
		return "the quota for the API key or the number of issued requests has been exceeded"
	}
	return "there was an error while processing the request"
}
