package llm

import "fmt"

// APIError is the base error type for all transport errors.
type APIError struct {
	Message string
	Cause   error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// ProviderError represents an error returned by the completion endpoint.
type ProviderError struct {
	APIError
	Provider   string
	StatusCode int
	Retryable  bool
	RetryAfter *float64 // seconds, from the Retry-After header when present
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d, retryable=%v)", e.Provider, e.Message, e.StatusCode, e.Retryable)
}

// Concrete provider error types.

type AuthenticationError struct{ ProviderError }
type AccessDeniedError struct{ ProviderError }
type NotFoundError struct{ ProviderError }
type InvalidRequestError struct{ ProviderError }
type RateLimitError struct{ ProviderError }
type ServerError struct{ ProviderError }
type ContextLengthError struct{ ProviderError }

// Non-provider errors.

// NetworkError covers connection-level failures before a status code
// was received.
type NetworkError struct{ APIError }

// RequestTimeoutError covers request deadline expiry.
type RequestTimeoutError struct{ APIError }

// MalformedResponseError covers 2xx responses whose body could not be
// decoded into the expected shape.
type MalformedResponseError struct{ APIError }

// CancelledError is returned when the caller's context was cancelled.
type CancelledError struct{ APIError }

// ConfigurationError covers client misconfiguration (unknown provider,
// missing adapter). Never retryable.
type ConfigurationError struct{ APIError }

// ErrorFromStatusCode maps an HTTP status code to the appropriate error type.
func ErrorFromStatusCode(statusCode int, message, provider string, retryAfter *float64) error {
	pe := ProviderError{
		APIError:   APIError{Message: message},
		Provider:   provider,
		StatusCode: statusCode,
		RetryAfter: retryAfter,
	}

	switch statusCode {
	case 400, 422:
		return &InvalidRequestError{ProviderError: pe}
	case 401:
		return &AuthenticationError{ProviderError: pe}
	case 403:
		return &AccessDeniedError{ProviderError: pe}
	case 404:
		return &NotFoundError{ProviderError: pe}
	case 408:
		return &RequestTimeoutError{APIError: APIError{Message: message}}
	case 413:
		return &ContextLengthError{ProviderError: pe}
	case 429:
		pe.Retryable = true
		return &RateLimitError{ProviderError: pe}
	case 500, 502, 503, 504:
		pe.Retryable = true
		return &ServerError{ProviderError: pe}
	default:
		// Unknown status codes default to retryable.
		pe.Retryable = true
		return &pe
	}
}

// IsRetryable reports whether the error is safe to retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch e := err.(type) {
	case *ProviderError:
		return e.Retryable
	case *AuthenticationError, *AccessDeniedError, *NotFoundError,
		*InvalidRequestError, *ContextLengthError, *ConfigurationError,
		*CancelledError:
		return false
	case *RateLimitError, *ServerError, *NetworkError,
		*RequestTimeoutError, *MalformedResponseError:
		return true
	default:
		// Unknown errors default to retryable.
		return true
	}
}
