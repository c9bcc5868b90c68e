package buro

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorCategory defines the normalized failure taxonomy
type ErrorCategory string

const (
	// ErrorTimeout indicates the provider took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the provider returned a body that does not parse
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates the API key was rejected
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorProviderOutage indicates the provider is unavailable
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorContractMismatch indicates an unexpected status for the endpoint
	ErrorContractMismatch ErrorCategory = "contract_mismatch"

	// ErrorNotFound indicates the provider has no data for the identifier
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorRateLimited indicates too many requests
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorInternal indicates a failure building or sending the request
	ErrorInternal ErrorCategory = "internal"
)

// ProviderID names this provider in errors and metrics.
const ProviderID = "buro_de_ingresos"

// ProviderError wraps provider failures with normalized categorization
type ProviderError struct {
	Category   ErrorCategory
	Operation  string
	StatusCode int
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s %s [%s]: %s", ProviderID, e.Operation, e.Category, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewProviderError creates a normalized provider error. Retryable marks
// transient categories; the client itself never retries.
func NewProviderError(category ErrorCategory, operation, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited

	return &ProviderError{
		Category:   category,
		Operation:  operation,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is transient.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

func categoryForStatus(status int) ErrorCategory {
	switch {
	case status == http.StatusNotFound:
		return ErrorNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorAuthentication
	case status == http.StatusTooManyRequests:
		return ErrorRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrorTimeout
	case status >= 500:
		return ErrorProviderOutage
	default:
		return ErrorContractMismatch
	}
}

func categoryForTransport(err error) ErrorCategory {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTimeout
	}
	return ErrorProviderOutage
}
