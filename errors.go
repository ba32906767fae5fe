package avatarsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorType categorizes an API error, mapped from the HTTP status of the
// platform's error response.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation_error"
	ErrorTypeUnauthorized ErrorType = "unauthorized_error"
	ErrorTypeForbidden    ErrorType = "forbidden_error"
	ErrorTypeNotFound     ErrorType = "not_found_error"
	ErrorTypeConflict     ErrorType = "conflict_error"
	ErrorTypeRateLimited  ErrorType = "rate_limited_error"
	ErrorTypeExternal     ErrorType = "external_error"
	ErrorTypeInternal     ErrorType = "internal_error"
)

// APIError is a failed platform API request.
type APIError struct {
	Status    int
	Type      ErrorType
	Message   string
	Code      string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error [%d][%s] %s", e.Status, e.Type, e.Message)
}

// errorResponse is the platform's error body shape.
type errorResponse struct {
	Error *errorDetail `json:"error"`
}

type errorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// newAPIError builds an APIError from a non-2xx response body. The typed
// error body is preferred; an undecodable body falls back to the raw text so
// proxy errors still surface something useful.
func newAPIError(status int, body []byte, requestID string) *APIError {
	apiErr := &APIError{
		Status:    status,
		Type:      statusToErrorType(status),
		RequestID: requestID,
	}

	var decoded errorResponse
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error != nil {
		apiErr.Message = decoded.Error.Message
		apiErr.Code = decoded.Error.Code
		if decoded.Error.Type != "" {
			apiErr.Type = ErrorType(decoded.Error.Type)
		}
		if decoded.Error.RequestID != "" {
			apiErr.RequestID = decoded.Error.RequestID
		}
		return apiErr
	}

	apiErr.Message = string(body)
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func statusToErrorType(status int) ErrorType {
	switch status {
	case http.StatusBadRequest:
		return ErrorTypeValidation
	case http.StatusUnauthorized:
		return ErrorTypeUnauthorized
	case http.StatusForbidden:
		return ErrorTypeForbidden
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusConflict:
		return ErrorTypeConflict
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimited
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrorTypeExternal
	default:
		return ErrorTypeInternal
	}
}

// IsErrorType reports whether err is an APIError of the given type.
func IsErrorType(err error, t ErrorType) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == t
}

// IsNotFound reports whether err is a not-found API error.
func IsNotFound(err error) bool { return IsErrorType(err, ErrorTypeNotFound) }

// IsUnauthorized reports whether err is an authentication API error.
func IsUnauthorized(err error) bool { return IsErrorType(err, ErrorTypeUnauthorized) }
