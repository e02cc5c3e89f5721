package gatehouse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors.
var (
	// ErrSessionUnavailable is returned when a session-dependent operation
	// runs on a request that has no session middleware installed.
	ErrSessionUnavailable = errors.New("session support is not available on this request")

	// ErrNotInitialized is returned when Login, Logout, or a property helper
	// is used on a request that passed through neither Initialize nor
	// Authenticate middleware.
	ErrNotInitialized = errors.New("authentication is not initialized on this request")

	// ErrSerializerExhausted is returned when every registered serializer
	// declined to handle the user value.
	ErrSerializerExhausted = errors.New("failed to serialize user into session")

	// ErrDeserializerExhausted is returned when every registered deserializer
	// declined to handle the stored session value.
	ErrDeserializerExhausted = errors.New("failed to deserialize user out of session")
)

// AuthError is a structured authentication error carrying the HTTP status
// it should surface with. Credentials failures are never represented as
// AuthError values; those accumulate as Failure records. AuthError covers
// internal faults, configuration mistakes, and FailWithError outcomes.
type AuthError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return msg
}

// NewAuthError creates an AuthError with the given message and status.
// A zero status defaults to 401.
func NewAuthError(message string, status int) *AuthError {
	if status == 0 {
		status = http.StatusUnauthorized
	}
	return &AuthError{Status: status, Message: message}
}

// configError builds the 500-class AuthError used for configuration
// mistakes such as unknown strategy names.
func configError(format string, args ...any) *AuthError {
	return &AuthError{
		Status:  http.StatusInternalServerError,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorHandler receives internal, configuration, and FailWithError errors
// raised by the pipeline. The handler owns the response from that point on.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// errorResponse wraps an AuthError for JSON serialization.
type errorResponse struct {
	Error *AuthError `json:"error"`
}

// WriteError is the default ErrorHandler. It writes the error as a JSON
// body of the form {"error":{"status":...,"message":"..."}}, deriving the
// HTTP status from the error when it is an AuthError and using 500
// otherwise.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *AuthError
	if !errors.As(err, &ae) {
		ae = &AuthError{Status: http.StatusInternalServerError, Message: err.Error()}
	}
	if ae.Status == 0 {
		ae.Status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.Status)
	json.NewEncoder(w).Encode(errorResponse{Error: ae})
}
