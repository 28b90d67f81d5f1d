package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string            `json:"error"`             // Machine-readable error code
	Message string            `json:"message"`           // Human-readable message
	Details map[string]string `json:"details,omitempty"` // Field-level validation problems

	RemainingAttempts *int       `json:"remainingAttempts,omitempty"`
	LockedUntil       *time.Time `json:"lockedUntil,omitempty"`
	RetryAfter        *int       `json:"retryAfter,omitempty"` // seconds
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse writes a fully populated error envelope.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	WriteJSON(w, statusCode, resp)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorResponse(w, statusCode, ErrorResponse{Error: errorCode, Message: message})
}

// WriteValidationError reports field-level input problems with a 400.
func WriteValidationError(w http.ResponseWriter, fields map[string]string) {
	WriteErrorResponse(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: "Request validation failed",
		Details: fields,
	})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

// WriteInvalidCredentials is a 401 carrying the remaining-attempts hint.
func WriteInvalidCredentials(w http.ResponseWriter, remaining int) {
	WriteErrorResponse(w, http.StatusUnauthorized, ErrorResponse{
		Error:             "invalid_credentials",
		Message:           "Invalid email or password",
		RemainingAttempts: &remaining,
	})
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

// WriteLocked is a 423 with the instant the lock lifts.
func WriteLocked(w http.ResponseWriter, lockedUntil time.Time, message string) {
	until := lockedUntil.UTC()
	WriteErrorResponse(w, http.StatusLocked, ErrorResponse{
		Error:       "account_locked",
		Message:     message,
		LockedUntil: &until,
	})
}

// WriteTooManyRequests is a 429 with both a Retry-After header and body hint.
func WriteTooManyRequests(w http.ResponseWriter, retryAfter time.Duration, message string) {
	seconds := int((retryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	WriteErrorResponse(w, http.StatusTooManyRequests, ErrorResponse{
		Error:      "rate_limit_exceeded",
		Message:    message,
		RetryAfter: &seconds,
	})
}

func WriteServiceUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, "service_unavailable", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}
