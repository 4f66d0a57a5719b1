package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// apiError is the taxonomy from spec.md §7, surfaced at the edge rather
// than raised internally: handlers build one of these and a single
// writer translates it to the right wire shape.
type apiError struct {
	Status  int
	Message string
	// RetryAfterSeconds is set only for RateLimited.
	RetryAfterSeconds int
}

func (e *apiError) Error() string { return e.Message }

func errAuthMissing() *apiError {
	return &apiError{Status: http.StatusUnauthorized, Message: "invalid or expired access token"}
}

func errAuthRejected() *apiError {
	return &apiError{Status: http.StatusUnauthorized, Message: "invalid or expired access token"}
}

func errNotConfigured() *apiError {
	return &apiError{Status: http.StatusForbidden, Message: "connection not properly configured"}
}

func errValidationFailed(message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Message: message}
}

func errNotFound(message string) *apiError {
	return &apiError{Status: http.StatusNotFound, Message: message}
}

func errConflict(message string) *apiError {
	return &apiError{Status: http.StatusConflict, Message: message}
}

// errRateLimited builds the exact rejection body spec.md §8 scenario 2
// pins: "Rate limit exceeded (<current>/<limit> actions per minute).
// Please wait <seconds> seconds."
func errRateLimited(current, limit, retryAfterSeconds int) *apiError {
	message := "Rate limit exceeded (" + strconv.Itoa(current) + "/" + strconv.Itoa(limit) +
		" actions per minute). Please wait " + strconv.Itoa(retryAfterSeconds) + " seconds."
	return &apiError{Status: http.StatusTooManyRequests, Message: message, RetryAfterSeconds: retryAfterSeconds}
}

func errOriginFailed(message string) *apiError {
	return &apiError{Status: http.StatusInternalServerError, Message: message}
}

func errInternal() *apiError {
	return &apiError{Status: http.StatusInternalServerError, Message: "internal error"}
}

// writeIftttError renders an apiError in the IFTTT {errors:[{message}]}
// shape, used by every /ifttt/v1/* route (spec.md §6).
func writeIftttError(w http.ResponseWriter, err *apiError) {
	if err.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(err.RetryAfterSeconds))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": []map[string]string{{"message": err.Message}},
	})
}

// writeAdminError renders an apiError in the plain {error:"..."} shape
// used by the tenant admin API.
func writeAdminError(w http.ResponseWriter, err *apiError) {
	if err.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(err.RetryAfterSeconds))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Message})
}
