package httpapi

import (
	"encoding/json"
	"net/http"
)

// writeData renders the IFTTT {data: ...} success envelope.
func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

// isTestMode reports whether the request carries IFTTT's
// IFTTT-Test-Mode: 1 header (spec.md §4.4).
func isTestMode(r *http.Request) bool {
	return r.Header.Get("IFTTT-Test-Mode") == "1"
}

// readJSON decodes the request body into v, returning a ValidationFailed
// apiError on malformed JSON.
func readJSON(r *http.Request, v interface{}) *apiError {
	if r.Body == nil {
		return errValidationFailed("request body is required")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errValidationFailed("malformed JSON body")
	}
	return nil
}

// writeJSONBody encodes v onto an already-header-written response.
func writeJSONBody(w http.ResponseWriter, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

// marshalFields serializes a field map for the outbound tunnel call.
// Errors are impossible for map[string]string, so they are ignored.
func marshalFields(fields map[string]string) []byte {
	b, _ := json.Marshal(fields)
	return b
}
