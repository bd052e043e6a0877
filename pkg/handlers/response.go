package handlers

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse writes a JSON error body. The error field carries the
// user-facing Portuguese text the CRM chat surface displays verbatim;
// message adds detail for logs and debugging. Returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorText, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorText,
		"message": message,
	})
}

// WriteJSON writes data as a JSON response body. The status code is only
// written when it differs from 200, keeping the implicit WriteHeader path
// for the common case. Returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}
