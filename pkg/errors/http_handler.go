package errors

import (
	"encoding/json"
	"net/http"
)

// WriteError writes err as a JSON error body. Errors that are not AppErrors are
// reported as internal errors without exposing their text.
func WriteError(w http.ResponseWriter, err error) error {
	appErr := AsAppError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())

	response := ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
	return json.NewEncoder(w).Encode(response)
}

func WriteSuccess(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// no recovery possible after WriteHeader, caller logs
	return json.NewEncoder(w).Encode(data)
}
