package common

import (
	"encoding/json"
	"net/http"
)

// ErrorEnvelope is the wire shape for failures: {"error": {code, message, details}}.
type ErrorEnvelope struct {
	Error *APIError `json:"error"`
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"code": "INTERNAL", "message": "Failed to marshal JSON response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithError writes an APIError envelope with the status implied by its code.
func RespondWithError(w http.ResponseWriter, err error) {
	apiErr := AsAPIError(err, CodeJobError)
	RespondWithJSON(w, HTTPStatusFromError(apiErr), ErrorEnvelope{Error: apiErr})
}
