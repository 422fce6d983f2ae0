// Package shared holds the JSON envelope helpers every handler package uses,
// so error translation stays in one place.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "github.com/Coritp27/sysga-sub001/pkg/domain-errors"
)

// ErrorResponse is the JSON envelope for failures. Code is stable API;
// Message is for humans and may change.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteError maps a domain error to its HTTP status and writes the envelope.
// Non-domain errors become opaque 500s; their text never reaches the client.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	response := ErrorResponse{Error: string(code)}

	var de *dErrors.Error
	if errors.As(err, &de) {
		response.Message = de.Message
	}

	WriteJSON(w, dErrors.ToHTTPStatus(code), response)
}

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
