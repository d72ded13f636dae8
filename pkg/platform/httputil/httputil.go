package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "imrich/pkg/domain-errors"
)

// ErrorResponse is the single JSON error envelope of the API.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

const internalDetail = "internal server error"

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope.
// Uncoded and internal errors never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	detail := internalDetail
	if de, ok := dErrors.As(err); ok {
		code = de.Code
		if !dErrors.IsInternal(code) {
			detail = de.Message
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), ErrorResponse{
		Error:  string(code),
		Detail: detail,
	})
}
