// Package respond writes the API's JSON bodies.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse is the standard error shape for all API errors.
type ErrorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Detail    string `json:"detail,omitempty"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

// WriteError sends a structured JSON error carrying the request id, so a
// caller's report can be matched to the server log line.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteErrorDetail(w, r, status, code, message, "")
}

// WriteErrorDetail is WriteError with an extra detail string.
func WriteErrorDetail(w http.ResponseWriter, r *http.Request, status int, code, message, detail string) {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Detail = detail
	resp.Error.RequestID = middleware.GetReqID(r.Context())
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, status, resp)
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
