package api

import (
	"encoding/json"
	"net/http"
)

type Response struct {
	Error string `json:"error,omitempty"`
	Field string `json:"field,omitempty"`
	Code  string `json:"code,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func JSONErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Error: message})
}

// JSONValidationError reports a rejected request parameter with its
// machine-readable code.
func JSONValidationError(w http.ResponseWriter, message, field, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(Response{Error: message, Field: field, Code: code})
}
