package api

import (
	"net/http"

	"github.com/goccy/go-json"
)

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type dataBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dataBody{Success: true, Data: data})
}

// writeError emits the {success:false, message} envelope the frontend
// surfaces as a toast. kind is the machine-readable taxonomy tag.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Success: false, Message: message, Error: kind})
}
