package utils

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func RespondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func SendJSONError(w http.ResponseWriter, message string, status int) {
	RespondWithJSON(w, status, ErrorResponse{Success: false, Message: message})
}

func SendJSONErrorCode(w http.ResponseWriter, code, message string, status int) {
	RespondWithJSON(w, status, ErrorResponse{Success: false, Code: code, Message: message})
}
