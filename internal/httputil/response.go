package httputil

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body shape of every JSON response of the API.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// RespondWithData writes a successful envelope carrying payload.
func RespondWithData(w http.ResponseWriter, code int, payload interface{}) {
	RespondWithJSON(w, code, Envelope{Success: true, Data: payload})
}

// RespondWithMessage writes a successful envelope carrying only a message.
func RespondWithMessage(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, Envelope{Success: true, Message: message})
}

// RespondWithError writes a failed envelope.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, Envelope{Success: false, Message: message})
}

// RespondWithJSON writes payload as-is.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"success":false,"message":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
