package handlers

import (
	"encoding/json"
	"net/http"
)

// All endpoints answer with the same envelope: a status block plus either
// data or per-field errors.
type responseStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

type envelope struct {
	Status responseStatus    `json:"status"`
	Data   interface{}       `json:"data,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func respondData(w http.ResponseWriter, code int, data interface{}) {
	writeEnvelope(w, code, envelope{Status: responseStatus{Code: code}, Data: data})
}

func respondMessage(w http.ResponseWriter, code int, message string) {
	writeEnvelope(w, code, envelope{Status: responseStatus{Code: code, Message: message}})
}

func respondFieldErrors(w http.ResponseWriter, fieldErrors map[string]string) {
	writeEnvelope(w, http.StatusBadRequest, envelope{
		Status: responseStatus{Code: http.StatusBadRequest},
		Errors: fieldErrors,
	})
}

func badRequest(w http.ResponseWriter, message string) {
	respondMessage(w, http.StatusBadRequest, message)
}

func unauthorized(w http.ResponseWriter) {
	respondMessage(w, http.StatusUnauthorized, "Unauthorized")
}

// Forbidden is used by the group guard middleware as well; keep the payload
// identical everywhere so clients cannot distinguish why.
func Forbidden(w http.ResponseWriter) {
	respondMessage(w, http.StatusForbidden, "Insufficient permissions")
}

func notFound(w http.ResponseWriter, message string) {
	respondMessage(w, http.StatusNotFound, message)
}

func gone(w http.ResponseWriter, message string) {
	respondMessage(w, http.StatusGone, message)
}

func internalError(w http.ResponseWriter) {
	respondMessage(w, http.StatusInternalServerError, "Internal server error")
}
