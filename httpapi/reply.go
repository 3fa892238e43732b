package httpapi

import (
	"encoding/json"
	"net/http"
)

// error body
type eType struct {
	Detail string `json:"detail"`
}

func sendReply(w http.ResponseWriter, data interface{}) {
	sendStatus(w, http.StatusOK, data)
}

func sendStatus(w http.ResponseWriter, code int, data interface{}) {
	text, err := json.Marshal(data)
	if err != nil {
		sendInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	w.Write(text)
}

func sendNotFound(w http.ResponseWriter) {
	sendError(w, "Not Found", http.StatusNotFound)
}

func sendMethodNotAllowed(w http.ResponseWriter) {
	sendError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

func sendTooManyRequests(w http.ResponseWriter) {
	sendError(w, "Too Many Requests", http.StatusTooManyRequests)
}

func sendInternalServerError(w http.ResponseWriter) {
	sendError(w, "Internal Server Error", http.StatusInternalServerError)
}

func sendError(w http.ResponseWriter, message string, code int) {
	text, err := json.Marshal(eType{Detail: message})
	if err != nil {
		// composed by hand in case encoding fails
		http.Error(w, `{"detail":"Internal Server Error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	w.Write(text)
}
