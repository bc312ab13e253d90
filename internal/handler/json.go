package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/herald/herald/internal/middleware"
)

// maxBodyBytes bounds campaign uploads
const maxBodyBytes = 16 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	body := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if reqID := middleware.GetRequestID(r.Context()); reqID != "" {
		body["request_id"] = reqID
	}
	writeJSON(w, status, map[string]interface{}{"error": body})
}

func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.New("request body is empty")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
