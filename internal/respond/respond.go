// Package respond writes JSON responses and maps domain errors to HTTP
// status codes.
package respond

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"libraryflow/internal/apperr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error("encode response", "err", err)
		}
	}
}

// Error writes a JSON error body.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Decode reads a JSON request body into target.
func Decode(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// PathID parses the named chi URL parameter as a UUID.
func PathID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrInvariant):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes err with the status of its kind. Errors without a kind are
// logged and hidden from the client.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		Error(w, status, "internal error")
		return
	}
	Error(w, status, err.Error())
}
