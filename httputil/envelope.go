package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// DefaultBodyLimit is the default maximum request body size (1 MB).
const DefaultBodyLimit int64 = 1 << 20

// Envelope is the uniform response shape for every endpoint:
// {statusCode, data, message}. Data is null on errors.
type Envelope struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
}

// APIError is a tagged error carrying the HTTP status it should map to.
// Handlers and query helpers return it; WriteError translates it into the
// envelope. Anything that is not an APIError is reported as a 500.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Errorf builds an APIError with a formatted message.
func Errorf(status int, format string, args ...interface{}) *APIError {
	return &APIError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// WriteData sends a success envelope with the given status, payload and message.
func WriteData(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Envelope{StatusCode: status, Data: data, Message: message}); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

// WriteError sends an error envelope. APIError values keep their status and
// message; everything else becomes an opaque 500 so internal details never
// reach clients.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		log.Error().Err(err).Msg("internal error")
		apiErr = &APIError{Status: http.StatusInternalServerError, Message: "internal server error"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	if encErr := json.NewEncoder(w).Encode(Envelope{StatusCode: apiErr.Status, Data: nil, Message: apiErr.Message}); encErr != nil {
		log.Error().Err(encErr).Msg("encode error response")
	}
}

// MaxBody wraps r.Body with a size limit to prevent oversized payloads.
func MaxBody(r *http.Request, n int64) {
	r.Body = http.MaxBytesReader(nil, r.Body, n)
}
