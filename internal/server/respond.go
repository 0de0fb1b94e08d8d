package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/shared"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// responder writes JSON responses and maps domain errors to status codes.
type responder struct {
	logger      *log.Logger
	development bool
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error to its HTTP status and client-facing message.
//
// 5xx messages are generic; the underlying error only reaches the client as detail in
// development mode.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusBadRequest, "Invalid credentials"
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrConflict):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, shared.ErrUpstream):
		return http.StatusInternalServerError, "Upstream service error"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// fail logs err with the request context and writes the mapped response.
func (re *responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)

	kv := []any{"request_id", RequestID(r.Context()), "method", r.Method, "path", r.URL.Path, "status", status, "error", err}
	var upstream *shared.UpstreamError
	if errors.As(err, &upstream) {
		kv = append(kv, "upstream_status", upstream.Status)
	}
	if status >= http.StatusInternalServerError {
		re.logger.Error("request failed", kv...)
	} else {
		re.logger.Debug("request rejected", kv...)
	}

	body := errorBody{Success: false, Message: message}
	if re.development && status >= http.StatusInternalServerError {
		body.Detail = err.Error()
		if upstream != nil && upstream.Body != "" {
			body.Detail = fmt.Sprintf("%s: %s", err.Error(), upstream.Body)
		}
	}
	writeJSON(w, status, body)
}

// message writes an error response that has no underlying error.
func (re *responder) message(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorBody{Success: false, Message: message})
}

// decode reads a JSON request body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: malformed JSON body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}
