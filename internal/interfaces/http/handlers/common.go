// Package handlers implements the HTTP endpoints over the prediction
// application service.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	app "github.com/turtacn/AdsorpNET/internal/application/synthesis"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
	DefaultMaxBodyBytes int64 = 4 << 20
)

// parsePagination extracts limit and offset from query parameters.
// Malformed or out-of-range values fall back to the defaults.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxPageSize {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error app.ErrorInfo `json:"error"`
}

// writeAppError maps err to its HTTP status. Server-side failures are
// reported with their code but a generic message.
func writeAppError(w http.ResponseWriter, err error) {
	info := app.NewErrorInfo(err)
	code := errors.ErrorCode(info.Code)
	status := errors.HTTPStatusForCode(code)
	if errors.IsServerError(code) && status != http.StatusServiceUnavailable {
		info.Message = errors.DefaultMessageForCode(code)
	}
	writeJSON(w, status, ErrorResponse{Error: *info})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst interface{}) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.NewInvalidInputError("request body is empty")
		}
		return errors.Wrap(err, errors.ErrCodeBadRequest, "malformed request body")
	}
	return nil
}
