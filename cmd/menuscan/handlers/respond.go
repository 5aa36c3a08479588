// Package handlers provides the local REST API used by the capture UI.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
	"github.com/kimhsiao/menuscan/backend/internal/logging"
)

// maxBodyBytes bounds request bodies; base64 menu photos are the largest.
const maxBodyBytes = 20 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", err)
	}
}

// statusFor maps an error code to an HTTP status.
func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrInvalid, apperrors.ErrValidation, apperrors.ErrMalformedUpload:
		return http.StatusBadRequest
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrAINotConfigured:
		return http.StatusServiceUnavailable
	case apperrors.ErrExtractionFailed:
		return http.StatusBadGateway
	case apperrors.ErrSyncInProgress:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := statusFor(code)
	message := err.Error()
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	if status == http.StatusInternalServerError {
		logging.ErrorWithCode("request failed", string(code), err)
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: string(code)})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: string(apperrors.ErrInvalid)})
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "Invalid request body")
		return false
	}
	return true
}
