package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"fitness-bot/internal/docstore"
	"fitness-bot/internal/ingest"
	"fitness-bot/internal/profile"
	"fitness-bot/internal/program"
)

const (
	codeNotFound            = "not_found"
	codeAlreadyExists       = "already_exists"
	codeInsufficientCredits = "insufficient_credits"
	codeMalformedResponse   = "malformed_response"
	codeEmptyProgram        = "empty_program"
	codeRemoteWriteFailure  = "remote_write_failure"
	codeConflict            = "conflict"
	codeBadRequest          = "bad_request"
	codeUnauthorized        = "unauthorized"
	codeUnavailable         = "unavailable"
	codeInternal            = "internal"
)

// writeSuccess writes {"success": true, ...payload}.
func writeSuccess(w http.ResponseWriter, status int, payload map[string]any) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	writeJSON(w, status, body)
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// classify maps a service error onto an HTTP status and an envelope error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, profile.ErrNotFound),
		errors.Is(err, program.ErrNotFound),
		errors.Is(err, program.ErrDayNotFound),
		errors.Is(err, program.ErrExerciseNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, profile.ErrAlreadyExists):
		return http.StatusConflict, codeAlreadyExists
	case errors.Is(err, profile.ErrInsufficientCredits):
		return http.StatusPaymentRequired, codeInsufficientCredits
	case errors.Is(err, ingest.ErrMalformedResponse):
		return http.StatusBadGateway, codeMalformedResponse
	case errors.Is(err, ingest.ErrEmptyProgram):
		return http.StatusBadGateway, codeEmptyProgram
	case errors.Is(err, profile.ErrInvalidAmount),
		errors.Is(err, profile.ErrInvalidSet),
		errors.Is(err, program.ErrInvalidTargetSlot):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, docstore.ErrVersionConflict):
		return http.StatusConflict, codeConflict
	case errors.Is(err, docstore.ErrRemoteWrite):
		return http.StatusServiceUnavailable, codeRemoteWriteFailure
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Errorw("Request failed", "path", r.URL.Path, "error", err)
	}
	writeFailure(w, status, code, err.Error())
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
