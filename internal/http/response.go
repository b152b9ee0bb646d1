package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"divvy/internal/auth"
	"divvy/internal/billing"
	"divvy/internal/core"
	"divvy/internal/log"
	"divvy/internal/services"
	"divvy/internal/storage"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// writeError maps domain errors onto HTTP status codes. Unrecognized
// errors become opaque 500s so internals never leak to clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var limitErr *services.LimitError
	switch {
	case errors.As(err, &limitErr):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Error:  "plan limit reached",
			Reason: limitErr.Check.Reason,
		})
	case errors.Is(err, services.ErrNotMember), errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
	case errors.Is(err, auth.ErrEmailExists), errors.Is(err, services.ErrAlreadyMember):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, billing.ErrUnknownProduct):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "request failed",
			log.FieldError, err.Error(),
			log.FieldPath, r.URL.Path,
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount,
		core.ErrZeroAmount,
		core.ErrAmountTooLarge,
		core.ErrEmptyDescription,
		core.ErrDescriptionTooLong,
		core.ErrEmptyName,
		core.ErrNameTooLong,
		core.ErrMissingPayer,
		core.ErrMissingMember,
		core.ErrMissingCreator,
		core.ErrInvalidMemberKind,
		core.ErrGuestNeedsName,
		auth.ErrWeakPassword,
		auth.ErrInvalidEmail,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}
