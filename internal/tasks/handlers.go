package tasks

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"taskflow-backend/internal/analytics"
	"taskflow-backend/internal/auth"
)

const maxBodyBytes = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Store and model failures
// are upstream failures (502); anything unrecognised is a 500.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		validation *ValidationError
		readErr    *StoreReadError
		writeErr   *StoreWriteError
		genErr     *GenerationError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Reason, Field: validation.Field})
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDraftNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &readErr), errors.As(err, &writeErr), errors.As(err, &genErr):
		log.Warn("upstream failure", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return auth.Identity{}, false
	}
	return ident, true
}

// logEvent records an analytics event for the request. Failures never reach
// the client.
func (h *Handler) logEvent(r *http.Request, ident auth.Identity, name string, props map[string]any) {
	env := analytics.FromRequest(r)
	env.UserID = ident.ID
	_ = analytics.Log(r.Context(), h.Events, env, name, props, analytics.SourceEventKeyFromRequest(r))
}
