package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"loom/internal/domain"
	"loom/internal/httputil"
)

// handleError maps domain errors to RFC 7807 problem responses. The merge
// limit rejection is special-cased so its structured fields (requested,
// limit, remedy) reach the UI instead of collapsing into a detail string.
func handleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var limitErr *domain.MergeLimitError
	if errors.As(err, &limitErr) {
		httputil.RespondErrorWithExtras(w, limitErr.StatusCode(), limitErr.Error(), map[string]interface{}{
			"requested": limitErr.Requested,
			"limit":     limitErr.Limit,
			"remedy":    limitErr.Remedy,
		})
		return
	}

	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCycle):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("unhandled error", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
