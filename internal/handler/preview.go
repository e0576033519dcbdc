package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"loom/internal/domain/models"
	"loom/internal/httputil"
	"loom/internal/service/inheritance"
)

// PreviewHandler serves pre-flight previews for the branch/merge dialogs:
// truncation candidates with token estimates, and inheritance form
// validation. Previews never touch stored state.
type PreviewHandler struct {
	logger *slog.Logger
}

// NewPreviewHandler creates a new preview handler
func NewPreviewHandler(logger *slog.Logger) *PreviewHandler {
	return &PreviewHandler{logger: logger}
}

// Truncate returns the summary-candidate window for a message list
// POST /api/preview/truncate
func (h *PreviewHandler) Truncate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Strategy    string           `json:"strategy"`
		MaxMessages int              `json:"max_messages"`
		Messages    []models.Message `json:"messages"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var truncated []models.Message
	switch req.Strategy {
	case "", "recent":
		truncated = inheritance.TruncateRecent(req.Messages, req.MaxMessages)
	case "boundary":
		truncated = inheritance.TruncateAtBoundary(req.Messages, req.MaxMessages)
	case "important":
		truncated = inheritance.TruncateImportant(req.Messages, req.MaxMessages)
	default:
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("unknown truncation strategy %q", req.Strategy))
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"messages":         truncated,
		"estimated_tokens": inheritance.EstimateTokens(truncated),
		"original_count":   len(req.Messages),
	})
}

// ValidateBranch validates inheritance form data before submission
// POST /api/preview/branch-validation
func (h *PreviewHandler) ValidateBranch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode             models.InheritanceMode `json:"mode"`
		CustomMessageIDs []string               `json:"custom_message_ids"`
		Messages         []models.Message       `json:"messages"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := inheritance.ValidateBranchData(req.Mode, req.CustomMessageIDs, req.Messages)
	httputil.RespondJSON(w, http.StatusOK, result)
}
