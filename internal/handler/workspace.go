package handler

import (
	"log/slog"
	"net/http"

	"loom/internal/domain/services"
	"loom/internal/httputil"
)

// WorkspaceHandler handles workspace HTTP requests
type WorkspaceHandler struct {
	graph  services.GraphService
	logger *slog.Logger
}

// NewWorkspaceHandler creates a new workspace handler
func NewWorkspaceHandler(graph services.GraphService, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		graph:  graph,
		logger: logger,
	}
}

// ListWorkspaces returns all workspaces
// GET /api/workspaces
func (h *WorkspaceHandler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces, err := h.graph.Workspaces(r.Context())
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"workspaces": workspaces,
		"total":      len(workspaces),
	})
}

// CreateWorkspace creates a new empty workspace
// POST /api/workspaces
func (h *WorkspaceHandler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req services.CreateWorkspaceRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := h.graph.CreateWorkspace(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, ws)
}

// UpdateWorkspace edits workspace title, tags, or context instructions
// PATCH /api/workspaces/{id}
func (h *WorkspaceHandler) UpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateWorkspaceRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := h.graph.UpdateWorkspace(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, ws)
}

// Navigate activates a workspace, swapping the live graph
// POST /api/workspaces/{id}/navigate
func (h *WorkspaceHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	if err := h.graph.NavigateToWorkspace(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, h.logger, err)
		return
	}

	proj, err := h.graph.Projection(r.Context())
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, proj)
}
