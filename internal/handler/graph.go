package handler

import (
	"log/slog"
	"net/http"
	"time"

	"loom/internal/domain/models"
	"loom/internal/domain/services"
	"loom/internal/httputil"
)

// GraphHandler handles conversation graph HTTP requests
type GraphHandler struct {
	graph  services.GraphService
	logger *slog.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(graph services.GraphService, logger *slog.Logger) *GraphHandler {
	return &GraphHandler{
		graph:  graph,
		logger: logger,
	}
}

// GetGraph returns the rendering projection of the active workspace
// GET /api/graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	proj, err := h.graph.Projection(r.Context())
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, proj)
}

// CreateCard creates a new root conversation card
// POST /api/cards
func (h *GraphHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req services.CreateCardRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	card, err := h.graph.CreateCard(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, card)
}

// GetCard returns a single card
// GET /api/cards/{id}
func (h *GraphHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.graph.GetCard(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, card)
}

// Branch creates a child card from a message in the source card
// POST /api/cards/{id}/branch
func (h *GraphHandler) Branch(w http.ResponseWriter, r *http.Request) {
	var req services.BranchRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.SourceCardID = r.PathValue("id")

	card, err := h.graph.BranchFromMessage(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, card)
}

// AppendMessage appends one message to a card
// POST /api/cards/{id}/messages
func (h *GraphHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	var req services.AppendMessageRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	card, err := h.graph.AppendMessage(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, card)
}

// UpdateCard updates card display fields
// PATCH /api/cards/{id}
func (h *GraphHandler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateCardRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	card, err := h.graph.UpdateConversation(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, card)
}

// DeleteCard deletes a card and its incident edges
// DELETE /api/cards/{id}
func (h *GraphHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := h.graph.DeleteConversation(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateInheritedSummary regenerates the summary inherited from one parent
// PATCH /api/cards/{id}/context/{parentId}
func (h *GraphHandler) UpdateInheritedSummary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SummaryText string `json:"summary_text"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	card, err := h.graph.UpdateInheritedSummary(r.Context(), r.PathValue("id"), r.PathValue("parentId"), req.SummaryText)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, card)
}

// MoveCard updates a card position; final=true marks the end of a drag
// POST /api/cards/{id}/move
func (h *GraphHandler) MoveCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position models.Position `json:"position"`
		Final    bool            `json:"final"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.graph.MoveCard(r.Context(), r.PathValue("id"), req.Position, req.Final); err != nil {
		handleError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateMerge creates a merge node from multiple source cards
// POST /api/merges
func (h *GraphHandler) CreateMerge(w http.ResponseWriter, r *http.Request) {
	var req services.MergeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.graph.CreateMergeNode(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, result)
}

// CreateEdge creates a manual edge between two cards
// POST /api/edges
func (h *GraphHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var req services.ConnectRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	edge, err := h.graph.CreateEdge(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, edge)
}

// SetSelection replaces the selected-card set
// PUT /api/selection
func (h *GraphHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardIDs []string `json:"card_ids"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.graph.SetSelection(r.Context(), req.CardIDs); err != nil {
		handleError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Undo steps the graph back one history snapshot
// POST /api/history/undo
func (h *GraphHandler) Undo(w http.ResponseWriter, r *http.Request) {
	applied, err := h.graph.Undo(r.Context())
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	h.respondHistory(w, r, applied)
}

// Redo steps the graph forward one history snapshot
// POST /api/history/redo
func (h *GraphHandler) Redo(w http.ResponseWriter, r *http.Request) {
	applied, err := h.graph.Redo(r.Context())
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	h.respondHistory(w, r, applied)
}

// respondHistory returns the fresh projection after an undo/redo so the
// canvas can re-render in one round trip.
func (h *GraphHandler) respondHistory(w http.ResponseWriter, r *http.Request, applied bool) {
	proj, err := h.graph.Projection(r.Context())
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"applied": applied,
		"graph":   proj,
	})
}

// HealthCheck is a simple health check endpoint
// GET /health
func (h *GraphHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now(),
	})
}
