package services

import (
	"context"

	"loom/internal/domain/models"
)

// GraphService owns the conversation graph: cards, edges, branch/merge
// mutations, undo/redo history, and workspace navigation. All mutations
// are atomic with respect to the in-memory state and persist
// asynchronously.
type GraphService interface {
	// CreateCard creates a root conversation card with no lineage.
	CreateCard(ctx context.Context, req *CreateCardRequest) (*models.Card, error)

	// BranchFromMessage creates a child card branching from a specific
	// message offset in the source card.
	BranchFromMessage(ctx context.Context, req *BranchRequest) (*models.Card, error)

	// CreateMergeNode creates a card synthesizing 2..MaxMergeParents
	// source cards. Warnings (high parent count, skipped edges) are
	// non-blocking.
	CreateMergeNode(ctx context.Context, req *MergeRequest) (*MergeResult, error)

	// CreateEdge adds a manual (usually reference) edge, gated by the
	// cycle-safety check.
	CreateEdge(ctx context.Context, req *ConnectRequest) (*models.Edge, error)

	// DeleteConversation removes a card and its incident edges.
	DeleteConversation(ctx context.Context, cardID string) error

	// UpdateConversation shallow-merges display fields. Lineage and
	// inherited context are never touched by updates.
	UpdateConversation(ctx context.Context, cardID string, req *UpdateCardRequest) (*models.Card, error)

	// AppendMessage appends one message to a card's content.
	AppendMessage(ctx context.Context, cardID string, req *AppendMessageRequest) (*models.Card, error)

	// UpdateInheritedSummary replaces the synthetic summary for one
	// parent link after the user regenerates it.
	UpdateInheritedSummary(ctx context.Context, cardID, parentID, summaryText string) (*models.Card, error)

	// MoveCard updates a card's position. Only a completed drag
	// (final=true) is history-tracked.
	MoveCard(ctx context.Context, cardID string, position models.Position, final bool) error

	// SetSelection replaces the selected-card set. Not history-tracked.
	SetSelection(ctx context.Context, cardIDs []string) error

	// Undo/Redo swap the whole card/edge state to the adjacent history
	// snapshot. They report false when no snapshot is available.
	Undo(ctx context.Context) (bool, error)
	Redo(ctx context.Context) (bool, error)

	// GetCard returns one card.
	GetCard(ctx context.Context, cardID string) (*models.Card, error)

	// Projection returns the rendering-oriented view of the active
	// workspace's graph.
	Projection(ctx context.Context) (*GraphProjection, error)

	// Workspaces lists all workspaces.
	Workspaces(ctx context.Context) ([]*models.Workspace, error)

	// CreateWorkspace adds a new empty workspace.
	CreateWorkspace(ctx context.Context, req *CreateWorkspaceRequest) (*models.Workspace, error)

	// UpdateWorkspace edits workspace title, tags, or context.
	UpdateWorkspace(ctx context.Context, id string, req *UpdateWorkspaceRequest) (*models.Workspace, error)

	// NavigateToWorkspace swaps the entire card/edge/selection/history
	// state to the target workspace. Undo does not cross this boundary.
	NavigateToWorkspace(ctx context.Context, id string) error
}

// CreateCardRequest asks for a new root conversation card.
type CreateCardRequest struct {
	Title    string           `json:"title,omitempty"`
	Tags     []string         `json:"tags,omitempty"`
	Position *models.Position `json:"position,omitempty"`
}

// BranchRequest asks for a new branch card.
type BranchRequest struct {
	SourceCardID     string                 `json:"source_card_id"`
	MessageIndex     int                    `json:"message_index"`
	InheritanceMode  models.InheritanceMode `json:"inheritance_mode,omitempty"`
	BranchReason     string                 `json:"branch_reason,omitempty"`
	SummaryText      string                 `json:"summary_text,omitempty"`
	CustomMessageIDs []string               `json:"custom_message_ids,omitempty"`
	Position         *models.Position       `json:"position,omitempty"`
}

// MergeRequest asks for a new merge node.
type MergeRequest struct {
	SourceCardIDs    []string                          `json:"source_card_ids"`
	Position         *models.Position                  `json:"position,omitempty"`
	SynthesisPrompt  string                            `json:"synthesis_prompt,omitempty"`
	InheritanceModes map[string]models.InheritanceMode `json:"inheritance_modes,omitempty"`
	SummaryTexts     map[string]string                 `json:"summary_texts,omitempty"`
}

// MergeResult carries the created merge node plus any non-blocking
// warnings accumulated during creation.
type MergeResult struct {
	Card     *models.Card `json:"card"`
	Warnings []string     `json:"warnings,omitempty"`
}

// ConnectRequest asks for a manual edge between two existing cards.
type ConnectRequest struct {
	SourceID     string              `json:"source_id"`
	TargetID     string              `json:"target_id"`
	RelationType models.RelationType `json:"relation_type,omitempty"`
}

// UpdateCardRequest shallow-merges display fields onto a card.
type UpdateCardRequest struct {
	Title      *string          `json:"title,omitempty"`
	Tags       []string         `json:"tags,omitempty"`
	IsExpanded *bool            `json:"is_expanded,omitempty"`
	Position   *models.Position `json:"position,omitempty"`
}

// AppendMessageRequest appends one message to a card.
type AppendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CreateWorkspaceRequest creates a workspace.
type CreateWorkspaceRequest struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

// UpdateWorkspaceRequest edits workspace fields.
type UpdateWorkspaceRequest struct {
	Title        *string  `json:"title,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Instructions *string  `json:"instructions,omitempty"`
}

// GraphProjection is the view the canvas renderer consumes.
type GraphProjection struct {
	WorkspaceID string             `json:"workspace_id"`
	Nodes       []models.GraphNode `json:"nodes"`
	Edges       []models.Edge      `json:"edges"`
	CanUndo     bool               `json:"can_undo"`
	CanRedo     bool               `json:"can_redo"`
}
