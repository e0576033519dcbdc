package models

import (
	"time"
)

// WorkspaceContext holds workspace-level instructions and knowledge-base
// file names that the chat layer prepends to AI requests. The engine only
// stores them.
type WorkspaceContext struct {
	Instructions       string   `json:"instructions,omitempty"`
	KnowledgeBaseFiles []string `json:"knowledge_base_files,omitempty"`
}

// WorkspaceMetadata carries bookkeeping for a workspace, including the
// schema version of its persisted shape. The storage envelope carries its
// own version; migrations reconcile the two on load.
type WorkspaceMetadata struct {
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Workspace partitions the universe of cards. Exactly one workspace is
// active at a time; navigating to another swaps the entire in-memory
// card/edge/selection state.
type Workspace struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Cards    []*Card           `json:"cards"`
	Edges    []Edge            `json:"edges"`
	Tags     []string          `json:"tags,omitempty"`
	Context  WorkspaceContext  `json:"context"`
	Metadata WorkspaceMetadata `json:"metadata"`
}

// Clone returns a deep copy of the workspace.
func (w *Workspace) Clone() *Workspace {
	out := *w
	out.Cards = make([]*Card, len(w.Cards))
	for i, c := range w.Cards {
		out.Cards[i] = c.Clone()
	}
	out.Edges = CloneEdges(w.Edges)
	out.Tags = append([]string(nil), w.Tags...)
	out.Context.KnowledgeBaseFiles = append([]string(nil), w.Context.KnowledgeBaseFiles...)
	return &out
}
