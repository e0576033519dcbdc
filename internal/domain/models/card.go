package models

import (
	"time"
)

// InheritanceMode selects how a child card materializes its view of a
// parent's message history at branch/merge time.
type InheritanceMode string

const (
	// InheritFull copies the parent's messages up to the branch point.
	InheritFull InheritanceMode = "full"
	// InheritSummary replaces the parent's messages with a single
	// externally generated summary message.
	InheritSummary InheritanceMode = "summary"
	// InheritCustom carries an explicit caller-selected subset of the
	// parent's messages, in original order.
	InheritCustom InheritanceMode = "custom"
)

// Position is a card's coordinate on the canvas. The engine treats
// positions as opaque values computed by the layout generator or the
// renderer.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BranchPoint records the exact message offset a branch was taken from.
type BranchPoint struct {
	ParentCardID string `json:"parent_card_id"`
	MessageIndex int    `json:"message_index"`
}

// InheritedContext is the materialized snapshot of what a child card saw
// from one parent at creation time. It is never recomputed, even if the
// parent's content changes afterwards.
type InheritedContext struct {
	Mode                InheritanceMode `json:"mode"`
	Messages            []Message       `json:"messages"`
	Timestamp           time.Time       `json:"timestamp"`
	TotalParentMessages int             `json:"total_parent_messages"`
}

// MergeMetadata describes how a merge node was created.
type MergeMetadata struct {
	SourceCardIDs   []string  `json:"source_card_ids"`
	SynthesisPrompt string    `json:"synthesis_prompt,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// CardMetadata carries display-oriented card attributes.
type CardMetadata struct {
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Tags         []string  `json:"tags,omitempty"`
	IsExpanded   bool      `json:"is_expanded"`
}

// Card is a conversation node on the canvas. A card with no parents is a
// root, one parent is a branch, and two or more parents (IsMergeNode set)
// is a merge node. ParentCardIDs is the authoritative lineage; the edge
// list is a rendering projection kept in sync by the graph store.
type Card struct {
	ID               string                      `json:"id"`
	WorkspaceID      string                      `json:"workspace_id"`
	Position         Position                    `json:"position"`
	Content          []Message                   `json:"content"`
	ParentCardIDs    []string                    `json:"parent_card_ids"`
	BranchPoint      *BranchPoint                `json:"branch_point,omitempty"`
	InheritedContext map[string]InheritedContext `json:"inherited_context,omitempty"`
	IsMergeNode      bool                        `json:"is_merge_node"`
	MergeMetadata    *MergeMetadata              `json:"merge_metadata,omitempty"`
	Metadata         CardMetadata                `json:"metadata"`
}

// IsRoot reports whether the card has no parents.
func (c *Card) IsRoot() bool {
	return len(c.ParentCardIDs) == 0
}

// Clone returns a deep copy of the card.
func (c *Card) Clone() *Card {
	out := *c
	out.Content = CloneMessages(c.Content)
	out.ParentCardIDs = append([]string(nil), c.ParentCardIDs...)
	if c.BranchPoint != nil {
		bp := *c.BranchPoint
		out.BranchPoint = &bp
	}
	if c.InheritedContext != nil {
		out.InheritedContext = make(map[string]InheritedContext, len(c.InheritedContext))
		for k, v := range c.InheritedContext {
			v.Messages = CloneMessages(v.Messages)
			out.InheritedContext[k] = v
		}
	}
	if c.MergeMetadata != nil {
		mm := *c.MergeMetadata
		mm.SourceCardIDs = append([]string(nil), c.MergeMetadata.SourceCardIDs...)
		out.MergeMetadata = &mm
	}
	out.Metadata.Tags = append([]string(nil), c.Metadata.Tags...)
	return &out
}
