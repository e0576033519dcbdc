package models

// RelationType classifies what an edge means. Branch and merge edges
// mirror lineage recorded on cards; reference edges are non-structural
// links created manually on the canvas.
type RelationType string

const (
	RelationBranch    RelationType = "branch"
	RelationMerge     RelationType = "merge"
	RelationReference RelationType = "reference"
)

// Edge is the rendering-oriented projection of a parent/child (or
// reference) relationship. Source and Target are card IDs.
type Edge struct {
	ID           string       `json:"id"`
	Source       string       `json:"source"`
	Target       string       `json:"target"`
	RelationType RelationType `json:"relation_type"`
	CurveStyle   string       `json:"curve_style,omitempty"`
	Animated     bool         `json:"animated"`
	// Bundled marks merge edges drawn with the collapsed visual style
	// once a merge has many sources. BundleCount is set on the first
	// edge of the bundle only and carries the label count.
	Bundled     bool `json:"bundled,omitempty"`
	BundleCount int  `json:"bundle_count,omitempty"`
}

// CloneEdges copies an edge slice.
func CloneEdges(edges []Edge) []Edge {
	if edges == nil {
		return nil
	}
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}
