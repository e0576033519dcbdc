package models

// GraphNode is the rendering projection of a card consumed by the canvas
// library: position plus display state, with the card itself as payload.
type GraphNode struct {
	ID       string   `json:"id"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// NodeData is the payload half of a GraphNode.
type NodeData struct {
	Card       *Card `json:"card"`
	IsExpanded bool  `json:"is_expanded"`
	IsSelected bool  `json:"is_selected"`
}

// HistorySnapshot is a full structural copy of the graph taken around
// every mutating operation, used for undo/redo. Past snapshots retain
// deleted cards so undo can resurrect them.
type HistorySnapshot struct {
	Nodes []GraphNode      `json:"nodes"`
	Edges []Edge           `json:"edges"`
	Cards map[string]*Card `json:"cards"`
}

// Clone deep-copies the snapshot.
func (s *HistorySnapshot) Clone() *HistorySnapshot {
	out := &HistorySnapshot{
		Edges: CloneEdges(s.Edges),
		Cards: make(map[string]*Card, len(s.Cards)),
	}
	for id, c := range s.Cards {
		out.Cards[id] = c.Clone()
	}
	out.Nodes = make([]GraphNode, len(s.Nodes))
	for i, n := range s.Nodes {
		n.Data.Card = out.Cards[n.ID]
		out.Nodes[i] = n
	}
	return out
}
