package graph

import (
	"fmt"

	"loom/internal/domain/models"
)

// ConnectCheck is the typed result of a cycle-safety check. Rejections
// are results, never errors or panics.
type ConnectCheck struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// CanConnect reports whether adding source->target would keep the graph
// acyclic. It is the single gate run before any edge is added anywhere:
// branch creation, merge creation, and manual connects all pass through
// here.
//
// Lineage is recorded on cards (ParentCardIDs) independently of the edge
// list, so reachability follows both: explicit structural edges forward,
// and the implicit parent->child relation from every card whose
// ParentCardIDs contains the node being visited.
func CanConnect(sourceID, targetID string, edges []models.Edge, cards map[string]*models.Card) ConnectCheck {
	if sourceID == targetID {
		return ConnectCheck{Reason: "cannot connect a card to itself"}
	}
	for _, e := range edges {
		if e.Source == sourceID && e.Target == targetID {
			return ConnectCheck{Reason: "edge already exists"}
		}
	}

	// The new edge makes target reachable from source, so it closes a
	// cycle exactly when source is already reachable from target.
	if reaches(targetID, sourceID, edges, cards) {
		return ConnectCheck{Reason: fmt.Sprintf("connection would create a cycle: %s already reaches %s", targetID, sourceID)}
	}

	return ConnectCheck{Valid: true}
}

// reaches runs an iterative depth-first search from start looking for
// goal, following structural edges and implicit parent links forward.
func reaches(start, goal string, edges []models.Edge, cards map[string]*models.Card) bool {
	visited := map[string]bool{}
	stack := []string{start}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == goal {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		for _, e := range edges {
			if e.Source == current && !visited[e.Target] {
				stack = append(stack, e.Target)
			}
		}
		for _, card := range cards {
			if visited[card.ID] {
				continue
			}
			for _, parentID := range card.ParentCardIDs {
				if parentID == current {
					stack = append(stack, card.ID)
					break
				}
			}
		}
	}
	return false
}
