package graph

import (
	"testing"

	"loom/internal/domain/models"
)

func card(id string, parents ...string) *models.Card {
	return &models.Card{ID: id, ParentCardIDs: parents}
}

func cardMap(cards ...*models.Card) map[string]*models.Card {
	m := make(map[string]*models.Card, len(cards))
	for _, c := range cards {
		m[c.ID] = c
	}
	return m
}

func TestCanConnect(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		target    string
		edges     []models.Edge
		cards     map[string]*models.Card
		wantValid bool
	}{
		{
			name:      "simple forward edge",
			source:    "a",
			target:    "b",
			cards:     cardMap(card("a"), card("b")),
			wantValid: true,
		},
		{
			name:      "self loop",
			source:    "a",
			target:    "a",
			cards:     cardMap(card("a")),
			wantValid: false,
		},
		{
			name:   "duplicate edge",
			source: "a",
			target: "b",
			edges:  []models.Edge{{Source: "a", Target: "b"}},
			cards:  cardMap(card("a"), card("b")),
		},
		{
			name:   "direct back edge",
			source: "b",
			target: "a",
			edges:  []models.Edge{{Source: "a", Target: "b"}},
			cards:  cardMap(card("a"), card("b")),
		},
		{
			name:   "transitive cycle through edges",
			source: "c",
			target: "a",
			edges: []models.Edge{
				{Source: "a", Target: "b"},
				{Source: "b", Target: "c"},
			},
			cards: cardMap(card("a"), card("b"), card("c")),
		},
		{
			name:   "cycle through implicit parent links only",
			source: "c",
			target: "a",
			// No explicit edges at all; lineage alone must be enough.
			cards: cardMap(card("a"), card("b", "a"), card("c", "b")),
		},
		{
			name:   "cycle through mixed edge and parent hops",
			source: "d",
			target: "a",
			edges:  []models.Edge{{Source: "b", Target: "c"}},
			cards:  cardMap(card("a"), card("b", "a"), card("c"), card("d", "c")),
		},
		{
			name:      "cross link between siblings",
			source:    "b",
			target:    "c",
			cards:     cardMap(card("a"), card("b", "a"), card("c", "a")),
			wantValid: true,
		},
		{
			name:   "diamond stays acyclic until closed",
			source: "d",
			target: "a",
			edges: []models.Edge{
				{Source: "a", Target: "b"},
				{Source: "a", Target: "c"},
				{Source: "b", Target: "d"},
				{Source: "c", Target: "d"},
			},
			cards: cardMap(card("a"), card("b"), card("c"), card("d")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := CanConnect(tt.source, tt.target, tt.edges, tt.cards)
			if check.Valid != tt.wantValid {
				t.Errorf("CanConnect(%s, %s) = %+v, want valid=%v", tt.source, tt.target, check, tt.wantValid)
			}
			if !check.Valid && check.Reason == "" {
				t.Error("rejection carries no reason")
			}
		})
	}
}

func TestCanConnectTerminatesOnLargeChain(t *testing.T) {
	// A long lineage chain exercises the visited set; without it the DFS
	// would revisit nodes combinatorially.
	cards := map[string]*models.Card{nodeID(0): card(nodeID(0))}
	var edges []models.Edge
	for i := 1; i < 500; i++ {
		id := nodeID(i)
		cards[id] = card(id, nodeID(i-1))
		edges = append(edges, models.Edge{Source: nodeID(i - 1), Target: id})
	}

	check := CanConnect(nodeID(499), nodeID(0), edges, cards)
	if check.Valid {
		t.Error("closing a 500-node chain into a cycle was allowed")
	}

	// A forward shortcut deeper into the chain is fine.
	check = CanConnect(nodeID(0), nodeID(250), edges, cards)
	if !check.Valid {
		t.Errorf("forward shortcut rejected: %s", check.Reason)
	}
}

func nodeID(i int) string {
	return "n" + string(rune('0'+i/100)) + string(rune('0'+(i/10)%10)) + string(rune('0'+i%10))
}
