package inheritance

import (
	"testing"

	"loom/internal/domain/models"
)

func TestTruncateRecent(t *testing.T) {
	msgs := makeMessages("user", "assistant", "user", "assistant", "user")

	got := TruncateRecent(msgs, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].ID != "msg-3" || got[1].ID != "msg-4" {
		t.Errorf("expected the last two messages, got %s, %s", got[0].ID, got[1].ID)
	}

	// Budget larger than the list returns everything.
	if got := TruncateRecent(msgs, 10); len(got) != 5 {
		t.Errorf("expected all 5 messages, got %d", len(got))
	}
}

func TestTruncateAtBoundary_StartsOnUserTurn(t *testing.T) {
	msgs := makeMessages("user", "assistant", "user", "assistant", "user", "assistant")

	got := TruncateAtBoundary(msgs, 3)
	if len(got) == 0 {
		t.Fatal("empty window")
	}
	if got[0].Role != models.RoleUser {
		t.Errorf("boundary window starts on %s, want user", got[0].Role)
	}
	// Boundaries sit at indices 2 and 4, equidistant from the desired
	// cutoff (index 3); the earlier one wins, keeping more context.
	if got[0].ID != "msg-2" {
		t.Errorf("expected window starting at msg-2, got %s", got[0].ID)
	}
}

func TestTruncateAtBoundary_NeverStartsOnAssistantWhenBoundaryExists(t *testing.T) {
	// Various alternating shapes; whenever a user-starting boundary exists
	// the window must not begin mid-exchange.
	shapes := [][]string{
		{"user", "assistant", "user", "assistant"},
		{"system", "user", "assistant", "user", "assistant", "user"},
		{"user", "assistant", "assistant", "user", "assistant"},
	}
	for _, roles := range shapes {
		msgs := makeMessages(roles...)
		for max := 1; max < len(msgs); max++ {
			got := TruncateAtBoundary(msgs, max)
			if len(got) == 0 {
				continue
			}
			hasBoundary := false
			for i := 1; i < len(msgs); i++ {
				if msgs[i].Role == models.RoleUser && msgs[i-1].Role == models.RoleAssistant {
					hasBoundary = true
					break
				}
			}
			if hasBoundary && got[0].Role == models.RoleAssistant {
				t.Errorf("roles=%v max=%d: window starts on assistant", roles, max)
			}
		}
	}
}

func TestTruncateAtBoundary_NoBoundaryFallsBackToRecent(t *testing.T) {
	msgs := makeMessages("user", "user", "user", "user")
	got := TruncateAtBoundary(msgs, 2)
	if len(got) != 2 || got[0].ID != "msg-2" {
		t.Errorf("expected recent fallback, got %d messages starting at %s", len(got), got[0].ID)
	}
}

func TestTruncateImportant(t *testing.T) {
	msgs := makeMessages("system", "user", "assistant", "user", "assistant", "user", "assistant")
	msgs[4].Content = "here is code:\n```go\nfunc main() {}\n```"

	got := TruncateImportant(msgs, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got))
	}

	byID := map[string]bool{}
	lastIdx := -1
	for _, m := range got {
		byID[m.ID] = true
		// Result must be in original order.
		idx := int(m.ID[len(m.ID)-1] - '0')
		if idx <= lastIdx {
			t.Errorf("selection not in original order: %s after index %d", m.ID, lastIdx)
		}
		lastIdx = idx
	}

	if !byID["msg-0"] {
		t.Error("system message dropped")
	}
	if !byID["msg-1"] {
		t.Error("first user message dropped")
	}
	if !byID["msg-4"] {
		t.Error("code-fence message dropped")
	}
}

func TestEstimateTokens(t *testing.T) {
	msgs := []models.Message{
		{Content: "abcd"},     // 1 token
		{Content: "abcde"},    // ceil(5/4) = 2
		{Content: ""},         // 0
		{Content: "abcdefgh"}, // 2
	}
	if got := EstimateTokens(msgs); got != 5 {
		t.Errorf("EstimateTokens = %d, want 5", got)
	}
}
