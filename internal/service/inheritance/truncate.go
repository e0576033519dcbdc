package inheritance

import (
	"strings"

	"loom/internal/config"
	"loom/internal/domain/models"
)

// Truncation strategies build summary-candidate previews before an AI
// call. They are pure functions over a message list and a max-message
// budget and never affect stored state.

// TruncateRecent keeps the last max messages.
func TruncateRecent(msgs []models.Message, max int) []models.Message {
	if max <= 0 || len(msgs) <= max {
		return models.CloneMessages(msgs)
	}
	return models.CloneMessages(msgs[len(msgs)-max:])
}

// TruncateAtBoundary truncates at the assistant-to-user transition closest
// to the desired cutoff, so the retained window always begins on a user
// turn rather than mid-exchange. Falls back to recent truncation when the
// list has no such boundary.
func TruncateAtBoundary(msgs []models.Message, max int) []models.Message {
	if max <= 0 || len(msgs) <= max {
		return models.CloneMessages(msgs)
	}

	desired := len(msgs) - max
	best := -1
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Role != models.RoleUser || msgs[i-1].Role != models.RoleAssistant {
			continue
		}
		if best == -1 || abs(i-desired) < abs(best-desired) {
			best = i
		}
	}
	if best == -1 {
		return TruncateRecent(msgs, max)
	}
	return models.CloneMessages(msgs[best:])
}

// TruncateImportant always retains system messages and the first user
// message, greedily fills the remaining budget with messages containing
// code fences (most recent first), backfills with the most recent
// remaining messages, and returns the selection in original order.
func TruncateImportant(msgs []models.Message, max int) []models.Message {
	if max <= 0 || len(msgs) <= max {
		return models.CloneMessages(msgs)
	}

	selected := make(map[int]bool, max)
	count := 0
	take := func(i int) {
		if !selected[i] {
			selected[i] = true
			count++
		}
	}

	for i, m := range msgs {
		if m.Role == models.RoleSystem {
			take(i)
		}
	}
	for i, m := range msgs {
		if m.Role == models.RoleUser {
			take(i)
			break
		}
	}

	for i := len(msgs) - 1; i >= 0 && count < max; i-- {
		if strings.Contains(msgs[i].Content, "```") {
			take(i)
		}
	}

	for i := len(msgs) - 1; i >= 0 && count < max; i-- {
		take(i)
	}

	out := make([]models.Message, 0, count)
	for i, m := range msgs {
		if selected[i] {
			out = append(out, m.Clone())
		}
	}
	return out
}

// EstimateTokens is the deterministic ceil(chars/CharsPerToken) heuristic,
// summed per message. Used only for UI previews and cost estimates.
func EstimateTokens(msgs []models.Message) int {
	total := 0
	for _, m := range msgs {
		total += (len(m.Content) + config.CharsPerToken - 1) / config.CharsPerToken
	}
	return total
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
