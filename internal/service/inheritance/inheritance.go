// Package inheritance materializes the message snapshot a child or merge
// card carries forward from a parent. Selection is computed once at
// mutation time and never recomputed, preserving historical fidelity even
// when the parent's content changes later.
package inheritance

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"loom/internal/domain"
	"loom/internal/domain/models"
)

// EntireContent is passed as the branch index when the whole parent
// history should be inherited (merge nodes).
const EntireContent = -1

// Engine builds inherited-context snapshots. It holds no state beyond a
// logger; all selection logic is deterministic in its inputs.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an inheritance engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// BuildParams describes one parent-link's inheritance request.
type BuildParams struct {
	ParentID       string
	ParentMessages []models.Message
	// BranchIndex is the inclusive message offset the branch was taken
	// from, or EntireContent for the whole history.
	BranchIndex int
	Mode        models.InheritanceMode
	// SummaryText is the externally generated summary for summary mode.
	// The engine never calls an AI provider itself.
	SummaryText string
	// CustomIDs selects explicit message ids for custom mode.
	CustomIDs []string
}

// Build computes the inherited-context entry for one parent. Summary mode
// without summary text falls back to full with a logged warning - context
// is never silently dropped. Custom mode with an empty selection is a
// validation error.
func (e *Engine) Build(p BuildParams) (models.InheritedContext, error) {
	window := e.window(p.ParentMessages, p.BranchIndex)

	mode := p.Mode
	if mode == "" {
		mode = models.InheritFull
	}

	switch mode {
	case models.InheritFull:
		return models.InheritedContext{
			Mode:                models.InheritFull,
			Messages:            models.CloneMessages(window),
			Timestamp:           time.Now(),
			TotalParentMessages: len(window),
		}, nil

	case models.InheritSummary:
		if p.SummaryText == "" {
			e.logger.Warn("summary mode requested without summary text, falling back to full inheritance",
				"parent_id", p.ParentID,
				"message_count", len(window),
			)
			return models.InheritedContext{
				Mode:                models.InheritFull,
				Messages:            models.CloneMessages(window),
				Timestamp:           time.Now(),
				TotalParentMessages: len(window),
			}, nil
		}
		return models.InheritedContext{
			Mode:                models.InheritSummary,
			Messages:            []models.Message{SummaryMessage(p.SummaryText, len(window))},
			Timestamp:           time.Now(),
			TotalParentMessages: len(window),
		}, nil

	case models.InheritCustom:
		if len(p.CustomIDs) == 0 {
			return models.InheritedContext{}, fmt.Errorf("%w: custom inheritance requires at least one selected message", domain.ErrValidation)
		}
		wanted := make(map[string]bool, len(p.CustomIDs))
		for _, id := range p.CustomIDs {
			wanted[id] = true
		}
		var selected []models.Message
		for _, m := range window {
			if wanted[m.ID] {
				selected = append(selected, m.Clone())
			}
		}
		if len(selected) == 0 {
			return models.InheritedContext{}, fmt.Errorf("%w: custom selection matched no parent messages", domain.ErrValidation)
		}
		return models.InheritedContext{
			Mode:                models.InheritCustom,
			Messages:            selected,
			Timestamp:           time.Now(),
			TotalParentMessages: len(window),
		}, nil

	default:
		return models.InheritedContext{}, fmt.Errorf("%w: unknown inheritance mode %q", domain.ErrValidation, mode)
	}
}

// window slices the parent's history up to and including the branch
// index. EntireContent (or an index past the end) means everything.
func (e *Engine) window(msgs []models.Message, branchIndex int) []models.Message {
	if branchIndex == EntireContent || branchIndex >= len(msgs) {
		return msgs
	}
	if branchIndex < 0 {
		return nil
	}
	return msgs[:branchIndex+1]
}

// SummaryMessage wraps externally produced summary text as a single
// synthetic system message tagged as a summary.
func SummaryMessage(text string, originalCount int) models.Message {
	return models.Message{
		ID:        ulid.Make().String(),
		Role:      models.RoleSystem,
		Content:   text,
		Timestamp: time.Now(),
		Metadata: &models.MessageMetadata{
			IsSummary:            true,
			OriginalMessageCount: originalCount,
		},
	}
}

// ValidationResult reports pre-flight validation of branch/merge form
// data. Warnings do not block the action.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Err     string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// ValidateBranchData checks inheritance selections before any card is
// created, so the UI can block or warn at submit time.
func ValidateBranchData(mode models.InheritanceMode, customIDs []string, msgs []models.Message) ValidationResult {
	switch mode {
	case models.InheritCustom:
		if len(customIDs) == 0 {
			return ValidationResult{Err: "custom mode requires at least one selected message"}
		}
		if len(customIDs) == 1 {
			return ValidationResult{Valid: true, Warning: "only one message selected; the branch will have minimal context"}
		}
	case models.InheritSummary:
		if len(msgs) > 1 {
			return ValidationResult{Valid: true,
				Warning: fmt.Sprintf("summary mode will condense %d messages into one", len(msgs))}
		}
	}
	return ValidationResult{Valid: true}
}
