package config

import "time"

const (
	// MaxMergeParents is the hard upper bound on merge-node sources.
	// Exceeding it rejects the merge outright; the UI should suggest an
	// intermediate merge instead.
	MaxMergeParents = 5

	// MergeWarnThreshold is the source count at which merge creation
	// starts emitting a non-blocking warning.
	MergeWarnThreshold = 3

	// EdgeBundleThreshold is the merge source count at which edges are
	// rendered with the bundled visual style. Edges are still created
	// individually per source so traversal stays correct.
	EdgeBundleThreshold = 4

	// MaxHistoryLength bounds the undo/redo snapshot list. Oldest
	// snapshots are evicted first, so unbounded undo depth is not
	// guaranteed.
	MaxHistoryLength = 50

	// SaveDebounce is the quiet period after the last mutation before
	// the graph is flushed to storage. Coalesces bursts like drag-moves
	// into a single write.
	SaveDebounce = 300 * time.Millisecond

	// CharsPerToken is the heuristic divisor for token estimation,
	// used only for UI previews and cost estimates.
	CharsPerToken = 4

	// MaxTitleLength is the maximum length for card and workspace titles.
	MaxTitleLength = 255

	// MaxSynthesisPromptLength bounds merge synthesis prompts.
	MaxSynthesisPromptLength = 4000
)
