package graph

import (
	"loom/internal/domain/models"
)

// history is a bounded linear undo/redo list of full graph snapshots.
// index points at the snapshot matching the current state; mutating after
// an undo truncates the redo tail. Oldest snapshots are evicted FIFO, so
// unbounded undo depth is explicitly not guaranteed.
type history struct {
	snapshots []*models.HistorySnapshot
	index     int
	max       int
}

func newHistory(max int) *history {
	return &history{index: -1, max: max}
}

// reset seeds the history with a single snapshot, discarding everything
// else. Used on load and on workspace navigation.
func (h *history) reset(s *models.HistorySnapshot) {
	h.snapshots = []*models.HistorySnapshot{s}
	h.index = 0
}

// amend overwrites the snapshot for the current state. Untracked
// mutations (message appends, metadata edits) drift the live state away
// from the recorded snapshot; amending just before a tracked mutation
// makes undo land on the true pre-mutation state.
func (h *history) amend(s *models.HistorySnapshot) {
	if h.index >= 0 {
		h.snapshots[h.index] = s
	}
}

// push records the state after a mutation, dropping any redo tail and
// evicting the oldest snapshot on overflow.
func (h *history) push(s *models.HistorySnapshot) {
	h.snapshots = append(h.snapshots[:h.index+1], s)
	if len(h.snapshots) > h.max {
		h.snapshots = h.snapshots[len(h.snapshots)-h.max:]
	}
	h.index = len(h.snapshots) - 1
}

func (h *history) canUndo() bool { return h.index > 0 }
func (h *history) canRedo() bool { return h.index < len(h.snapshots)-1 }

// undo steps back and returns the snapshot to restore, or nil.
func (h *history) undo() *models.HistorySnapshot {
	if !h.canUndo() {
		return nil
	}
	h.index--
	return h.snapshots[h.index]
}

// redo steps forward and returns the snapshot to restore, or nil.
func (h *history) redo() *models.HistorySnapshot {
	if !h.canRedo() {
		return nil
	}
	h.index++
	return h.snapshots[h.index]
}
